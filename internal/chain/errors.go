package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"

	clierr "github.com/ggonzalez94/dotsign/internal/errors"
	"github.com/ggonzalez94/dotsign/internal/httpx"
)

const rpcMethodNotFound = -32601

// mapRPCError sorts a JSON-RPC failure into unavailable (transport),
// unsupported (node refused the method or call) or malformed (the result
// did not decode).
func mapRPCError(method string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		if rpcErr.ErrorCode() == rpcMethodNotFound {
			return clierr.Wrap(clierr.CodeUnsupported, fmt.Sprintf("node does not support %s", method), err)
		}
		return clierr.Wrap(clierr.CodeUnsupported, fmt.Sprintf("node rejected %s", method), err)
	}

	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	if errors.As(err, &typeErr) || errors.As(err, &syntaxErr) {
		return clierr.Wrap(clierr.CodeMalformed, fmt.Sprintf("malformed %s response", method), err)
	}

	if errors.Is(err, context.DeadlineExceeded) || httpx.Timeout(err) {
		return clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("%s timed out", method), err)
	}
	return clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("%s failed", method), err)
}

func malformed(method string, err error) error {
	return clierr.Wrap(clierr.CodeMalformed, fmt.Sprintf("malformed %s response", method), err)
}
