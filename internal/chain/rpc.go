package chain

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	clierr "github.com/ggonzalez94/dotsign/internal/errors"
	"github.com/ggonzalez94/dotsign/internal/metadata"
)

const queryCallInfoMethod = "TransactionPaymentCallApi_query_call_info"

// RPCClient implements Handle over a node's JSON-RPC endpoint (http(s) or
// ws(s)).
type RPCClient struct {
	client   *rpc.Client
	endpoint string
}

// DialRPC opens a JSON-RPC client. httpClient is used for http(s) endpoints
// and may be nil.
func DialRPC(ctx context.Context, endpoint string, httpClient *http.Client) (*RPCClient, error) {
	var opts []rpc.ClientOption
	if httpClient != nil {
		opts = append(opts, rpc.WithHTTPClient(httpClient))
	}
	client, err := rpc.DialOptions(ctx, endpoint, opts...)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("dial %s", endpoint), err)
	}
	return &RPCClient{client: client, endpoint: endpoint}, nil
}

func (c *RPCClient) Endpoint() string { return c.endpoint }

func (c *RPCClient) call(ctx context.Context, out any, method string, args ...any) error {
	return mapRPCError(method, c.client.CallContext(ctx, out, method, args...))
}

func (c *RPCClient) GenesisHash(ctx context.Context) (string, error) {
	var hash string
	if err := c.call(ctx, &hash, "chain_getBlockHash", 0); err != nil {
		return "", err
	}
	hash = metadata.NormalizeHash(hash)
	if _, err := hexutil.Decode(hash); err != nil || len(hash) != 66 {
		return "", malformed("chain_getBlockHash", fmt.Errorf("not a block hash: %q", hash))
	}
	return hash, nil
}

func (c *RPCClient) RuntimeVersion(ctx context.Context) (RuntimeVersion, error) {
	var v RuntimeVersion
	if err := c.call(ctx, &v, "state_getRuntimeVersion"); err != nil {
		return RuntimeVersion{}, err
	}
	return v, nil
}

func (c *RPCClient) ChainName(ctx context.Context) (string, error) {
	var name string
	if err := c.call(ctx, &name, "system_chain"); err != nil {
		return "", err
	}
	return name, nil
}

func (c *RPCClient) Properties(ctx context.Context) (Properties, error) {
	var raw json.RawMessage
	if err := c.call(ctx, &raw, "system_properties"); err != nil {
		return Properties{}, err
	}
	props, err := ParseProperties(raw)
	if err != nil {
		return Properties{}, malformed("system_properties", err)
	}
	return props, nil
}

func (c *RPCClient) RuntimeMetadata(ctx context.Context) ([]byte, error) {
	var blob hexutil.Bytes
	if err := c.call(ctx, &blob, "state_getMetadata"); err != nil {
		return nil, err
	}
	return blob, nil
}

func (c *RPCClient) Storage(ctx context.Context, key []byte) ([]byte, error) {
	var value *hexutil.Bytes
	if err := c.call(ctx, &value, "state_getStorage", hexutil.Encode(key)); err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	return *value, nil
}

func (c *RPCClient) QueryCallInfo(ctx context.Context, call []byte, length uint32) (DispatchInfo, error) {
	arg := make([]byte, len(call), len(call)+4)
	copy(arg, call)
	arg = binary.LittleEndian.AppendUint32(arg, length)

	var raw hexutil.Bytes
	if err := c.call(ctx, &raw, "state_call", queryCallInfoMethod, hexutil.Encode(arg)); err != nil {
		return DispatchInfo{}, err
	}
	info, err := DecodeDispatchInfo(raw)
	if err != nil {
		return DispatchInfo{}, malformed(queryCallInfoMethod, err)
	}
	return info, nil
}

func (c *RPCClient) Close() {
	c.client.Close()
}
