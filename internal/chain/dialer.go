package chain

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	clierr "github.com/ggonzalez94/dotsign/internal/errors"
	"github.com/ggonzalez94/dotsign/internal/httpx"
	"github.com/ggonzalez94/dotsign/internal/metadata"
)

// DialFunc opens a Handle to a single endpoint.
type DialFunc func(ctx context.Context, endpoint string) (Handle, error)

// Dialer turns a chain name or genesis hash into a verified Handle.
type Dialer struct {
	registry *Registry
	override string
	retries  int
	dial     DialFunc
	log      *zap.Logger
}

type DialerOption func(*Dialer)

// WithRPCOverride pins every connection to a single endpoint.
func WithRPCOverride(endpoint string) DialerOption {
	return func(d *Dialer) { d.override = strings.TrimSpace(endpoint) }
}

func WithRetries(n int) DialerOption {
	return func(d *Dialer) {
		if n >= 0 {
			d.retries = n
		}
	}
}

func WithDialFunc(fn DialFunc) DialerOption {
	return func(d *Dialer) { d.dial = fn }
}

func WithLogger(log *zap.Logger) DialerOption {
	return func(d *Dialer) {
		if log != nil {
			d.log = log
		}
	}
}

func NewDialer(registry *Registry, httpClient *http.Client, opts ...DialerOption) *Dialer {
	d := &Dialer{
		registry: registry,
		retries:  2,
		log:      zap.NewNop(),
		dial: func(ctx context.Context, endpoint string) (Handle, error) {
			return DialRPC(ctx, endpoint, httpClient)
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Connect resolves target and tries its endpoints in order, retrying the
// list while failures are transport-level. The node must report the genesis
// hash the registry expects.
func (d *Dialer) Connect(ctx context.Context, target string) (Handle, error) {
	info, err := d.registry.Resolve(target)
	if err != nil {
		// An unknown chain is reachable only through an explicit endpoint.
		if d.override == "" || !strings.HasPrefix(strings.ToLower(strings.TrimSpace(target)), "0x") {
			return nil, err
		}
		info = Info{GenesisHash: metadata.NormalizeHash(target)}
	}
	endpoints := ResolveEndpoints(d.override, info)
	if len(endpoints) == 0 {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("no endpoint configured for %s; provide --rpc-url", target))
	}

	var handle Handle
	err = retry.Do(
		func() error {
			var lastErr error
			for _, endpoint := range endpoints {
				h, err := d.connectOne(ctx, endpoint, info.GenesisHash)
				if err != nil {
					d.log.Debug("endpoint failed", zap.String("endpoint", endpoint), zap.Error(err))
					lastErr = err
					if !clierr.HasCode(err, clierr.CodeUnavailable) {
						return err
					}
					continue
				}
				handle = h
				return nil
			}
			return lastErr
		},
		retry.Context(ctx),
		retry.Attempts(uint(d.retries)+1),
		retry.DelayType(httpx.RetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return clierr.HasCode(err, clierr.CodeUnavailable) }),
		retry.OnRetry(func(n uint, err error) {
			d.log.Info("retrying chain connection", zap.String("chain", target), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		if _, ok := clierr.As(err); ok {
			return nil, err
		}
		return nil, clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("connect %s", target), err)
	}
	return handle, nil
}

func (d *Dialer) connectOne(ctx context.Context, endpoint, wantGenesis string) (Handle, error) {
	h, err := d.dial(ctx, endpoint)
	if err != nil {
		return nil, mapRPCError("dial", err)
	}
	genesis, err := h.GenesisHash(ctx)
	if err != nil {
		h.Close()
		return nil, err
	}
	if metadata.NormalizeHash(genesis) != wantGenesis {
		h.Close()
		return nil, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("endpoint %s serves genesis %s, expected %s", endpoint, genesis, wantGenesis))
	}
	return h, nil
}
