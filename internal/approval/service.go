// Package approval runs a signing request from payload to decision: it
// checks the origin, connects to the chain, refreshes cached metadata,
// estimates the fee, decodes the call and asks the user.
package approval

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ggonzalez94/dotsign/internal/chain"
	"github.com/ggonzalez94/dotsign/internal/decode"
	"github.com/ggonzalez94/dotsign/internal/disclosure"
	clierr "github.com/ggonzalez94/dotsign/internal/errors"
	"github.com/ggonzalez94/dotsign/internal/metacache"
	"github.com/ggonzalez94/dotsign/internal/metadata"
	"github.com/ggonzalez94/dotsign/internal/metrics"
	"github.com/ggonzalez94/dotsign/internal/policy"
	"github.com/ggonzalez94/dotsign/internal/prompt"
)

// Connector opens a live connection to the chain named by a genesis hash.
type Connector interface {
	Connect(ctx context.Context, target string) (chain.Handle, error)
}

type ConnectorFunc func(ctx context.Context, target string) (chain.Handle, error)

func (f ConnectorFunc) Connect(ctx context.Context, target string) (chain.Handle, error) {
	return f(ctx, target)
}

// Cache is the part of the metadata cache confirmation needs.
type Cache interface {
	RefreshIfStale(ctx context.Context, h chain.Handle) metacache.RefreshResult
	Record(ctx context.Context, genesisHash string) (metadata.Record, bool, error)
}

// transferMethods name the calls whose first argument is a recipient worth
// resolving to an on-chain identity.
var transferMethods = map[string]bool{
	"transfer":             true,
	"transfer_keep_alive":  true,
	"transfer_all":         true,
	"transfer_allow_death": true,
}

type Service struct {
	connector Connector
	cache     Cache
	decoder   *decode.Decoder
	prompter  prompt.Host
	denylist  []string
	log       *zap.Logger
	metrics   metrics.Recorder
}

type Option func(*Service)

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithMetrics(rec metrics.Recorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithDenylist blocks requests from the listed origins.
func WithDenylist(origins []string) Option {
	return func(s *Service) {
		s.denylist = append([]string(nil), origins...)
	}
}

func NewService(connector Connector, cache Cache, prompter prompt.Host, opts ...Option) *Service {
	s := &Service{
		connector: connector,
		cache:     cache,
		prompter:  prompter,
		log:       zap.NewNop(),
		metrics:   metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.decoder = decode.New(cache, decode.WithLogger(s.log))
	return s
}

// ConfirmTransaction builds the disclosure for payload and returns the
// user's decision verbatim. Any failure before the prompt aborts the flow
// without showing anything.
func (s *Service) ConfirmTransaction(ctx context.Context, origin string, payload Payload) (prompt.Decision, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveLatency(metrics.OpConfirm, time.Since(start), nil)
	}()

	doc, err := s.Preview(ctx, origin, payload)
	if err != nil {
		s.metrics.IncCounter(metrics.EventConfirmation, map[string]string{"outcome": "error"})
		return "", err
	}
	if s.prompter == nil {
		s.metrics.IncCounter(metrics.EventConfirmation, map[string]string{"outcome": string(prompt.Dismissed)})
		return prompt.Dismissed, nil
	}
	decision, err := s.prompter.Prompt(ctx, doc)
	if err != nil {
		s.log.Warn("confirmation prompt failed", zap.String("origin", origin), zap.Error(err))
		decision = prompt.Dismissed
	}
	s.metrics.IncCounter(metrics.EventConfirmation, map[string]string{"outcome": string(decision)})
	s.log.Info("transaction confirmation",
		zap.String("origin", origin),
		zap.String("genesis_hash", payload.Genesis()),
		zap.String("decision", string(decision)),
	)
	return decision, nil
}

// Preview assembles the disclosure ConfirmTransaction would show.
func (s *Service) Preview(ctx context.Context, origin string, payload Payload) (disclosure.Document, error) {
	if err := policy.CheckOrigin(s.denylist, origin); err != nil {
		return disclosure.Document{}, err
	}
	if err := payload.Validate(); err != nil {
		return disclosure.Document{}, err
	}
	call, _ := payload.Call()
	sender, _ := payload.Sender()
	genesis := payload.Genesis()

	h, err := s.connector.Connect(ctx, genesis)
	if err != nil {
		return disclosure.Document{}, err
	}
	defer h.Close()

	if res := s.cache.RefreshIfStale(ctx, h); res.Err != nil {
		s.log.Warn("continuing with stale metadata",
			zap.String("origin", origin),
			zap.String("genesis_hash", genesis),
			zap.Error(res.Err),
		)
	}

	fee, err := chain.EstimateFee(ctx, h, call, sender)
	if err != nil {
		if _, ok := clierr.As(err); ok {
			return disclosure.Document{}, err
		}
		return disclosure.Document{}, clierr.Wrap(clierr.CodeUnavailable, "estimate fee", err)
	}

	decoded := s.decoder.Decode(ctx, genesis, call, uint32(payload.SpecVersion))

	req := disclosure.Request{
		Origin:     origin,
		Call:       decoded,
		PartialFee: fee.PartialFee,
	}
	if err := s.describeChain(ctx, h, genesis, &req); err != nil {
		return disclosure.Document{}, err
	}

	if transferMethods[decoded.Method] && len(decoded.Args) > 0 {
		if dest, ok := decoded.Args[0].Value.AccountID(); ok {
			if name, ok := chain.LookupIdentity(ctx, h, dest, s.log); ok {
				req.RecipientIdentity = name
			}
		}
	}
	return disclosure.Assemble(req), nil
}

// describeChain fills chain name and token details, preferring the cached
// record and falling back to the live node.
func (s *Service) describeChain(ctx context.Context, h chain.Handle, genesis string, req *disclosure.Request) error {
	rec, ok, err := s.cache.Record(ctx, genesis)
	if err != nil {
		s.log.Warn("read cached record", zap.String("genesis_hash", genesis), zap.Error(err))
	}
	if ok {
		req.ChainName = rec.Chain
		req.SS58Format = rec.SS58Format
		req.Token = disclosure.Token{Symbol: rec.TokenSymbol, Decimals: rec.TokenDecimals}
		return nil
	}

	name, err := h.ChainName(ctx)
	if err != nil {
		return err
	}
	req.ChainName = name
	props, err := h.Properties(ctx)
	if err != nil {
		return err
	}
	req.Token.Symbol = props.TokenSymbol
	if props.TokenDecimals != nil {
		req.Token.Decimals = *props.TokenDecimals
	}
	if props.SS58Format != nil {
		req.SS58Format = *props.SS58Format
	}
	return nil
}
