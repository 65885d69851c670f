// Package metacache keeps the per-chain metadata records the decoder trusts.
// Records written by the process's own refresh go straight to the store;
// records offered by any other origin need the user's consent first.
package metacache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ggonzalez94/dotsign/internal/chain"
	"github.com/ggonzalez94/dotsign/internal/disclosure"
	clierr "github.com/ggonzalez94/dotsign/internal/errors"
	"github.com/ggonzalez94/dotsign/internal/metadata"
	"github.com/ggonzalez94/dotsign/internal/metrics"
	"github.com/ggonzalez94/dotsign/internal/prompt"
	"github.com/ggonzalez94/dotsign/internal/state"
)

// StateKey is the only top-level key of the state document this package
// reads or writes.
const StateKey = "metadata"

const originPrefix = "dotsign-"

// ErrDeclined is returned when the user rejects or dismisses a consent
// prompt. Nothing is written in that case.
var ErrDeclined = clierr.New(clierr.CodeDeclined, "User declined the signing request.")

// EmptyVersion is what KnownVersions reports when nothing is cached.
var EmptyVersion = metadata.KnownVersion{GenesisHash: "0x", SpecVersion: 0}

// Fetcher snapshots a live chain into a record.
type Fetcher func(ctx context.Context, h chain.Handle) (metadata.Record, error)

type Cache struct {
	store    *state.Store
	prompter prompt.Host
	origin   string
	fetch    Fetcher
	log      *zap.Logger
	metrics  metrics.Recorder

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type Option func(*Cache)

func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

func WithMetrics(rec metrics.Recorder) Option {
	return func(c *Cache) {
		if rec != nil {
			c.metrics = rec
		}
	}
}

func WithFetcher(f Fetcher) Option {
	return func(c *Cache) {
		if f != nil {
			c.fetch = f
		}
	}
}

// NewSessionOrigin mints an unguessable origin token. It is never persisted.
func NewSessionOrigin() string {
	return originPrefix + uuid.NewString()
}

func New(store *state.Store, prompter prompt.Host, opts ...Option) *Cache {
	c := &Cache{
		store:    store,
		prompter: prompter,
		origin:   NewSessionOrigin(),
		fetch:    chain.FetchRecord,
		log:      zap.NewNop(),
		metrics:  metrics.NoopRecorder{},
		locks:    map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionOrigin is the trusted origin of this cache instance's own writes.
func (c *Cache) SessionOrigin() string {
	return c.origin
}

// KnownVersions lists every cached (genesis hash, spec version) pair sorted
// by genesis hash. It never fails: an empty or unreadable cache yields the
// single EmptyVersion entry.
func (c *Cache) KnownVersions(ctx context.Context) []metadata.KnownVersion {
	var entries map[string]metadata.KnownVersion
	if _, err := c.store.GetSubtree(ctx, StateKey, &entries); err != nil {
		c.log.Warn("read metadata cache", zap.Error(err))
		return []metadata.KnownVersion{EmptyVersion}
	}
	if len(entries) == 0 {
		return []metadata.KnownVersion{EmptyVersion}
	}
	out := make([]metadata.KnownVersion, 0, len(entries))
	for hash, v := range entries {
		if v.GenesisHash == "" {
			v.GenesisHash = hash
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GenesisHash < out[j].GenesisHash })
	return out
}

// Record returns the cached record for genesisHash.
func (c *Cache) Record(ctx context.Context, genesisHash string) (metadata.Record, bool, error) {
	var entries map[string]json.RawMessage
	if _, err := c.store.GetSubtree(ctx, StateKey, &entries); err != nil {
		return metadata.Record{}, false, err
	}
	raw, ok := entries[metadata.NormalizeHash(genesisHash)]
	if !ok {
		return metadata.Record{}, false, nil
	}
	var rec metadata.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return metadata.Record{}, false, fmt.Errorf("decode cached record %s: %w", genesisHash, err)
	}
	return rec, true, nil
}

type Outcome string

const (
	OutcomeFresh       Outcome = "fresh"
	OutcomeUpdated     Outcome = "updated"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeFailed      Outcome = "failed"
)

// RefreshResult describes what RefreshIfStale did. Err is informational.
type RefreshResult struct {
	GenesisHash   string  `json:"genesis_hash,omitempty"`
	CachedVersion uint32  `json:"cached_version"`
	LiveVersion   uint32  `json:"live_version"`
	Outcome       Outcome `json:"outcome"`
	Err           error   `json:"-"`
}

// RefreshIfStale re-fetches the chain's record when the cached spec version
// is missing or older than the live one. Failures are logged and reported in
// the result, never returned; the next call simply tries again.
func (c *Cache) RefreshIfStale(ctx context.Context, h chain.Handle) RefreshResult {
	start := time.Now()
	res := c.refresh(ctx, h)
	c.metrics.IncCounter(metrics.EventRefresh, map[string]string{"outcome": string(res.Outcome)})
	c.metrics.ObserveLatency(metrics.OpRefresh, time.Since(start), nil)
	if res.Err != nil {
		c.log.Warn("metadata refresh skipped",
			zap.String("genesis_hash", res.GenesisHash),
			zap.String("outcome", string(res.Outcome)),
			zap.Error(res.Err),
		)
	}
	return res
}

func (c *Cache) refresh(ctx context.Context, h chain.Handle) RefreshResult {
	var res RefreshResult
	genesis, err := h.GenesisHash(ctx)
	if err != nil {
		res.Outcome, res.Err = OutcomeUnavailable, err
		return res
	}
	res.GenesisHash = metadata.NormalizeHash(genesis)
	live, err := h.RuntimeVersion(ctx)
	if err != nil {
		res.Outcome, res.Err = OutcomeUnavailable, err
		return res
	}
	res.LiveVersion = live.SpecVersion

	cached, ok, err := c.Record(ctx, res.GenesisHash)
	if err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}
	if ok {
		res.CachedVersion = cached.SpecVersion
		if cached.SpecVersion >= live.SpecVersion {
			res.Outcome = OutcomeFresh
			return res
		}
	}

	rec, err := c.fetch(ctx, h)
	if err != nil {
		c.metrics.IncCounter(metrics.EventFetchFailure, map[string]string{"outcome": "error"})
		res.Outcome, res.Err = OutcomeUnavailable, err
		return res
	}
	if _, err := c.SetRecord(ctx, c.origin, rec); err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}
	res.Outcome = OutcomeUpdated
	return res
}

// SetRecord stores rec under its genesis hash. Any origin other than this
// instance's session origin is prompted for consent first, and the prompt
// always completes before anything is written. Other chains' records and
// other state keys are left untouched.
func (c *Cache) SetRecord(ctx context.Context, origin string, rec metadata.Record) (bool, error) {
	rec.GenesisHash = metadata.NormalizeHash(rec.GenesisHash)
	if err := rec.Validate(); err != nil {
		return false, clierr.Wrap(clierr.CodeUsage, "invalid metadata record", err)
	}
	if _, err := rec.Calls(); err != nil {
		return false, clierr.Wrap(clierr.CodeUsage, "invalid metadata record", err)
	}

	if origin != c.origin {
		if err := c.consent(ctx, origin, rec); err != nil {
			return false, err
		}
	}

	lock := c.lockFor(rec.GenesisHash)
	lock.Lock()
	defer lock.Unlock()

	err := c.store.UpdateSubtree(ctx, StateKey, func(current json.RawMessage) (any, error) {
		entries := map[string]json.RawMessage{}
		if len(current) > 0 {
			if err := json.Unmarshal(current, &entries); err != nil {
				return nil, fmt.Errorf("decode metadata cache: %w", err)
			}
		}
		buf, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		entries[rec.GenesisHash] = buf
		return entries, nil
	})
	if err != nil {
		return false, clierr.Wrap(clierr.CodeInternal, "write metadata cache", err)
	}
	return true, nil
}

func (c *Cache) consent(ctx context.Context, origin string, rec metadata.Record) error {
	if c.prompter == nil {
		c.recordConsent(origin, rec, prompt.Dismissed)
		return ErrDeclined
	}
	decision, err := c.prompter.Prompt(ctx, disclosure.MetadataUpdate(origin, rec))
	if err != nil {
		c.recordConsent(origin, rec, prompt.Dismissed)
		return clierr.Wrap(ErrDeclined.Code, ErrDeclined.Message, err)
	}
	c.recordConsent(origin, rec, decision)
	if decision != prompt.Accepted {
		return ErrDeclined
	}
	return nil
}

func (c *Cache) recordConsent(origin string, rec metadata.Record, decision prompt.Decision) {
	c.metrics.IncCounter(metrics.EventConsent, map[string]string{"outcome": string(decision)})
	c.log.Info("metadata update consent",
		zap.String("origin", origin),
		zap.String("genesis_hash", rec.GenesisHash),
		zap.Uint32("spec_version", rec.SpecVersion),
		zap.String("decision", string(decision)),
	)
}

func (c *Cache) lockFor(genesisHash string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[genesisHash]
	if !ok {
		l = &sync.Mutex{}
		c.locks[genesisHash] = l
	}
	return l
}
