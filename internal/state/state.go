// Package state adapts whole-document persistence hosts into keyed subtree
// reads and writes. Consumers only ever touch their own top-level key; every
// sibling key in the stored document is carried over unchanged.
package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Document is the whole persisted state. Values are kept as raw JSON so keys
// owned by other consumers round-trip byte-for-byte.
type Document map[string]json.RawMessage

// Host is a persistence primitive that can only load and store the whole
// document. Get returns a nil Document when nothing has been stored yet.
type Host interface {
	Get(ctx context.Context) (Document, error)
	Set(ctx context.Context, doc Document) error
}

// Updater is implemented by hosts that can run a read-modify-write
// atomically with respect to other processes sharing the same backing store.
type Updater interface {
	Update(ctx context.Context, fn func(Document) (Document, error)) error
}

// Store exposes typed subtree access over a Host.
type Store struct {
	host Host
	mu   sync.Mutex
}

func NewStore(host Host) *Store {
	return &Store{host: host}
}

// GetSubtree decodes the value stored under key into out. It reports false
// when the key is absent.
func (s *Store) GetSubtree(ctx context.Context, key string, out any) (bool, error) {
	doc, err := s.host.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("read state: %w", err)
	}
	raw, ok := doc[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode state key %q: %w", key, err)
	}
	return true, nil
}

// PutSubtree replaces the value stored under key.
func (s *Store) PutSubtree(ctx context.Context, key string, value any) error {
	return s.UpdateSubtree(ctx, key, func(json.RawMessage) (any, error) {
		return value, nil
	})
}

// UpdateSubtree hands the current raw value under key (nil when absent) to fn
// and stores whatever fn returns. If fn fails nothing is written.
func (s *Store) UpdateSubtree(ctx context.Context, key string, fn func(current json.RawMessage) (any, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mutate := func(doc Document) (Document, error) {
		next := make(Document, len(doc)+1)
		for k, v := range doc {
			next[k] = v
		}
		value, err := fn(doc[key])
		if err != nil {
			return nil, err
		}
		buf, err := encodeJSON(value)
		if err != nil {
			return nil, fmt.Errorf("encode state key %q: %w", key, err)
		}
		next[key] = buf
		return next, nil
	}

	if u, ok := s.host.(Updater); ok {
		return u.Update(ctx, mutate)
	}
	doc, err := s.host.Get(ctx)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	next, err := mutate(doc)
	if err != nil {
		return err
	}
	if err := s.host.Set(ctx, next); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// encodeJSON marshals without HTML escaping so raw values written by other
// consumers keep their bytes.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func decodeDocument(raw []byte) (Document, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode state document: %w", err)
	}
	return doc, nil
}
