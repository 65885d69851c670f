package state

import (
	"context"
	"sync"
)

// MemoryHost keeps the document serialized in memory so callers never share
// maps with the host.
type MemoryHost struct {
	mu  sync.Mutex
	raw []byte
}

func NewMemoryHost() *MemoryHost {
	return &MemoryHost{}
}

func (m *MemoryHost) Get(_ context.Context) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decodeDocument(m.raw)
}

func (m *MemoryHost) Set(_ context.Context, doc Document) error {
	buf, err := encodeJSON(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.raw = buf
	m.mu.Unlock()
	return nil
}

func (m *MemoryHost) Update(_ context.Context, fn func(Document) (Document, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, err := decodeDocument(m.raw)
	if err != nil {
		return err
	}
	next, err := fn(doc)
	if err != nil {
		return err
	}
	buf, err := encodeJSON(next)
	if err != nil {
		return err
	}
	m.raw = buf
	return nil
}

// Raw returns a copy of the serialized document.
func (m *MemoryHost) Raw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.raw...)
}
