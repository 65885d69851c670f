package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestStorePreservesSiblingKeys(t *testing.T) {
	ctx := context.Background()
	host := NewMemoryHost()
	if err := host.Set(ctx, Document{
		"accounts": json.RawMessage(`{"hidden":["5Grw"],"order":[3,1,2]}`),
		"settings": json.RawMessage(`"dark"`),
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	store := NewStore(host)

	if err := store.PutSubtree(ctx, "metadata", map[string]int{"a": 1}); err != nil {
		t.Fatalf("PutSubtree failed: %v", err)
	}

	doc, err := host.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got := string(doc["accounts"]); got != `{"hidden":["5Grw"],"order":[3,1,2]}` {
		t.Fatalf("sibling rewritten: %s", got)
	}
	if got := string(doc["settings"]); got != `"dark"` {
		t.Fatalf("sibling rewritten: %s", got)
	}

	var out map[string]int
	found, err := store.GetSubtree(ctx, "metadata", &out)
	if err != nil || !found {
		t.Fatalf("GetSubtree found=%v err=%v", found, err)
	}
	if out["a"] != 1 {
		t.Fatalf("unexpected subtree %+v", out)
	}
}

func TestStoreKeepsHTMLCharactersInSiblings(t *testing.T) {
	ctx := context.Background()
	const sibling = `{"label":"<a&b>","url":"https://x.example/?a=1&b=2"}`
	hosts := map[string]Host{
		"memory": NewMemoryHost(),
		"sqlite": openTestSQLite(t, t.TempDir()),
	}
	for name, host := range hosts {
		if err := host.Set(ctx, Document{"accounts": json.RawMessage(sibling)}); err != nil {
			t.Fatalf("%s: seed failed: %v", name, err)
		}
		store := NewStore(host)
		if err := store.PutSubtree(ctx, "metadata", map[string]string{"chain": "A&B <test>"}); err != nil {
			t.Fatalf("%s: PutSubtree failed: %v", name, err)
		}
		doc, err := host.Get(ctx)
		if err != nil {
			t.Fatalf("%s: Get failed: %v", name, err)
		}
		if got := string(doc["accounts"]); got != sibling {
			t.Fatalf("%s: sibling rewritten: %s", name, got)
		}
		if got := string(doc["metadata"]); got != `{"chain":"A&B <test>"}` {
			t.Fatalf("%s: subtree escaped: %s", name, got)
		}
	}
}

func TestStoreGetSubtreeMissing(t *testing.T) {
	store := NewStore(NewMemoryHost())
	var out map[string]any
	found, err := store.GetSubtree(context.Background(), "metadata", &out)
	if err != nil {
		t.Fatalf("GetSubtree failed: %v", err)
	}
	if found {
		t.Fatal("expected missing key on empty host")
	}
}

func TestStoreUpdateFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	host := NewMemoryHost()
	store := NewStore(host)
	if err := store.PutSubtree(ctx, "metadata", []string{"x"}); err != nil {
		t.Fatalf("PutSubtree failed: %v", err)
	}
	before := host.Raw()

	boom := errors.New("boom")
	err := store.UpdateSubtree(ctx, "metadata", func(json.RawMessage) (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if !bytes.Equal(before, host.Raw()) {
		t.Fatalf("document changed after failed update:\n%s\n%s", before, host.Raw())
	}
}

// setOnlyHost hides the Updater implementation so the Store falls back to
// its own read-merge-write.
type setOnlyHost struct{ inner *MemoryHost }

func (h setOnlyHost) Get(ctx context.Context) (Document, error) { return h.inner.Get(ctx) }
func (h setOnlyHost) Set(ctx context.Context, d Document) error { return h.inner.Set(ctx, d) }

func TestStoreFallbackReadMergeWrite(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryHost()
	if err := mem.Set(ctx, Document{"other": json.RawMessage(`1`)}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	store := NewStore(setOnlyHost{inner: mem})

	err := store.UpdateSubtree(ctx, "counter", func(cur json.RawMessage) (any, error) {
		if cur != nil {
			t.Fatalf("expected absent key, got %s", cur)
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("UpdateSubtree failed: %v", err)
	}
	doc, _ := mem.Get(ctx)
	if string(doc["other"]) != "1" || string(doc["counter"]) != "7" {
		t.Fatalf("unexpected document %v", doc)
	}
}
