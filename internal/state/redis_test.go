package state

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestRedisHost(t *testing.T) *RedisHost {
	t.Helper()
	addr := os.Getenv("DOTSIGN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DOTSIGN_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	key := "dotsign:test:" + uuid.NewString()
	t.Cleanup(func() {
		_ = client.Del(context.Background(), key).Err()
		_ = client.Close()
	})
	return NewRedisHost(client, key)
}

func TestRedisHostSubtreeUpdates(t *testing.T) {
	host := newTestRedisHost(t)
	ctx := context.Background()
	if err := host.Set(ctx, Document{"sibling": json.RawMessage(`{"keep":true}`)}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	store := NewStore(host)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.UpdateSubtree(ctx, "counter", func(cur json.RawMessage) (any, error) {
				var n int
				if cur != nil {
					_ = json.Unmarshal(cur, &n)
				}
				return n + 1, nil
			})
			if err != nil {
				t.Errorf("UpdateSubtree failed: %v", err)
			}
		}()
	}
	wg.Wait()

	doc, err := host.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(doc["sibling"]) != `{"keep":true}` {
		t.Fatalf("sibling rewritten: %s", doc["sibling"])
	}
	if string(doc["counter"]) != "5" {
		t.Fatalf("unexpected counter %s", doc["counter"])
	}
}
