package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisMaxRetries = 8

// RedisHost keeps the document under a single key so several signer
// processes can share one cache.
type RedisHost struct {
	client redis.UniversalClient
	key    string
}

func NewRedisHost(client redis.UniversalClient, key string) *RedisHost {
	if key == "" {
		key = "dotsign:state"
	}
	return &RedisHost{client: client, key: key}
}

func (h *RedisHost) Get(ctx context.Context) (Document, error) {
	raw, err := h.client.Get(ctx, h.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", h.key, err)
	}
	return decodeDocument(raw)
}

func (h *RedisHost) Set(ctx context.Context, doc Document) error {
	body, err := encodeJSON(doc)
	if err != nil {
		return fmt.Errorf("encode state document: %w", err)
	}
	if err := h.client.Set(ctx, h.key, body, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", h.key, err)
	}
	return nil
}

// Update runs fn under WATCH and retries when another writer commits first.
func (h *RedisHost) Update(ctx context.Context, fn func(Document) (Document, error)) error {
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, h.key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return err
		}
		next, err := fn(doc)
		if err != nil {
			return err
		}
		body, err := encodeJSON(next)
		if err != nil {
			return fmt.Errorf("encode state document: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, h.key, body, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisMaxRetries; attempt++ {
		err := h.client.Watch(ctx, txf, h.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis update %s: too many concurrent writers", h.key)
}

func (h *RedisHost) Close() error {
	return h.client.Close()
}
