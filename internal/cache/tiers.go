package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/devx/appads-extractor/internal/db"
)

// envelope wraps an L2 value with its absolute expiry so the file-backed
// tier (which has no native TTL) can expire entries the same way Redis does.
type envelope struct {
	Value     string    `json:"v"`
	ExpiresAt time.Time `json:"exp,omitempty"`
}

// redisTier backs L2 with the shared Redis store, using Redis's native key
// expiry for TTL enforcement.
type redisTier struct {
	store *db.RedisStore
}

func (r *redisTier) get(ctx context.Context, key string) (string, bool, error) {
	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if db.IsNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(raw), true, nil
}

func (r *redisTier) put(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.store.Set(ctx, key, []byte(value), ttl)
}

// fileTier backs L2 with a local atomic-write, optionally gzip-compressed
// file store keyed by md5(key), per spec.md §6's cache storage layout.
// Each entry carries its own expiry since the file store has no native TTL.
type fileTier struct {
	fs *fileStore
}

func (f *fileTier) get(ctx context.Context, key string) (string, bool, error) {
	data, ok, err := f.fs.get(key)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", false, err
	}
	if !env.ExpiresAt.IsZero() && time.Now().After(env.ExpiresAt) {
		return "", false, nil
	}
	return env.Value, true, nil
}

func (f *fileTier) put(ctx context.Context, key, value string, ttl time.Duration) error {
	env := envelope{Value: value}
	if ttl > 0 {
		env.ExpiresAt = time.Now().Add(ttl)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return f.fs.put(key, data)
}
