package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marcus/kb/internal/models"
)

// KeyState is what a Deduper knows about an Idempotency-Key.
type KeyState int

const (
	// KeyNew means the key was unknown and is now pending for the caller.
	KeyNew KeyState = iota
	// KeyPending means another request holding the key has not finished.
	KeyPending
	// KeyDone means a batch with the same body was applied under the key.
	KeyDone
	// KeyMismatch means the key was used with a different body.
	KeyMismatch
)

// Deduper remembers Idempotency-Key values for position batches. A key
// moves from pending to done once its batch is stored, and is forgotten
// when the batch fails.
type Deduper interface {
	Begin(ctx context.Context, scope, key, hash string) (KeyState, error)
	Complete(ctx context.Context, scope, key, hash string) error
	Forget(ctx context.Context, scope, key string) error
}

const (
	keyPending = "pending"
	keyDone    = "done"
)

// RedisDeduper keeps keys in Redis so every server instance sees them.
// Values are "<state>:<body hash>".
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) key(scope, key string) string {
	return fmt.Sprintf("kb:idem:%s:%s", scope, key)
}

func (d *RedisDeduper) Begin(ctx context.Context, scope, key, hash string) (KeyState, error) {
	k := d.key(scope, key)
	// a key can expire between SetNX and Get, so try twice
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := d.client.SetNX(ctx, k, keyPending+":"+hash, d.ttl).Result()
		if err != nil {
			return KeyNew, err
		}
		if ok {
			return KeyNew, nil
		}
		val, err := d.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return KeyNew, err
		}
		state, stored, _ := strings.Cut(val, ":")
		switch {
		case stored != hash:
			return KeyMismatch, nil
		case state == keyDone:
			return KeyDone, nil
		default:
			return KeyPending, nil
		}
	}
	return KeyNew, fmt.Errorf("idempotency key %q kept expiring", key)
}

func (d *RedisDeduper) Complete(ctx context.Context, scope, key, hash string) error {
	return d.client.Set(ctx, d.key(scope, key), keyDone+":"+hash, d.ttl).Err()
}

func (d *RedisDeduper) Forget(ctx context.Context, scope, key string) error {
	return d.client.Del(ctx, d.key(scope, key)).Err()
}

// Ping checks the Redis connection.
func (d *RedisDeduper) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (d *RedisDeduper) Close() error {
	return d.client.Close()
}

// idempotencyScope keeps keys from different projects and callers apart.
func idempotencyScope(projectID, userID string) string {
	return projectID + ":" + userID
}

// batchHash fingerprints a decoded batch so formatting differences in the
// request body do not count as a different batch.
func batchHash(batch []models.ChangedItem) string {
	b, _ := json.Marshal(batch)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
