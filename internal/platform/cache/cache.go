// Package cache provides the short-TTL listing cache backing the appointment
// list endpoints. Entries are keyed by scope (patient, doctor, or the
// admin-global listing) plus the serialized filter set, and every mutating
// scheduling operation invalidates the scopes it touched.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "listings:"

// ScopeAdmin is the unscoped listing shared by administrative views.
const ScopeAdmin = "admin"

// Key builds the cache key for a listing scope and filter set.
// scope is "patient", "doctor", or ScopeAdmin; id is empty for ScopeAdmin.
func Key(scope, id, filter string) string {
	if id == "" {
		return fmt.Sprintf("%s%s:%s", keyPrefix, scope, filter)
	}
	return fmt.Sprintf("%s%s:%s:%s", keyPrefix, scope, id, filter)
}

func scopePattern(scope, id string) string {
	if id == "" {
		return fmt.Sprintf("%s%s:*", keyPrefix, scope)
	}
	return fmt.Sprintf("%s%s:%s:*", keyPrefix, scope, id)
}

// Store is the listing cache the scheduling service talks to.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate drops the listings scoped to the given patient and doctor
	// ids (either may be empty) and always drops the admin-global listing.
	Invalidate(ctx context.Context, patientID, doctorID string) error
}

// Redis is the redis-backed Store.
type Redis struct {
	rdb    *redis.Client
	logger zerolog.Logger
}

// NewRedis connects to redis and verifies the connection with a ping.
func NewRedis(redisURL string, logger zerolog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Redis{rdb: rdb, logger: logger}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Invalidate(ctx context.Context, patientID, doctorID string) error {
	patterns := []string{scopePattern(ScopeAdmin, "")}
	if patientID != "" {
		patterns = append(patterns, scopePattern("patient", patientID))
	}
	if doctorID != "" {
		patterns = append(patterns, scopePattern("doctor", doctorID))
	}

	for _, pattern := range patterns {
		if err := r.deleteByPattern(ctx, pattern); err != nil {
			return fmt.Errorf("invalidate %s: %w", pattern, err)
		}
	}
	return nil
}

func (r *Redis) deleteByPattern(ctx context.Context, pattern string) error {
	iter := r.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(ctx, keys...).Err()
}

// Close closes the underlying redis connection.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Noop is a Store that caches nothing. It backs tests and redis-less
// deployments: every Get is a miss and Set/Invalidate succeed silently.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error)         { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte, time.Duration) error  { return nil }
func (Noop) Invalidate(ctx context.Context, _, _ string) error         { return nil }
