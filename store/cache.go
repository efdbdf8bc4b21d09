package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// lookup fetches and decodes a physical key, reporting whether it was found.
// Store errors behave like misses.
func (s *Store) lookup(ctx context.Context, physical string, o callOptions) (any, bool) {
	raw, found, err := s.driver.Get(ctx, physical)
	if err != nil {
		slog.Warn("cache get failed", "component", "cache", "key", physical, "error", err)
		s.metrics.miss()
		return nil, false
	}
	if !found {
		s.metrics.miss()
		return nil, false
	}
	s.metrics.hit()
	return s.decode(maybeDecompress(raw), o), true
}

// Get returns the cached value for key, or nil on a miss. Store failures are
// indistinguishable from misses by design.
func (s *Store) Get(ctx context.Context, key string, opts ...Option) any {
	o := s.buildOptions(opts)
	value, _ := s.lookup(ctx, s.BuildKey(key, o.namespace), o)
	return value
}

// GetTyped returns the cached value decoded into T. Values that were stored
// by another writer with an incompatible shape count as misses.
func GetTyped[T any](ctx context.Context, s *Store, key string, opts ...Option) (T, bool) {
	var zero T
	o := s.buildOptions(opts)
	physical := s.BuildKey(key, o.namespace)
	raw, found, err := s.driver.Get(ctx, physical)
	if err != nil {
		slog.Warn("cache get failed", "component", "cache", "key", physical, "error", err)
		s.metrics.miss()
		return zero, false
	}
	if !found {
		s.metrics.miss()
		return zero, false
	}
	payload := maybeDecompress(raw)
	if o.raw {
		if v, ok := any(payload).(T); ok {
			s.metrics.hit()
			return v, true
		}
		s.metrics.miss()
		return zero, false
	}
	var value T
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		slog.Warn("cache value does not decode into requested type", "component", "cache", "key", physical, "error", err)
		s.metrics.miss()
		return zero, false
	}
	s.metrics.hit()
	return value, true
}

// Set stores value under key. It returns false when the store rejected or
// could not take the write; the only returned error is ErrNotSerializable.
func (s *Store) Set(ctx context.Context, key string, value any, opts ...Option) (bool, error) {
	o := s.buildOptions(opts)
	payload, err := s.encode(value, o)
	if err != nil {
		return false, err
	}
	payload = s.maybeCompress(payload, o)

	physical := s.BuildKey(key, o.namespace)
	written := true
	if o.nx {
		written, err = s.driver.SetNX(ctx, physical, payload, o.ttl)
	} else {
		err = s.driver.Set(ctx, physical, payload, o.ttl)
	}
	if err != nil {
		slog.Warn("cache set failed", "component", "cache", "key", physical, "error", err)
		return false, nil
	}
	if !written {
		return false, nil
	}
	s.metrics.set()
	if len(o.tags) > 0 {
		s.tagKey(ctx, physical, o.tags)
	}
	return true, nil
}

// Delete removes key. It returns true when the key existed.
func (s *Store) Delete(ctx context.Context, key string, opts ...Option) bool {
	o := s.buildOptions(opts)
	physical := s.BuildKey(key, o.namespace)
	n, err := s.driver.Del(ctx, physical)
	if err != nil {
		slog.Warn("cache delete failed", "component", "cache", "key", physical, "error", err)
		return false
	}
	s.metrics.delete()
	return n > 0
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string, opts ...Option) bool {
	o := s.buildOptions(opts)
	physical := s.BuildKey(key, o.namespace)
	found, err := s.driver.Exists(ctx, physical)
	if err != nil {
		slog.Warn("cache exists failed", "component", "cache", "key", physical, "error", err)
		return false
	}
	return found
}

// Expire refreshes the TTL of key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration, opts ...Option) bool {
	o := s.buildOptions(opts)
	physical := s.BuildKey(key, o.namespace)
	ok, err := s.driver.Expire(ctx, physical, ttl)
	if err != nil {
		slog.Warn("cache expire failed", "component", "cache", "key", physical, "error", err)
		return false
	}
	return ok
}

// TTL returns the remaining TTL of key. The result is negative when the key
// is missing, has no expiry, or the store is unreachable.
func (s *Store) TTL(ctx context.Context, key string, opts ...Option) time.Duration {
	o := s.buildOptions(opts)
	physical := s.BuildKey(key, o.namespace)
	ttl, err := s.driver.TTL(ctx, physical)
	if err != nil {
		slog.Warn("cache ttl failed", "component", "cache", "key", physical, "error", err)
		return -1
	}
	return ttl
}

// MGet returns the values for keys in order; missing entries are nil.
func (s *Store) MGet(ctx context.Context, keys []string, opts ...Option) []any {
	o := s.buildOptions(opts)
	values := make([]any, len(keys))
	if len(keys) == 0 {
		return values
	}
	physical := make([]string, len(keys))
	for i, key := range keys {
		physical[i] = s.BuildKey(key, o.namespace)
	}
	raws, err := s.driver.MGet(ctx, physical...)
	if err != nil {
		slog.Warn("cache mget failed", "component", "cache", "keys", len(keys), "error", err)
		for range keys {
			s.metrics.miss()
		}
		return values
	}
	for i, raw := range raws {
		if raw == nil {
			s.metrics.miss()
			continue
		}
		s.metrics.hit()
		values[i] = s.decode(maybeDecompress(*raw), o)
	}
	return values
}

// MSet stores all entries in one pipelined write sharing a single TTL.
func (s *Store) MSet(ctx context.Context, values map[string]any, opts ...Option) (bool, error) {
	o := s.buildOptions(opts)
	if len(values) == 0 {
		return true, nil
	}
	entries := make(map[string]string, len(values))
	for key, value := range values {
		payload, err := s.encode(value, o)
		if err != nil {
			return false, err
		}
		entries[s.BuildKey(key, o.namespace)] = s.maybeCompress(payload, o)
	}
	if err := s.driver.MSet(ctx, entries, o.ttl); err != nil {
		slog.Warn("cache mset failed", "component", "cache", "keys", len(values), "error", err)
		return false, nil
	}
	for range values {
		s.metrics.set()
	}
	return true, nil
}

// MDel removes keys and returns how many existed.
func (s *Store) MDel(ctx context.Context, keys []string, opts ...Option) int {
	o := s.buildOptions(opts)
	if len(keys) == 0 {
		return 0
	}
	physical := make([]string, len(keys))
	for i, key := range keys {
		physical[i] = s.BuildKey(key, o.namespace)
	}
	n, err := s.driver.Del(ctx, physical...)
	if err != nil {
		slog.Warn("cache mdel failed", "component", "cache", "keys", len(keys), "error", err)
		return 0
	}
	for range keys {
		s.metrics.delete()
	}
	return int(n)
}

// Clear removes every key in the operation's namespace matching pattern
// ("*" when empty) and returns the number removed. This scans the namespace
// and is meant for bulk invalidation, not hot-path single-key use.
func (s *Store) Clear(ctx context.Context, pattern string, opts ...Option) int {
	o := s.buildOptions(opts)
	match := s.namespacePattern(o.namespace, pattern)
	keys, err := s.driver.Keys(ctx, match)
	if err != nil {
		slog.Warn("cache clear scan failed", "component", "cache", "pattern", match, "error", err)
		return 0
	}
	if len(keys) == 0 {
		return 0
	}
	n, err := s.driver.Del(ctx, keys...)
	if err != nil {
		slog.Warn("cache clear delete failed", "component", "cache", "pattern", match, "error", err)
		return 0
	}
	for i := int64(0); i < n; i++ {
		s.metrics.delete()
	}
	return int(n)
}

// Wrap implements cache-aside: return the cached value for key, or invoke fn,
// store its result, and return it. Concurrent calls racing on a cold key may
// both invoke fn; fn must be idempotent. An fn error propagates uncached.
func (s *Store) Wrap(ctx context.Context, key string, fn func(context.Context) (any, error), opts ...Option) (any, error) {
	o := s.buildOptions(opts)
	if value, found := s.lookup(ctx, s.BuildKey(key, o.namespace), o); found {
		return value, nil
	}
	value, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.Set(ctx, key, value, opts...); err != nil {
		slog.Warn("cache backfill skipped for non-serializable value", "component", "cache", "key", key, "error", err)
	}
	return value, nil
}

// WrapTyped is the typed variant of Wrap.
func WrapTyped[T any](ctx context.Context, s *Store, key string, fn func(context.Context) (T, error), opts ...Option) (T, error) {
	if value, found := GetTyped[T](ctx, s, key, opts...); found {
		return value, nil
	}
	var zero T
	value, err := fn(ctx)
	if err != nil {
		return zero, err
	}
	if _, err := s.Set(ctx, key, value, opts...); err != nil {
		slog.Warn("cache backfill skipped for non-serializable value", "component", "cache", "key", key, "error", err)
	}
	return value, nil
}
