package store

import "time"

// callOptions carries the per-call knobs shared by all cache operations.
type callOptions struct {
	namespace Namespace
	ttl       time.Duration
	nx        bool
	tags      []string
	compress  bool
	raw       bool
}

// Option customizes a single cache operation.
type Option func(*callOptions)

// WithNamespace scopes the operation to a namespace. Unknown namespaces fall
// back to "general".
func WithNamespace(ns Namespace) Option {
	return func(o *callOptions) { o.namespace = ns }
}

// WithTTL overrides the default TTL for a write.
func WithTTL(ttl time.Duration) Option {
	return func(o *callOptions) { o.ttl = ttl }
}

// WithNX makes Set write only if the key is absent. The check is atomic at
// the store level.
func WithNX() Option {
	return func(o *callOptions) { o.nx = true }
}

// WithTags registers the written key under the given tags for later bulk
// invalidation.
func WithTags(tags ...string) Option {
	return func(o *callOptions) { o.tags = tags }
}

// WithCompression gzips payloads at or above the configured threshold.
func WithCompression() Option {
	return func(o *callOptions) { o.compress = true }
}

// WithRawValue skips JSON serialization; the value must be a string and is
// stored and returned as-is.
func WithRawValue() Option {
	return func(o *callOptions) { o.raw = true }
}

func (s *Store) buildOptions(opts []Option) callOptions {
	o := callOptions{
		namespace: NamespaceGeneral,
		ttl:       s.profile.DefaultTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl <= 0 {
		o.ttl = s.profile.DefaultTTL
	}
	return o
}
