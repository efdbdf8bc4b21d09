package store

import (
	"context"
	"time"
)

// NamespaceStore is a handle with the namespace parameter pre-bound, for call
// sites that always work in one partition (e.g. the users repository).
type NamespaceStore struct {
	store *Store
	ns    Namespace
}

// Namespace returns a handle bound to ns. Unknown namespaces bind to
// "general".
func (s *Store) Namespace(ns Namespace) *NamespaceStore {
	if !namespaces[ns] {
		ns = NamespaceGeneral
	}
	return &NamespaceStore{store: s, ns: ns}
}

func (n *NamespaceStore) bind(opts []Option) []Option {
	return append([]Option{WithNamespace(n.ns)}, opts...)
}

func (n *NamespaceStore) Get(ctx context.Context, key string, opts ...Option) any {
	return n.store.Get(ctx, key, n.bind(opts)...)
}

func (n *NamespaceStore) Set(ctx context.Context, key string, value any, opts ...Option) (bool, error) {
	return n.store.Set(ctx, key, value, n.bind(opts)...)
}

func (n *NamespaceStore) Delete(ctx context.Context, key string, opts ...Option) bool {
	return n.store.Delete(ctx, key, n.bind(opts)...)
}

func (n *NamespaceStore) Exists(ctx context.Context, key string, opts ...Option) bool {
	return n.store.Exists(ctx, key, n.bind(opts)...)
}

func (n *NamespaceStore) Expire(ctx context.Context, key string, ttl time.Duration, opts ...Option) bool {
	return n.store.Expire(ctx, key, ttl, n.bind(opts)...)
}

func (n *NamespaceStore) TTL(ctx context.Context, key string, opts ...Option) time.Duration {
	return n.store.TTL(ctx, key, n.bind(opts)...)
}

func (n *NamespaceStore) Clear(ctx context.Context, pattern string, opts ...Option) int {
	return n.store.Clear(ctx, pattern, n.bind(opts)...)
}

func (n *NamespaceStore) Wrap(ctx context.Context, key string, fn func(context.Context) (any, error), opts ...Option) (any, error) {
	return n.store.Wrap(ctx, key, fn, n.bind(opts)...)
}
