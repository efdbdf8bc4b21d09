package store

import (
	"crypto/sha256"
	"encoding/hex"
)

// Namespace partitions the key space. Every physical key carries the global
// prefix plus one of these namespace prefixes.
type Namespace string

const (
	NamespaceUsers     Namespace = "users"
	NamespaceChannels  Namespace = "channels"
	NamespaceTasks     Namespace = "tasks"
	NamespaceSessions  Namespace = "sessions"
	NamespaceMessages  Namespace = "messages"
	NamespaceAnalytics Namespace = "analytics"
	NamespaceVoice     Namespace = "voice"
	NamespaceGeneral   Namespace = "general"
)

var namespaces = map[Namespace]bool{
	NamespaceUsers:     true,
	NamespaceChannels:  true,
	NamespaceTasks:     true,
	NamespaceSessions:  true,
	NamespaceMessages:  true,
	NamespaceAnalytics: true,
	NamespaceVoice:     true,
	NamespaceGeneral:   true,
}

// ParseNamespace returns the namespace for s, or false if s is not a known
// namespace.
func ParseNamespace(s string) (Namespace, bool) {
	ns := Namespace(s)
	return ns, namespaces[ns]
}

// BuildKey builds the physical store key for a raw key within a namespace.
// An unknown or empty namespace falls back to "general". Keys whose full form
// would exceed the configured length limit are replaced by a fixed-length
// hash surrogate under the same prefix, so no physical key ever exceeds the
// store's key-length limit.
func (s *Store) BuildKey(raw string, ns Namespace) string {
	if !namespaces[ns] {
		ns = NamespaceGeneral
	}
	prefix := s.profile.KeyPrefix + string(ns) + ":"
	full := prefix + raw
	if len(full) > s.profile.MaxKeyLength {
		return prefix + "hashed:" + keyHash(full)
	}
	return full
}

// namespacePattern returns the match pattern covering every key in ns,
// optionally narrowed by a caller pattern (defaults to "*").
func (s *Store) namespacePattern(ns Namespace, pattern string) string {
	if !namespaces[ns] {
		ns = NamespaceGeneral
	}
	if pattern == "" {
		pattern = "*"
	}
	return s.profile.KeyPrefix + string(ns) + ":" + pattern
}

// tagSetKey returns the physical key of the set holding members of a tag.
func (s *Store) tagSetKey(tag string) string {
	return s.profile.KeyPrefix + "tag:" + tag
}

// keyHash returns the first 16 hex chars of the SHA-256 of key.
func keyHash(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])[:16]
}
