package store

import (
	"context"
	"log/slog"
)

// tagKey registers a physical key under each tag's set. The tag sets get
// twice the default data TTL so they usually outlive the data they index;
// this is a loose bound, not a consistency guarantee. Failures are logged
// and swallowed since tag registration rides along a successful write.
func (s *Store) tagKey(ctx context.Context, physicalKey string, tags []string) {
	ttl := 2 * s.profile.DefaultTTL
	for _, tag := range tags {
		setKey := s.tagSetKey(tag)
		if err := s.driver.SAdd(ctx, setKey, physicalKey); err != nil {
			slog.Warn("tag registration failed", "component", "cache", "tag", tag, "key", physicalKey, "error", err)
			continue
		}
		if _, err := s.driver.Expire(ctx, setKey, ttl); err != nil {
			slog.Warn("tag set expire failed", "component", "cache", "tag", tag, "error", err)
		}
	}
}

// InvalidateByTags deletes every key registered under the given tags, then
// the tag sets themselves, and returns the total number of data keys removed.
// Processing is best-effort: a failure on one tag does not block the others,
// and deletes against already-expired members are harmless no-ops.
func (s *Store) InvalidateByTags(ctx context.Context, tags ...string) int {
	total := 0
	for _, tag := range tags {
		setKey := s.tagSetKey(tag)
		members, err := s.driver.SMembers(ctx, setKey)
		if err != nil {
			slog.Warn("tag member lookup failed", "component", "cache", "tag", tag, "error", err)
			continue
		}
		if len(members) > 0 {
			n, err := s.driver.Del(ctx, members...)
			if err != nil {
				slog.Warn("tag member delete failed", "component", "cache", "tag", tag, "error", err)
				continue
			}
			for i := int64(0); i < n; i++ {
				s.metrics.delete()
			}
			total += int(n)
		}
		if _, err := s.driver.Del(ctx, setKey); err != nil {
			slog.Warn("tag set delete failed", "component", "cache", "tag", tag, "error", err)
		}
	}
	return total
}
