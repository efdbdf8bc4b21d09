package store

import (
	"github.com/hrygo/cachewarden/internal/profile"
)

// Store provides namespaced cache access over the backing key-value store.
// All operations soft-fail when the store is unreachable: reads behave like
// misses and writes report false. The only error that ever reaches a caller
// is ErrNotSerializable from Set.
type Store struct {
	profile *profile.Profile
	driver  Driver
	metrics *Metrics
}

// New creates a Store with its own counter set.
func New(driver Driver, profile *profile.Profile) *Store {
	return NewWithMetrics(driver, profile, NewMetrics())
}

// NewWithMetrics creates a Store around an externally owned counter set.
func NewWithMetrics(driver Driver, profile *profile.Profile, metrics *Metrics) *Store {
	return &Store{
		profile: profile,
		driver:  driver,
		metrics: metrics,
	}
}

// GetDriver returns the underlying store client.
func (s *Store) GetDriver() Driver {
	return s.driver
}

// Metrics returns the operation counters.
func (s *Store) Metrics() *Metrics {
	return s.metrics
}

// Profile returns the configuration the store was built with.
func (s *Store) Profile() *profile.Profile {
	return s.profile
}

func (s *Store) Close() error {
	return s.driver.Close()
}
