package store

import "sync/atomic"

// Metrics holds the shared operation counters consumed by GetStats. It is
// injected into the Store rather than kept as package state so callers and
// tests can own the counter lifecycle.
type Metrics struct {
	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
}

// NewMetrics creates a zeroed counter set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) hit()    { m.hits.Add(1) }
func (m *Metrics) miss()   { m.misses.Add(1) }
func (m *Metrics) set()    { m.sets.Add(1) }
func (m *Metrics) delete() { m.deletes.Add(1) }

// Operations is a point-in-time snapshot of the counters.
type Operations struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Deletes int64 `json:"deletes"`
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Operations {
	return Operations{
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Sets:    m.sets.Load(),
		Deletes: m.deletes.Load(),
	}
}

// HitRate returns hits / (hits + misses), or 0 before any read happened.
func (m *Metrics) HitRate() float64 {
	hits := m.hits.Load()
	total := hits + m.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
