// Package teststore provides an in-memory store.Driver implementation with a
// controllable clock, simulated memory readings, and per-operation fault
// injection for tests.
package teststore

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/hrygo/cachewarden/internal/profile"
)

var errClosed = errors.New("teststore: driver closed")

type entry struct {
	value      string
	members    map[string]bool // non-nil for set collections
	expiresAt  time.Time       // zero means no expiry
	lastAccess time.Time
}

type call struct {
	op  string
	arg string
}

// Driver is an in-memory fake of the backing store.
type Driver struct {
	mu         sync.Mutex
	data       map[string]*entry
	now        time.Time
	memoryUsed int64 // 0 means derive from content
	fail       map[string]error
	calls      []call
	closed     bool
}

// New creates an empty fake driver with the clock set to a fixed instant.
func New() *Driver {
	return &Driver{
		data: make(map[string]*entry),
		now:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		fail: make(map[string]error),
	}
}

// Profile returns a fixed configuration for driving the fake in tests. It is
// built from literals so ambient CACHEWARDEN_* variables cannot change what
// the tests assert against.
func Profile() *profile.Profile {
	return &profile.Profile{
		Mode:                  "dev",
		RedisAddr:             "localhost:6379",
		KeyPrefix:             "cw:",
		DefaultTTL:            time.Hour,
		CompressionThreshold:  1024,
		MaxKeyLength:          250,
		MemoryLimitBytes:      23 * 1024 * 1024,
		WarningRatio:          0.87,
		EmergencyRatio:        0.96,
		MonitorInterval:       30 * time.Second,
		VoiceTranscriptPrefix: "voice_transcription",
		AIContextPrefix:       "ai_context",
	}
}

// Advance moves the fake clock forward, expiring entries whose TTL elapses.
func (d *Driver) Advance(delta time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = d.now.Add(delta)
}

// Now returns the fake clock reading.
func (d *Driver) Now() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now
}

// FailWith makes the named operation (e.g. "Get", "MemoryUsed") return err.
// A nil err clears the fault.
func (d *Driver) FailWith(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.fail, op)
		return
	}
	d.fail[op] = err
}

// SetMemoryUsed pins the value MemoryUsed reports.
func (d *Driver) SetMemoryUsed(n int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.memoryUsed = n
}

// SetIdle backdates a key's last access so IdleTime reports idle.
func (d *Driver) SetIdle(key string, idle time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.data[key]; ok {
		e.lastAccess = d.now.Add(-idle)
	}
}

// Len returns the number of live keys.
func (d *Driver) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for key := range d.data {
		if d.live(key) {
			n++
		}
	}
	return n
}

// live reports whether key exists and has not expired, purging it otherwise.
// Callers must hold the lock.
func (d *Driver) live(key string) bool {
	e, ok := d.data[key]
	if !ok {
		return false
	}
	if !e.expiresAt.IsZero() && !e.expiresAt.After(d.now) {
		delete(d.data, key)
		return false
	}
	return true
}

func (d *Driver) errFor(op string) error {
	return d.fail[op]
}

// record logs an invocation for tests that assert call sequencing. Callers
// must hold the lock.
func (d *Driver) record(op, arg string) {
	d.calls = append(d.calls, call{op: op, arg: arg})
}

// Calls returns the argument of every recorded invocation of op, in order.
func (d *Driver) Calls(op string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var args []string
	for _, c := range d.calls {
		if c.op == op {
			args = append(args, c.arg)
		}
	}
	return args
}

func (d *Driver) Get(_ context.Context, key string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.errFor("Get"); err != nil {
		return "", false, err
	}
	if !d.live(key) {
		return "", false, nil
	}
	e := d.data[key]
	e.lastAccess = d.now
	return e.value, true, nil
}

func (d *Driver) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.errFor("Set"); err != nil {
		return err
	}
	d.put(key, value, ttl)
	return nil
}

func (d *Driver) put(key, value string, ttl time.Duration) {
	e := &entry{value: value, lastAccess: d.now}
	if ttl > 0 {
		e.expiresAt = d.now.Add(ttl)
	}
	d.data[key] = e
}

func (d *Driver) SetNX(_ context.Context, key string, value string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.errFor("SetNX"); err != nil {
		return false, err
	}
	if d.live(key) {
		return false, nil
	}
	d.put(key, value, ttl)
	return true, nil
}

func (d *Driver) Del(_ context.Context, keys ...string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Del", strings.Join(keys, " "))
	if err := d.errFor("Del"); err != nil {
		return 0, err
	}
	var n int64
	for _, key := range keys {
		if d.live(key) {
			delete(d.data, key)
			n++
		}
	}
	return n, nil
}

func (d *Driver) Exists(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.errFor("Exists"); err != nil {
		return false, err
	}
	return d.live(key), nil
}

func (d *Driver) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Expire", key)
	if err := d.errFor("Expire"); err != nil {
		return false, err
	}
	if !d.live(key) {
		return false, nil
	}
	if ttl > 0 {
		d.data[key].expiresAt = d.now.Add(ttl)
	} else {
		d.data[key].expiresAt = time.Time{}
	}
	return true, nil
}

func (d *Driver) TTL(_ context.Context, key string) (time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.errFor("TTL"); err != nil {
		return 0, err
	}
	if !d.live(key) {
		return time.Duration(-2), nil
	}
	e := d.data[key]
	if e.expiresAt.IsZero() {
		return time.Duration(-1), nil
	}
	return e.expiresAt.Sub(d.now), nil
}

func (d *Driver) Keys(_ context.Context, pattern string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Keys", pattern)
	if err := d.errFor("Keys"); err != nil {
		return nil, err
	}
	var keys []string
	for key := range d.data {
		if !d.live(key) {
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (d *Driver) MGet(_ context.Context, keys ...string) ([]*string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.errFor("MGet"); err != nil {
		return nil, err
	}
	values := make([]*string, len(keys))
	for i, key := range keys {
		if !d.live(key) {
			continue
		}
		e := d.data[key]
		e.lastAccess = d.now
		v := e.value
		values[i] = &v
	}
	return values, nil
}

func (d *Driver) MSet(_ context.Context, entries map[string]string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.errFor("MSet"); err != nil {
		return err
	}
	for key, value := range entries {
		d.put(key, value, ttl)
	}
	return nil
}

func (d *Driver) SAdd(_ context.Context, key string, members ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.errFor("SAdd"); err != nil {
		return err
	}
	e := d.data[key]
	if e == nil || !d.live(key) {
		e = &entry{members: make(map[string]bool), lastAccess: d.now}
		d.data[key] = e
	}
	if e.members == nil {
		e.members = make(map[string]bool)
	}
	for _, m := range members {
		e.members[m] = true
	}
	return nil
}

func (d *Driver) SMembers(_ context.Context, key string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.errFor("SMembers"); err != nil {
		return nil, err
	}
	if !d.live(key) {
		return nil, nil
	}
	e := d.data[key]
	members := make([]string, 0, len(e.members))
	for m := range e.members {
		members = append(members, m)
	}
	return members, nil
}

func (d *Driver) DBSize(_ context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.errFor("DBSize"); err != nil {
		return 0, err
	}
	var n int64
	for key := range d.data {
		if d.live(key) {
			n++
		}
	}
	return n, nil
}

func (d *Driver) MemoryUsed(_ context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.errFor("MemoryUsed"); err != nil {
		return 0, err
	}
	if d.memoryUsed > 0 {
		return d.memoryUsed, nil
	}
	var n int64
	for key := range d.data {
		if d.live(key) {
			n += int64(len(key) + len(d.data[key].value) + 64)
		}
	}
	return n, nil
}

func (d *Driver) IdleTime(_ context.Context, key string) (time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.errFor("IdleTime"); err != nil {
		return 0, err
	}
	if !d.live(key) {
		return 0, nil
	}
	return d.now.Sub(d.data[key].lastAccess), nil
}

func (d *Driver) Ping(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.errFor("Ping"); err != nil {
		return err
	}
	if d.closed {
		return errClosed
	}
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
