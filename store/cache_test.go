package store

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	teststore "github.com/hrygo/cachewarden/store/test"
)

func TestSetGetScenario(t *testing.T) {
	ctx := context.Background()
	s, driver := newTestStore()

	ok, err := s.Set(ctx, "u1", "Alice", WithNamespace(NamespaceUsers), WithTTL(60*time.Second))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "Alice", s.Get(ctx, "u1", WithNamespace(NamespaceUsers)))

	// Other namespaces must not see the key.
	assert.Nil(t, s.Get(ctx, "u1", WithNamespace(NamespaceTasks)))

	driver.Advance(61 * time.Second)
	assert.Nil(t, s.Get(ctx, "u1", WithNamespace(NamespaceUsers)))
}

func TestSetTTL(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	_, err := s.Set(ctx, "k", "v", WithTTL(60*time.Second))
	require.NoError(t, err)

	ttl := s.TTL(ctx, "k")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 60*time.Second)
}

func TestSetDefaultTTL(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	_, err := s.Set(ctx, "k", "v")
	require.NoError(t, err)
	assert.Equal(t, s.profile.DefaultTTL, s.TTL(ctx, "k"))
}

func TestSetNX(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	first, err := s.Set(ctx, "k", "first", WithNX())
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.Set(ctx, "k", "second", WithNX())
	require.NoError(t, err)
	assert.False(t, second)

	assert.Equal(t, "first", s.Get(ctx, "k"))
}

func TestSetNotSerializable(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	ok, err := s.Set(ctx, "k", make(chan int))
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrNotSerializable))
}

func TestSoftFailOnStoreErrors(t *testing.T) {
	ctx := context.Background()
	s, driver := newTestStore()
	storeDown := errors.New("connection refused")

	_, err := s.Set(ctx, "k", "v")
	require.NoError(t, err)

	driver.FailWith("Get", storeDown)
	assert.Nil(t, s.Get(ctx, "k"))

	driver.FailWith("Set", storeDown)
	ok, err := s.Set(ctx, "k2", "v")
	assert.NoError(t, err)
	assert.False(t, ok)

	driver.FailWith("Del", storeDown)
	assert.False(t, s.Delete(ctx, "k"))

	driver.FailWith("Exists", storeDown)
	assert.False(t, s.Exists(ctx, "k"))

	driver.FailWith("TTL", storeDown)
	assert.Negative(t, s.TTL(ctx, "k"))

	driver.FailWith("MGet", storeDown)
	assert.Equal(t, []any{nil, nil}, s.MGet(ctx, []string{"a", "b"}))

	driver.FailWith("Keys", storeDown)
	assert.Zero(t, s.Clear(ctx, "*"))
}

func TestDeleteAndExists(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	_, err := s.Set(ctx, "k", "v")
	require.NoError(t, err)
	assert.True(t, s.Exists(ctx, "k"))

	assert.True(t, s.Delete(ctx, "k"))
	assert.False(t, s.Exists(ctx, "k"))
	assert.False(t, s.Delete(ctx, "k"))
}

func TestExpireRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	s, driver := newTestStore()

	_, err := s.Set(ctx, "k", "v", WithTTL(10*time.Second))
	require.NoError(t, err)

	driver.Advance(5 * time.Second)
	require.True(t, s.Expire(ctx, "k", 10*time.Second))

	driver.Advance(8 * time.Second)
	assert.Equal(t, "v", s.Get(ctx, "k"))
}

func TestMGetMSetMDel(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	ok, err := s.MSet(ctx, map[string]any{
		"a": "va",
		"b": float64(2),
	}, WithNamespace(NamespaceTasks))
	require.NoError(t, err)
	require.True(t, ok)

	values := s.MGet(ctx, []string{"a", "b", "missing"}, WithNamespace(NamespaceTasks))
	require.Len(t, values, 3)
	assert.Equal(t, "va", values[0])
	assert.Equal(t, float64(2), values[1])
	assert.Nil(t, values[2])

	assert.Equal(t, 2, s.MDel(ctx, []string{"a", "b", "missing"}, WithNamespace(NamespaceTasks)))
	assert.Nil(t, s.Get(ctx, "a", WithNamespace(NamespaceTasks)))
}

func TestClearScopedToNamespace(t *testing.T) {
	ctx := context.Background()
	s, driver := newTestStore()

	for _, key := range []string{"daily", "weekly"} {
		_, err := s.Set(ctx, key, "report", WithNamespace(NamespaceAnalytics))
		require.NoError(t, err)
	}
	_, err := s.Set(ctx, "u1", "Alice", WithNamespace(NamespaceUsers))
	require.NoError(t, err)

	assert.Equal(t, 2, s.Clear(ctx, "*", WithNamespace(NamespaceAnalytics)))
	assert.Nil(t, s.Get(ctx, "daily", WithNamespace(NamespaceAnalytics)))
	assert.Equal(t, "Alice", s.Get(ctx, "u1", WithNamespace(NamespaceUsers)))
	assert.Equal(t, 1, driver.Len())
}

func TestClearPattern(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	_, err := s.Set(ctx, "report:1", "x", WithNamespace(NamespaceAnalytics))
	require.NoError(t, err)
	_, err = s.Set(ctx, "event:1", "y", WithNamespace(NamespaceAnalytics))
	require.NoError(t, err)

	assert.Equal(t, 1, s.Clear(ctx, "report:*", WithNamespace(NamespaceAnalytics)))
	assert.Equal(t, "y", s.Get(ctx, "event:1", WithNamespace(NamespaceAnalytics)))
}

func TestWrap(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	var calls atomic.Int32
	fn := func(context.Context) (any, error) {
		calls.Add(1)
		return "computed", nil
	}

	value, err := s.Wrap(ctx, "k", fn)
	require.NoError(t, err)
	assert.Equal(t, "computed", value)
	assert.EqualValues(t, 1, calls.Load())

	// Warm hit must not invoke fn again.
	value, err = s.Wrap(ctx, "k", fn)
	require.NoError(t, err)
	assert.Equal(t, "computed", value)
	assert.EqualValues(t, 1, calls.Load())
}

func TestWrapPropagatesFnError(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	fnErr := errors.New("upstream down")
	_, err := s.Wrap(ctx, "k", func(context.Context) (any, error) {
		return nil, fnErr
	})
	assert.True(t, errors.Is(err, fnErr))

	// The failed computation must not have been cached.
	assert.False(t, s.Exists(ctx, "k"))
}

func TestGetTyped(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	type user struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}

	_, err := s.Set(ctx, "u1", user{Name: "Alice", Age: 30}, WithNamespace(NamespaceUsers))
	require.NoError(t, err)

	got, found := GetTyped[user](ctx, s, "u1", WithNamespace(NamespaceUsers))
	require.True(t, found)
	assert.Equal(t, user{Name: "Alice", Age: 30}, got)

	_, found = GetTyped[user](ctx, s, "missing", WithNamespace(NamespaceUsers))
	assert.False(t, found)
}

func TestWrapTyped(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	var calls atomic.Int32
	fetch := func(context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"general", "random"}, nil
	}

	channels, err := WrapTyped(ctx, s, "list", fetch, WithNamespace(NamespaceChannels))
	require.NoError(t, err)
	assert.Equal(t, []string{"general", "random"}, channels)

	channels, err = WrapTyped(ctx, s, "list", fetch, WithNamespace(NamespaceChannels))
	require.NoError(t, err)
	assert.Equal(t, []string{"general", "random"}, channels)
	assert.EqualValues(t, 1, calls.Load())
}

func TestCompressedValueRoundTripsThroughStore(t *testing.T) {
	ctx := context.Background()
	s, driver := newTestStore()

	payload := strings.Repeat("transcript line\n", 200)
	_, err := s.Set(ctx, "long", payload, WithRawValue(), WithCompression())
	require.NoError(t, err)

	stored, found, err := driver.Get(ctx, s.BuildKey("long", NamespaceGeneral))
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, strings.HasPrefix(stored, compressionMarker))

	assert.Equal(t, payload, s.Get(ctx, "long", WithRawValue()))
}

func TestMetricsCounters(t *testing.T) {
	ctx := context.Background()
	metrics := NewMetrics()
	driver := teststore.New()
	s := NewWithMetrics(driver, teststore.Profile(), metrics)

	_, err := s.Set(ctx, "k", "v")
	require.NoError(t, err)
	s.Get(ctx, "k")
	s.Get(ctx, "missing")
	s.Delete(ctx, "k")

	ops := metrics.Snapshot()
	assert.EqualValues(t, 1, ops.Hits)
	assert.EqualValues(t, 1, ops.Misses)
	assert.EqualValues(t, 1, ops.Sets)
	assert.EqualValues(t, 1, ops.Deletes)
	assert.Equal(t, 0.5, metrics.HitRate())
}
