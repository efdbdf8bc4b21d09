package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cachewarden/store"
	teststore "github.com/hrygo/cachewarden/store/test"
)

func newTestService() (*APIV1Service, *store.Store, *teststore.Driver) {
	driver := teststore.New()
	p := teststore.Profile()
	s := store.New(driver, p)
	return NewAPIV1Service(p, s), s, driver
}

func TestGetCacheStats(t *testing.T) {
	svc, s, _ := newTestService()
	ctx := context.Background()

	_, err := s.Set(ctx, "k", "v")
	require.NoError(t, err)
	s.Get(ctx, "k")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, svc.GetCacheStats(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var stats store.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats.TotalKeys)
	assert.EqualValues(t, 1, stats.Operations.Hits)
}

func TestGetCacheStatsDegradesWhenStoreDown(t *testing.T) {
	svc, _, driver := newTestService()
	driver.FailWith("DBSize", errors.New("connection refused"))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, svc.GetCacheStats(e.NewContext(req, rec)))
	// Stats are diagnostic: a dead store yields zeros, not a 5xx.
	assert.Equal(t, http.StatusOK, rec.Code)

	var stats store.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, store.Stats{}, stats)
}

func TestInvalidateTags(t *testing.T) {
	svc, s, _ := newTestService()
	ctx := context.Background()

	_, err := s.Set(ctx, "u1", "Alice", store.WithNamespace(store.NamespaceUsers), store.WithTags("team:42"))
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cache/tags:invalidate", strings.NewReader(`{"tags":["team:42"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, svc.InvalidateTags(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp InvalidateTagsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Deleted)
	assert.Nil(t, s.Get(ctx, "u1", store.WithNamespace(store.NamespaceUsers)))
}

func TestInvalidateTagsEmptyBody(t *testing.T) {
	svc, _, _ := newTestService()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cache/tags:invalidate", strings.NewReader(`{"tags":[]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, svc.InvalidateTags(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearNamespace(t *testing.T) {
	svc, s, _ := newTestService()
	ctx := context.Background()

	_, err := s.Set(ctx, "daily", "report", store.WithNamespace(store.NamespaceAnalytics))
	require.NoError(t, err)
	_, err = s.Set(ctx, "u1", "Alice", store.WithNamespace(store.NamespaceUsers))
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cache/namespaces/analytics", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("namespace")
	c.SetParamValues("analytics")

	require.NoError(t, svc.ClearNamespace(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ClearNamespaceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Deleted)
	assert.Equal(t, "Alice", s.Get(ctx, "u1", store.WithNamespace(store.NamespaceUsers)))
}

func TestClearNamespaceUnknown(t *testing.T) {
	svc, _, _ := newTestService()

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cache/namespaces/bogus", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("namespace")
	c.SetParamValues("bogus")

	require.NoError(t, svc.ClearNamespace(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
