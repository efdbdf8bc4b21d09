package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/cachewarden/store"
)

// GetCacheStats returns cache usage statistics.
// GET /api/v1/cache/stats
//
// Stats are diagnostic: when the store is unreachable this returns an
// all-zero body, never a 5xx.
func (s *APIV1Service) GetCacheStats(c echo.Context) error {
	stats := s.Store.GetStats(c.Request().Context())
	return c.JSON(http.StatusOK, stats)
}

// InvalidateTagsRequest is the body of a tag invalidation call.
type InvalidateTagsRequest struct {
	Tags []string `json:"tags"`
}

// InvalidateTagsResponse reports how many data keys were removed.
type InvalidateTagsResponse struct {
	Deleted int `json:"deleted"`
}

// InvalidateTags bulk-deletes every key registered under the given tags.
// POST /api/v1/cache/tags:invalidate
func (s *APIV1Service) InvalidateTags(c echo.Context) error {
	var req InvalidateTagsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(req.Tags) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "tags must not be empty"})
	}
	deleted := s.Store.InvalidateByTags(c.Request().Context(), req.Tags...)
	return c.JSON(http.StatusOK, InvalidateTagsResponse{Deleted: deleted})
}

// ClearNamespaceResponse reports how many keys a namespace clear removed.
type ClearNamespaceResponse struct {
	Namespace string `json:"namespace"`
	Deleted   int    `json:"deleted"`
}

// ClearNamespace removes every key in a namespace matching the optional
// ?pattern= query parameter (default "*").
// DELETE /api/v1/cache/namespaces/:namespace
func (s *APIV1Service) ClearNamespace(c echo.Context) error {
	ns, ok := store.ParseNamespace(c.Param("namespace"))
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown namespace"})
	}
	pattern := c.QueryParam("pattern")
	deleted := s.Store.Clear(c.Request().Context(), pattern, store.WithNamespace(ns))
	return c.JSON(http.StatusOK, ClearNamespaceResponse{Namespace: string(ns), Deleted: deleted})
}
