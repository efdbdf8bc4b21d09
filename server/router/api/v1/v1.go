package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/hrygo/cachewarden/internal/profile"
	"github.com/hrygo/cachewarden/store"
)

// APIV1Service exposes the cache admin surface: stats, tag invalidation, and
// namespace clears. It carries no state of its own beyond the store handle.
type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store) *APIV1Service {
	return &APIV1Service{
		Profile: profile,
		Store:   store,
	}
}

// RegisterRoutes registers the v1 routes on the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	g := echoServer.Group("/api/v1")
	g.GET("/cache/stats", s.GetCacheStats)
	g.POST("/cache/tags:invalidate", s.InvalidateTags)
	g.DELETE("/cache/namespaces/:namespace", s.ClearNamespace)
}
