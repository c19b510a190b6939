// Package handlers provides the HTTP handlers of the storefront: the
// catalog pages and fragments, the Google sign-in flows and the health
// probes. Handlers translate HTTP into calls on the catalog and services
// packages and render the result through internal/render.
package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/ieraasyl/Storefront/pkg/utils"
	"github.com/rs/zerolog/log"
)

// Pinger is a dependency whose health Ready reports. *database.RedisDB,
// *database.PostgresDB and *supabase.Client implement it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	deps map[string]Pinger
}

// NewHealthHandler checks the given dependencies on /ready. Nil entries are
// skipped, so the catalog backend that is not in use can be passed as nil.
//
//	healthHandler := handlers.NewHealthHandler(map[string]handlers.Pinger{
//	    "redis":    redisDB,
//	    "postgres": postgresDB,
//	})
func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	h := &HealthHandler{deps: make(map[string]Pinger, len(deps))}
	for name, dep := range deps {
		if dep != nil {
			h.deps[name] = dep
		}
	}
	return h
}

// HealthResponse is the body of both probes.
//
//	{"status": "ok", "timestamp": "...", "services": {"redis": "healthy"}}
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}

// Health is the liveness probe. It never checks dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// Ready pings every dependency with a shared 5 second budget and answers
// 503 "degraded" if any of them fails.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.deps))
	for name := range h.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	services := make(map[string]string, len(names))
	allHealthy := true

	for _, name := range names {
		if err := h.deps[name].Ping(ctx); err != nil {
			log.Error().Err(err).Str("service", name).Msg("Health check failed")
			services[name] = "unhealthy"
			allHealthy = false
			continue
		}
		services[name] = "healthy"
	}

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Services:  services,
	}

	statusCode := http.StatusOK
	if !allHealthy {
		response.Status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	utils.RespondWithJSON(w, r, statusCode, response)
}
