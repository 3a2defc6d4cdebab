package api

import (
	"context"
	"database/sql"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each component check on /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)

	r.Get("/", s.handleWelcome)
	r.Get("/health", s.handleHealth)

	// API documentation
	r.Get("/api-docs", s.handleAPIDocs)
	r.Get("/api-docs/openapi.yaml", s.handleAPIDocsYAML)

	// Image uploads get their own, larger body limit.
	r.With(bodySizeLimit(s.uploadLimit())).
		Post("/devices/{serialNumber}/upload-image", s.handleUploadImage)

	r.Group(func(r chi.Router) {
		r.Use(bodySizeLimit(maxRequestBodySize))

		// Device catalogue
		r.Get("/devices", s.handleListDevices)
		r.Post("/devices", s.handleCreateDevice)
		r.Get("/devices/{serialNumber}", s.handleGetDevice)
		r.Put("/edit-devices/{serialNumber}", s.handleUpdateDevice)
		r.Delete("/delete-device/{serialNumber}", s.handleDeleteDevice)

		// Device images
		r.Delete("/devices/{serialNumber}/delete-image", s.handleDeleteImage)
		r.Get("/devices/{serialNumber}/view-image", s.handleViewImage)

		// Accounts
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)

			r.Post("/devices/{serialNumber}/take", s.handleTakeDevice)
			r.Post("/devices/{serialNumber}/return", s.handleReturnDevice)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// uploadLimit returns the configured upload cap, falling back to 10 MB.
func (s *Server) uploadLimit() int64 {
	if s.cfg.MaxUploadSize > 0 {
		return s.cfg.MaxUploadSize
	}
	return 10 << 20
}

// serialParam returns the serialNumber path parameter. chi routes on
// r.URL.RawPath when it is set, and only then is the parameter still escaped.
func serialParam(r *http.Request) string {
	raw := chi.URLParam(r, "serialNumber")
	if r.URL.RawPath == "" {
		return raw
	}
	if serial, err := url.PathUnescape(raw); err == nil {
		return serial
	}
	return raw
}

// handleWelcome answers the root path.
func (s *Server) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, msgWelcome)
}

// poolStatter is implemented by checks backed by a database/sql pool.
type poolStatter interface {
	Stats() sql.DBStats
}

// handleHealth reports the server status, the result of each registered
// component check, connection pool usage and the number of live WebSocket
// clients. Any failing check turns the response 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	code := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			s.logger.Warn("health check failed", "component", name, "error", err)
			results[name] = "unhealthy"
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  results,
	}

	pools := make(map[string]any)
	for _, name := range names {
		if p, ok := s.checks[name].(poolStatter); ok {
			st := p.Stats()
			pools[name] = map[string]any{
				"open":       st.OpenConnections,
				"in_use":     st.InUse,
				"idle":       st.Idle,
				"wait_count": st.WaitCount,
			}
		}
	}
	if len(pools) > 0 {
		body["pools"] = pools
	}
	if s.hub != nil {
		body["websocket_clients"] = s.hub.ClientCount()
	}

	writeJSON(w, code, body)
}
