// Package api provides a small read-only HTTP surface for operators:
// health, version, and views over discovered repositories and
// workspaces. The assistant-facing transport is the MCP adapter, not
// this server.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/repolens/repolens/internal/repository"
	"github.com/repolens/repolens/internal/versions"
	"github.com/repolens/repolens/internal/workspace"
)

const requestTimeout = 10 * time.Second

// NewRouter creates and configures the ops HTTP router.
func NewRouter(registry repository.Registry, workspaces workspace.Store) *chi.Mux {
	routes := &routes{registry: registry, workspaces: workspaces}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		loggingMiddleware,
	)

	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler)
	r.Get("/v0/repositories", routes.listRepositories)
	r.Get("/v0/repositories/{name}/workspaces", routes.listWorkspaces)

	return r
}

type routes struct {
	registry   repository.Registry
	workspaces workspace.Store
}

func (rt *routes) listRepositories(w http.ResponseWriter, _ *http.Request) {
	repos, err := rt.registry.Discover()
	if err != nil {
		writeError(w, "failed to discover repositories", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"repositories": repos, "total": len(repos)})
}

func (rt *routes) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	repo, err := rt.registry.Get(name)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	list, err := rt.workspaces.List(repo)
	if err != nil {
		writeError(w, "failed to list workspaces", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"repository": repo.Name, "workspaces": list, "total": len(list)})
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, versions.GetVersionInfo())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
