package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/helm/internal/store"
)

// StoreReader is the read-side of the store the API serves, kept narrow so
// handlers are testable without Postgres.
type StoreReader interface {
	LikelihoodsByConversation(ctx context.Context, conversationID, kind string) ([]store.LikelihoodRow, error)
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

type Server struct {
	router    *chi.Mux
	port      int
	modelName string
	db        StoreReader
}

func NewServer(port int, apiToken, modelName string, db StoreReader, metricsHandler http.Handler) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		port:      port,
		modelName: modelName,
		db:        db,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/helm/status", s.status)
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler)
	}

	router.Route("/api/v1/helm", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Get("/likelihoods/{conversationID}", s.likelihoods)
		r.Get("/runs", s.runs)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// BearerAuthMiddleware rejects requests without the configured bearer token.
// An unconfigured token disables the protected routes entirely.
func BearerAuthMiddleware(apiToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiToken == "" {
				writeError(w, http.StatusServiceUnavailable, "API token not configured")
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != apiToken {
				writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"agent": "helm",
		"model": s.modelName,
	})
}

func (s *Server) likelihoods(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = store.KindActual
	}
	if kind != store.KindActual && kind != store.KindReference {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown kind %q", kind))
		return
	}

	rows, err := s.db.LikelihoodsByConversation(r.Context(), conversationID, kind)
	if err != nil {
		slog.Error("likelihood query failed", "conversation_id", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"kind":            kind,
		"likelihoods":     rows,
	})
}

func (s *Server) runs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.db.ListRuns(r.Context(), limit)
	if err != nil {
		slog.Error("run query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
