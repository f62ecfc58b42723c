// Package handler serves the JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examprep/internal/auth"
	"github.com/pavelanni/examprep/internal/exam"
	appI18n "github.com/pavelanni/examprep/internal/i18n"
	"github.com/pavelanni/examprep/internal/model"
	"github.com/pavelanni/examprep/internal/report"
	"github.com/pavelanni/examprep/internal/store"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	sessions *exam.Registry
	auth     *auth.Service
	reports  *report.Engine
}

// New creates a new Handler.
func New(s *store.Store, reg *exam.Registry, a *auth.Service, reports *report.Engine) *Handler {
	return &Handler{store: s, sessions: reg, auth: a, reports: reports}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.handleRegister)
		r.Post("/auth/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Get("/me", h.handleMe)
			r.Get("/exams", h.handleListExams)
			r.Post("/exams/{examID}/sessions", h.handleStartSession)

			r.Get("/sessions/{sessionID}", h.handleGetSession)
			r.Post("/sessions/{sessionID}/select", h.handleSelect)
			r.Post("/sessions/{sessionID}/navigate", h.handleNavigate)
			r.Post("/sessions/{sessionID}/submit", h.handleSubmit)
			r.Delete("/sessions/{sessionID}", h.handleCloseSession)

			r.Get("/attempts", h.handleListAttempts)
			r.Get("/attempts/{attemptID}", h.handleGetAttempt)
			r.Get("/attempts/{attemptID}/report.pdf", h.handleReport)
			r.Get("/stats", h.handleStats)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireRole(model.UserRoleAdmin))
				r.Post("/banks", h.handleUploadBank)
				r.Get("/exams/{examID}/questions", h.handleAdminQuestions)
			})
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.UserCount(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"sessions":    h.sessions.Len(),
		"arabic_font": h.reports.HasArabicFont(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError sends a localized error message.
func writeError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, errorResponse{Error: appI18n.T(r.Context(), msgID)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// storeError maps a store failure to a response.
func storeError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, notFoundMsg)
		return
	}
	slog.Error("store error", "path", r.URL.Path, "error", err)
	writeError(w, r, http.StatusInternalServerError, "InternalError")
}
