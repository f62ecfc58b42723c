package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examprep/internal/exam"
	"github.com/pavelanni/examprep/internal/model"
	"github.com/pavelanni/examprep/internal/store"
)

const submitTimeout = 30 * time.Second

type selectRequest struct {
	AnswerID int64 `json:"answer_id"`
}

// navigateRequest moves by direction ("next" or "previous") or to Index.
type navigateRequest struct {
	Direction string `json:"direction,omitempty"`
	Index     *int   `json:"index,omitempty"`
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.store.ListExams(r.Context())
	if err != nil {
		storeError(w, r, err, "ExamNotFound")
		return
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	writeJSON(w, http.StatusOK, exams)
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	examID, ok := idParam(r, "examID")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	user := model.UserFromContext(r.Context())

	s, err := h.sessions.Open(r.Context(), user.ID, examID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound), errors.Is(err, exam.ErrNoQuestions):
		writeError(w, r, http.StatusNotFound, "ExamNotFound")
		return
	default:
		slog.Error("failed to open exam session", "exam", examID, "user", user.ID, "error", err)
		writeError(w, r, http.StatusBadGateway, "InternalError")
		return
	}
	writeJSON(w, http.StatusCreated, s.Snapshot())
}

// session returns the caller's session named in the URL. Sessions of other
// users are reported as missing.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*exam.Session, bool) {
	s, ok := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if !ok || s.UserID() != model.UserFromContext(r.Context()).ID {
		writeError(w, r, http.StatusNotFound, "SessionNotFound")
		return nil, false
	}
	return s, true
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	if err := s.Select(req.AnswerID); err != nil {
		sessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) handleNavigate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req navigateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}

	var err error
	switch {
	case req.Index != nil:
		err = s.Jump(*req.Index)
	case req.Direction == "next":
		err = s.Next()
	case req.Direction == "previous":
		err = s.Previous()
	default:
		writeError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	if err != nil {
		sessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	// A client that goes away mid-request must not abort a half-written attempt.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), submitTimeout)
	defer cancel()
	if _, err := s.Submit(ctx); err != nil {
		sessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.sessions.Remove(s.ID())
	w.WriteHeader(http.StatusNoContent)
}

func sessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, exam.ErrInvalidAnswer):
		writeError(w, r, http.StatusBadRequest, "InvalidAnswer")
	case errors.Is(err, exam.ErrIndexOutOfRange):
		writeError(w, r, http.StatusBadRequest, "InvalidIndex")
	case errors.Is(err, exam.ErrSubmitInFlight):
		writeError(w, r, http.StatusConflict, "SubmitInFlight")
	case errors.Is(err, exam.ErrNotInProgress):
		writeError(w, r, http.StatusConflict, "SessionClosed")
	default:
		slog.Error("exam submission failed", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusBadGateway, "SubmitFailed")
	}
}
