package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/pavelanni/examprep/internal/model"
	"github.com/pavelanni/examprep/internal/report"
)

type attemptDetail struct {
	Attempt   model.Attempt            `json:"attempt"`
	Passed    bool                     `json:"passed"`
	Questions []model.AnsweredQuestion `json:"questions"`
}

func (h *Handler) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	attempts, err := h.store.ListAttempts(r.Context(), user.ID)
	if err != nil {
		storeError(w, r, err, "AttemptNotFound")
		return
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

// attemptReport loads the attempt named in the URL. Candidates only see
// their own attempts; admins see all.
func (h *Handler) attemptReport(w http.ResponseWriter, r *http.Request) (*model.AttemptReport, bool) {
	id, ok := idParam(r, "attemptID")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest")
		return nil, false
	}
	rep, err := h.store.GetAttemptReport(r.Context(), id)
	if err != nil {
		storeError(w, r, err, "AttemptNotFound")
		return nil, false
	}
	user := model.UserFromContext(r.Context())
	if rep.Attempt.UserID != user.ID && user.Role != model.UserRoleAdmin {
		writeError(w, r, http.StatusNotFound, "AttemptNotFound")
		return nil, false
	}
	return rep, true
}

func (h *Handler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.attemptReport(w, r)
	if !ok {
		return
	}
	questions := rep.Questions
	if questions == nil {
		questions = []model.AnsweredQuestion{}
	}
	writeJSON(w, http.StatusOK, attemptDetail{
		Attempt:   rep.Attempt,
		Passed:    model.Passed(rep.Attempt.Percentage),
		Questions: questions,
	})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.attemptReport(w, r)
	if !ok {
		return
	}

	pdf, err := h.reports.Render(r.Context(), report.Input{
		Attempt:   rep.Attempt,
		Questions: rep.Questions,
		Candidate: &rep.Candidate,
	})
	if err != nil {
		var rerr *report.RenderError
		switch {
		case errors.Is(err, report.ErrEmptyReport):
			writeError(w, r, http.StatusUnprocessableEntity, "ReportFailed")
		case errors.As(err, &rerr):
			slog.Error("report encoding failed", "attempt", rep.Attempt.ID, "op", rerr.Op, "error", rerr.Err)
			writeError(w, r, http.StatusInternalServerError, "ReportFailed")
		default:
			slog.Error("report failed", "attempt", rep.Attempt.ID, "error", err)
			writeError(w, r, http.StatusInternalServerError, "ReportFailed")
		}
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": report.Filename(rep.Attempt),
	}))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		slog.Warn("write report", "attempt", rep.Attempt.ID, "error", err)
	}
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	stats, err := h.store.Stats(r.Context(), user.ID)
	if err != nil {
		storeError(w, r, err, "AttemptNotFound")
		return
	}
	if stats.Exams == nil {
		stats.Exams = []model.ExamStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}
