package handler

import (
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/pavelanni/examprep/internal/bank"
	"github.com/pavelanni/examprep/internal/model"
)

const maxBankBytes = 10 << 20

type uploadResponse struct {
	ExamID    int64 `json:"exam_id"`
	Questions int   `json:"questions"`
	Skipped   bool  `json:"skipped"`
}

// handleUploadBank imports a question bank sent as the "bank" field of a
// multipart form. Uploads are recorded under "upload:<filename>".
func (h *Handler) handleUploadBank(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxBankBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}

	file, header, err := r.FormFile("bank")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBankBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}

	res, err := bank.ImportData(r.Context(), h.store, "upload:"+filepath.Base(header.Filename), data)
	if err != nil {
		slog.Warn("question bank upload rejected", "filename", header.Filename, "error", err)
		writeError(w, r, http.StatusBadRequest, "ImportFailed")
		return
	}

	status := http.StatusCreated
	if res.Skipped {
		status = http.StatusOK
	}
	writeJSON(w, status, uploadResponse{ExamID: res.ExamID, Questions: res.Questions, Skipped: res.Skipped})
}

type adminQuestion struct {
	model.Question
	CorrectAnswerID int64 `json:"correct_answer_id"`
}

func (h *Handler) handleAdminQuestions(w http.ResponseWriter, r *http.Request) {
	examID, ok := idParam(r, "examID")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	if _, err := h.store.GetExam(r.Context(), examID); err != nil {
		storeError(w, r, err, "ExamNotFound")
		return
	}
	qs, err := h.store.ListQuestions(r.Context(), examID)
	if err != nil {
		storeError(w, r, err, "ExamNotFound")
		return
	}
	out := make([]adminQuestion, 0, len(qs))
	for _, q := range qs {
		aq := adminQuestion{Question: q}
		if c, ok := q.CorrectAnswer(); ok {
			aq.CorrectAnswerID = c.ID
		}
		out = append(out, aq)
	}
	writeJSON(w, http.StatusOK, out)
}
