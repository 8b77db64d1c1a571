package handler

import (
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/exam"
	appI18n "github.com/MUZAKI1453/CBT-Sekolah/internal/i18n"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
)

// handleImport accepts a plain-text document either as a multipart upload in
// the "document" field or as the raw request body.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	examID, ok := int64Param(w, r, "examID")
	if !ok {
		return
	}

	name, data, ok := h.readDocument(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Import(r.Context(), model.ActorFromContext(r.Context()), examID, name, data)
	if err != nil {
		writeError(w, r, err)
		return
	}

	msg := appI18n.Tp(r.Context(), "QuestionsImported", res.NumMC+res.NumOR)
	if res.Unchanged {
		msg = appI18n.T(r.Context(), "ImportUnchanged")
	}
	writeJSON(w, http.StatusOK, importResponse{Message: msg, ImportResult: res})
}

type importResponse struct {
	Message string `json:"message"`
	exam.ImportResult
}

func (h *Handler) readDocument(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(h.config.MaxUpload); err != nil {
			badRequest(w, r, "file too large")
			return "", nil, false
		}
		file, header, err := r.FormFile("document")
		if err != nil {
			badRequest(w, r, "no file uploaded")
			return "", nil, false
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			slog.Error("failed to read upload", "error", err)
			badRequest(w, r, "failed to read file")
			return "", nil, false
		}
		return header.Filename, data, true
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxUpload))
	if err != nil {
		badRequest(w, r, "file too large")
		return "", nil, false
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "document.txt"
	}
	return name, data, true
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	examID, ok := int64Param(w, r, "examID")
	if !ok {
		return
	}
	studentID, ok := int64Param(w, r, "studentID")
	if !ok {
		return
	}

	if err := h.svc.Reset(r.Context(), model.ActorFromContext(r.Context()), examID, studentID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": appI18n.T(r.Context(), "SubmissionReset")})
}
