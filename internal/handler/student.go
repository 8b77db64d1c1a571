package handler

import (
	"net/http"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/exam"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
)

func (h *Handler) handlePresent(w http.ResponseWriter, r *http.Request) {
	examID, ok := int64Param(w, r, "examID")
	if !ok {
		return
	}
	p, err := h.svc.Present(r.Context(), model.ActorFromContext(r.Context()), examID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	examID, ok := int64Param(w, r, "examID")
	if !ok {
		return
	}
	var req submitRequest
	if !h.decode(w, r, &req) {
		return
	}
	sub, err := h.svc.Submit(r.Context(), model.ActorFromContext(r.Context()), examID, exam.Answers{MC: req.MC, OR: req.OR})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	examID, ok := int64Param(w, r, "examID")
	if !ok {
		return
	}
	sub, err := h.svc.Result(r.Context(), model.ActorFromContext(r.Context()), examID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
