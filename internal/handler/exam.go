package handler

import (
	"errors"
	"net/http"

	appI18n "github.com/MUZAKI1453/CBT-Sekolah/internal/i18n"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/regrade"
)

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, err := h.svc.CreateExam(r.Context(), model.ActorFromContext(r.Context()), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.svc.ListExams(r.Context(), model.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if exams == nil {
		exams = []model.ExamDefinition{}
	}
	writeJSON(w, http.StatusOK, exams)
}

// examView adds the lock state to an exam definition.
type examView struct {
	model.ExamDefinition
	Locked bool `json:"locked"`
}

func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	examID, ok := int64Param(w, r, "examID")
	if !ok {
		return
	}
	actor := model.ActorFromContext(r.Context())
	e, err := h.svc.GetExam(r.Context(), actor, examID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	locked, err := h.svc.HasSubmissions(r.Context(), actor, examID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, examView{ExamDefinition: e, Locked: locked})
}

func (h *Handler) handleUpdateExam(w http.ResponseWriter, r *http.Request) {
	examID, ok := int64Param(w, r, "examID")
	if !ok {
		return
	}
	var req examRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, err := h.svc.UpdateExam(r.Context(), model.ActorFromContext(r.Context()), examID, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleGetBank(w http.ResponseWriter, r *http.Request) {
	examID, ok := int64Param(w, r, "examID")
	if !ok {
		return
	}
	b, err := h.svc.GetBank(r.Context(), model.ActorFromContext(r.Context()), examID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bankView(b))
}

func (h *Handler) handleSaveBank(w http.ResponseWriter, r *http.Request) {
	examID, ok := int64Param(w, r, "examID")
	if !ok {
		return
	}
	var req bankRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.svc.SaveBank(r.Context(), model.ActorFromContext(r.Context()), examID, req.MC, req.OR)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bankView(b))
}

// regradeResponse reports a regrade. Partial is set when some submissions
// kept their previous score.
type regradeResponse struct {
	Message string         `json:"message"`
	Partial bool           `json:"partial"`
	Report  regrade.Report `json:"report"`
	Bank    model.Bank     `json:"bank"`
}

func (h *Handler) handleRegrade(w http.ResponseWriter, r *http.Request) {
	examID, ok := int64Param(w, r, "examID")
	if !ok {
		return
	}
	var req bankRequest
	if !h.decode(w, r, &req) {
		return
	}
	report, b, err := h.svc.Regrade(r.Context(), model.ActorFromContext(r.Context()), examID, req.MC, req.OR)
	counts := map[string]any{"Updated": report.Updated, "Attempted": report.Attempted}
	switch {
	case errors.Is(err, model.ErrRegradePartialFailure):
		writeJSON(w, http.StatusOK, regradeResponse{
			Message: appI18n.Td(r.Context(), "ErrRegradePartialFailure", counts),
			Partial: true,
			Report:  report,
			Bank:    bankView(b),
		})
	case err != nil:
		writeError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, regradeResponse{
			Message: appI18n.Td(r.Context(), "RegradeDone", counts),
			Report:  report,
			Bank:    bankView(b),
		})
	}
}

func (h *Handler) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	examID, ok := int64Param(w, r, "examID")
	if !ok {
		return
	}
	subs, err := h.svc.ListSubmissions(r.Context(), model.ActorFromContext(r.Context()), examID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	examID, ok := int64Param(w, r, "examID")
	if !ok {
		return
	}
	studentID, ok := int64Param(w, r, "studentID")
	if !ok {
		return
	}
	var req reviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	sub, err := h.svc.Review(r.Context(), model.ActorFromContext(r.Context()), examID, studentID, req.Scores)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	examID, ok := int64Param(w, r, "examID")
	if !ok {
		return
	}
	export, err := h.svc.Export(r.Context(), model.ActorFromContext(r.Context()), examID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}

// bankView makes empty question lists encode as [] rather than null.
func bankView(b model.Bank) model.Bank {
	if b.MC == nil {
		b.MC = []model.MCQuestion{}
	}
	if b.OR == nil {
		b.OR = []model.ORQuestion{}
	}
	return b
}
