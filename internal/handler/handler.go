// Package handler exposes the exam engine as a JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/exam"
	appI18n "github.com/MUZAKI1453/CBT-Sekolah/internal/i18n"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/metrics"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/store"
)

// DefaultMaxUpload bounds imported documents and JSON bodies.
const DefaultMaxUpload = 10 << 20

// Config holds HTTP-level settings.
type Config struct {
	// CORSOrigins lists the front-end origins allowed to call the API.
	// Empty disables CORS handling.
	CORSOrigins []string
	MaxUpload   int64
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc      *exam.Service
	store    *store.Store
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	validate *validator.Validate
	config   Config
}

// New creates a new Handler. m and g may be nil to run without metrics.
func New(svc *exam.Service, st *store.Store, m *metrics.Metrics, g prometheus.Gatherer, cfg Config) *Handler {
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = DefaultMaxUpload
	}
	return &Handler{
		svc:      svc,
		store:    st,
		metrics:  m,
		gatherer: g,
		validate: validator.New(),
		config:   cfg,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	if len(h.config.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.config.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept-Language", "Content-Type", headerUserID, headerUserRole},
			ExposedHeaders: []string{"Content-Language"},
			MaxAge:         300,
		}))
	}
	r.Use(h.metrics.Middleware)

	r.Get("/healthz", h.handleHealth)
	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(h.gatherer))
	}

	r.Group(func(r chi.Router) {
		r.Use(actorMiddleware)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.RoleTeacher, model.RoleAdmin))
			r.Post("/exams", h.handleCreateExam)
			r.Get("/exams", h.handleListExams)
			r.Get("/exams/{examID}", h.handleGetExam)
			r.Put("/exams/{examID}", h.handleUpdateExam)
			r.Post("/exams/{examID}/import", h.handleImport)
			r.Get("/exams/{examID}/bank", h.handleGetBank)
			r.Put("/exams/{examID}/bank", h.handleSaveBank)
			r.Post("/exams/{examID}/regrade", h.handleRegrade)
			r.Get("/exams/{examID}/export", h.handleExport)
			r.Get("/exams/{examID}/submissions", h.handleListSubmissions)
			r.Put("/exams/{examID}/submissions/{studentID}/review", h.handleReview)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.RoleAdmin))
			r.Delete("/exams/{examID}/submissions/{studentID}", h.handleReset)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.RoleStudent))
			r.Get("/student/exams/{examID}", h.handlePresent)
			r.Post("/student/exams/{examID}/submit", h.handleSubmit)
			r.Get("/student/exams/{examID}/result", h.handleResult)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error    string              `json:"error"`
	Message  string              `json:"message"`
	Problems []model.BankProblem `json:"problems,omitempty"`
	Fields   map[string]string   `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps engine errors onto HTTP statuses with a localized message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var bankErr *model.BankError
	switch {
	case errors.As(err, &bankErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:    "invalid_bank",
			Message:  appI18n.Td(ctx, "ErrInvalidBank", map[string]any{"Details": bankErr.Error()}),
			Problems: bankErr.Problems,
		})
	case errors.Is(err, model.ErrInvalidBank):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   "invalid_bank",
			Message: appI18n.Td(ctx, "ErrInvalidBank", map[string]any{"Details": err.Error()}),
		})
	case errors.Is(err, model.ErrExtractionEmpty):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   "extraction_empty",
			Message: appI18n.T(ctx, "ErrExtractionEmpty"),
		})
	case errors.Is(err, model.ErrLineTooLong):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   "line_too_long",
			Message: appI18n.T(ctx, "ErrLineTooLong"),
		})
	case errors.Is(err, model.ErrInvalidExam):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   "invalid_exam",
			Message: appI18n.Td(ctx, "ErrInvalidExam", map[string]any{"Details": err.Error()}),
		})
	case errors.Is(err, model.ErrDuplicateSubmission):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:   "duplicate_submission",
			Message: appI18n.T(ctx, "ErrDuplicateSubmission"),
		})
	case errors.Is(err, model.ErrEditAfterSubmissionsExist):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:   "edit_after_submissions_exist",
			Message: appI18n.T(ctx, "ErrEditAfterSubmissionsExist"),
		})
	case errors.Is(err, model.ErrExamNotOpen):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:   "exam_not_open",
			Message: appI18n.T(ctx, "ErrExamNotOpen"),
		})
	case errors.Is(err, model.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{
			Error:   "forbidden",
			Message: appI18n.T(ctx, "ErrForbidden"),
		})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error:   "not_found",
			Message: appI18n.T(ctx, "ErrNotFound"),
		})
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "internal",
			Message: appI18n.T(ctx, "ErrInternal"),
		})
	}
}

func badRequest(w http.ResponseWriter, r *http.Request, details string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:   "bad_request",
		Message: appI18n.Td(r.Context(), "ErrBadRequest", map[string]any{"Details": details}),
	})
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.config.MaxUpload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			badRequest(w, r, "empty body")
			return false
		}
		badRequest(w, r, err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			badRequest(w, r, err.Error())
			return false
		}
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "validation",
			Message: appI18n.Td(r.Context(), "ErrBadRequest", map[string]any{"Details": "validation failed"}),
			Fields:  fields,
		})
		return false
	}
	return true
}

func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, r, "invalid "+name)
		return 0, false
	}
	return id, true
}

// examRequest is the body of exam create and update calls.
type examRequest struct {
	Title           string    `json:"title" validate:"required,max=200"`
	Subject         string    `json:"subject" validate:"max=100"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes" validate:"gte=0,lte=1440"`
}

func (req examRequest) input() exam.Input {
	return exam.Input{
		Title:           req.Title,
		Subject:         req.Subject,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.DurationMinutes,
	}
}

// bankRequest carries a full replacement bank.
type bankRequest struct {
	MC []model.MCQuestion `json:"mc" validate:"max=500"`
	OR []model.ORQuestion `json:"or" validate:"max=100"`
}

// submitRequest carries a student's answers keyed by question id.
type submitRequest struct {
	MC map[string]string `json:"mc" validate:"max=500,dive,max=16"`
	OR map[string]string `json:"or" validate:"max=100,dive,max=20000"`
}

// reviewRequest carries essay scores keyed by question id.
type reviewRequest struct {
	Scores map[string]float64 `json:"scores" validate:"required"`
}
