// Package exam ties the engine together: authoring, document import,
// per-student presentation, submission, review and regrade, with the
// ownership and availability checks each of them needs.
package exam

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/extract"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/metrics"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/regrade"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/store"
)

type Service struct {
	store     *store.Store
	extractor *extract.Extractor
	regrader  *regrade.Engine
	metrics   *metrics.Metrics
	now       func() time.Time
	workers   int
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records engine events in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now for availability checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRegradeWorkers bounds parallel submission updates during a regrade.
func WithRegradeWorkers(n int) Option {
	return func(s *Service) { s.workers = n }
}

// WithExtractor replaces the default extractor.
func WithExtractor(x *extract.Extractor) Option {
	return func(s *Service) { s.extractor = x }
}

// New returns a service backed by st.
func New(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		extractor: extract.New(),
		now:       time.Now,
		workers:   regrade.DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.regrader = regrade.New(st, regrade.WithWorkers(s.workers), regrade.WithRecorder(s.metrics))
	return s
}

// Input is the editable part of an exam definition.
type Input struct {
	Title           string
	Subject         string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", model.ErrInvalidExam)
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return fmt.Errorf("%w: start and end time are required", model.ErrInvalidExam)
	}
	if in.EndTime.Before(in.StartTime) {
		return fmt.Errorf("%w: end time is before start time", model.ErrInvalidExam)
	}
	if in.DurationMinutes < 0 {
		return fmt.Errorf("%w: negative duration", model.ErrInvalidExam)
	}
	return nil
}

// CreateExam stores a new, empty exam owned by the acting teacher.
func (s *Service) CreateExam(ctx context.Context, actor *model.Actor, in Input) (model.ExamDefinition, error) {
	if err := requireAuthor(actor); err != nil {
		return model.ExamDefinition{}, err
	}
	if err := in.validate(); err != nil {
		return model.ExamDefinition{}, err
	}
	id, err := s.store.CreateExam(ctx, model.ExamDefinition{
		OwnerID:         actor.ID,
		Title:           strings.TrimSpace(in.Title),
		Subject:         strings.TrimSpace(in.Subject),
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		DurationMinutes: in.DurationMinutes,
	})
	if err != nil {
		return model.ExamDefinition{}, err
	}
	slog.Info("exam created", "exam_id", id, "owner_id", actor.ID)
	return s.store.GetExam(ctx, id)
}

// UpdateExam changes the definition of an exam nobody has submitted yet.
func (s *Service) UpdateExam(ctx context.Context, actor *model.Actor, examID int64, in Input) (model.ExamDefinition, error) {
	e, err := s.ownedExam(ctx, actor, examID)
	if err != nil {
		return e, err
	}
	if err := in.validate(); err != nil {
		return e, err
	}
	e.Title = strings.TrimSpace(in.Title)
	e.Subject = strings.TrimSpace(in.Subject)
	e.StartTime = in.StartTime
	e.EndTime = in.EndTime
	e.DurationMinutes = in.DurationMinutes
	if err := s.store.UpdateExam(ctx, e); err != nil {
		return e, err
	}
	return s.store.GetExam(ctx, examID)
}

// GetExam returns an exam with its bank, answer keys included.
func (s *Service) GetExam(ctx context.Context, actor *model.Actor, examID int64) (model.ExamDefinition, error) {
	return s.ownedExam(ctx, actor, examID)
}

// ListExams returns the acting teacher's exams, or all exams for an admin.
func (s *Service) ListExams(ctx context.Context, actor *model.Actor) ([]model.ExamDefinition, error) {
	if err := requireAuthor(actor); err != nil {
		return nil, err
	}
	owner := actor.ID
	if actor.Role == model.RoleAdmin {
		owner = 0
	}
	return s.store.ListExams(ctx, owner)
}

// HasSubmissions reports whether the exam's bank is locked.
func (s *Service) HasSubmissions(ctx context.Context, actor *model.Actor, examID int64) (bool, error) {
	if _, err := s.ownedExam(ctx, actor, examID); err != nil {
		return false, err
	}
	return s.store.HasSubmissions(ctx, examID)
}

// ownedExam loads an exam the actor may author.
func (s *Service) ownedExam(ctx context.Context, actor *model.Actor, examID int64) (model.ExamDefinition, error) {
	if err := requireAuthor(actor); err != nil {
		return model.ExamDefinition{}, err
	}
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return e, err
	}
	if actor.Role != model.RoleAdmin && e.OwnerID != actor.ID {
		return model.ExamDefinition{}, fmt.Errorf("exam %d: %w", examID, model.ErrForbidden)
	}
	return e, nil
}

func requireAuthor(actor *model.Actor) error {
	if actor == nil || (actor.Role != model.RoleTeacher && actor.Role != model.RoleAdmin) {
		return model.ErrForbidden
	}
	return nil
}

func requireStudent(actor *model.Actor) error {
	if actor == nil || actor.Role != model.RoleStudent {
		return model.ErrForbidden
	}
	return nil
}

func requireAdmin(actor *model.Actor) error {
	if actor == nil || actor.Role != model.RoleAdmin {
		return model.ErrForbidden
	}
	return nil
}
