package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/grading"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/metrics"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/present"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/store"
)

// openExam loads an exam a student may sit right now.
func (s *Service) openExam(ctx context.Context, examID int64) (model.ExamDefinition, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return e, err
	}
	if !e.OpenAt(s.now()) {
		return e, fmt.Errorf("exam %d: %w", examID, model.ErrExamNotOpen)
	}
	return e, nil
}

// Present returns the acting student's view of an exam. Reloading returns the
// same order. A student who already submitted gets
// model.ErrDuplicateSubmission.
func (s *Service) Present(ctx context.Context, actor *model.Actor, examID int64) (present.Presentation, error) {
	if err := requireStudent(actor); err != nil {
		return present.Presentation{}, err
	}
	e, err := s.openExam(ctx, examID)
	if err != nil {
		return present.Presentation{}, err
	}
	if _, err := s.store.GetSubmission(ctx, examID, actor.ID); err == nil {
		return present.Presentation{}, fmt.Errorf("student %d exam %d: %w", actor.ID, examID, model.ErrDuplicateSubmission)
	} else if !errors.Is(err, model.ErrNotFound) {
		return present.Presentation{}, err
	}
	return present.Build(actor.ID, examID, e.Bank), nil
}

// Answers is what a student submits, keyed by the ids from the presentation.
type Answers struct {
	MC map[string]string
	OR map[string]string
}

// Submit grades and stores the acting student's single attempt. A second
// submission, including one racing the first, fails with
// model.ErrDuplicateSubmission and the first one stands. The stored score is
// always computed against the bank that is current when the row is written.
func (s *Service) Submit(ctx context.Context, actor *model.Actor, examID int64, a Answers) (model.Submission, error) {
	if err := requireStudent(actor); err != nil {
		return model.Submission{}, err
	}
	var (
		res grading.Result
		id  int64
		err error
	)
	for attempt := 1; ; attempt++ {
		res, id, err = s.gradeAndStore(ctx, actor, examID, a)
		if !errors.Is(err, store.ErrBankChanged) || attempt == submitAttempts {
			break
		}
		slog.Info("bank replaced while grading, grading again", "exam_id", examID, "student_id", actor.ID)
	}
	if err != nil {
		switch {
		case errors.Is(err, model.ErrExamNotOpen):
			s.metrics.Submission(metrics.SubmissionClosed)
		case errors.Is(err, model.ErrDuplicateSubmission):
			s.metrics.Submission(metrics.SubmissionDuplicate)
			slog.Info("duplicate submission rejected", "exam_id", examID, "student_id", actor.ID)
		}
		return model.Submission{}, err
	}
	s.metrics.Submission(metrics.SubmissionAccepted)
	slog.Info("submission graded",
		"exam_id", examID, "student_id", actor.ID, "submission_id", id,
		"correct", res.Correct, "total", res.Total, "auto_score", res.AutoScore)
	return s.store.GetSubmission(ctx, examID, actor.ID)
}

// submitAttempts bounds how often Submit grades again after the bank was
// replaced underneath it.
const submitAttempts = 3

// gradeAndStore grades a against the exam's current bank and stores the
// result only if that bank is still current.
func (s *Service) gradeAndStore(ctx context.Context, actor *model.Actor, examID int64, a Answers) (grading.Result, int64, error) {
	e, err := s.openExam(ctx, examID)
	if err != nil {
		return grading.Result{}, 0, err
	}
	res := grading.Grade(e.Bank, a.MC, a.OR)
	id, err := s.store.InsertSubmission(ctx, model.Submission{
		ExamID:       examID,
		StudentID:    actor.ID,
		MCAnswers:    nonNil(a.MC),
		ORAnswers:    nonNil(a.OR),
		AutoScore:    res.AutoScore,
		MaxAutoScore: res.MaxAutoScore,
		TotalScore:   res.AutoScore,
		SubmittedAt:  s.now(),
	}, e.BankRev)
	return res, id, err
}

// Result returns the acting student's own submission.
func (s *Service) Result(ctx context.Context, actor *model.Actor, examID int64) (model.Submission, error) {
	if err := requireStudent(actor); err != nil {
		return model.Submission{}, err
	}
	return s.store.GetSubmission(ctx, examID, actor.ID)
}

// ListSubmissions returns every submission to an exam the actor authors.
func (s *Service) ListSubmissions(ctx context.Context, actor *model.Actor, examID int64) ([]model.Submission, error) {
	if _, err := s.ownedExam(ctx, actor, examID); err != nil {
		return nil, err
	}
	return s.store.ListSubmissions(ctx, examID)
}

// Review stores a reviewer's per-question essay scores for one student.
// Scores for unknown questions are dropped and negative scores count as zero;
// the manual score is their sum and the total is recomputed from it.
func (s *Service) Review(ctx context.Context, actor *model.Actor, examID, studentID int64, scores map[string]float64) (model.Submission, error) {
	e, err := s.ownedExam(ctx, actor, examID)
	if err != nil {
		return model.Submission{}, err
	}
	clamped := grading.ClampScores(e.Bank, scores)
	manual := grading.ManualScore(clamped)
	if err := s.store.UpdateReview(ctx, examID, studentID, clamped, manual); err != nil {
		return model.Submission{}, err
	}
	slog.Info("essays reviewed", "exam_id", examID, "student_id", studentID, "reviewer_id", actor.ID, "manual_score", manual)
	return s.store.GetSubmission(ctx, examID, studentID)
}

// Reset deletes a student's submission so they may sit the exam again. Only
// administrators may reset.
func (s *Service) Reset(ctx context.Context, actor *model.Actor, examID, studentID int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.store.DeleteSubmission(ctx, examID, studentID); err != nil {
		return err
	}
	slog.Warn("submission reset", "exam_id", examID, "student_id", studentID, "admin_id", actor.ID)
	return nil
}

// Export returns the results of an exam for reporting.
func (s *Service) Export(ctx context.Context, actor *model.Actor, examID int64) (model.ExamExport, error) {
	if _, err := s.ownedExam(ctx, actor, examID); err != nil {
		return model.ExamExport{}, err
	}
	return s.store.ExportExam(ctx, examID)
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
