// Package regrade recomputes the automatic scores of existing submissions
// after an exam's question bank changes.
package regrade

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/grading"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
)

// DefaultWorkers bounds how many submissions are updated at once.
const DefaultWorkers = 4

// Store is the storage the engine needs. UpdateAutoScore must set the auto
// score and recompute the total from the stored manual score in one atomic
// statement, so a concurrent review of the same record is never lost.
type Store interface {
	ListSubmissions(ctx context.Context, examID int64) ([]model.Submission, error)
	UpdateAutoScore(ctx context.Context, submissionID int64, auto, maxAuto float64) error
}

// Recorder receives one call per processed submission.
type Recorder interface {
	RegradeRecord(ok bool)
}

// Failure is one submission that could not be updated.
type Failure struct {
	SubmissionID int64  `json:"submission_id"`
	StudentID    int64  `json:"student_id"`
	Error        string `json:"error"`
}

// Report summarizes a regrade run.
type Report struct {
	ExamID    int64     `json:"exam_id"`
	Attempted int       `json:"attempted"`
	Updated   int       `json:"updated"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Partial reports whether some submissions were left with their old score.
func (r Report) Partial() bool {
	return r.Updated < r.Attempted
}

// Engine regrades submissions.
type Engine struct {
	store    Store
	workers  int
	recorder Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the number of submissions updated in parallel.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithRecorder reports each processed submission to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// New returns an engine over s.
func New(s Store, opts ...Option) *Engine {
	e := &Engine{store: s, workers: DefaultWorkers}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegradeAll grades every submission of examID against b using the answers
// each student originally stored, keeping their manual score. Each record is
// updated on its own: a failed record does not stop or undo the others.
//
// When some records fail the returned error wraps
// model.ErrRegradePartialFailure and the report lists the failures. The
// report is valid in that case too.
func (e *Engine) RegradeAll(ctx context.Context, examID int64, b model.Bank) (Report, error) {
	report := Report{ExamID: examID}

	subs, err := e.store.ListSubmissions(ctx, examID)
	if err != nil {
		return report, fmt.Errorf("listing submissions: %w", err)
	}
	report.Attempted = len(subs)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, sub := range subs {
		g.Go(func() error {
			res := grading.Grade(b, sub.MCAnswers, sub.ORAnswers)
			err := e.store.UpdateAutoScore(gctx, sub.ID, res.AutoScore, res.MaxAutoScore)

			mu.Lock()
			defer mu.Unlock()
			if e.recorder != nil {
				e.recorder.RegradeRecord(err == nil)
			}
			if err != nil {
				slog.Error("regrade submission failed",
					"exam_id", examID, "submission_id", sub.ID, "student_id", sub.StudentID, "error", err)
				report.Failures = append(report.Failures, Failure{
					SubmissionID: sub.ID,
					StudentID:    sub.StudentID,
					Error:        err.Error(),
				})
				return nil
			}
			report.Updated++
			slog.Debug("submission regraded",
				"exam_id", examID, "submission_id", sub.ID, "old_auto", sub.AutoScore, "new_auto", res.AutoScore)
			return nil
		})
	}
	_ = g.Wait()
	slices.SortFunc(report.Failures, func(x, y Failure) int {
		return cmp.Compare(x.SubmissionID, y.SubmissionID)
	})

	slog.Info("regrade finished",
		"exam_id", examID, "attempted", report.Attempted, "updated", report.Updated)
	if report.Partial() {
		return report, fmt.Errorf("exam %d: %d of %d submissions updated: %w",
			examID, report.Updated, report.Attempted, model.ErrRegradePartialFailure)
	}
	return report, nil
}
