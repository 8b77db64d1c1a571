package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
)

const submissionColumns = `id, exam_id, student_id, mc_answers_json, or_answers_json, or_scores_json,
	auto_score, max_auto_score, manual_score, total_score, submitted_at, reviewed_at`

func scanSubmission(row rowScanner) (model.Submission, error) {
	var (
		sub                       model.Submission
		mcJSON, orJSON, scoreJSON string
		submitted                 int64
		reviewed                  sql.NullInt64
	)
	err := row.Scan(&sub.ID, &sub.ExamID, &sub.StudentID, &mcJSON, &orJSON, &scoreJSON,
		&sub.AutoScore, &sub.MaxAutoScore, &sub.ManualScore, &sub.TotalScore, &submitted, &reviewed)
	if err != nil {
		return sub, err
	}
	sub.SubmittedAt = fromUnix(submitted)
	if reviewed.Valid {
		t := fromUnix(reviewed.Int64)
		sub.ReviewedAt = &t
	}
	if err := json.Unmarshal([]byte(mcJSON), &sub.MCAnswers); err != nil {
		return sub, fmt.Errorf("decode answers of submission %d: %w", sub.ID, err)
	}
	if err := json.Unmarshal([]byte(orJSON), &sub.ORAnswers); err != nil {
		return sub, fmt.Errorf("decode essays of submission %d: %w", sub.ID, err)
	}
	if err := json.Unmarshal([]byte(scoreJSON), &sub.ORScores); err != nil {
		return sub, fmt.Errorf("decode essay scores of submission %d: %w", sub.ID, err)
	}
	return sub, nil
}

func encodeJSON[T any](m map[string]T) (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ErrBankChanged means the exam's bank was replaced after the submission was
// graded. The caller grades again against the current bank.
var ErrBankChanged = errors.New("bank changed since grading")

// InsertSubmission stores the first and only submission of a student for an
// exam and returns its id. bankRev is the revision of the bank the submission
// was graded against; if the bank has moved on, nothing is stored and
// ErrBankChanged is returned. A second insert for the same pair, including
// one racing the first, fails with model.ErrDuplicateSubmission and leaves the
// stored record untouched.
func (s *Store) InsertSubmission(ctx context.Context, sub model.Submission, bankRev int64) (int64, error) {
	mcJSON, err := encodeJSON(sub.MCAnswers)
	if err != nil {
		return 0, fmt.Errorf("encode answers: %w", err)
	}
	orJSON, err := encodeJSON(sub.ORAnswers)
	if err != nil {
		return 0, fmt.Errorf("encode essays: %w", err)
	}
	submitted := sub.SubmittedAt
	if submitted.IsZero() {
		submitted = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	// A bank replacement waits for this transaction, so a regrade that
	// starts after the check below lists the new row.
	rev, err := s.lockExam(ctx, tx, sub.ExamID)
	if err != nil {
		return 0, err
	}
	if rev != bankRev {
		return 0, fmt.Errorf("exam %d at revision %d, graded against %d: %w", sub.ExamID, rev, bankRev, ErrBankChanged)
	}

	var id int64
	err = tx.QueryRowContext(ctx, s.rebind(
		`INSERT INTO submissions (exam_id, student_id, mc_answers_json, or_answers_json, or_scores_json,
			auto_score, max_auto_score, manual_score, total_score, submitted_at)
		 VALUES (?, ?, ?, ?, '{}', ?, ?, 0, ?, ?)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id`),
		sub.ExamID, sub.StudentID, mcJSON, orJSON,
		sub.AutoScore, sub.MaxAutoScore, sub.AutoScore, submitted.Unix(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("student %d exam %d: %w", sub.StudentID, sub.ExamID, model.ErrDuplicateSubmission)
	}
	if err != nil {
		return 0, fmt.Errorf("insert submission: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit submission: %w", err)
	}
	return id, nil
}

// GetSubmission returns the submission of studentID for examID.
func (s *Store) GetSubmission(ctx context.Context, examID, studentID int64) (model.Submission, error) {
	sub, err := scanSubmission(s.queryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE exam_id = ? AND student_id = ?`,
		examID, studentID,
	))
	if err != nil {
		return sub, notFound(err, fmt.Sprintf("submission of student %d for exam %d", studentID, examID))
	}
	return sub, nil
}

// ListSubmissions returns every submission of an exam in submission order.
func (s *Store) ListSubmissions(ctx context.Context, examID int64) ([]model.Submission, error) {
	rows, err := s.query(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE exam_id = ? ORDER BY id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// CountSubmissions returns how many students submitted the exam.
func (s *Store) CountSubmissions(ctx context.Context, examID int64) (int, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM submissions WHERE exam_id = ?`, examID).Scan(&n)
	return n, err
}

// UpdateAutoScore sets the automatic score of a submission and recomputes its
// total from the manual score stored at that moment. Both happen in a single
// statement so a concurrent review is never overwritten.
func (s *Store) UpdateAutoScore(ctx context.Context, submissionID int64, auto, maxAuto float64) error {
	res, err := s.exec(ctx,
		`UPDATE submissions SET auto_score = ?, max_auto_score = ?, total_score = ? + manual_score
		 WHERE id = ?`,
		auto, maxAuto, auto, submissionID,
	)
	if err != nil {
		return fmt.Errorf("update submission %d: %w", submissionID, err)
	}
	return affectedOne(res, fmt.Sprintf("submission %d", submissionID))
}

// UpdateReview stores per-question essay scores and their sum as the manual
// score, recomputing the total from the auto score stored at that moment.
func (s *Store) UpdateReview(ctx context.Context, examID, studentID int64, scores map[string]float64, manual float64) error {
	scoreJSON, err := encodeJSON(scores)
	if err != nil {
		return fmt.Errorf("encode essay scores: %w", err)
	}
	res, err := s.exec(ctx,
		`UPDATE submissions SET or_scores_json = ?, manual_score = ?, total_score = auto_score + ?, reviewed_at = ?
		 WHERE exam_id = ? AND student_id = ?`,
		scoreJSON, manual, manual, s.now().Unix(), examID, studentID,
	)
	if err != nil {
		return fmt.Errorf("review submission: %w", err)
	}
	return affectedOne(res, fmt.Sprintf("submission of student %d for exam %d", studentID, examID))
}

// DeleteSubmission removes a submission so the student may sit the exam again.
func (s *Store) DeleteSubmission(ctx context.Context, examID, studentID int64) error {
	res, err := s.exec(ctx, `DELETE FROM submissions WHERE exam_id = ? AND student_id = ?`, examID, studentID)
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	return affectedOne(res, fmt.Sprintf("submission of student %d for exam %d", studentID, examID))
}

func affectedOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return nil
}
