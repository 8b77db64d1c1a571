package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
)

const examColumns = `id, owner_id, title, subject, start_time, end_time, duration_minutes, bank_json, bank_rev, created_at`

// unlocked is appended to statements that may only touch exams nobody has
// submitted to yet. The check and the write are one statement.
const unlocked = ` AND NOT EXISTS (SELECT 1 FROM submissions WHERE submissions.exam_id = exams.id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExam(row rowScanner) (model.ExamDefinition, error) {
	var (
		e                   model.ExamDefinition
		start, end, created int64
		bankJSON            string
	)
	if err := row.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Subject, &start, &end, &e.DurationMinutes, &bankJSON, &e.BankRev, &created); err != nil {
		return e, err
	}
	e.StartTime = fromUnix(start)
	e.EndTime = fromUnix(end)
	e.CreatedAt = fromUnix(created)
	if err := json.Unmarshal([]byte(bankJSON), &e.Bank); err != nil {
		return e, fmt.Errorf("decode bank of exam %d: %w", e.ID, err)
	}
	return e, nil
}

func encodeBank(b model.Bank) (string, error) {
	if b.MC == nil {
		b.MC = []model.MCQuestion{}
	}
	if b.OR == nil {
		b.OR = []model.ORQuestion{}
	}
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode bank: %w", err)
	}
	return string(data), nil
}

// CreateExam stores a new exam definition with its bank and returns its id.
func (s *Store) CreateExam(ctx context.Context, e model.ExamDefinition) (int64, error) {
	bankJSON, err := encodeBank(e.Bank)
	if err != nil {
		return 0, err
	}
	if e.DurationMinutes <= 0 {
		e.DurationMinutes = model.DefaultDurationMinutes
	}
	var id int64
	err = s.queryRow(ctx,
		`INSERT INTO exams (owner_id, title, subject, start_time, end_time, duration_minutes, bank_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		e.OwnerID, e.Title, e.Subject, unixOrZero(e.StartTime), unixOrZero(e.EndTime), e.DurationMinutes, bankJSON, s.now().Unix(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert exam: %w", err)
	}
	return id, nil
}

// GetExam returns the exam with its current bank.
func (s *Store) GetExam(ctx context.Context, id int64) (model.ExamDefinition, error) {
	e, err := scanExam(s.queryRow(ctx, `SELECT `+examColumns+` FROM exams WHERE id = ?`, id))
	if err != nil {
		return e, notFound(err, fmt.Sprintf("exam %d", id))
	}
	return e, nil
}

// ListExams returns the exams of ownerID, or every exam when ownerID is 0,
// newest first.
func (s *Store) ListExams(ctx context.Context, ownerID int64) ([]model.ExamDefinition, error) {
	query := `SELECT ` + examColumns + ` FROM exams`
	var args []any
	if ownerID != 0 {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY id DESC`
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exams []model.ExamDefinition
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// UpdateExam changes title, subject, window and duration. It refuses with
// model.ErrEditAfterSubmissionsExist once the exam has submissions.
func (s *Store) UpdateExam(ctx context.Context, e model.ExamDefinition) error {
	if e.DurationMinutes <= 0 {
		e.DurationMinutes = model.DefaultDurationMinutes
	}
	res, err := s.exec(ctx,
		`UPDATE exams SET title = ?, subject = ?, start_time = ?, end_time = ?, duration_minutes = ?
		 WHERE id = ?`+unlocked,
		e.Title, e.Subject, unixOrZero(e.StartTime), unixOrZero(e.EndTime), e.DurationMinutes, e.ID,
	)
	if err != nil {
		return fmt.Errorf("update exam %d: %w", e.ID, err)
	}
	return s.lockedOrMissing(ctx, e.ID, res)
}

// SaveBank replaces the bank of an exam that has no submissions yet. Once a
// submission exists it returns model.ErrEditAfterSubmissionsExist; edits must
// then go through ReplaceBank and a regrade.
func (s *Store) SaveBank(ctx context.Context, examID int64, b model.Bank) error {
	bankJSON, err := encodeBank(b)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	// With the exam row held, a submission either committed before the
	// check below or waits until the new bank is in place.
	if _, err := s.lockExam(ctx, tx, examID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE exams SET bank_json = ?, bank_rev = bank_rev + 1 WHERE id = ?`+unlocked),
		bankJSON, examID)
	if err != nil {
		return fmt.Errorf("save bank of exam %d: %w", examID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("exam %d: %w", examID, model.ErrEditAfterSubmissionsExist)
	}
	return tx.Commit()
}

// ReplaceBank stores b regardless of existing submissions. Callers must
// regrade the exam afterwards.
func (s *Store) ReplaceBank(ctx context.Context, examID int64, b model.Bank) error {
	bankJSON, err := encodeBank(b)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, `UPDATE exams SET bank_json = ?, bank_rev = bank_rev + 1 WHERE id = ?`, bankJSON, examID)
	if err != nil {
		return fmt.Errorf("replace bank of exam %d: %w", examID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("exam %d: %w", examID, model.ErrNotFound)
	}
	return nil
}

// GetBank returns the current bank of an exam.
func (s *Store) GetBank(ctx context.Context, examID int64) (model.Bank, error) {
	var bankJSON string
	err := s.queryRow(ctx, `SELECT bank_json FROM exams WHERE id = ?`, examID).Scan(&bankJSON)
	if err != nil {
		return model.Bank{}, notFound(err, fmt.Sprintf("exam %d", examID))
	}
	var b model.Bank
	if err := json.Unmarshal([]byte(bankJSON), &b); err != nil {
		return b, fmt.Errorf("decode bank of exam %d: %w", examID, err)
	}
	return b, nil
}

// HasSubmissions reports whether anyone has submitted the exam.
func (s *Store) HasSubmissions(ctx context.Context, examID int64) (bool, error) {
	var exists bool
	err := s.queryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM submissions WHERE exam_id = ?)`, examID,
	).Scan(&exists)
	return exists, err
}

// lockExam takes the write lock on an exam row for the rest of tx and
// returns its bank revision.
func (s *Store) lockExam(ctx context.Context, tx *sql.Tx, examID int64) (int64, error) {
	var rev int64
	err := tx.QueryRowContext(ctx, s.rebind(
		`UPDATE exams SET bank_rev = bank_rev WHERE id = ? RETURNING bank_rev`), examID,
	).Scan(&rev)
	if err != nil {
		return 0, notFound(err, fmt.Sprintf("exam %d", examID))
	}
	return rev, nil
}

// lockedOrMissing explains a guarded update that touched no row.
func (s *Store) lockedOrMissing(ctx context.Context, examID int64, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	if err := s.queryRow(ctx, `SELECT 1 FROM exams WHERE id = ?`, examID).Scan(&one); err != nil {
		return notFound(err, fmt.Sprintf("exam %d", examID))
	}
	return fmt.Errorf("exam %d: %w", examID, model.ErrEditAfterSubmissionsExist)
}
