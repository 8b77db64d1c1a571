package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ImportRecord remembers one document imported into an exam.
type ImportRecord struct {
	ExamID     int64     `json:"exam_id"`
	SHA256     string    `json:"sha256"`
	Name       string    `json:"name"`
	NumMC      int       `json:"num_mc"`
	NumOR      int       `json:"num_or"`
	ImportedAt time.Time `json:"imported_at"`
}

// RecordImport stores the hash of an imported document. It returns false if
// the same document was already imported into the exam.
func (s *Store) RecordImport(ctx context.Context, r ImportRecord) (bool, error) {
	at := r.ImportedAt
	if at.IsZero() {
		at = s.now()
	}
	res, err := s.exec(ctx,
		`INSERT INTO imported_documents (exam_id, sha256, name, num_mc, num_or, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (exam_id, sha256) DO NOTHING`,
		r.ExamID, r.SHA256, r.Name, r.NumMC, r.NumOR, at.Unix(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetImport returns the import record for a document hash.
// Returns nil and no error if the document was never imported into the exam.
func (s *Store) GetImport(ctx context.Context, examID int64, sha string) (*ImportRecord, error) {
	var (
		r  ImportRecord
		at int64
	)
	err := s.queryRow(ctx,
		`SELECT exam_id, sha256, name, num_mc, num_or, imported_at
		 FROM imported_documents WHERE exam_id = ? AND sha256 = ?`, examID, sha,
	).Scan(&r.ExamID, &r.SHA256, &r.Name, &r.NumMC, &r.NumOR, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.ImportedAt = fromUnix(at)
	return &r, nil
}

// ListImports returns the documents imported into an exam, oldest first.
func (s *Store) ListImports(ctx context.Context, examID int64) ([]ImportRecord, error) {
	rows, err := s.query(ctx,
		`SELECT exam_id, sha256, name, num_mc, num_or, imported_at
		 FROM imported_documents WHERE exam_id = ? ORDER BY imported_at, sha256`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ImportRecord
	for rows.Next() {
		var (
			r  ImportRecord
			at int64
		)
		if err := rows.Scan(&r.ExamID, &r.SHA256, &r.Name, &r.NumMC, &r.NumOR, &at); err != nil {
			return nil, err
		}
		r.ImportedAt = fromUnix(at)
		out = append(out, r)
	}
	return out, rows.Err()
}
