package exam

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/bank"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/extract"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/metrics"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/regrade"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/store"
)

// GetBank returns the exam's current bank.
func (s *Service) GetBank(ctx context.Context, actor *model.Actor, examID int64) (model.Bank, error) {
	e, err := s.ownedExam(ctx, actor, examID)
	if err != nil {
		return model.Bank{}, err
	}
	return e.Bank, nil
}

// SaveBank replaces the exam's questions. Entries that carry an id keep it.
// The save is refused with model.ErrEditAfterSubmissionsExist once anyone
// has submitted; use Regrade then.
func (s *Service) SaveBank(ctx context.Context, actor *model.Actor, examID int64, mc []model.MCQuestion, or []model.ORQuestion) (model.Bank, error) {
	if _, err := s.ownedExam(ctx, actor, examID); err != nil {
		return model.Bank{}, err
	}
	b := bank.Build(mc, or)
	if err := bank.Validate(b); err != nil {
		return model.Bank{}, err
	}
	if err := s.store.SaveBank(ctx, examID, b); err != nil {
		return model.Bank{}, err
	}
	slog.Info("bank saved", "exam_id", examID, "mc", len(b.MC), "or", len(b.OR))
	return b, nil
}

// ImportResult describes one document import.
type ImportResult struct {
	SHA256    string            `json:"sha256"`
	Unchanged bool              `json:"unchanged"`
	NumMC     int               `json:"num_mc"`
	NumOR     int               `json:"num_or"`
	Warnings  []extract.Warning `json:"warnings"`
	Bank      model.Bank        `json:"bank"`
}

// Import runs the extractor over a plain-text document and replaces the
// exam's bank with the result. Importing a document identical to one already
// imported into the exam changes nothing and reports Unchanged.
func (s *Service) Import(ctx context.Context, actor *model.Actor, examID int64, name string, doc []byte) (ImportResult, error) {
	e, err := s.ownedExam(ctx, actor, examID)
	if err != nil {
		return ImportResult{}, err
	}
	sum := sha256.Sum256(doc)
	hash := hex.EncodeToString(sum[:])
	res := ImportResult{SHA256: hash, Warnings: []extract.Warning{}}

	prev, err := s.store.GetImport(ctx, examID, hash)
	if err != nil {
		return res, fmt.Errorf("check import: %w", err)
	}
	if prev != nil {
		slog.Info("document unchanged, skipping import", "exam_id", examID, "sha256", hash, "name", name)
		s.metrics.Extraction(metrics.ExtractionUnchanged, 0, 0)
		res.Unchanged = true
		res.Bank = e.Bank
		res.NumMC, res.NumOR = len(e.Bank.MC), len(e.Bank.OR)
		return res, nil
	}

	lines, err := extract.Lines(bytes.NewReader(doc))
	if err != nil {
		return res, fmt.Errorf("read document: %w", err)
	}
	out, err := s.extractor.Extract(lines)
	if err != nil {
		if errors.Is(err, model.ErrExtractionEmpty) {
			s.metrics.Extraction(metrics.ExtractionEmpty, 0, 0)
			slog.Info("no questions found in document", "exam_id", examID, "name", name, "lines", len(lines))
		}
		return res, err
	}
	res.Warnings = append(res.Warnings, out.Warnings...)
	if err := bank.Validate(out.Bank); err != nil {
		return res, err
	}
	if err := s.store.SaveBank(ctx, examID, out.Bank); err != nil {
		return res, err
	}
	if _, err := s.store.RecordImport(ctx, store.ImportRecord{
		ExamID: examID,
		SHA256: hash,
		Name:   name,
		NumMC:  len(out.Bank.MC),
		NumOR:  len(out.Bank.OR),
	}); err != nil {
		return res, fmt.Errorf("record import: %w", err)
	}

	s.metrics.Extraction(metrics.ExtractionOK, len(out.Bank.MC), len(out.Bank.OR))
	slog.Info("document imported",
		"exam_id", examID, "name", name, "mc", len(out.Bank.MC), "or", len(out.Bank.OR), "warnings", len(out.Warnings))
	res.Bank = out.Bank
	res.NumMC, res.NumOR = len(out.Bank.MC), len(out.Bank.OR)
	return res, nil
}

// Regrade replaces the exam's bank even though submissions exist and
// recomputes every submission's automatic score against it. Successful
// updates are kept when others fail; the error then wraps
// model.ErrRegradePartialFailure and the report is still returned.
func (s *Service) Regrade(ctx context.Context, actor *model.Actor, examID int64, mc []model.MCQuestion, or []model.ORQuestion) (regrade.Report, model.Bank, error) {
	if _, err := s.ownedExam(ctx, actor, examID); err != nil {
		return regrade.Report{ExamID: examID}, model.Bank{}, err
	}
	b := bank.Build(mc, or)
	if err := bank.Validate(b); err != nil {
		return regrade.Report{ExamID: examID}, model.Bank{}, err
	}
	return s.replaceAndRegrade(ctx, examID, b)
}

// RegradeBank is Regrade for callers that already hold a complete bank, such
// as the command line. No ownership check is made.
func (s *Service) RegradeBank(ctx context.Context, examID int64, b model.Bank) (regrade.Report, model.Bank, error) {
	b = bank.Build(b.MC, b.OR)
	if err := bank.Validate(b); err != nil {
		return regrade.Report{ExamID: examID}, model.Bank{}, err
	}
	return s.replaceAndRegrade(ctx, examID, b)
}

func (s *Service) replaceAndRegrade(ctx context.Context, examID int64, b model.Bank) (regrade.Report, model.Bank, error) {
	if err := s.store.ReplaceBank(ctx, examID, b); err != nil {
		return regrade.Report{ExamID: examID}, model.Bank{}, err
	}
	s.metrics.RegradeRun()
	report, err := s.regrader.RegradeAll(ctx, examID, b)
	return report, b, err
}
