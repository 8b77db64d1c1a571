package exam

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/store"
)

var (
	teacher      = &model.Actor{ID: 1, Role: model.RoleTeacher}
	otherTeacher = &model.Actor{ID: 2, Role: model.RoleTeacher}
	admin        = &model.Actor{ID: 3, Role: model.RoleAdmin}
	student      = &model.Actor{ID: 100, Role: model.RoleStudent}
	student2     = &model.Actor{ID: 101, Role: model.RoleStudent}
)

var (
	examStart  = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	examEnd    = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	duringExam = examStart.Add(30 * time.Minute)
)

const document = `UJIAN MATEMATIKA
1. What is 2+2? (Jawaban: B)
A. 3
B. 4
C. 5
2. What is 3+3? (Jawaban: A)
A. 6
B. 7
3. Explain addition. (Poin: 20)
`

func newTestService(t *testing.T, now time.Time) *Service {
	t.Helper()
	st, err := store.Open(context.Background(), store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, WithClock(func() time.Time { return now }))
}

func createExam(t *testing.T, s *Service) int64 {
	t.Helper()
	e, err := s.CreateExam(context.Background(), teacher, Input{
		Title: "Ujian Matematika", Subject: "Matematika", StartTime: examStart, EndTime: examEnd,
	})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	return e.ID
}

func importedExam(t *testing.T, s *Service) (int64, model.Bank) {
	t.Helper()
	id := createExam(t, s)
	res, err := s.Import(context.Background(), teacher, id, "soal.txt", []byte(document))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	return id, res.Bank
}

func TestCreateExamValidation(t *testing.T) {
	s := newTestService(t, duringExam)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor *model.Actor
		in    Input
		want  error
	}{
		{"student cannot author", student, Input{Title: "x", StartTime: examStart, EndTime: examEnd}, model.ErrForbidden},
		{"no actor", nil, Input{Title: "x", StartTime: examStart, EndTime: examEnd}, model.ErrForbidden},
		{"missing title", teacher, Input{Title: "  ", StartTime: examStart, EndTime: examEnd}, model.ErrInvalidExam},
		{"end before start", teacher, Input{Title: "x", StartTime: examEnd, EndTime: examStart}, model.ErrInvalidExam},
		{"missing window", teacher, Input{Title: "x"}, model.ErrInvalidExam},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateExam(ctx, tt.actor, tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	e, err := s.CreateExam(ctx, teacher, Input{Title: "Ujian", StartTime: examStart, EndTime: examEnd})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	if e.DurationMinutes != model.DefaultDurationMinutes || e.OwnerID != teacher.ID {
		t.Errorf("unexpected exam %+v", e)
	}
}

func TestOwnership(t *testing.T) {
	s := newTestService(t, duringExam)
	ctx := context.Background()
	id := createExam(t, s)

	if _, err := s.GetExam(ctx, otherTeacher, id); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("other teacher: expected ErrForbidden, got %v", err)
	}
	if _, err := s.GetExam(ctx, admin, id); err != nil {
		t.Errorf("admin: %v", err)
	}
	if _, err := s.GetExam(ctx, teacher, 9999); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	mine, err := s.ListExams(ctx, teacher)
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	theirs, _ := s.ListExams(ctx, otherTeacher)
	all, _ := s.ListExams(ctx, admin)
	if len(mine) != 1 || len(theirs) != 0 || len(all) != 1 {
		t.Errorf("mine=%d theirs=%d all=%d", len(mine), len(theirs), len(all))
	}
}

func TestImport(t *testing.T) {
	s := newTestService(t, duringExam)
	ctx := context.Background()
	id := createExam(t, s)

	res, err := s.Import(ctx, teacher, id, "soal.txt", []byte(document))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Unchanged || res.NumMC != 2 || res.NumOR != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != "stray_line" {
		t.Errorf("warnings = %+v", res.Warnings)
	}
	b, err := s.GetBank(ctx, teacher, id)
	if err != nil {
		t.Fatalf("GetBank: %v", err)
	}
	if len(b.MC) != 2 || b.MC[0].CorrectLabel != "B" || b.OR[0].Weight != 20 {
		t.Errorf("bank = %+v", b)
	}

	again, err := s.Import(ctx, teacher, id, "copy.txt", []byte(document))
	if err != nil {
		t.Fatalf("Import again: %v", err)
	}
	if !again.Unchanged {
		t.Error("expected identical document to be skipped")
	}
	if again.Bank.MC[0].ID != b.MC[0].ID {
		t.Error("skipped import should report the stored bank")
	}

	_, err = s.Import(ctx, teacher, id, "notes.txt", []byte("Catatan rapat\nTidak ada soal"))
	if !errors.Is(err, model.ErrExtractionEmpty) {
		t.Errorf("expected ErrExtractionEmpty, got %v", err)
	}

	_, err = s.Import(ctx, teacher, id, "bad.txt", []byte("1. Only one option (Jawaban: A)\nA. x\n"))
	if !errors.Is(err, model.ErrInvalidBank) {
		t.Errorf("expected ErrInvalidBank, got %v", err)
	}

	if _, err := s.Import(ctx, otherTeacher, id, "soal.txt", []byte(document)); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestSaveBankLockedAfterSubmission(t *testing.T) {
	s := newTestService(t, duringExam)
	ctx := context.Background()
	id, b := importedExam(t, s)

	b.MC[0].CorrectLabel = "C"
	if _, err := s.SaveBank(ctx, teacher, id, b.MC, b.OR); err != nil {
		t.Fatalf("SaveBank before submissions: %v", err)
	}
	if _, err := s.Submit(ctx, student, id, Answers{MC: map[string]string{b.MC[0].ID: "B"}}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	locked, err := s.HasSubmissions(ctx, teacher, id)
	if err != nil || !locked {
		t.Fatalf("HasSubmissions = %v, %v", locked, err)
	}
	if _, err := s.SaveBank(ctx, teacher, id, b.MC, b.OR); !errors.Is(err, model.ErrEditAfterSubmissionsExist) {
		t.Errorf("expected ErrEditAfterSubmissionsExist, got %v", err)
	}
	if _, err := s.UpdateExam(ctx, teacher, id, Input{Title: "New", StartTime: examStart, EndTime: examEnd}); !errors.Is(err, model.ErrEditAfterSubmissionsExist) {
		t.Errorf("expected UpdateExam to be locked, got %v", err)
	}

	negative := []model.ORQuestion{{Prompt: "x", Weight: -1}}
	if _, err := s.SaveBank(ctx, teacher, id, nil, negative); !errors.Is(err, model.ErrInvalidBank) {
		t.Errorf("expected ErrInvalidBank before the lock check, got %v", err)
	}
}

func TestPresent(t *testing.T) {
	s := newTestService(t, duringExam)
	ctx := context.Background()
	id, b := importedExam(t, s)

	p1, err := s.Present(ctx, student, id)
	if err != nil {
		t.Fatalf("Present: %v", err)
	}
	p2, _ := s.Present(ctx, student, id)
	for i := range p1.MC {
		if p1.MC[i].ID != p2.MC[i].ID {
			t.Fatal("presentation order changed between calls")
		}
	}
	if len(p1.MC) != len(b.MC) || len(p1.OR) != len(b.OR) {
		t.Errorf("presentation sizes %d/%d", len(p1.MC), len(p1.OR))
	}

	if _, err := s.Present(ctx, teacher, id); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("expected ErrForbidden for teacher, got %v", err)
	}

	if _, err := s.Submit(ctx, student, id, Answers{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := s.Present(ctx, student, id); !errors.Is(err, model.ErrDuplicateSubmission) {
		t.Errorf("expected ErrDuplicateSubmission after submitting, got %v", err)
	}
}

func TestAvailabilityWindow(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		open bool
	}{
		{"before start", examStart.Add(-time.Minute), false},
		{"at start", examStart, true},
		{"during", duringExam, true},
		{"at end", examEnd, true},
		{"after end", examEnd.Add(time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t, tt.now)
			id, _ := importedExam(t, s)
			_, err := s.Present(context.Background(), student, id)
			if tt.open && err != nil {
				t.Errorf("Present: %v", err)
			}
			if !tt.open && !errors.Is(err, model.ErrExamNotOpen) {
				t.Errorf("expected ErrExamNotOpen, got %v", err)
			}
			_, err = s.Submit(context.Background(), student, id, Answers{})
			if !tt.open && !errors.Is(err, model.ErrExamNotOpen) {
				t.Errorf("Submit: expected ErrExamNotOpen, got %v", err)
			}
		})
	}
}

func TestSubmitOnce(t *testing.T) {
	s := newTestService(t, duringExam)
	ctx := context.Background()
	id, b := importedExam(t, s)

	answers := Answers{
		MC: map[string]string{b.MC[0].ID: "b", b.MC[1].ID: "B"},
		OR: map[string]string{b.OR[0].ID: "Adding puts numbers together."},
	}
	sub, err := s.Submit(ctx, student, id, answers)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// One of two correct, 80 points left after the 20-point essay.
	if sub.AutoScore != 40 || sub.MaxAutoScore != 80 || sub.TotalScore != 40 {
		t.Errorf("scores auto=%v max=%v total=%v", sub.AutoScore, sub.MaxAutoScore, sub.TotalScore)
	}

	allCorrect := Answers{MC: map[string]string{b.MC[0].ID: "B", b.MC[1].ID: "A"}}
	if _, err := s.Submit(ctx, student, id, allCorrect); !errors.Is(err, model.ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}
	subs, err := s.ListSubmissions(ctx, teacher, id)
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(subs) != 1 || subs[0].AutoScore != 40 {
		t.Errorf("expected the first submission to stand, got %+v", subs)
	}

	got, err := s.Result(ctx, student, id)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if got.ORAnswers[b.OR[0].ID] != "Adding puts numbers together." {
		t.Errorf("essay answer not stored verbatim: %q", got.ORAnswers[b.OR[0].ID])
	}
	if _, err := s.Result(ctx, student2, id); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for a student who did not submit, got %v", err)
	}
}

func TestReviewAndReset(t *testing.T) {
	s := newTestService(t, duringExam)
	ctx := context.Background()
	id, b := importedExam(t, s)
	if _, err := s.Submit(ctx, student, id, Answers{MC: map[string]string{b.MC[0].ID: "B"}}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	sub, err := s.Review(ctx, teacher, id, student.ID, map[string]float64{b.OR[0].ID: 15, "unknown": 50})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if sub.ManualScore != 15 || sub.TotalScore != 55 {
		t.Errorf("manual=%v total=%v, want 15 and 55", sub.ManualScore, sub.TotalScore)
	}
	if _, ok := sub.ORScores["unknown"]; ok {
		t.Error("score for unknown question was stored")
	}

	sub, err = s.Review(ctx, teacher, id, student.ID, map[string]float64{b.OR[0].ID: -5})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if sub.ManualScore != 0 || sub.TotalScore != 40 {
		t.Errorf("negative score not clamped: manual=%v total=%v", sub.ManualScore, sub.TotalScore)
	}

	if _, err := s.Review(ctx, otherTeacher, id, student.ID, nil); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	if err := s.Reset(ctx, teacher, id, student.ID); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("teacher reset: expected ErrForbidden, got %v", err)
	}
	if err := s.Reset(ctx, admin, id, student.ID); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := s.Submit(ctx, student, id, Answers{}); err != nil {
		t.Errorf("fresh attempt after reset: %v", err)
	}
}

func TestRegradeKeyCorrection(t *testing.T) {
	s := newTestService(t, duringExam)
	ctx := context.Background()
	id, b := importedExam(t, s)

	// The student answers A to question 1, which is keyed B.
	answers := Answers{MC: map[string]string{b.MC[0].ID: "A", b.MC[1].ID: "A"}}
	before, err := s.Submit(ctx, student, id, answers)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := s.Review(ctx, teacher, id, student.ID, map[string]float64{b.OR[0].ID: 10}); err != nil {
		t.Fatalf("Review: %v", err)
	}

	b.MC[0].CorrectLabel = "A"
	report, newBank, err := s.Regrade(ctx, teacher, id, b.MC, b.OR)
	if err != nil {
		t.Fatalf("Regrade: %v", err)
	}
	if report.Attempted != 1 || report.Updated != 1 {
		t.Errorf("report = %+v", report)
	}
	if newBank.MC[0].ID != b.MC[0].ID {
		t.Error("regrade reassigned a kept id")
	}

	after, _ := s.Result(ctx, student, id)
	perQuestion := before.MaxAutoScore / 2
	if after.AutoScore != before.AutoScore+perQuestion {
		t.Errorf("auto %v -> %v, want +%v", before.AutoScore, after.AutoScore, perQuestion)
	}
	if after.ManualScore != 10 || after.TotalScore != after.AutoScore+10 {
		t.Errorf("manual=%v total=%v", after.ManualScore, after.TotalScore)
	}
}

func TestRegradeRemovedQuestion(t *testing.T) {
	s := newTestService(t, duringExam)
	ctx := context.Background()
	id, b := importedExam(t, s)

	// Right on question 1, wrong on question 2.
	if _, err := s.Submit(ctx, student, id, Answers{MC: map[string]string{b.MC[0].ID: "B", b.MC[1].ID: "B"}}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, _, err := s.Regrade(ctx, teacher, id, b.MC[:1], b.OR); err != nil {
		t.Fatalf("Regrade: %v", err)
	}
	after, _ := s.Result(ctx, student, id)
	if after.AutoScore != 80 {
		t.Errorf("AutoScore = %v, want 80", after.AutoScore)
	}
}

func TestSubmitDuringRegrade(t *testing.T) {
	st, err := store.Open(context.Background(), store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	// The key of question 1 is corrected from B to A while the student's
	// answers are being graded against the old bank.
	var (
		s         *Service
		id        int64
		fixed     []model.MCQuestion
		fixedOR   []model.ORQuestion
		corrected bool
	)
	s = New(st, WithClock(func() time.Time {
		if fixed != nil && !corrected {
			corrected = true
			if _, _, err := s.Regrade(ctx, teacher, id, fixed, fixedOR); err != nil {
				t.Errorf("Regrade: %v", err)
			}
		}
		return duringExam
	}))
	id, b := importedExam(t, s)
	before, err := s.GetExam(ctx, teacher, id)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	fixed = append([]model.MCQuestion(nil), b.MC...)
	fixed[0].CorrectLabel = "A"
	fixedOR = b.OR

	sub, err := s.Submit(ctx, student, id, Answers{MC: map[string]string{b.MC[0].ID: "A", b.MC[1].ID: "A"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !corrected {
		t.Fatal("bank was not replaced during the submission")
	}
	if sub.AutoScore != 80 {
		t.Errorf("AutoScore = %v, want 80 against the corrected key", sub.AutoScore)
	}

	after, err := s.GetExam(ctx, teacher, id)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if after.Bank.MC[0].CorrectLabel != "A" {
		t.Errorf("stored key = %q, want A", after.Bank.MC[0].CorrectLabel)
	}
	if after.BankRev <= before.BankRev {
		t.Errorf("bank revision %d -> %d, want it to move", before.BankRev, after.BankRev)
	}
	subs, err := s.ListSubmissions(ctx, teacher, id)
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(subs) != 1 || subs[0].AutoScore != 80 {
		t.Errorf("submissions = %+v", subs)
	}
}

func TestRegradeRejectsInvalidBank(t *testing.T) {
	s := newTestService(t, duringExam)
	ctx := context.Background()
	id, b := importedExam(t, s)

	b.MC[0].Options = map[string]model.Option{"A": {Text: "only"}}
	_, _, err := s.Regrade(ctx, teacher, id, b.MC, b.OR)
	if !errors.Is(err, model.ErrInvalidBank) {
		t.Fatalf("expected ErrInvalidBank, got %v", err)
	}
	if !strings.Contains(err.Error(), "at least 2 options") {
		t.Errorf("error should name the problem: %v", err)
	}
	stored, _ := s.GetBank(ctx, teacher, id)
	if len(stored.MC[0].Options) != 3 {
		t.Error("invalid bank was stored")
	}
}

func TestExport(t *testing.T) {
	s := newTestService(t, duringExam)
	ctx := context.Background()
	id, b := importedExam(t, s)
	if _, err := s.Submit(ctx, student, id, Answers{MC: map[string]string{b.MC[0].ID: "B"}}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	out, err := s.Export(ctx, teacher, id)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(out.Results) != 1 || out.Results[0].MCCorrect != 1 {
		t.Errorf("export = %+v", out)
	}
	if _, err := s.Export(ctx, student, id); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}
