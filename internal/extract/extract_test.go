package extract

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
)

func newTestExtractor() *Extractor {
	n := 0
	return New(WithIDFunc(func() string {
		n++
		return fmt.Sprintf("q%d", n)
	}))
}

func hasWarning(ws []Warning, code string) bool {
	for _, w := range ws {
		if w.Code == code {
			return true
		}
	}
	return false
}

func TestExtractMultipleChoice(t *testing.T) {
	x := newTestExtractor()
	res, err := x.Extract([]string{"1. What is 2+2? (Jawaban: B)", "A. 3", "B. 4", "C. 5"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Bank.MC) != 1 || len(res.Bank.OR) != 0 {
		t.Fatalf("expected 1 MC and 0 OR, got %d and %d", len(res.Bank.MC), len(res.Bank.OR))
	}
	q := res.Bank.MC[0]
	if q.Prompt != "What is 2+2?" {
		t.Errorf("prompt = %q", q.Prompt)
	}
	if q.CorrectLabel != "B" {
		t.Errorf("key = %q, want B", q.CorrectLabel)
	}
	want := map[string]string{"A": "3", "B": "4", "C": "5"}
	if len(q.Options) != len(want) {
		t.Fatalf("expected %d options, got %d", len(want), len(q.Options))
	}
	for l, text := range want {
		if q.Options[l].Text != text {
			t.Errorf("option %s = %q, want %q", l, q.Options[l].Text, text)
		}
	}
	if q.ID == "" {
		t.Error("expected a generated id")
	}
	if len(res.Warnings) != 0 {
		t.Errorf("expected no warnings, got %+v", res.Warnings)
	}
}

func TestExtractEssayWeight(t *testing.T) {
	x := newTestExtractor()
	res, err := x.Extract([]string{"1. Explain gravity. (Poin: 20)"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Bank.MC) != 0 {
		t.Fatalf("expected no MC questions, got %d", len(res.Bank.MC))
	}
	if len(res.Bank.OR) != 1 {
		t.Fatalf("expected 1 OR question, got %d", len(res.Bank.OR))
	}
	q := res.Bank.OR[0]
	if q.Weight != 20 {
		t.Errorf("weight = %v, want 20", q.Weight)
	}
	if q.Prompt != "Explain gravity." {
		t.Errorf("prompt = %q", q.Prompt)
	}
}

func TestExtractLaterWeightConvertsToEssay(t *testing.T) {
	x := newTestExtractor()
	res, err := x.Extract([]string{
		"1. Describe the water cycle",
		"A. evaporation",
		"B. condensation",
		"in your own words (Bobot: 15)",
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Bank.MC) != 0 || len(res.Bank.OR) != 1 {
		t.Fatalf("expected 0 MC and 1 OR, got %d and %d", len(res.Bank.MC), len(res.Bank.OR))
	}
	q := res.Bank.OR[0]
	if q.Weight != 15 {
		t.Errorf("weight = %v, want 15", q.Weight)
	}
	if q.Prompt != "Describe the water cycle in your own words" {
		t.Errorf("prompt = %q", q.Prompt)
	}
}

func TestExtractMultiLineTextAndLateKey(t *testing.T) {
	x := newTestExtractor()
	res, err := x.Extract([]string{
		"3. Which planet",
		"is the largest?",
		"A. Mars",
		"B. Jupiter, the",
		"gas giant",
		"C. Venus",
		"(Kunci: b)",
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	q := res.Bank.MC[0]
	if q.Prompt != "Which planet is the largest?" {
		t.Errorf("prompt = %q", q.Prompt)
	}
	if got := q.Options["B"].Text; got != "Jupiter, the gas giant" {
		t.Errorf("option B = %q", got)
	}
	if q.CorrectLabel != "B" {
		t.Errorf("key = %q, want B", q.CorrectLabel)
	}
}

func TestExtractDefaultsKey(t *testing.T) {
	x := newTestExtractor()
	res, err := x.Extract([]string{"1. Pick one", "A. x", "B. y"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Bank.MC[0].CorrectLabel != DefaultKey {
		t.Errorf("key = %q, want %q", res.Bank.MC[0].CorrectLabel, DefaultKey)
	}
	if !hasWarning(res.Warnings, WarnKeyDefaulted) {
		t.Errorf("expected %s warning, got %+v", WarnKeyDefaulted, res.Warnings)
	}
}

func TestExtractPreservesOrder(t *testing.T) {
	x := newTestExtractor()
	res, err := x.Extract([]string{
		"UJIAN AKHIR SEMESTER",
		"1. First (Jawaban: A)",
		"A. a1",
		"B. b1",
		"2. Essay one (Poin: 10)",
		"3. Second (Jawaban: C)",
		"A. a",
		"B. b",
		"C. c",
		"4. Essay two (Poin: 5)",
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got := []string{res.Bank.MC[0].Prompt, res.Bank.MC[1].Prompt}; got[0] != "First" || got[1] != "Second" {
		t.Errorf("MC order = %v", got)
	}
	if got := []string{res.Bank.OR[0].Prompt, res.Bank.OR[1].Prompt}; got[0] != "Essay one" || got[1] != "Essay two" {
		t.Errorf("OR order = %v", got)
	}
	if !hasWarning(res.Warnings, WarnStrayLine) {
		t.Errorf("expected stray line warning for the title, got %+v", res.Warnings)
	}

	seen := map[string]bool{}
	for _, q := range res.Bank.MC {
		seen[q.ID] = true
	}
	for _, q := range res.Bank.OR {
		seen[q.ID] = true
	}
	if len(seen) != 4 {
		t.Errorf("expected 4 distinct ids, got %d", len(seen))
	}
}

func TestExtractWarnings(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		code  string
	}{
		{"key names a missing option", []string{"1. Q (Jawaban: D)", "A. x", "B. y"}, WarnKeyNotAnOption},
		{"single option", []string{"1. Q (Jawaban: A)", "A. x"}, WarnTooFewOptions},
		{"key on essay", []string{"1. Q (Poin: 10)", "(Jawaban: B)"}, WarnKeyIgnored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newTestExtractor().Extract(tt.lines)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if !hasWarning(res.Warnings, tt.code) {
				t.Errorf("expected %s, got %+v", tt.code, res.Warnings)
			}
		})
	}
}

func TestExtractEmpty(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{"nil", nil},
		{"no numbered lines", []string{"Some heading", "A. orphan option"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestExtractor().Extract(tt.lines)
			if !errors.Is(err, model.ErrExtractionEmpty) {
				t.Errorf("expected ErrExtractionEmpty, got %v", err)
			}
		})
	}
}

func TestTakeTags(t *testing.T) {
	tests := []struct {
		in         string
		wantText   string
		wantKey    string
		wantWeight int
	}{
		{"plain text", "plain text", "", -1},
		{"Q (Jawaban: c)", "Q", "C", -1},
		{"Q [Poin: 0]", "Q", "", 0},
		{"Q (answer: A) more (weight: 7)", "Q more", "A", 7},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			text, key, weight := takeTags(tt.in)
			if text != tt.wantText || key != tt.wantKey || weight != tt.wantWeight {
				t.Errorf("takeTags(%q) = (%q, %q, %d), want (%q, %q, %d)",
					tt.in, text, key, weight, tt.wantText, tt.wantKey, tt.wantWeight)
			}
		})
	}
}

func TestLines(t *testing.T) {
	in := "\ufeff1. First\r\n\n   A. one  \n\t\nB. two"
	got, err := Lines(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	want := []string{"1. First", "A. one", "B. two"}
	if len(got) != len(want) {
		t.Fatalf("Lines = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLinesTooLong(t *testing.T) {
	in := "1. First\nA. " + strings.Repeat("x", maxLineBytes+10) + "\n"
	_, err := Lines(strings.NewReader(in))
	if !errors.Is(err, model.ErrLineTooLong) {
		t.Fatalf("expected ErrLineTooLong, got %v", err)
	}

	// A line just under the limit still reads.
	in = "1. " + strings.Repeat("x", maxLineBytes-10) + "\n"
	got, err := Lines(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 line, got %d", len(got))
	}
}
