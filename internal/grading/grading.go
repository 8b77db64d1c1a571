// Package grading scores submitted answers against a question bank.
//
// Everything here is a pure function of its arguments. The score scale is 100
// points: essay weights are carved out first and the multiple-choice questions
// share what is left. Arithmetic is decimal and every score is rounded once,
// half up, to two places.
package grading

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/bank"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
)

// TotalPoints is the full score of an exam.
const TotalPoints = 100.0

// Result is the automatic part of a grade.
type Result struct {
	AutoScore    float64 `json:"auto_score"`
	MaxAutoScore float64 `json:"max_auto_score"`
	Correct      int     `json:"correct"`
	Total        int     `json:"total"`
}

// MaxAutoScore is the share of the 100 points left to multiple-choice
// questions once essay weights are taken out. It never goes below zero.
func MaxAutoScore(b model.Bank) float64 {
	return toFloat(maxAuto(b))
}

func maxAuto(b model.Bank) decimal.Decimal {
	essays := decimal.Zero
	for _, q := range b.OR {
		essays = essays.Add(decimal.NewFromFloat(q.Weight))
	}
	m := decimal.NewFromFloat(TotalPoints).Sub(essays)
	if m.IsNegative() {
		return decimal.Zero
	}
	return m
}

// Grade scores the multiple-choice answers in mc against b. Essay answers are
// not scored automatically; or is accepted so callers grade a whole answer set
// in one call, but it does not affect the result.
//
// Answers are looked up by question id first and by positional index second.
// Answers for questions that are not in b are ignored.
func Grade(b model.Bank, mc map[string]string, or map[string]string) Result {
	maxScore := maxAuto(b)
	res := Result{
		MaxAutoScore: toFloat(maxScore.Round(2)),
		Total:        len(b.MC),
	}
	if len(b.MC) == 0 {
		return res
	}
	for i, q := range b.MC {
		chosen, ok := bank.Lookup(mc, q.ID, i)
		if !ok {
			continue
		}
		if normalize(chosen) != "" && normalize(chosen) == normalize(q.CorrectLabel) {
			res.Correct++
		}
	}
	// correct * max / total, divided exactly and rounded once.
	auto := decimal.NewFromInt(int64(res.Correct)).Mul(maxScore).
		DivRound(decimal.NewFromInt(int64(res.Total)), 2)
	res.AutoScore = toFloat(auto)
	return res
}

// CorrectAnswers reports, per answer key of b, whether the student chose the
// correct label.
func CorrectAnswers(b model.Bank, mc map[string]string) map[string]bool {
	out := make(map[string]bool, len(b.MC))
	for i, q := range b.MC {
		chosen, ok := bank.Lookup(mc, q.ID, i)
		out[bank.Key(q.ID, i)] = ok && normalize(chosen) != "" && normalize(chosen) == normalize(q.CorrectLabel)
	}
	return out
}

// ClampScores keeps the reviewer scores that belong to essay questions of b
// and raises negative ones to zero. Scores above a question's weight are kept
// as given.
func ClampScores(b model.Bank, scores map[string]float64) map[string]float64 {
	keys := bank.ORKeys(b)
	out := make(map[string]float64, len(scores))
	for k, v := range scores {
		if _, ok := keys[k]; !ok {
			continue
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[k] = v
	}
	return out
}

// ManualScore sums essay scores, treating negatives as zero.
func ManualScore(scores map[string]float64) float64 {
	sum := decimal.Zero
	for _, v := range scores {
		if v > 0 && !math.IsInf(v, 0) {
			sum = sum.Add(decimal.NewFromFloat(v))
		}
	}
	return toFloat(sum.Round(2))
}

// Total is auto plus manual, rounded like every stored score.
func Total(auto, manual float64) float64 {
	if sum := auto + manual; math.IsNaN(sum) || math.IsInf(sum, 0) {
		return sum
	}
	return toFloat(decimal.NewFromFloat(auto).Add(decimal.NewFromFloat(manual)).Round(2))
}

// Round2 rounds x to two decimals, halves away from zero. x is taken at its
// shortest decimal form, so 2.675 rounds to 2.68.
func Round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return toFloat(decimal.NewFromFloat(x).Round(2))
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func normalize(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}
