// Package bank prepares and validates question banks and resolves answers
// against stable question ids.
package bank

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
)

// MinOptions is the least number of populated options a multiple-choice
// question needs.
const MinOptions = 2

// Build returns the bank that fully replaces an exam's previous content.
// Entries that already carry an id are ones the author kept and keep that id;
// entries without one are new and get a fresh id.
func Build(mc []model.MCQuestion, or []model.ORQuestion) model.Bank {
	return BuildWith(uuid.NewString, mc, or)
}

// BuildWith is Build with a caller-supplied id generator.
func BuildWith(newID func() string, mc []model.MCQuestion, or []model.ORQuestion) model.Bank {
	b := model.Bank{
		MC: make([]model.MCQuestion, 0, len(mc)),
		OR: make([]model.ORQuestion, 0, len(or)),
	}
	for _, q := range mc {
		out := model.MCQuestion{
			ID:           strings.TrimSpace(q.ID),
			Prompt:       strings.TrimSpace(q.Prompt),
			Image:        strings.TrimSpace(q.Image),
			Options:      make(map[string]model.Option, len(q.Options)),
			CorrectLabel: strings.ToUpper(strings.TrimSpace(q.CorrectLabel)),
		}
		if out.ID == "" {
			out.ID = newID()
		}
		for label, o := range q.Options {
			o.Text = strings.TrimSpace(o.Text)
			o.Image = strings.TrimSpace(o.Image)
			if !o.Populated() {
				continue
			}
			out.Options[strings.ToUpper(strings.TrimSpace(label))] = o
		}
		b.MC = append(b.MC, out)
	}
	for _, q := range or {
		out := model.ORQuestion{
			ID:     strings.TrimSpace(q.ID),
			Prompt: strings.TrimSpace(q.Prompt),
			Image:  strings.TrimSpace(q.Image),
			Weight: q.Weight,
		}
		if out.ID == "" {
			out.ID = newID()
		}
		b.OR = append(b.OR, out)
	}
	return b
}

// Validate rejects banks that cannot be graded: negative essay weights,
// multiple-choice questions with fewer than MinOptions populated options,
// keys or labels outside A..E, and repeated ids.
func Validate(b model.Bank) error {
	var problems []model.BankProblem
	seen := map[string]bool{}
	checkID := func(kind string, i int, id string) {
		if id == "" {
			return
		}
		if seen[id] {
			problems = append(problems, model.BankProblem{Kind: kind, Index: i, ID: id, Issue: "duplicate id"})
		}
		seen[id] = true
	}

	for i, q := range b.MC {
		checkID("mc", i, q.ID)
		for label := range q.Options {
			if !model.IsLabel(label) {
				problems = append(problems, model.BankProblem{Kind: "mc", Index: i, ID: q.ID, Issue: "unknown option label " + strconv.Quote(label)})
			}
		}
		if n := len(q.PopulatedLabels()); n < MinOptions {
			problems = append(problems, model.BankProblem{Kind: "mc", Index: i, ID: q.ID, Issue: "needs at least 2 options, has " + strconv.Itoa(n)})
		}
		if !model.IsLabel(strings.ToUpper(q.CorrectLabel)) {
			problems = append(problems, model.BankProblem{Kind: "mc", Index: i, ID: q.ID, Issue: "answer key must be one of A-E"})
		}
	}
	for i, q := range b.OR {
		checkID("or", i, q.ID)
		if q.Weight < 0 {
			problems = append(problems, model.BankProblem{Kind: "or", Index: i, ID: q.ID, Issue: "negative weight"})
		}
	}

	if len(problems) > 0 {
		return &model.BankError{Problems: problems}
	}
	return nil
}

// Key is the key a client uses to answer the question at index: its stable
// id, or the positional index for legacy questions stored without one.
func Key(id string, index int) string {
	if id != "" {
		return id
	}
	return strconv.Itoa(index)
}

// Lookup finds the answer for the question with the given id at index. Answers
// keyed by the stable id win; otherwise the positional index is tried, which
// keeps answers recorded before ids existed gradeable.
func Lookup(answers map[string]string, id string, index int) (string, bool) {
	if id != "" {
		if v, ok := answers[id]; ok {
			return v, true
		}
	}
	v, ok := answers[strconv.Itoa(index)]
	return v, ok
}

// ORKeys returns the set of keys under which essay answers and scores for b
// are accepted.
func ORKeys(b model.Bank) map[string]int {
	keys := make(map[string]int, len(b.OR))
	for i, q := range b.OR {
		keys[Key(q.ID, i)] = i
	}
	return keys
}
