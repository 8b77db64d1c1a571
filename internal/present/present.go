// Package present builds the per-student view of an exam.
//
// The question order is a pure function of (student, exam, bank): each call
// seeds its own generators from a hash of the two ids, so page reloads show the
// same order and no process-wide random state is touched.
package present

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"strconv"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/bank"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
)

// Option is an answer choice as shown to the student.
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// MCItem is a multiple-choice question without its answer key.
type MCItem struct {
	ID      string   `json:"id"`
	Rank    int      `json:"rank"`
	Prompt  string   `json:"prompt"`
	Image   string   `json:"image,omitempty"`
	Options []Option `json:"options"`
}

// ORItem is an open-response question with its point weight.
type ORItem struct {
	ID     string  `json:"id"`
	Rank   int     `json:"rank"`
	Prompt string  `json:"prompt"`
	Image  string  `json:"image,omitempty"`
	Weight float64 `json:"weight"`
}

// Presentation is the ordered exam one student sees.
type Presentation struct {
	StudentID int64    `json:"student_id"`
	ExamID    int64    `json:"exam_id"`
	MC        []MCItem `json:"mc"`
	OR        []ORItem `json:"or"`
}

// Build returns the presentation for studentID taking examID. The bank is not
// modified. Items carry the key the client must answer under (the stable id, or
// the positional index for legacy questions) and a 1-based rank.
func Build(studentID, examID int64, b model.Bank) Presentation {
	mcRand, orRand := generators(studentID, examID)

	p := Presentation{
		StudentID: studentID,
		ExamID:    examID,
		MC:        make([]MCItem, len(b.MC)),
		OR:        make([]ORItem, len(b.OR)),
	}
	for rank, i := range mcRand.Perm(len(b.MC)) {
		q := b.MC[i]
		item := MCItem{
			ID:     bank.Key(q.ID, i),
			Rank:   rank + 1,
			Prompt: q.Prompt,
			Image:  q.Image,
		}
		for _, label := range q.PopulatedLabels() {
			o := q.Options[label]
			item.Options = append(item.Options, Option{Label: label, Text: o.Text, Image: o.Image})
		}
		p.MC[rank] = item
	}
	for rank, i := range orRand.Perm(len(b.OR)) {
		q := b.OR[i]
		p.OR[rank] = ORItem{
			ID:     bank.Key(q.ID, i),
			Rank:   rank + 1,
			Prompt: q.Prompt,
			Image:  q.Image,
			Weight: q.Weight,
		}
	}
	return p
}

// generators derives two independent generators, one per question kind, from
// the student and exam ids.
func generators(studentID, examID int64) (mc, or *rand.Rand) {
	seed := sha256.Sum256([]byte(strconv.FormatInt(studentID, 10) + ":" + strconv.FormatInt(examID, 10)))
	word := func(i int) uint64 { return binary.BigEndian.Uint64(seed[i*8 : i*8+8]) }
	mc = rand.New(rand.NewPCG(word(0), word(1)))
	or = rand.New(rand.NewPCG(word(2), word(3)))
	return mc, or
}
