// Package extract turns line-oriented document text into multiple-choice and
// open-response questions.
//
// A question starts with a numbered line ("12. prompt"). Options follow as
// lettered lines ("B. text"). Two inline tags may appear anywhere inside a
// question: an answer key such as "(Jawaban: B)" and a weight such as
// "(Poin: 20)". A weight turns the question into an open-response question.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
)

// DefaultKey is assigned to multiple-choice questions whose document gave no key.
const DefaultKey = "A"

// Warning codes reported next to an extraction result.
const (
	WarnKeyDefaulted   = "key_defaulted"
	WarnKeyNotAnOption = "key_not_an_option"
	WarnTooFewOptions  = "too_few_options"
	WarnKeyIgnored     = "key_ignored"
	WarnStrayLine      = "stray_line"
)

var (
	questionStart = regexp.MustCompile(`^(\d+)\.\s+(.*)$`)
	optionStart   = regexp.MustCompile(`^([A-E])\.\s+(.*)$`)
	answerTag     = regexp.MustCompile(`(?i)[(\[]\s*(?:jawaban|kunci(?:\s+jawaban)?|answer|key)\s*[:=]\s*([a-e])\s*[)\]]`)
	weightTag     = regexp.MustCompile(`(?i)[(\[]\s*(?:poin|bobot|skor|points?|weight)\s*[:=]\s*(\d+)\s*[)\]]`)
)

// Warning flags a question the author should check by hand.
type Warning struct {
	Number int    `json:"number"`
	Line   int    `json:"line"`
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// Result is the outcome of one extraction run.
type Result struct {
	Bank     model.Bank `json:"bank"`
	Warnings []Warning  `json:"warnings,omitempty"`
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithIDFunc replaces the id generator, mainly for tests.
func WithIDFunc(f func() string) Option {
	return func(x *Extractor) { x.newID = f }
}

// Extractor parses question documents. It holds no state between calls.
type Extractor struct {
	newID func() string
}

// New creates an Extractor that assigns random UUIDs to questions.
func New(opts ...Option) *Extractor {
	x := &Extractor{newID: uuid.NewString}
	for _, o := range opts {
		o(x)
	}
	return x
}

// Extract parses trimmed, non-empty lines into a bank. It returns
// model.ErrExtractionEmpty when no question could be recognized.
func (x *Extractor) Extract(lines []string) (Result, error) {
	p := &parser{newID: x.newID}
	for i, raw := range lines {
		p.line(i+1, strings.TrimSpace(raw))
	}
	p.flush()
	if p.res.Bank.Empty() {
		return Result{Warnings: p.res.Warnings}, model.ErrExtractionEmpty
	}
	return p.res, nil
}

// pending is the question being assembled: either *pendingMC or *pendingOR.
type pending interface {
	header() (number, line int)
}

type pendingMC struct {
	number, line int
	prompt       string
	options      map[string]string
	order        []string
	key          string
	active       string // label receiving continuation lines; "" means the prompt
}

func (q *pendingMC) header() (int, int) { return q.number, q.line }

func (q *pendingMC) startOption(label, text string) {
	if _, ok := q.options[label]; !ok {
		q.order = append(q.order, label)
	}
	q.options[label] = text
	q.active = label
}

func (q *pendingMC) appendText(text string) {
	if q.active == "" {
		q.prompt = joinText(q.prompt, text)
		return
	}
	q.options[q.active] = joinText(q.options[q.active], text)
}

type pendingOR struct {
	number, line int
	prompt       string
	weight       int
}

func (q *pendingOR) header() (int, int) { return q.number, q.line }

// toOR converts a multiple-choice draft into an open-response draft. Options
// collected so far are dropped; only the prompt survives.
func (q *pendingMC) toOR(weight int) *pendingOR {
	return &pendingOR{number: q.number, line: q.line, prompt: q.prompt, weight: weight}
}

type parser struct {
	newID func() string
	cur   pending
	res   Result
}

func (p *parser) line(n int, line string) {
	if line == "" {
		return
	}
	if m := questionStart.FindStringSubmatch(line); m != nil {
		p.flush()
		number, _ := strconv.Atoi(m[1])
		text, key, weight := takeTags(m[2])
		p.cur = &pendingMC{number: number, line: n, prompt: text, options: map[string]string{}}
		p.applyTags(key, weight, n)
		return
	}
	if p.cur == nil {
		p.warn(0, n, WarnStrayLine, line)
		return
	}

	text, key, weight := takeTags(line)
	p.applyTags(key, weight, n)
	if text == "" {
		return
	}
	switch q := p.cur.(type) {
	case *pendingMC:
		if m := optionStart.FindStringSubmatch(text); m != nil {
			q.startOption(m[1], m[2])
			return
		}
		q.appendText(text)
	case *pendingOR:
		q.prompt = joinText(q.prompt, text)
	}
}

func (p *parser) applyTags(key string, weight int, line int) {
	if weight >= 0 {
		switch q := p.cur.(type) {
		case *pendingMC:
			p.cur = q.toOR(weight)
		case *pendingOR:
			q.weight = weight
		}
	}
	if key == "" {
		return
	}
	switch q := p.cur.(type) {
	case *pendingMC:
		q.key = key
	case *pendingOR:
		p.warn(q.number, line, WarnKeyIgnored, key)
	}
}

func (p *parser) flush() {
	if p.cur == nil {
		return
	}
	switch q := p.cur.(type) {
	case *pendingMC:
		p.res.Bank.MC = append(p.res.Bank.MC, p.finishMC(q))
	case *pendingOR:
		p.res.Bank.OR = append(p.res.Bank.OR, model.ORQuestion{
			ID:     p.newID(),
			Prompt: q.prompt,
			Weight: float64(q.weight),
		})
	}
	p.cur = nil
}

func (p *parser) finishMC(q *pendingMC) model.MCQuestion {
	mc := model.MCQuestion{
		ID:           p.newID(),
		Prompt:       q.prompt,
		Options:      make(map[string]model.Option, len(q.options)),
		CorrectLabel: q.key,
	}
	for _, label := range q.order {
		mc.Options[label] = model.Option{Text: q.options[label]}
	}
	if mc.CorrectLabel == "" {
		mc.CorrectLabel = DefaultKey
		p.warn(q.number, q.line, WarnKeyDefaulted, DefaultKey)
	}
	populated := mc.PopulatedLabels()
	if len(populated) < 2 {
		p.warn(q.number, q.line, WarnTooFewOptions, strconv.Itoa(len(populated)))
	}
	if o, ok := mc.Options[mc.CorrectLabel]; !ok || !o.Populated() {
		p.warn(q.number, q.line, WarnKeyNotAnOption, mc.CorrectLabel)
	}
	return mc
}

func (p *parser) warn(number, line int, code, detail string) {
	p.res.Warnings = append(p.res.Warnings, Warning{Number: number, Line: line, Code: code, Detail: detail})
}

// takeTags removes answer and weight tags from s. The last tag of each kind
// wins. weight is -1 when no weight tag was present.
func takeTags(s string) (text, key string, weight int) {
	weight = -1
	s = answerTag.ReplaceAllStringFunc(s, func(tag string) string {
		key = strings.ToUpper(answerTag.FindStringSubmatch(tag)[1])
		return " "
	})
	s = weightTag.ReplaceAllStringFunc(s, func(tag string) string {
		n, err := strconv.Atoi(weightTag.FindStringSubmatch(tag)[1])
		if err != nil {
			return tag
		}
		weight = n
		return " "
	})
	return normalizeSpace(s), key, weight
}

func joinText(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + " " + b
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
