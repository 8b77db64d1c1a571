package model

import (
	"context"
	"time"
)

// Role is the access level the auth collaborator assigns to a user.
type Role string

const (
	// RoleAdmin may reset submissions and act on any exam.
	RoleAdmin Role = "admin"
	// RoleTeacher authors exams and reviews essay answers.
	RoleTeacher Role = "teacher"
	// RoleStudent takes exams.
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// Actor is the authenticated caller as supplied by the auth collaborator.
type Actor struct {
	ID   int64
	Role Role
}

type actorCtxKey struct{}

// ContextWithActor stores the acting user in the request context.
func ContextWithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, a)
}

// ActorFromContext retrieves the acting user from context, or nil.
func ActorFromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(actorCtxKey{}).(*Actor)
	return a
}

// Labels lists the option labels a multiple-choice question may use, in
// presentation order.
var Labels = []string{"A", "B", "C", "D", "E"}

// IsLabel reports whether s is one of A..E.
func IsLabel(s string) bool {
	for _, l := range Labels {
		if s == l {
			return true
		}
	}
	return false
}

// Option is one answer choice of a multiple-choice question.
type Option struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// Populated reports whether the option carries any content.
func (o Option) Populated() bool {
	return o.Text != "" || o.Image != ""
}

// MCQuestion is a multiple-choice question with a single correct label.
type MCQuestion struct {
	ID           string            `json:"id,omitempty"`
	Prompt       string            `json:"prompt"`
	Image        string            `json:"image,omitempty"`
	Options      map[string]Option `json:"options"`
	CorrectLabel string            `json:"correct_label"`
}

// PopulatedLabels returns the labels with non-empty text or image, in A..E order.
func (q MCQuestion) PopulatedLabels() []string {
	var out []string
	for _, l := range Labels {
		if o, ok := q.Options[l]; ok && o.Populated() {
			out = append(out, l)
		}
	}
	return out
}

// ORQuestion is an open-response (essay) question scored by a reviewer.
type ORQuestion struct {
	ID     string  `json:"id,omitempty"`
	Prompt string  `json:"prompt"`
	Image  string  `json:"image,omitempty"`
	Weight float64 `json:"weight"`
}

// Bank is the canonical, order-stable question set of one exam.
type Bank struct {
	MC []MCQuestion `json:"mc"`
	OR []ORQuestion `json:"or"`
}

// EssayWeightTotal sums the weights of all open-response questions.
func (b Bank) EssayWeightTotal() float64 {
	var total float64
	for _, q := range b.OR {
		total += q.Weight
	}
	return total
}

// Empty reports whether the bank holds no questions at all.
func (b Bank) Empty() bool {
	return len(b.MC) == 0 && len(b.OR) == 0
}

// DefaultDurationMinutes is used when an exam is created without a duration.
const DefaultDurationMinutes = 60

// ExamDefinition describes one exam and owns its question bank.
type ExamDefinition struct {
	ID              int64     `json:"id"`
	OwnerID         int64     `json:"owner_id"`
	Title           string    `json:"title"`
	Subject         string    `json:"subject"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Bank            Bank      `json:"bank"`
	BankRev         int64     `json:"bank_rev"`
	CreatedAt       time.Time `json:"created_at"`
}

// OpenAt reports whether students may view or submit the exam at t.
func (e ExamDefinition) OpenAt(t time.Time) bool {
	return !t.Before(e.StartTime) && !t.After(e.EndTime)
}

// Submission is the single graded attempt of one student at one exam.
type Submission struct {
	ID           int64              `json:"id"`
	ExamID       int64              `json:"exam_id"`
	StudentID    int64              `json:"student_id"`
	MCAnswers    map[string]string  `json:"mc_answers"`
	ORAnswers    map[string]string  `json:"or_answers"`
	ORScores     map[string]float64 `json:"or_scores,omitempty"`
	AutoScore    float64            `json:"auto_score"`
	MaxAutoScore float64            `json:"max_auto_score"`
	ManualScore  float64            `json:"manual_score"`
	TotalScore   float64            `json:"total_score"`
	SubmittedAt  time.Time          `json:"submitted_at"`
	ReviewedAt   *time.Time         `json:"reviewed_at,omitempty"`
}
