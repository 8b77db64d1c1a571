package model

import "time"

// ExamExport is the top-level JSON structure handed to the reporting collaborator.
type ExamExport struct {
	ExamID       int64           `json:"exam_id"`
	Title        string          `json:"title"`
	Subject      string          `json:"subject"`
	NumMC        int             `json:"num_mc"`
	NumOR        int             `json:"num_or"`
	MaxAutoScore float64         `json:"max_auto_score"`
	Results      []StudentResult `json:"results"`
}

// StudentResult holds one student's submission for export.
type StudentResult struct {
	StudentID   int64           `json:"student_id"`
	SubmittedAt time.Time       `json:"submitted_at"`
	ReviewedAt  *time.Time      `json:"reviewed_at,omitempty"`
	AutoScore   float64         `json:"auto_score"`
	ManualScore float64         `json:"manual_score"`
	TotalScore  float64         `json:"total_score"`
	MCCorrect   int             `json:"mc_correct"`
	Essays      []EssayResult   `json:"essays"`
	MCAnswers   []AnswerSummary `json:"mc_answers"`
}

// EssayResult holds per-question essay data for export.
type EssayResult struct {
	QuestionID string  `json:"question_id"`
	Prompt     string  `json:"prompt"`
	Weight     float64 `json:"weight"`
	Answer     string  `json:"answer"`
	Score      float64 `json:"score"`
}

// AnswerSummary is one multiple-choice answer next to its key.
type AnswerSummary struct {
	QuestionID string `json:"question_id"`
	Chosen     string `json:"chosen"`
	Correct    string `json:"correct"`
}
