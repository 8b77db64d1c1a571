package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExtractionEmpty means a document produced no questions.
	ErrExtractionEmpty = errors.New("format not recognized: no questions found")
	// ErrLineTooLong means a document holds a line too long to read.
	ErrLineTooLong = errors.New("document line too long")
	// ErrInvalidBank means a question bank failed validation.
	ErrInvalidBank = errors.New("invalid question bank")
	// ErrDuplicateSubmission means the student already submitted this exam.
	ErrDuplicateSubmission = errors.New("exam already submitted")
	// ErrEditAfterSubmissionsExist means the bank is locked by existing submissions.
	ErrEditAfterSubmissionsExist = errors.New("exam has submissions; edit through regrade")
	// ErrRegradePartialFailure means some submissions could not be regraded.
	ErrRegradePartialFailure = errors.New("regrade partially failed")
	// ErrNotFound means the exam or submission does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExamNotOpen means the exam is outside its availability window.
	ErrExamNotOpen = errors.New("exam not open")
	// ErrForbidden means the actor may not act on the exam.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidExam means an exam definition is missing a title or has an
	// availability window that ends before it starts.
	ErrInvalidExam = errors.New("invalid exam definition")
)

// BankProblem describes one validation failure inside a bank.
type BankProblem struct {
	Kind  string `json:"kind"` // "mc" or "or"
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Issue string `json:"issue"`
}

func (p BankProblem) String() string {
	return fmt.Sprintf("%s[%d]: %s", p.Kind, p.Index, p.Issue)
}

// BankError collects every problem found while validating a bank.
type BankError struct {
	Problems []BankProblem
}

func (e *BankError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return ErrInvalidBank.Error() + ": " + strings.Join(parts, "; ")
}

func (e *BankError) Unwrap() error { return ErrInvalidBank }
