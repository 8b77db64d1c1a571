package store

import (
	"context"
	"fmt"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/bank"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/grading"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
)

// ExportExam builds the export-ready results of every submission to an exam,
// read against the exam's current bank.
func (s *Store) ExportExam(ctx context.Context, examID int64) (model.ExamExport, error) {
	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return model.ExamExport{}, err
	}
	subs, err := s.ListSubmissions(ctx, examID)
	if err != nil {
		return model.ExamExport{}, fmt.Errorf("list submissions: %w", err)
	}

	out := model.ExamExport{
		ExamID:       exam.ID,
		Title:        exam.Title,
		Subject:      exam.Subject,
		NumMC:        len(exam.Bank.MC),
		NumOR:        len(exam.Bank.OR),
		MaxAutoScore: grading.Round2(grading.MaxAutoScore(exam.Bank)),
		Results:      []model.StudentResult{},
	}
	for _, sub := range subs {
		r := model.StudentResult{
			StudentID:   sub.StudentID,
			SubmittedAt: sub.SubmittedAt,
			ReviewedAt:  sub.ReviewedAt,
			AutoScore:   sub.AutoScore,
			ManualScore: sub.ManualScore,
			TotalScore:  sub.TotalScore,
		}
		for i, q := range exam.Bank.MC {
			chosen, _ := bank.Lookup(sub.MCAnswers, q.ID, i)
			r.MCAnswers = append(r.MCAnswers, model.AnswerSummary{
				QuestionID: bank.Key(q.ID, i),
				Chosen:     chosen,
				Correct:    q.CorrectLabel,
			})
		}
		r.MCCorrect = grading.Grade(exam.Bank, sub.MCAnswers, sub.ORAnswers).Correct
		for i, q := range exam.Bank.OR {
			key := bank.Key(q.ID, i)
			answer, _ := bank.Lookup(sub.ORAnswers, q.ID, i)
			r.Essays = append(r.Essays, model.EssayResult{
				QuestionID: key,
				Prompt:     q.Prompt,
				Weight:     q.Weight,
				Answer:     answer,
				Score:      sub.ORScores[key],
			})
		}
		out.Results = append(out.Results, r)
	}
	return out, nil
}
