package report

import (
	"bytes"
	"context"
	"fmt"

	"quizdesk/internal/session"

	"github.com/xuri/excelize/v2"
)

type resultLister interface {
	ListQuizResults(ctx context.Context, quizID int64) ([]session.QuizResultRow, error)
}

// Service turns submitted quiz attempts into teacher-facing reports.
type Service struct {
	results resultLister
}

func NewService(results resultLister) *Service {
	return &Service{results: results}
}

type QuizSummary struct {
	QuizID         int64   `json:"quiz_id"`
	AttemptCount   int     `json:"attempt_count"`
	AveragePercent float64 `json:"average_percent"`
	BestPercent    float64 `json:"best_percent"`
	WorstPercent   float64 `json:"worst_percent"`
}

func (s *Service) QuizResults(ctx context.Context, quizID int64) ([]session.QuizResultRow, error) {
	return s.results.ListQuizResults(ctx, quizID)
}

func (s *Service) QuizSummary(ctx context.Context, quizID int64) (*QuizSummary, error) {
	rows, err := s.results.ListQuizResults(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return summarize(quizID, rows), nil
}

// ExportQuizResultsExcel renders every submitted attempt of a quiz as an
// xlsx workbook, one row per attempt.
func (s *Service) ExportQuizResultsExcel(ctx context.Context, quizID int64) ([]byte, error) {
	rows, err := s.results.ListQuizResults(ctx, quizID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"session_id", "username", "full_name", "total_questions", "correct", "answered", "percent", "submitted_at"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, it := range rows {
		rowNo := i + 2
		values := []any{
			it.SessionID,
			it.Username,
			it.FullName,
			it.TotalQuestions,
			it.CorrectCount,
			it.AnsweredCount,
			it.Percent,
			it.SubmittedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNo)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "H", 20)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

func summarize(quizID int64, rows []session.QuizResultRow) *QuizSummary {
	out := &QuizSummary{QuizID: quizID, AttemptCount: len(rows)}
	if len(rows) == 0 {
		return out
	}

	var sum float64
	out.BestPercent = rows[0].Percent
	out.WorstPercent = rows[0].Percent
	for _, row := range rows {
		sum += row.Percent
		if row.Percent > out.BestPercent {
			out.BestPercent = row.Percent
		}
		if row.Percent < out.WorstPercent {
			out.WorstPercent = row.Percent
		}
	}
	out.AveragePercent = sum / float64(len(rows))
	return out
}
