package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"quizdesk/internal/session"

	"github.com/xuri/excelize/v2"
)

type fakeResults struct {
	rows []session.QuizResultRow
}

func (f *fakeResults) ListQuizResults(ctx context.Context, quizID int64) ([]session.QuizResultRow, error) {
	return f.rows, nil
}

func TestQuizSummary(t *testing.T) {
	svc := NewService(&fakeResults{rows: []session.QuizResultRow{
		{SessionID: 1, Percent: 80},
		{SessionID: 2, Percent: 40},
		{SessionID: 3, Percent: 60},
	}})

	summary, err := svc.QuizSummary(context.Background(), 5)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.AttemptCount != 3 {
		t.Fatalf("expected 3 attempts, got %d", summary.AttemptCount)
	}
	if summary.AveragePercent != 60 {
		t.Fatalf("expected average 60, got %v", summary.AveragePercent)
	}
	if summary.BestPercent != 80 || summary.WorstPercent != 40 {
		t.Fatalf("unexpected best/worst: %v/%v", summary.BestPercent, summary.WorstPercent)
	}
}

func TestQuizSummaryEmpty(t *testing.T) {
	svc := NewService(&fakeResults{})

	summary, err := svc.QuizSummary(context.Background(), 5)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.AttemptCount != 0 || summary.AveragePercent != 0 {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
}

func TestExportQuizResultsExcel(t *testing.T) {
	svc := NewService(&fakeResults{rows: []session.QuizResultRow{
		{
			SessionID:      12,
			Username:       "thu.ha",
			FullName:       "Thu Hà",
			TotalQuestions: 10,
			CorrectCount:   7,
			AnsweredCount:  9,
			Percent:        70,
			SubmittedAt:    time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		},
	}})

	data, err := svc.ExportQuizResultsExcel(context.Background(), 5)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	if rows[0][0] != "session_id" || rows[0][6] != "percent" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][1] != "thu.ha" || rows[1][4] != "7" {
		t.Fatalf("unexpected data row: %v", rows[1])
	}
}
