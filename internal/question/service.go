package question

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrQuizIncomplete   = errors.New("quiz has incomplete questions")
	ErrQuizPublished    = errors.New("quiz is published and cannot be edited")
)

// Service owns quiz and question persistence. Questions are stored as
// JSONB in their tagged codec form, one row per question, ordered by
// seq_no.
type Service struct {
	db    *sql.DB
	newID func() string
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, newID: uuid.NewString}
}

type Quiz struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type QuestionRecord struct {
	QuizID      int64           `json:"quiz_id"`
	SeqNo       int             `json:"seq_no"`
	QuestionID  string          `json:"question_id"`
	Body        json.RawMessage `json:"body"`
	NeedsAnswer bool            `json:"needs_answer"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type CreateQuizInput struct {
	OwnerID     int64
	Title       string
	Description string
}

type ImportDocumentInput struct {
	OwnerID     int64
	Title       string
	Description string
	Text        string
}

// ImportReport is the full outcome of a document import: the validation
// result, the non-fatal parse issues, and the stored questions when the
// document was usable. A failed validation leaves QuizID at zero and
// stores nothing.
type ImportReport struct {
	QuizID     int64            `json:"quiz_id,omitempty"`
	Validation Validation       `json:"validation"`
	Issues     []Issue          `json:"issues,omitempty"`
	Questions  []QuestionRecord `json:"questions,omitempty"`
}

// ImportDocument runs the two-phase validate-then-parse contract over the
// uploaded document text and persists the result as a new unpublished
// quiz. Questions that still need an author-supplied answer (for example a
// block without correct markers) are stored with needs_answer set; they
// block publishing, not importing.
func (s *Service) ImportDocument(ctx context.Context, in ImportDocumentInput) (*ImportReport, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.OwnerID <= 0 || in.Title == "" {
		return nil, ErrInvalidInput
	}

	report := &ImportReport{Validation: ValidateDocument(in.Text)}
	if !report.Validation.OK {
		return report, nil
	}

	questions, issues := ParseDocument(in.Text, ParseOptions{NewID: s.newID})
	report.Issues = issues

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var quizID int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO quizzes (owner_id, title, description, is_published, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), FALSE, now(), now())
		RETURNING id
	`, in.OwnerID, in.Title, strings.TrimSpace(in.Description)).Scan(&quizID); err != nil {
		return nil, fmt.Errorf("insert quiz: %w", err)
	}

	for i, q := range questions {
		rec, err := insertQuestion(ctx, tx, quizID, i+1, q)
		if err != nil {
			return nil, err
		}
		report.Questions = append(report.Questions, *rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	report.QuizID = quizID
	return report, nil
}

func (s *Service) CreateQuiz(ctx context.Context, in CreateQuizInput) (*Quiz, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.OwnerID <= 0 || in.Title == "" {
		return nil, ErrInvalidInput
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO quizzes (owner_id, title, description, is_published, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), FALSE, now(), now())
		RETURNING id, owner_id, title, COALESCE(description, ''), is_published, created_at, updated_at
	`, in.OwnerID, in.Title, strings.TrimSpace(in.Description))
	return scanQuiz(row)
}

func (s *Service) GetQuiz(ctx context.Context, quizID int64) (*Quiz, error) {
	if quizID <= 0 {
		return nil, ErrInvalidInput
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, COALESCE(description, ''), is_published, created_at, updated_at
		FROM quizzes
		WHERE id = $1
	`, quizID)
	quiz, err := scanQuiz(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}
	return quiz, nil
}

func (s *Service) ListQuizzes(ctx context.Context, ownerID int64) ([]Quiz, error) {
	query := `
		SELECT id, owner_id, title, COALESCE(description, ''), is_published, created_at, updated_at
		FROM quizzes
	`
	args := make([]any, 0, 1)
	if ownerID > 0 {
		query += ` WHERE owner_id = $1`
		args = append(args, ownerID)
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query quizzes: %w", err)
	}
	defer rows.Close()

	items := make([]Quiz, 0)
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		items = append(items, *quiz)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quizzes: %w", err)
	}
	return items, nil
}

func (s *Service) DeleteQuiz(ctx context.Context, quizID int64) error {
	if quizID <= 0 {
		return ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id = $1`, quizID)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete quiz affected rows: %w", err)
	}
	if affected == 0 {
		return ErrQuizNotFound
	}
	return nil
}

// ListQuestions returns the ordered question rows of a quiz.
func (s *Service) ListQuestions(ctx context.Context, quizID int64) ([]QuestionRecord, error) {
	if quizID <= 0 {
		return nil, ErrInvalidInput
	}
	if _, err := s.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT quiz_id, seq_no, question_id, body, needs_answer, updated_at
		FROM quiz_questions
		WHERE quiz_id = $1
		ORDER BY seq_no ASC
	`, quizID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	items := make([]QuestionRecord, 0)
	for rows.Next() {
		var rec QuestionRecord
		if err := rows.Scan(&rec.QuizID, &rec.SeqNo, &rec.QuestionID, &rec.Body, &rec.NeedsAnswer, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return items, nil
}

// DecodeQuestions materializes stored rows back into model values.
func DecodeQuestions(records []QuestionRecord) ([]Question, error) {
	out := make([]Question, 0, len(records))
	for _, rec := range records {
		q, err := Unmarshal(rec.Body)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", rec.QuestionID, err)
		}
		out = append(out, q)
	}
	return out, nil
}

// AddQuestion appends a manually authored question. Manual entry must be
// complete: structural breakage and missing answer keys are both rejected,
// unlike document import which tolerates the latter.
func (s *Service) AddQuestion(ctx context.Context, quizID int64, body json.RawMessage) (*QuestionRecord, error) {
	if quizID <= 0 || len(body) == 0 {
		return nil, ErrInvalidInput
	}
	quiz, err := s.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.IsPublished {
		return nil, ErrQuizPublished
	}

	q, err := Unmarshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if strings.TrimSpace(ID(q)) == "" {
		q = withID(q, s.newID())
	}
	if err := Validate(q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var nextSeq int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq_no), 0) + 1 FROM quiz_questions WHERE quiz_id = $1
	`, quizID).Scan(&nextSeq); err != nil {
		return nil, fmt.Errorf("next seq_no: %w", err)
	}

	rec, err := insertQuestion(ctx, tx, quizID, nextSeq, q)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return rec, nil
}

// UpdateQuestion replaces the body of one question, keeping its position.
// The replacement must be complete in the manual-authoring sense, which is
// how an imported question that still needs an answer key gets fixed.
func (s *Service) UpdateQuestion(ctx context.Context, quizID int64, questionID string, body json.RawMessage) (*QuestionRecord, error) {
	questionID = strings.TrimSpace(questionID)
	if quizID <= 0 || questionID == "" || len(body) == 0 {
		return nil, ErrInvalidInput
	}
	quiz, err := s.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.IsPublished {
		return nil, ErrQuizPublished
	}

	q, err := Unmarshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if ID(q) == "" {
		q = withID(q, questionID)
	}
	if ID(q) != questionID {
		return nil, fmt.Errorf("%w: body id %q does not match %q", ErrInvalidInput, ID(q), questionID)
	}
	if err := Validate(q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	encoded, err := Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode question: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE quiz_questions
		SET body = $3::jsonb,
			needs_answer = FALSE,
			updated_at = now()
		WHERE quiz_id = $1 AND question_id = $2
		RETURNING quiz_id, seq_no, question_id, body, needs_answer, updated_at
	`, quizID, questionID, encoded)

	var rec QuestionRecord
	if err := row.Scan(&rec.QuizID, &rec.SeqNo, &rec.QuestionID, &rec.Body, &rec.NeedsAnswer, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("update question: %w", err)
	}
	return &rec, nil
}

func (s *Service) DeleteQuestion(ctx context.Context, quizID int64, questionID string) error {
	questionID = strings.TrimSpace(questionID)
	if quizID <= 0 || questionID == "" {
		return ErrInvalidInput
	}
	quiz, err := s.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if quiz.IsPublished {
		return ErrQuizPublished
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM quiz_questions WHERE quiz_id = $1 AND question_id = $2
	`, quizID, questionID)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete question affected rows: %w", err)
	}
	if affected == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

// PublishQuiz makes a quiz available for sessions. Every question must
// pass full validation; imported questions still waiting on an answer key
// surface here as ErrQuizIncomplete naming the offenders.
func (s *Service) PublishQuiz(ctx context.Context, quizID int64) (*Quiz, error) {
	records, err := s.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: quiz has no questions", ErrQuizIncomplete)
	}

	var incomplete []string
	for _, rec := range records {
		q, err := Unmarshal(rec.Body)
		if err != nil {
			return nil, fmt.Errorf("decode question %s: %w", rec.QuestionID, err)
		}
		if err := Validate(q); err != nil {
			incomplete = append(incomplete, rec.QuestionID)
		}
	}
	if len(incomplete) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrQuizIncomplete, strings.Join(incomplete, ", "))
	}

	return s.setPublished(ctx, quizID, true)
}

func (s *Service) UnpublishQuiz(ctx context.Context, quizID int64) (*Quiz, error) {
	return s.setPublished(ctx, quizID, false)
}

func (s *Service) setPublished(ctx context.Context, quizID int64, published bool) (*Quiz, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE quizzes
		SET is_published = $2,
			updated_at = now()
		WHERE id = $1
		RETURNING id, owner_id, title, COALESCE(description, ''), is_published, created_at, updated_at
	`, quizID, published)
	quiz, err := scanQuiz(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}
	return quiz, nil
}

func insertQuestion(ctx context.Context, tx *sql.Tx, quizID int64, seqNo int, q Question) (*QuestionRecord, error) {
	encoded, err := Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode question: %w", err)
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO quiz_questions (quiz_id, seq_no, question_id, body, needs_answer, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, now(), now())
		RETURNING quiz_id, seq_no, question_id, body, needs_answer, updated_at
	`, quizID, seqNo, ID(q), encoded, NeedsAnswer(q))

	var rec QuestionRecord
	if err := row.Scan(&rec.QuizID, &rec.SeqNo, &rec.QuestionID, &rec.Body, &rec.NeedsAnswer, &rec.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}
	return &rec, nil
}

func withID(q Question, id string) Question {
	switch v := q.(type) {
	case Single:
		v.Base.ID = id
		return v
	case Multiple:
		v.Base.ID = id
		return v
	case Text:
		v.Base.ID = id
		return v
	case Drag:
		v.Base.ID = id
		return v
	case Composite:
		v.Base.ID = id
		return v
	default:
		return q
	}
}

func scanQuiz(scanner interface{ Scan(dest ...any) error }) (*Quiz, error) {
	var out Quiz
	if err := scanner.Scan(
		&out.ID,
		&out.OwnerID,
		&out.Title,
		&out.Description,
		&out.IsPublished,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &out, nil
}
