package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"quizdesk/internal/question"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrQuizNotAvailable  = errors.New("quiz is not available")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionClosed     = errors.New("session is already submitted")
	ErrQuestionNotInQuiz = errors.New("question is not part of this quiz")
	ErrResultNotFound    = errors.New("result not found")
)

type answerStore interface {
	SaveAnswer(ctx context.Context, sessionID int64, questionID string, payload json.RawMessage) error
	Answers(ctx context.Context, sessionID int64) (map[string]json.RawMessage, error)
	Clear(ctx context.Context, sessionID int64) error
}

// Service runs quiz attempts: starting a session against a published
// quiz, collecting answers through the cache, and grading on submit.
type Service struct {
	db    *sql.DB
	cache answerStore
}

func NewService(db *sql.DB, cache *AnswerCache) *Service {
	return &Service{db: db, cache: cache}
}

type Session struct {
	ID          int64      `json:"id"`
	QuizID      int64      `json:"quiz_id"`
	StudentID   int64      `json:"student_id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

const (
	statusActive    = "active"
	statusSubmitted = "submitted"
)

// DisplayQuestion is the student-facing shape of a question: prompt and
// structure only, never the answer key.
type DisplayQuestion struct {
	ID           string                 `json:"id"`
	Type         question.Kind          `json:"type"`
	Prompt       string                 `json:"prompt"`
	Options      []string               `json:"options,omitempty"`
	Targets      []question.LabeledItem `json:"targets,omitempty"`
	Items        []question.LabeledItem `json:"items,omitempty"`
	SubQuestions []DisplayQuestion      `json:"sub_questions,omitempty"`
}

type StartResult struct {
	Session   Session                    `json:"session"`
	Questions []DisplayQuestion          `json:"questions"`
	Answers   map[string]json.RawMessage `json:"answers,omitempty"`
}

type Result struct {
	SessionID      int64           `json:"session_id"`
	QuizID         int64           `json:"quiz_id"`
	StudentID      int64           `json:"student_id"`
	TotalQuestions int             `json:"total_questions"`
	CorrectCount   int             `json:"correct_count"`
	AnsweredCount  int             `json:"answered_count"`
	Percent        float64         `json:"percent"`
	Detail         json.RawMessage `json:"detail,omitempty"`
	SubmittedAt    time.Time       `json:"submitted_at"`
}

// Start opens a session on a published quiz, or resumes the student's
// existing active one together with the answers saved so far. Question
// order is shuffled per session, deterministically, so a resumed session
// shows the same order.
func (s *Service) Start(ctx context.Context, quizID, studentID int64) (*StartResult, error) {
	if quizID <= 0 || studentID <= 0 {
		return nil, ErrInvalidInput
	}

	var published bool
	err := s.db.QueryRowContext(ctx, `
		SELECT is_published FROM quizzes WHERE id = $1
	`, quizID).Scan(&published)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuizNotAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("query quiz: %w", err)
	}
	if !published {
		return nil, ErrQuizNotAvailable
	}

	sess, err := s.activeSession(ctx, quizID, studentID)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	resumed := sess != nil
	if !resumed {
		sess = &Session{QuizID: quizID, StudentID: studentID, Status: statusActive}
		if err := s.db.QueryRowContext(ctx, `
			INSERT INTO quiz_sessions (quiz_id, student_id, status, started_at)
			VALUES ($1, $2, $3, now())
			RETURNING id, started_at
		`, quizID, studentID, statusActive).Scan(&sess.ID, &sess.StartedAt); err != nil {
			return nil, fmt.Errorf("insert session: %w", err)
		}
	}

	questions, err := s.quizQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}

	display := make([]DisplayQuestion, 0, len(questions))
	for _, q := range questions {
		display = append(display, displayQuestion(q))
	}
	shuffleQuestions(display, sess.ID)

	out := &StartResult{Session: *sess, Questions: display}
	if resumed {
		answers, err := s.cache.Answers(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		if len(answers) > 0 {
			out.Answers = answers
		}
	}
	return out, nil
}

// SaveAnswer records one answer payload for an active session. Payloads
// are stored as-is; grading interprets them on submit.
func (s *Service) SaveAnswer(ctx context.Context, sessionID, studentID int64, questionID string, payload json.RawMessage) error {
	if sessionID <= 0 || studentID <= 0 || questionID == "" || len(payload) == 0 {
		return ErrInvalidInput
	}

	sess, err := s.getOwnedSession(ctx, sessionID, studentID)
	if err != nil {
		return err
	}
	if sess.Status != statusActive {
		return ErrSessionClosed
	}

	var known bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM quiz_questions WHERE quiz_id = $1 AND question_id = $2)
	`, sess.QuizID, questionID).Scan(&known); err != nil {
		return fmt.Errorf("check question: %w", err)
	}
	if !known {
		return ErrQuestionNotInQuiz
	}

	return s.cache.SaveAnswer(ctx, sessionID, questionID, payload)
}

// Submit grades the session against the quiz's answer keys and persists
// the result. Unanswered and malformed payloads never abort a submit;
// they grade as incorrect.
func (s *Service) Submit(ctx context.Context, sessionID, studentID int64) (*Result, error) {
	if sessionID <= 0 || studentID <= 0 {
		return nil, ErrInvalidInput
	}

	sess, err := s.getOwnedSession(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}
	if sess.Status != statusActive {
		return nil, ErrSessionClosed
	}

	questions, err := s.quizQuestions(ctx, sess.QuizID)
	if err != nil {
		return nil, err
	}
	answers, err := s.cache.Answers(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sheet := ScoreSheet(questions, answers)
	detail, err := json.Marshal(sheet)
	if err != nil {
		return nil, fmt.Errorf("encode result detail: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var submittedAt time.Time
	if err := tx.QueryRowContext(ctx, `
		UPDATE quiz_sessions
		SET status = $2, submitted_at = now()
		WHERE id = $1 AND status = $3
		RETURNING submitted_at
	`, sessionID, statusSubmitted, statusActive).Scan(&submittedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionClosed
		}
		return nil, fmt.Errorf("close session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO session_results (session_id, total_questions, correct_count, answered_count, percent, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, now())
	`, sessionID, sheet.TotalQuestions, sheet.CorrectCount, sheet.AnsweredCount, sheet.Percent, detail); err != nil {
		return nil, fmt.Errorf("insert result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	_ = s.cache.Clear(ctx, sessionID)

	return &Result{
		SessionID:      sessionID,
		QuizID:         sess.QuizID,
		StudentID:      studentID,
		TotalQuestions: sheet.TotalQuestions,
		CorrectCount:   sheet.CorrectCount,
		AnsweredCount:  sheet.AnsweredCount,
		Percent:        sheet.Percent,
		Detail:         detail,
		SubmittedAt:    submittedAt,
	}, nil
}

// Result returns the graded outcome of the student's submitted session.
func (s *Service) Result(ctx context.Context, sessionID, studentID int64) (*Result, error) {
	if sessionID <= 0 || studentID <= 0 {
		return nil, ErrInvalidInput
	}
	sess, err := s.getOwnedSession(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT r.total_questions, r.correct_count, r.answered_count, r.percent, r.detail, s.submitted_at
		FROM session_results r
		JOIN quiz_sessions s ON s.id = r.session_id
		WHERE r.session_id = $1
	`, sessionID)

	out := &Result{SessionID: sessionID, QuizID: sess.QuizID, StudentID: sess.StudentID}
	var submittedAt sql.NullTime
	if err := row.Scan(&out.TotalQuestions, &out.CorrectCount, &out.AnsweredCount, &out.Percent, &out.Detail, &submittedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("query result: %w", err)
	}
	if submittedAt.Valid {
		out.SubmittedAt = submittedAt.Time
	}
	return out, nil
}

// QuizResultRow is one submitted attempt of a quiz, for reporting.
type QuizResultRow struct {
	SessionID      int64     `json:"session_id"`
	StudentID      int64     `json:"student_id"`
	Username       string    `json:"username"`
	FullName       string    `json:"full_name"`
	TotalQuestions int       `json:"total_questions"`
	CorrectCount   int       `json:"correct_count"`
	AnsweredCount  int       `json:"answered_count"`
	Percent        float64   `json:"percent"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// ListQuizResults returns every submitted attempt of a quiz, most recent
// first. Used by the results export.
func (s *Service) ListQuizResults(ctx context.Context, quizID int64) ([]QuizResultRow, error) {
	if quizID <= 0 {
		return nil, ErrInvalidInput
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.student_id, u.username, u.full_name,
			r.total_questions, r.correct_count, r.answered_count, r.percent, s.submitted_at
		FROM quiz_sessions s
		JOIN session_results r ON r.session_id = s.id
		JOIN users u ON u.id = s.student_id
		WHERE s.quiz_id = $1 AND s.status = $2
		ORDER BY s.submitted_at DESC
	`, quizID, statusSubmitted)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	items := make([]QuizResultRow, 0)
	for rows.Next() {
		var row QuizResultRow
		var submittedAt sql.NullTime
		if err := rows.Scan(&row.SessionID, &row.StudentID, &row.Username, &row.FullName,
			&row.TotalQuestions, &row.CorrectCount, &row.AnsweredCount, &row.Percent, &submittedAt); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		if submittedAt.Valid {
			row.SubmittedAt = submittedAt.Time
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return items, nil
}

func (s *Service) activeSession(ctx context.Context, quizID, studentID int64) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, quiz_id, student_id, status, started_at, submitted_at
		FROM quiz_sessions
		WHERE quiz_id = $1 AND student_id = $2 AND status = $3
		ORDER BY started_at DESC
		LIMIT 1
	`, quizID, studentID, statusActive)
	return scanSession(row)
}

func (s *Service) getOwnedSession(ctx context.Context, sessionID, studentID int64) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, quiz_id, student_id, status, started_at, submitted_at
		FROM quiz_sessions
		WHERE id = $1 AND student_id = $2
	`, sessionID, studentID)
	return scanSession(row)
}

func (s *Service) quizQuestions(ctx context.Context, quizID int64) ([]question.Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, body
		FROM quiz_questions
		WHERE quiz_id = $1
		ORDER BY seq_no ASC
	`, quizID)
	if err != nil {
		return nil, fmt.Errorf("query quiz questions: %w", err)
	}
	defer rows.Close()

	out := make([]question.Question, 0)
	for rows.Next() {
		var questionID string
		var body []byte
		if err := rows.Scan(&questionID, &body); err != nil {
			return nil, fmt.Errorf("scan quiz question: %w", err)
		}
		q, err := question.Unmarshal(body)
		if err != nil {
			return nil, fmt.Errorf("decode question %s: %w", questionID, err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quiz questions: %w", err)
	}
	return out, nil
}

func scanSession(row *sql.Row) (*Session, error) {
	var sess Session
	var submittedAt sql.NullTime
	if err := row.Scan(&sess.ID, &sess.QuizID, &sess.StudentID, &sess.Status, &sess.StartedAt, &submittedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if submittedAt.Valid {
		sess.SubmittedAt = &submittedAt.Time
	}
	return &sess, nil
}

func displayQuestion(q question.Question) DisplayQuestion {
	out := DisplayQuestion{
		ID:     question.ID(q),
		Type:   q.Kind(),
		Prompt: question.Prompt(q),
	}
	switch v := q.(type) {
	case question.Single:
		out.Options = v.Options
	case question.Multiple:
		out.Options = v.Options
	case question.Drag:
		out.Targets = v.Targets
		out.Items = v.Items
	case question.Composite:
		for _, sub := range v.SubQuestions {
			out.SubQuestions = append(out.SubQuestions, displayQuestion(sub))
		}
	}
	return out
}

// shuffleQuestions permutes display order with the session id as seed so
// resuming a session keeps the order stable.
func shuffleQuestions(qs []DisplayQuestion, sessionID int64) {
	rng := rand.New(rand.NewSource(sessionID))
	rng.Shuffle(len(qs), func(i, j int) {
		qs[i], qs[j] = qs[j], qs[i]
	})
}
