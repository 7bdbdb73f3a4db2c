package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"quizdesk/internal/auth"

	"github.com/go-chi/chi/v5"
)

type mockSessionService struct {
	startFn      func(ctx context.Context, quizID, studentID int64) (*StartResult, error)
	saveAnswerFn func(ctx context.Context, sessionID, studentID int64, questionID string, payload json.RawMessage) error
	submitFn     func(ctx context.Context, sessionID, studentID int64) (*Result, error)
	resultFn     func(ctx context.Context, sessionID, studentID int64) (*Result, error)
}

func (m *mockSessionService) Start(ctx context.Context, quizID, studentID int64) (*StartResult, error) {
	if m.startFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.startFn(ctx, quizID, studentID)
}

func (m *mockSessionService) SaveAnswer(ctx context.Context, sessionID, studentID int64, questionID string, payload json.RawMessage) error {
	if m.saveAnswerFn == nil {
		return errors.New("not implemented")
	}
	return m.saveAnswerFn(ctx, sessionID, studentID, questionID, payload)
}

func (m *mockSessionService) Submit(ctx context.Context, sessionID, studentID int64) (*Result, error) {
	if m.submitFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.submitFn(ctx, sessionID, studentID)
}

func (m *mockSessionService) Result(ctx context.Context, sessionID, studentID int64) (*Result, error) {
	if m.resultFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.resultFn(ctx, sessionID, studentID)
}

func withParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func asStudent(r *http.Request, id int64) *http.Request {
	return r.WithContext(auth.ContextWithUser(r.Context(), &auth.User{ID: id, Role: auth.RoleStudent}))
}

func TestStartRequiresAuth(t *testing.T) {
	h := &Handler{svc: &mockSessionService{}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/3/sessions", nil)
	req = withParam(req, "id", "3")
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestStartOK(t *testing.T) {
	h := &Handler{svc: &mockSessionService{
		startFn: func(ctx context.Context, quizID, studentID int64) (*StartResult, error) {
			if quizID != 3 || studentID != 7 {
				t.Fatalf("unexpected args: %d %d", quizID, studentID)
			}
			return &StartResult{
				Session:   Session{ID: 12, QuizID: 3, StudentID: 7, Status: "active"},
				Questions: []DisplayQuestion{{ID: "q1", Type: "single", Prompt: "1+1?"}},
			}, nil
		},
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/3/sessions", nil)
	req = withParam(req, "id", "3")
	req = asStudent(req, 7)
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
}

func TestStartUnpublishedQuiz(t *testing.T) {
	h := &Handler{svc: &mockSessionService{
		startFn: func(ctx context.Context, quizID, studentID int64) (*StartResult, error) {
			return nil, ErrQuizNotAvailable
		},
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/3/sessions", nil)
	req = withParam(req, "id", "3")
	req = asStudent(req, 7)
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSaveAnswerOK(t *testing.T) {
	h := &Handler{svc: &mockSessionService{
		saveAnswerFn: func(ctx context.Context, sessionID, studentID int64, questionID string, payload json.RawMessage) error {
			if sessionID != 12 || studentID != 7 || questionID != "q1" {
				t.Fatalf("unexpected args: %d %d %q", sessionID, studentID, questionID)
			}
			if string(payload) != `"2"` {
				t.Fatalf("unexpected payload: %s", payload)
			}
			return nil
		},
	}}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/12/answers/q1", bytes.NewReader([]byte(`"2"`)))
	req = withParam(req, "id", "12")
	req = withParam(req, "questionID", "q1")
	req = asStudent(req, 7)
	w := httptest.NewRecorder()

	h.SaveAnswer(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestSaveAnswerUnknownQuestion(t *testing.T) {
	h := &Handler{svc: &mockSessionService{
		saveAnswerFn: func(ctx context.Context, sessionID, studentID int64, questionID string, payload json.RawMessage) error {
			return ErrQuestionNotInQuiz
		},
	}}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/12/answers/zz", bytes.NewReader([]byte(`"2"`)))
	req = withParam(req, "id", "12")
	req = withParam(req, "questionID", "zz")
	req = asStudent(req, 7)
	w := httptest.NewRecorder()

	h.SaveAnswer(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSubmitClosedSession(t *testing.T) {
	h := &Handler{svc: &mockSessionService{
		submitFn: func(ctx context.Context, sessionID, studentID int64) (*Result, error) {
			return nil, ErrSessionClosed
		},
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/12/submit", nil)
	req = withParam(req, "id", "12")
	req = asStudent(req, 7)
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestSubmitOK(t *testing.T) {
	h := &Handler{svc: &mockSessionService{
		submitFn: func(ctx context.Context, sessionID, studentID int64) (*Result, error) {
			return &Result{SessionID: 12, QuizID: 3, StudentID: 7, TotalQuestions: 4, CorrectCount: 2, Percent: 50}, nil
		},
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/12/submit", nil)
	req = withParam(req, "id", "12")
	req = asStudent(req, 7)
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestResultNotFound(t *testing.T) {
	h := &Handler{svc: &mockSessionService{
		resultFn: func(ctx context.Context, sessionID, studentID int64) (*Result, error) {
			return nil, ErrResultNotFound
		},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/12/result", nil)
	req = withParam(req, "id", "12")
	req = asStudent(req, 7)
	w := httptest.NewRecorder()

	h.Result(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
