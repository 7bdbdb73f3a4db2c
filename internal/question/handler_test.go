package question

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

type mockQuizService struct {
	importFn         func(ctx context.Context, in ImportDocumentInput) (*ImportReport, error)
	createQuizFn     func(ctx context.Context, in CreateQuizInput) (*Quiz, error)
	getQuizFn        func(ctx context.Context, quizID int64) (*Quiz, error)
	listQuizzesFn    func(ctx context.Context, ownerID int64) ([]Quiz, error)
	deleteQuizFn     func(ctx context.Context, quizID int64) error
	listQuestionsFn  func(ctx context.Context, quizID int64) ([]QuestionRecord, error)
	addQuestionFn    func(ctx context.Context, quizID int64, body json.RawMessage) (*QuestionRecord, error)
	updateQuestionFn func(ctx context.Context, quizID int64, questionID string, body json.RawMessage) (*QuestionRecord, error)
	deleteQuestionFn func(ctx context.Context, quizID int64, questionID string) error
	publishFn        func(ctx context.Context, quizID int64) (*Quiz, error)
	unpublishFn      func(ctx context.Context, quizID int64) (*Quiz, error)
}

func (m *mockQuizService) ImportDocument(ctx context.Context, in ImportDocumentInput) (*ImportReport, error) {
	if m.importFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.importFn(ctx, in)
}

func (m *mockQuizService) CreateQuiz(ctx context.Context, in CreateQuizInput) (*Quiz, error) {
	if m.createQuizFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.createQuizFn(ctx, in)
}

func (m *mockQuizService) GetQuiz(ctx context.Context, quizID int64) (*Quiz, error) {
	if m.getQuizFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.getQuizFn(ctx, quizID)
}

func (m *mockQuizService) ListQuizzes(ctx context.Context, ownerID int64) ([]Quiz, error) {
	if m.listQuizzesFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listQuizzesFn(ctx, ownerID)
}

func (m *mockQuizService) DeleteQuiz(ctx context.Context, quizID int64) error {
	if m.deleteQuizFn == nil {
		return errors.New("not implemented")
	}
	return m.deleteQuizFn(ctx, quizID)
}

func (m *mockQuizService) ListQuestions(ctx context.Context, quizID int64) ([]QuestionRecord, error) {
	if m.listQuestionsFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listQuestionsFn(ctx, quizID)
}

func (m *mockQuizService) AddQuestion(ctx context.Context, quizID int64, body json.RawMessage) (*QuestionRecord, error) {
	if m.addQuestionFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.addQuestionFn(ctx, quizID, body)
}

func (m *mockQuizService) UpdateQuestion(ctx context.Context, quizID int64, questionID string, body json.RawMessage) (*QuestionRecord, error) {
	if m.updateQuestionFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.updateQuestionFn(ctx, quizID, questionID, body)
}

func (m *mockQuizService) DeleteQuestion(ctx context.Context, quizID int64, questionID string) error {
	if m.deleteQuestionFn == nil {
		return errors.New("not implemented")
	}
	return m.deleteQuestionFn(ctx, quizID, questionID)
}

func (m *mockQuizService) PublishQuiz(ctx context.Context, quizID int64) (*Quiz, error) {
	if m.publishFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.publishFn(ctx, quizID)
}

func (m *mockQuizService) UnpublishQuiz(ctx context.Context, quizID int64) (*Quiz, error) {
	if m.unpublishFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.unpublishFn(ctx, quizID)
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func withParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateQuizRequiresAuth(t *testing.T) {
	h := &Handler{svc: &mockQuizService{}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes", bytes.NewReader([]byte(`{"title":"Toán 10"}`)))
	w := httptest.NewRecorder()

	h.CreateQuiz(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestCreateQuizOK(t *testing.T) {
	h := &Handler{svc: &mockQuizService{
		createQuizFn: func(ctx context.Context, in CreateQuizInput) (*Quiz, error) {
			if in.OwnerID != 9 || in.Title != "Toán 10" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &Quiz{ID: 4, OwnerID: in.OwnerID, Title: in.Title}, nil
		},
	}}

	payload := []byte(`{"title":"Toán 10","description":"Ôn tập"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes", bytes.NewReader(payload))
	req = req.WithContext(auth.ContextWithUser(req.Context(), &auth.User{ID: 9, Role: "teacher"}))
	w := httptest.NewRecorder()

	h.CreateQuiz(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	body := decodeMap(t, w)
	if body["ok"] != true {
		t.Fatalf("expected ok=true")
	}
}

func TestImportQuizOK(t *testing.T) {
	h := &Handler{svc: &mockQuizService{
		importFn: func(ctx context.Context, in ImportDocumentInput) (*ImportReport, error) {
			if in.OwnerID != 9 || in.Title != "Đề 1" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &ImportReport{
				QuizID:     7,
				Validation: Validation{OK: true},
				Questions:  []QuestionRecord{{QuizID: 7, SeqNo: 1, QuestionID: "101"}},
			}, nil
		},
	}}

	payload := []byte(`{"title":"Đề 1","text":"ID: 101\nCâu 1: 1+1?\nA. 1\n*B. 2"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/import", bytes.NewReader(payload))
	req = req.WithContext(auth.ContextWithUser(req.Context(), &auth.User{ID: 9, Role: "teacher"}))
	w := httptest.NewRecorder()

	h.ImportQuiz(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
}

func TestImportQuizValidationFailure(t *testing.T) {
	h := &Handler{svc: &mockQuizService{
		importFn: func(ctx context.Context, in ImportDocumentInput) (*ImportReport, error) {
			return &ImportReport{Validation: Validation{
				OK:     false,
				Errors: []string{`line 1: question ID "abc" must be a number`},
			}}, nil
		},
	}}

	payload := []byte(`{"title":"Đề hỏng","text":"ID: abc"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/import", bytes.NewReader(payload))
	req = req.WithContext(auth.ContextWithUser(req.Context(), &auth.User{ID: 9, Role: "teacher"}))
	w := httptest.NewRecorder()

	h.ImportQuiz(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	body := decodeMap(t, w)
	if body["ok"] != false {
		t.Fatalf("expected ok=false")
	}
	if body["data"] == nil {
		t.Fatalf("expected validation report in data")
	}
}

func TestGetQuizNotFound(t *testing.T) {
	h := &Handler{svc: &mockQuizService{
		getQuizFn: func(ctx context.Context, quizID int64) (*Quiz, error) {
			return nil, ErrQuizNotFound
		},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quizzes/99", nil)
	req = withParam(req, "id", "99")
	w := httptest.NewRecorder()

	h.GetQuiz(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetQuizRejectsBadID(t *testing.T) {
	h := &Handler{svc: &mockQuizService{}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/quizzes/abc", nil)
	req = withParam(req, "id", "abc")
	w := httptest.NewRecorder()

	h.GetQuiz(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListQuizzesOK(t *testing.T) {
	h := &Handler{svc: &mockQuizService{
		listQuizzesFn: func(ctx context.Context, ownerID int64) ([]Quiz, error) {
			if ownerID != 0 {
				t.Fatalf("unexpected owner filter: %d", ownerID)
			}
			return []Quiz{{ID: 1, Title: "Đề 1"}}, nil
		},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quizzes", nil)
	w := httptest.NewRecorder()

	h.ListQuizzes(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAddQuestionOK(t *testing.T) {
	h := &Handler{svc: &mockQuizService{
		addQuestionFn: func(ctx context.Context, quizID int64, body json.RawMessage) (*QuestionRecord, error) {
			if quizID != 4 {
				t.Fatalf("unexpected quiz id: %d", quizID)
			}
			return &QuestionRecord{QuizID: 4, SeqNo: 1, QuestionID: "q1", Body: body}, nil
		},
	}}

	payload := []byte(`{"type":"single","id":"q1","prompt":"1+1?","options":["1","2"],"correct_option":"2"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/4/questions", bytes.NewReader(payload))
	req = withParam(req, "id", "4")
	w := httptest.NewRecorder()

	h.AddQuestion(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
}

func TestAddQuestionToPublishedQuizConflicts(t *testing.T) {
	h := &Handler{svc: &mockQuizService{
		addQuestionFn: func(ctx context.Context, quizID int64, body json.RawMessage) (*QuestionRecord, error) {
			return nil, ErrQuizPublished
		},
	}}

	payload := []byte(`{"type":"text","id":"q1","prompt":"?","correct_answers":["x"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/4/questions", bytes.NewReader(payload))
	req = withParam(req, "id", "4")
	w := httptest.NewRecorder()

	h.AddQuestion(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestUpdateQuestionNotFound(t *testing.T) {
	h := &Handler{svc: &mockQuizService{
		updateQuestionFn: func(ctx context.Context, quizID int64, questionID string, body json.RawMessage) (*QuestionRecord, error) {
			return nil, ErrQuestionNotFound
		},
	}}

	payload := []byte(`{"type":"text","id":"nope","prompt":"?","correct_answers":["x"]}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/quizzes/4/questions/nope", bytes.NewReader(payload))
	req = withParam(req, "id", "4")
	req = withParam(req, "questionID", "nope")
	w := httptest.NewRecorder()

	h.UpdateQuestion(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestDeleteQuestionOK(t *testing.T) {
	called := false
	h := &Handler{svc: &mockQuizService{
		deleteQuestionFn: func(ctx context.Context, quizID int64, questionID string) error {
			called = true
			if quizID != 4 || questionID != "q1" {
				t.Fatalf("unexpected args: %d %q", quizID, questionID)
			}
			return nil
		},
	}}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/quizzes/4/questions/q1", nil)
	req = withParam(req, "id", "4")
	req = withParam(req, "questionID", "q1")
	w := httptest.NewRecorder()

	h.DeleteQuestion(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !called {
		t.Fatalf("expected service call")
	}
}

func TestPublishQuizIncomplete(t *testing.T) {
	h := &Handler{svc: &mockQuizService{
		publishFn: func(ctx context.Context, quizID int64) (*Quiz, error) {
			return nil, ErrQuizIncomplete
		},
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/4/publish", nil)
	req = withParam(req, "id", "4")
	w := httptest.NewRecorder()

	h.PublishQuiz(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestPublishQuizOK(t *testing.T) {
	h := &Handler{svc: &mockQuizService{
		publishFn: func(ctx context.Context, quizID int64) (*Quiz, error) {
			return &Quiz{ID: quizID, Title: "Đề 1", IsPublished: true}, nil
		},
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/4/publish", nil)
	req = withParam(req, "id", "4")
	w := httptest.NewRecorder()

	h.PublishQuiz(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
