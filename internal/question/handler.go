package question

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"quizdesk/internal/app/apiresp"
	"quizdesk/internal/auth"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc quizService
}

type quizService interface {
	ImportDocument(ctx context.Context, in ImportDocumentInput) (*ImportReport, error)
	CreateQuiz(ctx context.Context, in CreateQuizInput) (*Quiz, error)
	GetQuiz(ctx context.Context, quizID int64) (*Quiz, error)
	ListQuizzes(ctx context.Context, ownerID int64) ([]Quiz, error)
	DeleteQuiz(ctx context.Context, quizID int64) error
	ListQuestions(ctx context.Context, quizID int64) ([]QuestionRecord, error)
	AddQuestion(ctx context.Context, quizID int64, body json.RawMessage) (*QuestionRecord, error)
	UpdateQuestion(ctx context.Context, quizID int64, questionID string, body json.RawMessage) (*QuestionRecord, error)
	DeleteQuestion(ctx context.Context, quizID int64, questionID string) error
	PublishQuiz(ctx context.Context, quizID int64) (*Quiz, error)
	UnpublishQuiz(ctx context.Context, quizID int64) (*Quiz, error)
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type createQuizRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type importDocumentRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Text        string `json:"text"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return
	}

	var req createQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}

	item, err := h.svc.CreateQuiz(r.Context(), CreateQuizInput{
		OwnerID:     user.ID,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		return
	}

	writeJSON(w, r, http.StatusCreated, apiResponse{OK: true, Data: item})
}

// ImportQuiz accepts a quiz document in the "ID:"/"Câu N:" text format and
// creates a quiz from it. A document that fails validation comes back as
// 422 with the line-numbered errors; parse warnings ride along on success.
func (h *Handler) ImportQuiz(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return
	}

	var req importDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}

	report, err := h.svc.ImportDocument(r.Context(), ImportDocumentInput{
		OwnerID:     user.ID,
		Title:       req.Title,
		Description: req.Description,
		Text:        req.Text,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		return
	}
	if !report.Validation.OK {
		writeJSON(w, r, http.StatusUnprocessableEntity, apiResponse{OK: false, Data: report, Error: "document failed validation"})
		return
	}

	writeJSON(w, r, http.StatusCreated, apiResponse{OK: true, Data: report})
}

func (h *Handler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	var ownerID int64
	if raw := strings.TrimSpace(r.URL.Query().Get("owner_id")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "owner_id must be positive"})
			return
		}
		ownerID = parsed
	}

	items, err := h.svc.ListQuizzes(r.Context(), ownerID)
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		return
	}

	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: items})
}

func (h *Handler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, ok := quizIDParam(w, r)
	if !ok {
		return
	}

	item, err := h.svc.GetQuiz(r.Context(), quizID)
	if err != nil {
		writeQuizError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: item})
}

func (h *Handler) DeleteQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, ok := quizIDParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteQuiz(r.Context(), quizID); err != nil {
		writeQuizError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, apiResponse{OK: true})
}

func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	quizID, ok := quizIDParam(w, r)
	if !ok {
		return
	}

	items, err := h.svc.ListQuestions(r.Context(), quizID)
	if err != nil {
		writeQuizError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: items})
}

func (h *Handler) AddQuestion(w http.ResponseWriter, r *http.Request) {
	quizID, ok := quizIDParam(w, r)
	if !ok {
		return
	}

	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}

	item, err := h.svc.AddQuestion(r.Context(), quizID, body)
	if err != nil {
		writeQuizError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, apiResponse{OK: true, Data: item})
}

func (h *Handler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	quizID, ok := quizIDParam(w, r)
	if !ok {
		return
	}
	questionID := strings.TrimSpace(chi.URLParam(r, "questionID"))
	if questionID == "" {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid question id"})
		return
	}

	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}

	item, err := h.svc.UpdateQuestion(r.Context(), quizID, questionID, body)
	if err != nil {
		writeQuizError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: item})
}

func (h *Handler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	quizID, ok := quizIDParam(w, r)
	if !ok {
		return
	}
	questionID := strings.TrimSpace(chi.URLParam(r, "questionID"))
	if questionID == "" {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid question id"})
		return
	}

	if err := h.svc.DeleteQuestion(r.Context(), quizID, questionID); err != nil {
		writeQuizError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, apiResponse{OK: true})
}

func (h *Handler) PublishQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, ok := quizIDParam(w, r)
	if !ok {
		return
	}

	item, err := h.svc.PublishQuiz(r.Context(), quizID)
	if err != nil {
		writeQuizError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: item})
}

func (h *Handler) UnpublishQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, ok := quizIDParam(w, r)
	if !ok {
		return
	}

	item, err := h.svc.UnpublishQuiz(r.Context(), quizID)
	if err != nil {
		writeQuizError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: item})
}

func quizIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	quizID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || quizID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid quiz id"})
		return 0, false
	}
	return quizID, true
}

func writeQuizError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrQuizNotFound), errors.Is(err, ErrQuestionNotFound):
		writeJSON(w, r, http.StatusNotFound, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrQuizPublished), errors.Is(err, ErrQuizIncomplete):
		writeJSON(w, r, http.StatusConflict, apiResponse{OK: false, Error: err.Error()})
	default:
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload apiResponse) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	if payload.Data != nil {
		apiresp.WriteErrorData(w, r, code, payload.Error, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
