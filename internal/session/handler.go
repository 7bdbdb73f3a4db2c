package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"quizdesk/internal/app/apiresp"
	"quizdesk/internal/auth"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc sessionService
}

type sessionService interface {
	Start(ctx context.Context, quizID, studentID int64) (*StartResult, error)
	SaveAnswer(ctx context.Context, sessionID, studentID int64, questionID string, payload json.RawMessage) error
	Submit(ctx context.Context, sessionID, studentID int64) (*Result, error)
	Result(ctx context.Context, sessionID, studentID int64) (*Result, error)
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return
	}

	quizID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || quizID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid quiz id"})
		return
	}

	out, err := h.svc.Start(r.Context(), quizID, user.ID)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, apiResponse{OK: true, Data: out})
}

func (h *Handler) SaveAnswer(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return
	}

	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	questionID := chi.URLParam(r, "questionID")
	if questionID == "" {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid question id"})
		return
	}

	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}

	if err := h.svc.SaveAnswer(r.Context(), sessionID, user.ID, questionID, payload); err != nil {
		writeSessionError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, apiResponse{OK: true})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return
	}

	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	out, err := h.svc.Submit(r.Context(), sessionID, user.ID)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: out})
}

func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return
	}

	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	out, err := h.svc.Result(r.Context(), sessionID, user.ID)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: out})
}

func sessionIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	sessionID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || sessionID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid session id"})
		return 0, false
	}
	return sessionID, true
}

func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrQuestionNotInQuiz):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrResultNotFound), errors.Is(err, ErrQuizNotAvailable):
		writeJSON(w, r, http.StatusNotFound, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrSessionClosed):
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
	apiresp.WriteError(w, r, code, payload.Error)
}
