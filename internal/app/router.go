package app

import (
	"database/sql"
	"net/http"
	"time"

	"quizdesk/internal/app/observability"
	"quizdesk/internal/auth"
	"quizdesk/internal/question"
	"quizdesk/internal/report"
	"quizdesk/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
)

func NewRouter(cfg Config, db *sql.DB, rdb *redis.Client) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	collector := observability.NewCollector(db, rdb)
	r.Use(collector.Middleware)

	authSvc := auth.NewService(db, auth.ServiceConfig{
		SessionTTL:        time.Duration(cfg.SessionTTLHours) * time.Hour,
		BcryptCost:        cfg.BcryptCost,
		LoginMaxFailures:  cfg.LoginMaxFailures,
		LoginLockDuration: time.Duration(cfg.LoginLockMinutes) * time.Minute,
	})
	authHandler := auth.NewHandler(authSvc)

	quizSvc := question.NewService(db)
	quizHandler := question.NewHandler(quizSvc)

	answerCache := session.NewAnswerCache(rdb, time.Duration(cfg.AnswerCacheTTLHours)*time.Hour)
	sessionSvc := session.NewService(db, answerCache)
	sessionHandler := session.NewHandler(sessionSvc)

	reportSvc := report.NewService(sessionSvc)
	reportHandler := report.NewHandler(reportSvc)

	loginLimiter := NewIPRateLimiter(cfg.AuthRateLimitPerMin, time.Minute)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(CSRFMiddleware(cfg.CSRFEnforced))

		api.Group(func(public chi.Router) {
			public.Use(RateLimitMiddleware(loginLimiter))
			public.Post("/auth/register", authHandler.Register)
			public.Post("/auth/login", authHandler.Login)
		})

		api.Group(func(secure chi.Router) {
			secure.Use(authHandler.RequireAuth)
			secure.Get("/auth/me", authHandler.Me)
			secure.Post("/auth/logout", authHandler.Logout)

			secure.Get("/quizzes", quizHandler.ListQuizzes)
			secure.Get("/quizzes/{id}", quizHandler.GetQuiz)

			secure.Post("/quizzes/{id}/sessions", sessionHandler.Start)
			secure.Put("/sessions/{id}/answers/{questionID}", sessionHandler.SaveAnswer)
			secure.Post("/sessions/{id}/submit", sessionHandler.Submit)
			secure.Get("/sessions/{id}/result", sessionHandler.Result)

			secure.Group(func(teacher chi.Router) {
				teacher.Use(authHandler.RequireRoles(auth.RoleTeacher, auth.RoleAdmin))
				teacher.Post("/quizzes", quizHandler.CreateQuiz)
				teacher.Post("/quizzes/import", quizHandler.ImportQuiz)
				teacher.Delete("/quizzes/{id}", quizHandler.DeleteQuiz)
				teacher.Get("/quizzes/{id}/questions", quizHandler.ListQuestions)
				teacher.Post("/quizzes/{id}/questions", quizHandler.AddQuestion)
				teacher.Put("/quizzes/{id}/questions/{questionID}", quizHandler.UpdateQuestion)
				teacher.Delete("/quizzes/{id}/questions/{questionID}", quizHandler.DeleteQuestion)
				teacher.Post("/quizzes/{id}/publish", quizHandler.PublishQuiz)
				teacher.Post("/quizzes/{id}/unpublish", quizHandler.UnpublishQuiz)

				teacher.Get("/quizzes/{id}/results", reportHandler.QuizResults)
				teacher.Get("/quizzes/{id}/results/summary", reportHandler.QuizSummary)
				teacher.Get("/quizzes/{id}/results/export", reportHandler.ExportQuizResults)
			})

			secure.Group(func(admin chi.Router) {
				admin.Use(authHandler.RequireRoles(auth.RoleAdmin))
				admin.Post("/admin/users", authHandler.CreateUser)
			})
		})
	})

	return r
}
