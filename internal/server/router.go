package server

import (
	"net/http"

	"github.com/cloo-solutions/aura/internal/api"
	"github.com/cloo-solutions/aura/internal/api/handlers"
	"github.com/cloo-solutions/aura/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

// multipart framing on top of the file itself
const uploadEnvelopeBytes int64 = 1024 * 1024

type RouterConfig struct {
	AllowedOrigins []string
	MaxUploadBytes int64

	HealthHandler       *handlers.HealthHandler
	DocumentHandler     *handlers.DocumentHandler
	ChatHandler         *handlers.ChatHandler
	ConversationHandler *handlers.ConversationHandler
	QuizHandler         *handlers.QuizHandler
	ProgressHandler     *handlers.ProgressHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = handlers.DefaultMaxUploadBytes
	}
	const maxJSONBytes int64 = 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	health := cfg.HealthHandler
	if health == nil {
		health = handlers.NewHealthHandler(nil)
	}
	r.Get("/health", health.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireUser)

		r.With(middleware.MaxBodyBytes(maxUpload+uploadEnvelopeBytes)).
			Post("/documents", cfg.DocumentHandler.Upload)

		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodyBytes(maxJSONBytes))

			r.Route("/documents/{id}", func(r chi.Router) {
				r.Get("/", cfg.DocumentHandler.Get)
				r.Get("/download", cfg.DocumentHandler.Download)
			})

			r.Post("/chat", cfg.ChatHandler.Chat)
			r.Get("/conversations/{sessionId}", cfg.ConversationHandler.Get)

			r.Route("/quizzes", func(r chi.Router) {
				r.Post("/", cfg.QuizHandler.Create)
				r.Get("/{id}", cfg.QuizHandler.Get)
				r.Post("/{id}/attempts", cfg.QuizHandler.SubmitAttempt)
			})

			r.Route("/progress", func(r chi.Router) {
				r.Get("/", cfg.ProgressHandler.List)
				r.Get("/due", cfg.ProgressHandler.Due)
				r.Get("/{topicId}", cfg.ProgressHandler.Get)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, http.StatusNotFound, "route not found")
	})

	return r
}
