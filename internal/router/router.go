package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"transcript-tool/internal/handlers"
	"transcript-tool/internal/middleware"
)

type Handlers struct {
	Health        *handlers.HealthHandler
	Session       *handlers.SessionHandler
	Transcription *handlers.TranscriptionHandler
	Transcript    *handlers.TranscriptHandler
	Chat          *handlers.ChatHandler
	Keys          *handlers.KeyHandler
	WebSocket     http.HandlerFunc
}

// New builds the HTTP surface. submitLimiter guards transcription submission.
func New(h Handlers, submitLimiter *middleware.RateLimiter, frontendURL string) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	r.Get("/health", h.Health.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/languages", handlers.Languages)

		// ──── Session Routes ────
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.Session.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Session.Get)
				r.Delete("/", h.Session.Delete)

				r.With(submitLimiter.Middleware).Post("/transcriptions", h.Transcription.Submit)
				r.Get("/transcripts", h.Transcript.List)

				r.Get("/messages", h.Chat.ListMessages)
				r.Delete("/messages", h.Chat.ClearMessages)
				r.With(chimiddleware.Timeout(3*time.Minute)).Post("/chat", h.Chat.AskQuestion)
			})
		})

		r.Get("/transcripts/{id}/export", h.Transcript.Export)
		r.Get("/jobs/{id}", h.Transcription.GetJob)

		// ──── Key Administration ────
		r.Route("/keys", func(r chi.Router) {
			r.Get("/", h.Keys.List)
			r.Post("/", h.Keys.Add)
			r.Post("/{fingerprint}/reset", h.Keys.Reset)
			r.Post("/{fingerprint}/probe", h.Keys.Probe)
			r.Delete("/{fingerprint}", h.Keys.Delete)
		})

		// ──── WebSocket ────
		r.Get("/ws", h.WebSocket)
	})

	return r
}
