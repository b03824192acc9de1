package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Perrohpta23/chatbot/internal/handlers"
	"github.com/Perrohpta23/chatbot/internal/middleware"
)

func New(
	identity *middleware.Identity,
	conversationHandler *handlers.ConversationHandler,
	chatHandler *handlers.ChatHandler,
	allowedOrigins []string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(allowedOrigins))

	// Chat rate limiter (30 req/min per IP), the one expensive endpoint
	chatLimiter := middleware.NewRateLimiter(30, time.Minute)

	// Health check, outside the identity chain so probes never mint users
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Post("/", conversationHandler.Create)
			r.Patch("/{id}", conversationHandler.Rename)
			r.Delete("/{id}", conversationHandler.Delete)
		})

		r.Get("/history", conversationHandler.History)

		r.Group(func(r chi.Router) {
			r.Use(chatLimiter.Middleware)
			r.Post("/chat", chatHandler.Chat)
		})

		// Application shell; the identity middleware sets the cookie on
		// first visit.
		r.Handle("/*", http.FileServer(http.Dir("web")))
	})

	return r
}
