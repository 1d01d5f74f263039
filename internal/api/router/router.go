// Package router assembles the HTTP API.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/intellagent/scheduling-service/internal/chat"
	"github.com/intellagent/scheduling-service/internal/http/handlers"
	httpmiddleware "github.com/intellagent/scheduling-service/internal/http/middleware"
	"github.com/intellagent/scheduling-service/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	BookingHandler     *handlers.BookingHandler
	ChatHandler        *chat.Handler
	NewsletterHandler  *handlers.NewsletterHandler
	AutomationHandler  *handlers.AutomationHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// ChatRateLimit caps chat turns per second per IP; zero disables the
	// limiter. The chat endpoint fronts a paid model API.
	ChatRateLimit float64
	ChatRateBurst int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handleHealth)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.BookingHandler != nil {
			api.Route("/sessions", func(sessions chi.Router) {
				sessions.Post("/", cfg.BookingHandler.CreateSession)
				sessions.Route("/{sessionID}", func(s chi.Router) {
					s.Get("/", cfg.BookingHandler.GetSession)
					s.Delete("/", cfg.BookingHandler.CloseSession)
					s.Get("/agents", cfg.BookingHandler.ListAgents)
					s.Put("/agent", cfg.BookingHandler.SelectAgent)
					s.Put("/timezone", cfg.BookingHandler.SetTimezone)
					s.Put("/date", cfg.BookingHandler.SelectDate)
					s.Put("/time", cfg.BookingHandler.SelectTime)
					s.Put("/contact", cfg.BookingHandler.SetContact)
					s.Post("/change-date", cfg.BookingHandler.ChangeDate)
					s.Post("/change-time", cfg.BookingHandler.ChangeTime)
					s.Post("/submit", cfg.BookingHandler.Submit)
					s.Get("/slots", cfg.BookingHandler.Slots)
					s.Get("/calendar", cfg.BookingHandler.Calendar)
				})
			})
		}

		if cfg.ChatHandler != nil {
			api.Route("/chat", func(c chi.Router) {
				if cfg.ChatRateLimit > 0 {
					c.Use(httpmiddleware.RateLimit(cfg.ChatRateLimit, cfg.ChatRateBurst))
				}
				c.Post("/message", cfg.ChatHandler.HandleMessage)
				c.Get("/history", cfg.ChatHandler.HandleHistory)
				c.Get("/ws", cfg.ChatHandler.HandleWebSocket)
			})
		}

		if cfg.AutomationHandler != nil {
			api.Route("/automation", func(a chi.Router) {
				a.Get("/status", cfg.AutomationHandler.Status)
				a.Post("/clear", cfg.AutomationHandler.Clear)
			})
		}

		if cfg.NewsletterHandler != nil {
			api.Post("/newsletter", cfg.NewsletterHandler.Subscribe)
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
