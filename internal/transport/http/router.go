package http

import (
	"net/http"
	"time"

	"github.com/Tobby-pro/New-Rental-Stack/internal/metrics"
	httpmw "github.com/Tobby-pro/New-Rental-Stack/internal/transport/http/middleware"
	"github.com/Tobby-pro/New-Rental-Stack/pkg/httputil"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter mounts the REST API, the websocket endpoint, health and metrics.
// ws may be nil when realtime is disabled.
func NewRouter(cfg RouterConfig, h *Handler, verifier httpmw.TokenVerifier, limiter *httpmw.RateLimiter, m *metrics.Metrics, ws http.HandlerFunc) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(httputil.MiddlewareRequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(httputil.MiddlewareLogging)
	r.Use(middlewareChi.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", httputil.HeaderRequestID},
		ExposedHeaders:   []string{httputil.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(m.Middleware)

	if ws != nil {
		// token comes in the query string, checked by the ws server
		r.Get("/ws", ws)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.Auth(verifier))
		if limiter != nil {
			pr.Use(limiter.Middleware)
		}
		pr.Use(middlewareChi.Timeout(cfg.RequestTimeout))

		pr.Route("/api/chats", func(cr chi.Router) {
			cr.Post("/start-chat", h.StartChat)
			cr.Post("/resolve", h.Resolve)
			cr.Get("/", h.FindChat)
		})
		pr.Route("/api/messages", func(mr chi.Router) {
			mr.Post("/", h.SendMessage)
			mr.Post("/update-status", h.UpdateStatus)
			mr.Post("/mark-read", h.MarkRead)
			mr.Get("/{role}/{partyId}/conversations", h.ListConversations)
			mr.Get("/conversation/{id}", h.ListMessages)
		})
	})

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	return r
}
