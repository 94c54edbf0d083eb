package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

type RouterParams struct {
	Handlers       *Handlers
	Authenticate   func(http.Handler) http.Handler
	WebSocket      http.HandlerFunc
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// NewRouter wires the REST API, the WebSocket endpoint and health check
func NewRouter(params RouterParams) http.Handler {
	allowedOrigins := params.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(params.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handleHealth)

	if params.WebSocket != nil {
		r.With(params.Authenticate).Get("/ws", params.WebSocket)
	}

	h := params.Handlers
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(params.Authenticate)

		r.Route("/auctions", func(r chi.Router) {
			r.Post("/", h.HandleCreateAuction())
			r.Get("/", h.HandleListAuctions())
			r.Get("/{id}", h.HandleGetAuction())
			r.Get("/{id}/bids", h.HandleAuctionBids())
			r.Post("/{id}/bids", h.HandlePlaceBid())
		})

		r.Post("/notifications", h.HandleSendNotification())

		r.Route("/me", func(r chi.Router) {
			r.Get("/notifications", h.HandleMyNotifications())
			r.Get("/bids", h.HandleMyBids())
			r.Get("/auctions", h.HandleMyAuctions())
		})
	})

	return r
}

// requestLogger logs each request with zerolog
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "http").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("Request handled")
		})
	}
}
