package ticket_api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"onfa-ticketing/internal/auth"
	"onfa-ticketing/internal/logger"
)

type RouterOptions struct {
	MaxBodyBytes int64
}

func NewRouter(h *Handler, events *SSEHandler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	if opts.MaxBodyBytes > 0 {
		r.Use(limitBody(opts.MaxBodyBytes))
	}

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Get("/tiers", h.Tiers)
		r.Get("/ticket/{ticketID}/qr.png", h.QRCode)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(h.Issuer, h.Revocations, h.Logger))

			r.Post("/logout", h.Logout)
			r.Get("/stats", h.Stats)
			r.Post("/checkin", h.CheckIn)
			r.Post("/update-status", h.UpdateStatus)
			r.Get("/ticket/{ticketID}", h.ViewTicket)
			r.Get("/ticket/{ticketID}/image", h.PaymentImage)
			r.Get("/events", events.HandleCheckIns)
		})
	})

	return r
}

// RequestLogger writes one API line per request.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), fmt.Sprint(time.Since(start).Round(time.Millisecond)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
