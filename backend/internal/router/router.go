package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itchan-dev/itchat/backend/internal/setup"
	"github.com/itchan-dev/itchat/shared/csrf"
	mw "github.com/itchan-dev/itchat/shared/middleware"
	"github.com/itchan-dev/itchat/shared/middleware/metrics"
)

// New creates the chi router with all the routes.
// IMPORTANT! a ratelimiter passed to .Use limits all endpoints of that group combined
func New(deps *setup.Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	// event streams are not in the compressible types
	r.Use(middleware.Compress(5))

	// setup CORS for frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Public.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", csrf.HeaderName},
		AllowCredentials: true,
	}))
	r.Use(mw.SecurityHeaders(deps.Config.Public.Https))

	h := deps.Handler
	authMw := deps.AuthMiddleware

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.CSRF(deps.Config.Public.Https))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(authMw.AdminOnly())
			r.Get("/admin/site-settings", h.GetSiteSettings)
			r.Put("/admin/site-settings", h.UpdateSiteSettings)
			r.Post("/channels", h.CreateChannel)
			r.Put("/channels/{channel}/threading", h.SetChannelThreading)
			r.Post("/channels/{channel}/messages/{message}/rebake", h.RebakeMessage)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMw.NeedAuth())
			r.Get("/channels", h.ListChannels)
			r.Get("/channels/{channel}", h.GetChannel)
			r.With(mw.RateLimit(deps.StreamLimiter, mw.ByUser)).Get("/channels/{channel}/stream", h.Stream)
			r.Get("/channels/{channel}/threads/{thread}", h.GetThread)
			r.Get("/channels/{channel}/messages", h.ListMessages)
			r.Get("/channels/{channel}/messages/{message}", h.GetMessage)
			r.Delete("/channels/{channel}/messages/{message}", h.TrashMessage)
			r.Post("/channels/{channel}/messages/{message}/restore", h.RestoreMessage)

			// Rate-limited writes
			r.Group(func(r chi.Router) {
				r.Use(mw.RateLimit(deps.MessageLimiter, mw.ByUser))
				r.Use(mw.GlobalRateLimit(deps.GlobalLimiter))
				r.Post("/channels/{channel}/messages", h.CreateMessage)
				r.Put("/channels/{channel}/messages/{message}", h.EditMessage)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not found", http.StatusNotFound)
	})

	return r
}
