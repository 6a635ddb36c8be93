package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/speechwriter/internal/api/handlers"
	"github.com/nikhilbhutani/speechwriter/internal/api/middleware"
	"github.com/nikhilbhutani/speechwriter/internal/auth"
	"github.com/nikhilbhutani/speechwriter/internal/config"
	"github.com/nikhilbhutani/speechwriter/internal/document"
	"github.com/nikhilbhutani/speechwriter/internal/jobs"
	"github.com/nikhilbhutani/speechwriter/internal/session"
)

// Deps are the long-lived services the router exposes.
type Deps struct {
	UseCases  handlers.UseCases
	Providers handlers.Providers
	Runner    *jobs.Runner
	Guard     session.Guard
	Extractor document.TextExtractor
	// Redis is checked by /readyz when set.
	Redis handlers.Pinger
}

type Router struct {
	mux     *chi.Mux
	cfg     *config.Config
	deps    Deps
	limiter *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	return &Router{
		mux:     chi.NewRouter(),
		cfg:     cfg,
		deps:    deps,
		limiter: middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins, rt.cfg.Auth.SessionHeader))
	r.Use(rt.limiter.Limit)

	// Health endpoints (no session)
	health := handlers.NewHealthHandler(map[string]handlers.Pinger{"redis": rt.deps.Redis})
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	sessions := auth.NewSessionMiddleware(rt.cfg.Auth.JWTSecret, rt.cfg.Auth.SessionHeader)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(sessions.Authenticate)

		speechH := handlers.NewSpeechHandler(rt.deps.UseCases, rt.deps.Providers, rt.deps.Runner,
			rt.deps.Guard, rt.deps.Extractor, rt.cfg.Upload.MaxBytes)
		r.Post("/extract", speechH.Extract)
		r.Post("/template", speechH.Template)
		r.Post("/speech", speechH.Speech)

		jobH := handlers.NewJobHandler(rt.deps.Runner)
		r.Route("/jobs/{id}", func(r chi.Router) {
			r.Get("/", jobH.Get)
			r.Delete("/", jobH.Delete)
			r.Post("/cancel", jobH.Cancel)
			r.Get("/export", jobH.Export)
		})

		providerH := handlers.NewProviderHandler(rt.deps.Providers)
		r.Get("/providers", providerH.List)
	})

	return r
}

// Close stops background work owned by the router.
func (rt *Router) Close() {
	rt.limiter.Stop()
}
