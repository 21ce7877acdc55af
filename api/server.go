/*
server.go - HTTP router and middleware configuration

PURPOSE:

	Configures the HTTP router (chi), middleware stack, and route definitions.
	This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
 1. RequestID:  Unique ID per request for tracing
 2. hlog:       Request-scoped zerolog logger + access log line
 3. Recoverer:  Panic recovery (500 instead of crash)
 4. secure:     Security headers (HSTS/SSL redirect in production)
 5. CORS:       Cross-origin requests for the front-end
 6. Auth:       Bearer token on everything under /api

RATE LIMITING:

	CSV export is limited per actor (falls back to client IP).

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token parsing and role checks
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/unrolled/secure"
)

// RouterConfig carries the settings NewRouter needs.
type RouterConfig struct {
	JWTSecret           []byte
	CORSOrigins         []string
	ExportRatePerMinute int
	Production          bool
	Logger              zerolog.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Production,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      !cfg.Production,
	})

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(cfg.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(secureMiddleware.Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	exportLimit := cfg.ExportRatePerMinute
	if exportLimit <= 0 {
		exportLimit = 10
	}
	exportLimiter := httprate.Limit(exportLimit, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "Too many export requests", nil)
		}),
	)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(cfg.JWTSecret))

		r.Get("/summary", h.Summary)

		// Client routes
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
			r.Put("/{id}", h.UpdateClient)
			r.Delete("/{id}", h.DeleteClient)
			r.Get("/{id}/projects", h.ListProjects)
			r.Get("/{id}/periods", h.ListClientPeriods)
			r.Get("/{id}/productions", h.ListClientProductions)
		})

		// Project routes
		r.Route("/projects", func(r chi.Router) {
			r.Post("/", h.CreateProject)
			r.Put("/{id}", h.UpdateProject)
			r.Delete("/{id}", h.DeleteProject)
		})

		// Production type routes
		r.Route("/production-types", func(r chi.Router) {
			r.Get("/", h.ListProductionTypes)
			r.Post("/", h.CreateProductionType)
			r.Put("/{name}", h.UpdateProductionType)
		})

		// Production routes
		r.Route("/productions", func(r chi.Router) {
			r.Post("/", h.CreateProduction)
			r.Get("/{id}", h.GetProduction)
			r.Put("/{id}", h.UpdateProduction)
			r.Delete("/{id}", h.DeleteProduction)
			r.Post("/{id}/duplicate", h.DuplicateProduction)
		})

		// Period routes
		r.Route("/periods/{id}", func(r chi.Router) {
			r.Get("/", h.GetPeriod)
			r.Get("/productions", h.ListPeriodProductions)
			r.Get("/report", h.GetPeriodReport)
			r.With(exportLimiter).Get("/export.csv", h.ExportPeriodCSV)
			r.Post("/close", h.ClosePeriod)
			r.Post("/reopen", h.ReopenPeriod)
			r.With(RequireAdmin).Post("/recalculate", h.RecalculatePeriod)
		})
	})

	return r
}

func rateLimitKey(r *http.Request) (string, error) {
	if a, ok := ActorFrom(r.Context()); ok && a.ID != "" {
		return "actor:" + a.ID, nil
	}
	return httprate.KeyByIP(r)
}
