/*
server.go - HTTP server setup and routing

PURPOSE:
  Configures the chi router: middleware stack, CORS, route registration,
  and the auth gate. Login is the only unauthenticated API route; every
  other /api route requires a bearer token.

MIDDLEWARE STACK (in order):
  1. RequestID - Unique id per request, echoed into log lines
  2. RealIP    - Client IP from X-Forwarded-For / X-Real-IP
  3. requestLogger - Structured zerolog access log
  4. Recoverer - Converts panics to 500 responses
  5. CORS      - Browser cross-origin support
  6. Timeout   - 60s request deadline

SEE ALSO:
  - handlers.go: the route handlers
  - auth.go: login and the bearer-token middleware
  - cmd/server/main.go: server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// NewRouter creates the chi router with all middleware and routes.
func NewRouter(h *Handler, auth *Auth, log zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Route("/policies", func(r chi.Router) {
				r.Get("/", h.ListRules)
				r.Post("/", h.CreateRule)
				r.Post("/import", h.ImportRules)
				r.Get("/import/template", h.ImportTemplate)
				r.Get("/import/template.xlsx", h.ImportTemplateWorkbook)
				r.Get("/{id}", h.GetRule)
				r.Delete("/{id}", h.DeleteRule)
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", h.ListProjects)
				r.Post("/", h.CreateProject)
				r.Get("/{id}", h.GetProject)
				r.Put("/{id}", h.UpdateProject)
				r.Delete("/{id}", h.DeleteProject)
			})

			r.Route("/companies", func(r chi.Router) {
				r.Get("/", h.ListCompanies)
				r.Post("/", h.CreateCompany)
				r.Get("/{id}", h.GetCompany)
				r.Delete("/{id}", h.DeleteCompany)
			})
		})
	})

	return r
}

// requestLogger emits one structured log line per request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
