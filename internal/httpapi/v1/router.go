// Package v1 wires the HTTP surface of the expense service.
// It keeps handlers thin, delegating ledger rules to the service layer.
package v1

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/expenses/internal/ledger"
	"github.com/tinoosan/expenses/internal/service/expense"
)

// Server wires handlers and middleware using Chi.
type Server struct {
	svc        expense.Service
	prefs      Preferences
	notices    NoticeFeed
	ready      ledger.ReadyChecker
	fixedOwner string
	log        *slog.Logger
	rt         *chi.Mux
}

// Options carries the optional collaborators of the server.
type Options struct {
	Auth AuthConfig
	// Ready is consulted by /readyz; nil means always ready.
	Ready ledger.ReadyChecker
	// FixedOwner, when set, is used for every request regardless of identity.
	FixedOwner string
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by basic request/response logging and panic recovery.
func New(svc expense.Service, prefs Preferences, notices NoticeFeed, logger *slog.Logger, opts Options) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)
	r.Use(authenticate(opts.Auth))

	s := &Server{
		svc:        svc,
		prefs:      prefs,
		notices:    notices,
		ready:      opts.Ready,
		fixedOwner: opts.FixedOwner,
		log:        logger,
		rt:         r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
	// Expenses (v1)
	s.rt.Get("/v1/expenses", s.listExpenses)
	s.rt.With(s.decodeFields).Post("/v1/expenses", s.createExpense)
	s.rt.Get("/v1/expenses/summary", s.getSummary)
	s.rt.With(s.expenseID, s.decodeFields).Put("/v1/expenses/{id}", s.updateExpense)
	s.rt.With(s.expenseID).Delete("/v1/expenses/{id}", s.deleteExpense)
	// Preferences
	s.rt.Get("/v1/settings", s.getSettings)
	s.rt.Patch("/v1/settings", s.patchSettings)
	s.rt.Post("/v1/settings/{name}/toggle", s.toggleSetting)
	// Notices
	s.rt.Get("/v1/notifications", s.listNotifications)
	// Dictionary
	s.rt.Get("/v1/dictionary/categories", s.getCategoriesDictionary)
	// Health (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}
