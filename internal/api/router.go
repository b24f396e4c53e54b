package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/snowballr/snowballr-api/internal/api/handler"
	"github.com/snowballr/snowballr-api/internal/api/middleware"
	"github.com/snowballr/snowballr-api/internal/api/validation"
	"github.com/snowballr/snowballr-api/internal/author"
	"github.com/snowballr/snowballr-api/internal/mail"
	"github.com/snowballr/snowballr-api/internal/metrics"
	"github.com/snowballr/snowballr-api/internal/paper"
	"github.com/snowballr/snowballr-api/internal/project"
	"github.com/snowballr/snowballr-api/internal/source"
	"github.com/snowballr/snowballr-api/internal/user"
)

// AuthService is what the router needs from auth.Service.
type AuthService interface {
	handler.AuthService
	middleware.Identifier
}

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	DBPinger      handler.DBPinger
	Version       string
	OpenAPISpec   []byte
	Metrics       *metrics.HTTP
	LoginLimiter  *middleware.RateLimiter
	AuthService   AuthService
	Authorizer    validation.Authorizer
	UserRepo      user.Repository
	ProjectRepo   project.Repository
	PaperRepo     paper.Repository
	AuthorRepo    author.Repository
	PaperSources  source.Store
	AuthorSources source.Store
	Mailer        mail.Sender
	SiteURL       string
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Instrument)
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	if len(deps.OpenAPISpec) > 0 {
		openapiHandler := handler.NewOpenAPIHandler(deps.OpenAPISpec)
		r.Get("/openapi.json", openapiHandler.ServeHTTP)
	}

	if deps.AuthService == nil {
		return r
	}

	v := validation.NewValidator(deps.Authorizer)
	mailer := deps.Mailer
	if mailer == nil {
		mailer = mail.LogSender{}
	}

	authHandler := handler.NewAuthHandler(v, deps.AuthService)
	userHandler := handler.NewUserHandler(v, deps.UserRepo, deps.AuthService, mailer, deps.SiteURL)
	projectHandler := handler.NewProjectHandler(v, deps.ProjectRepo)
	paperHandler := handler.NewPaperHandler(v, deps.PaperRepo, deps.AuthorRepo, deps.PaperSources)
	authorHandler := handler.NewAuthorHandler(v, deps.AuthorRepo, deps.PaperRepo, deps.AuthorSources)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity(deps.AuthService))

		limited := r.With()
		if deps.LoginLimiter != nil {
			limited = r.With(deps.LoginLimiter.Middleware)
		}

		limited.Post("/login", authHandler.Login)
		limited.Post("/refresh", authHandler.Refresh)
		r.Get("/logout", authHandler.Logout)

		r.Route("/users", func(r chi.Router) {
			if deps.LoginLimiter != nil {
				r.With(deps.LoginLimiter.Middleware).Post("/reset", userHandler.RequestReset)
			} else {
				r.Post("/reset", userHandler.RequestReset)
			}
			r.Post("/", userHandler.Create)
			r.Get("/", userHandler.List)
			r.Get("/{id}", userHandler.GetByID)
			r.Patch("/{id}", userHandler.Update)
			r.Delete("/{id}", userHandler.Delete)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", projectHandler.Create)
			r.Get("/{id}/members", projectHandler.Members)
			r.Post("/{id}/members", projectHandler.AddMember)
			r.Delete("/{id}/members/{userId}", projectHandler.RemoveMember)
		})

		r.Route("/papers", func(r chi.Router) {
			r.Get("/", paperHandler.List)
			r.Post("/", paperHandler.Create)
			r.Get("/{id}", paperHandler.GetByID)
			r.Patch("/{id}", paperHandler.Update)
			r.Get("/{id}/citations", paperHandler.Citations)
			r.Get("/{id}/references", paperHandler.References)
			r.Get("/{id}/authors", paperHandler.Authors)
		})

		r.Route("/authors", func(r chi.Router) {
			r.Get("/", authorHandler.List)
			r.Post("/", authorHandler.Create)
			r.Get("/{id}", authorHandler.GetByID)
			r.Patch("/{id}", authorHandler.Update)
			r.Delete("/{id}", authorHandler.Delete)
			r.Get("/{id}/papers", authorHandler.Papers)
		})
	})

	return r
}
