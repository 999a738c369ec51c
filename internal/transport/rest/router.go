package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/datashare/internal/auth"
	"github.com/frahmantamala/datashare/internal/project"
	"github.com/frahmantamala/datashare/internal/transport/middleware"
	"github.com/frahmantamala/datashare/internal/transport/openapi"
	"github.com/frahmantamala/datashare/internal/transport/swagger"
	"github.com/frahmantamala/datashare/internal/user"
	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
)

// RegisterAllRoutes mounts every endpoint on router. validator may be nil,
// in which case requests are not checked against the OpenAPI contract.
func RegisterAllRoutes(router *chi.Mux, db *sqlx.DB, specPath string, validator *openapi.Validator, authHandler *auth.Handler, userHandler *user.Handler, projectHandler *project.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))
	if validator != nil {
		router.Use(validator.Middleware)
	}

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, specPath)
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", authHandler.Login)
			sr.Post("/refresh", authHandler.RefreshToken)
			sr.Post("/logout", authHandler.Logout)
		})

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(authHandler.AuthMiddleware)

			pr.Get("/me", authHandler.Me)

			pr.Route("/projects", func(prr chi.Router) {
				prr.Get("/", projectHandler.ListProjects)
				prr.Post("/", projectHandler.CreateProject)
				prr.Get("/summary", projectHandler.GetSummary)
				prr.Post("/refresh", projectHandler.RefreshProjects)

				prr.Route("/{id}", func(ir chi.Router) {
					ir.Get("/", projectHandler.GetProject)
					ir.Patch("/", projectHandler.UpdateProject)
					ir.Delete("/", projectHandler.DeleteProject)
					ir.Get("/rows", projectHandler.GetRows)
					ir.Post("/upload", projectHandler.UploadData)
					ir.Put("/columns", projectHandler.SelectColumns)
					ir.Get("/assignments", projectHandler.ListAssignments)
					ir.Post("/assignments", projectHandler.AddAssignment)
					ir.Delete("/assignments/{assignmentID}", projectHandler.RemoveAssignment)
				})
			})

			// User administration is restricted to global admins
			pr.Route("/users", func(ur chi.Router) {
				ur.Use(middleware.RequireAdmin(logger))
				ur.Get("/", userHandler.ListUsers)
				ur.Post("/", userHandler.CreateUser)
				ur.Get("/{id}", userHandler.GetUser)
				ur.Delete("/{id}", userHandler.DeleteUser)
				ur.Get("/{id}/projects", userHandler.GetUserProjects)
			})
		})
	})
}
