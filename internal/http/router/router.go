package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fleetway/fleetway/internal/domain"
	"github.com/fleetway/fleetway/internal/http/handler"
	"github.com/fleetway/fleetway/internal/http/middleware"
	"github.com/fleetway/fleetway/internal/http/response"
	"github.com/fleetway/fleetway/internal/service"
)

type Dependencies struct {
	AuthHandler    *handler.AuthHandler
	MFAHandler     *handler.MFAHandler
	SessionHandler *handler.SessionHandler
	GroupHandler   *handler.GroupHandler
	AccountHandler *handler.AccountHandler

	Verifier service.AccessTokenVerifier
	Roles    service.RoleResolver

	APIRateLimitRPM  int
	AuthRateLimitRPM int
	EnableOTelHTTP   bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit(1 << 20))
	r.Use(middleware.NewRateLimiter("api", dep.APIRateLimitRPM).Middleware())

	authLimiter := middleware.NewRateLimiter("auth", dep.AuthRateLimitRPM).Middleware()
	authed := middleware.Auth(dep.Verifier)
	adminOnly := middleware.RequireRole(dep.Roles, domain.RoleAdmin)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
			r.With(authLimiter).Post("/refresh", dep.AuthHandler.Refresh)
			r.With(authed).Post("/logout", dep.AuthHandler.Logout)
			r.With(authed, authLimiter).Post("/change-password", dep.AuthHandler.ChangePassword)
		})

		r.Route("/me", func(r chi.Router) {
			r.Use(authed)
			r.Get("/", dep.AuthHandler.Me)

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", dep.SessionHandler.List)
				r.Delete("/{session_id}", dep.SessionHandler.Revoke)
				r.Post("/revoke-others", dep.SessionHandler.RevokeOthers)
			})

			r.Route("/mfa/totp", func(r chi.Router) {
				r.Get("/", dep.MFAHandler.Status)
				r.Post("/setup", dep.MFAHandler.Setup)
				r.Post("/verify", dep.MFAHandler.Verify)
				r.Post("/disable", dep.MFAHandler.Disable)
				r.Post("/backup-codes/regenerate", dep.MFAHandler.RegenerateBackupCodes)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authed)
			r.Use(adminOnly)

			r.Route("/accounts", func(r chi.Router) {
				r.Post("/", dep.AccountHandler.Create)
				r.Get("/", dep.AccountHandler.List)
				r.Get("/{id}", dep.AccountHandler.Get)
				r.Delete("/{id}", dep.AccountHandler.Delete)
				r.Post("/{id}/sessions/revoke", dep.AccountHandler.RevokeSessions)
				r.Post("/{id}/mfa/reset", dep.MFAHandler.AdminReset)
			})

			r.Route("/groups", func(r chi.Router) {
				r.Post("/", dep.GroupHandler.Create)
				r.Get("/", dep.GroupHandler.List)
				r.Get("/{id}", dep.GroupHandler.Get)
				r.Patch("/{id}", dep.GroupHandler.Update)
				r.Delete("/{id}", dep.GroupHandler.Delete)
				r.Get("/{id}/members", dep.GroupHandler.ListMembers)
				r.Post("/{id}/members", dep.GroupHandler.AddMember)
				r.Delete("/{id}/members/{account_id}", dep.GroupHandler.RemoveMember)
			})
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
