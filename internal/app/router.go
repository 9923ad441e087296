package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roleboard/roleboard/internal/auth"
	"github.com/roleboard/roleboard/internal/dashboard"
	"github.com/roleboard/roleboard/internal/observability"
	"github.com/roleboard/roleboard/internal/permissions"
	"github.com/roleboard/roleboard/internal/rbac"
	"github.com/roleboard/roleboard/internal/roles"
	"github.com/roleboard/roleboard/internal/settings"
	"github.com/roleboard/roleboard/internal/shared"
	"github.com/roleboard/roleboard/internal/users"
	"github.com/roleboard/roleboard/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	Gate               rbac.Middleware
	AuthHandler        *auth.Handler
	DashboardHandler   *dashboard.Handler
	UsersHandler       *users.Handler
	RolesHandler       *roles.Handler
	SettingsHandler    *settings.Handler
	PermissionsHandler *permissions.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router: server-rendered pages, the /api proxy,
// health, metrics and static assets, all behind the access gate.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
		Gate:           params.Gate,
	})...)

	r.Get("/healthz", healthz)

	// The gate redirects "/" and "/admin" before they get here.
	notReached := func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, rbac.PathAdmin, http.StatusTemporaryRedirect)
	}
	r.Get(rbac.PathRoot, notReached)
	r.Get(rbac.PathAdmin, notReached)

	params.AuthHandler.MountRoutes(r)
	params.DashboardHandler.MountRoutes(r)
	r.Route("/admin/users", params.UsersHandler.MountRoutes)
	r.Route("/admin/roles", params.RolesHandler.MountRoutes)
	r.Route("/admin/settings", params.SettingsHandler.MountRoutes)
	r.Route("/admin/permissions", params.PermissionsHandler.MountRoutes)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountAPI)
		r.Route("/permissions", params.PermissionsHandler.MountAPI)
		r.Route("/admin/users", params.UsersHandler.MountAPI)
		r.Route("/admin/roles", params.RolesHandler.MountAPI)
		r.Route("/admin/settings", params.SettingsHandler.MountAPI)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if assets, err := fs.Sub(web.Static, "static"); err != nil {
		params.Logger.Error("static assets unavailable", slog.Any("error", err))
	} else {
		files := http.StripPrefix("/static/", http.FileServer(http.FS(assets)))
		r.Handle("/static/*", middleware.SetHeader("Cache-Control", "public, max-age=3600")(files))
	}

	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
