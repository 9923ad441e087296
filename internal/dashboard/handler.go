// Package dashboard serves the landing pages: the admin dashboard, the
// non-admin home page and the two not-authorized pages.
package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/roleboard/roleboard/internal/rbac"
	"github.com/roleboard/roleboard/internal/shared"
	"github.com/roleboard/roleboard/internal/upstream"
	"github.com/roleboard/roleboard/internal/view"
)

// Gateway provides the listings the dashboard counts.
type Gateway interface {
	Users(ctx context.Context, token string, q upstream.ListQuery) (upstream.UserPage, error)
	Roles(ctx context.Context, token string, q upstream.ListQuery) (upstream.RolePage, error)
}

// Handler renders the landing pages.
type Handler struct {
	logger    *slog.Logger
	gateway   Gateway
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, gateway Gateway, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, gateway: gateway, templates: templates, csrf: csrf}
}

// MountRoutes registers the landing pages on the root router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get(rbac.PathAdminHome, h.showDashboard)
	r.Get(rbac.PathHome, h.showHome)
	r.Get(rbac.PathNotAuthorized, h.notAuthorized(rbac.PathHome))
	r.Get(rbac.PathAdminDenied, h.notAuthorized(rbac.PathAdminHome))
}

// Summary holds the dashboard counters. Counters the principal may not see
// stay hidden.
type Summary struct {
	ShowUsers bool
	Users     int
	ShowRoles bool
	Roles     int
	Warning   string
}

// Summarize fetches the user and role totals concurrently.
func (h *Handler) Summarize(ctx context.Context, token string, perms rbac.PermissionSet) (Summary, error) {
	summary := Summary{
		ShowUsers: perms.Has(rbac.PermUsers),
		ShowRoles: perms.Has(rbac.PermRoles),
	}
	probe := upstream.ListQuery{Page: 1, Limit: 1}
	g, gctx := errgroup.WithContext(ctx)
	if summary.ShowUsers {
		g.Go(func() error {
			page, err := h.gateway.Users(gctx, token, probe)
			if err != nil {
				return err
			}
			summary.Users = page.Meta.Total
			return nil
		})
	}
	if summary.ShowRoles {
		g.Go(func() error {
			page, err := h.gateway.Roles(gctx, token, probe)
			if err != nil {
				return err
			}
			summary.Roles = page.Meta.Total
			return nil
		})
	}
	return summary, g.Wait()
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	principal := rbac.PrincipalFromContext(r.Context())
	summary, err := h.Summarize(r.Context(), shared.BearerFromRequest(r), principal.Permissions)
	if err != nil {
		h.logger.Warn("dashboard summary", slog.Any("error", err))
		summary.Warning = upstream.MessageOf(err, "Some figures could not be loaded")
	}
	h.render(w, r, http.StatusOK, "pages/dashboard.html", "Dashboard", summary)
}

func (h *Handler) showHome(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/home.html", "Home", nil)
}

type deniedData struct {
	Back string
}

func (h *Handler) notAuthorized(back string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, http.StatusUnauthorized, "pages/not_authorized.html", "Not Authorized", deniedData{Back: back})
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	viewData := view.NewTemplateData(r, h.csrf, title, data)
	if err := h.templates.Render(w, status, page, viewData); err != nil {
		h.logger.Error("render template", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
