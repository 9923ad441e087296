// Package permissions serves the permission catalog proxy and the signed-in
// user's permission pivot page.
package permissions

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roleboard/roleboard/internal/platform/httpx"
	"github.com/roleboard/roleboard/internal/rbac"
	"github.com/roleboard/roleboard/internal/shared"
	"github.com/roleboard/roleboard/internal/upstream"
	"github.com/roleboard/roleboard/internal/view"
)

// Catalog lists the permissions a token may assign.
type Catalog interface {
	ListPermissions(ctx context.Context, token string) (*upstream.Response, error)
}

// Handler manages permission listing.
type Handler struct {
	logger    *slog.Logger
	catalog   Catalog
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, catalog Catalog, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, catalog: catalog, templates: templates, csrf: csrf}
}

// MountRoutes registers the pivot page.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showPage)
}

// MountAPI registers the catalog proxy under /api/permissions.
func (h *Handler) MountAPI(r chi.Router) {
	r.Get("/", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	resp, err := h.catalog.ListPermissions(r.Context(), shared.BearerFromRequest(r))
	httpx.Relay(w, resp, err, "Couldn't fetch permissions")
}

type pageData struct {
	Rows []rbac.Affordance
}

func (h *Handler) showPage(w http.ResponseWriter, r *http.Request) {
	profile, _ := shared.ProfileFromContext(r.Context())
	viewData := view.NewTemplateData(r, h.csrf, "Permissions", pageData{Rows: profile.Permissions.Affordances()})
	if err := h.templates.Render(w, http.StatusOK, "pages/permissions.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
