package roles

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/roleboard/roleboard/internal/platform/httpx"
	"github.com/roleboard/roleboard/internal/rbac"
	"github.com/roleboard/roleboard/internal/shared"
	"github.com/roleboard/roleboard/internal/upstream"
	"github.com/roleboard/roleboard/internal/view"
)

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, validator: shared.NewValidator()}
}

// MountRoutes registers the roles page and its form actions.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPage)
	r.Post("/", h.createPage)
	r.Post("/{roleId}", h.updatePage)
	r.Post("/{roleId}/delete", h.deletePage)
}

// MountAPI registers the roles proxy under /api/admin/roles.
func (h *Handler) MountAPI(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Put("/{roleId}", h.update)
	r.Delete("/{roleId}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.List(r.Context(), shared.BearerFromRequest(r), upstream.ParseListQuery(r.URL.Query()))
	httpx.Relay(w, resp, err, "Couldn't fetch roles")
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, fallback string) (RoleRequest, bool) {
	var req RoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err, fallback)
		return req, false
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationFailed(w, shared.ValidationMessages(err))
		return req, false
	}
	return req, true
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r, "Couldn't create role")
	if !ok {
		return
	}
	resp, err := h.service.Create(r.Context(), shared.BearerFromRequest(r), req)
	httpx.Relay(w, resp, err, "Couldn't create role")
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r, "Couldn't update role")
	if !ok {
		return
	}
	resp, err := h.service.Update(r.Context(), shared.BearerFromRequest(r), chi.URLParam(r, "roleId"), req)
	httpx.Relay(w, resp, err, "Couldn't update role")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Delete(r.Context(), shared.BearerFromRequest(r), chi.URLParam(r, "roleId"))
	httpx.Relay(w, resp, err, "An error occurred while deleting the role.")
}

const newTarget = "new"

// formState carries a rejected submission back into the page. Target is
// "new" for the create form or the role ID of the edit form that failed.
type formState struct {
	Target string
	Values Form
	Errors map[string]string
	Error  string
}

type listPageData struct {
	Search      string
	Error       string
	CanCreate   bool
	Rows        []Row
	Permissions []PermissionOption
	Pagination  shared.Pagination
	Form        formState
}

func (d listPageData) Failed(target string) bool {
	return d.Form.Target != "" && d.Form.Target == target
}

func (d listPageData) CreateName() string {
	if d.Failed(newTarget) {
		return d.Form.Values.Name
	}
	return ""
}

func (d listPageData) CreateChecked(opt PermissionOption) bool {
	return d.Failed(newTarget) && d.Form.Values.Checked(opt)
}

func (d listPageData) EditName(row Row) string {
	if d.Failed(strconv.FormatInt(row.ID, 10)) {
		return d.Form.Values.Name
	}
	return row.Name
}

// EditChecked pre-ticks the role's current grants, or the rejected selection
// when that row's form failed.
func (d listPageData) EditChecked(row Row, opt PermissionOption) bool {
	if d.Failed(strconv.FormatInt(row.ID, 10)) {
		return d.Form.Values.Checked(opt)
	}
	return row.Records.Can(opt.Name, opt.Type)
}

func (h *Handler) listPage(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, http.StatusOK, formState{})
}

func (h *Handler) renderList(w http.ResponseWriter, r *http.Request, status int, form formState) {
	ctx := r.Context()
	token := shared.BearerFromRequest(r)
	query := upstream.ParseListQuery(r.URL.Query())
	profile, _ := shared.ProfileFromContext(ctx)
	data := listPageData{
		Search:    query.Search,
		CanCreate: profile.Permissions.Can(rbac.PermRoles, rbac.PermissionCreate),
		Form:      form,
	}
	rows, pagination, err := h.service.Page(ctx, token, query, profile.Permissions)
	if err != nil {
		h.logger.Error("list roles failed", slog.Any("error", err))
		data.Error = upstream.MessageOf(err, "Couldn't fetch roles")
		if status == http.StatusOK {
			status = upstream.StatusOf(err)
		}
	}
	data.Rows = rows
	data.Pagination = pagination

	if data.CanCreate || anyEditable(rows) {
		if data.Permissions, err = h.service.PermissionOptions(ctx, token); err != nil {
			h.logger.Warn("load permission catalog failed", slog.Any("error", err))
		}
	}

	viewData := view.NewTemplateData(r, h.csrf, "Roles", data)
	if err := h.templates.Render(w, status, "pages/roles.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func anyEditable(rows []Row) bool {
	for _, row := range rows {
		if row.CanEdit {
			return true
		}
	}
	return false
}

func (h *Handler) allowed(w http.ResponseWriter, r *http.Request, typ rbac.PermissionType) bool {
	profile, _ := shared.ProfileFromContext(r.Context())
	if profile.Permissions.Can(rbac.PermRoles, typ) {
		return true
	}
	http.Redirect(w, r, rbac.PathAdminDenied, http.StatusSeeOther)
	return false
}

// submit validates a posted role form and hands it to send. Failures
// re-render the listing with the form reopened.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, target, fallback, success string,
	send func(RoleRequest) error) {
	form := FormFromRequest(r)
	req := form.Request()
	state := formState{Target: target, Values: form}
	if err := h.validator.Struct(req); err != nil {
		state.Errors = shared.ValidationMessages(err)
		h.renderList(w, r, http.StatusUnprocessableEntity, state)
		return
	}
	if err := send(req); err != nil {
		state.Error = upstream.MessageOf(err, fallback)
		h.renderList(w, r, upstream.StatusOf(err), state)
		return
	}
	h.redirect(w, r, "success", success)
}

func (h *Handler) createPage(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r, rbac.PermissionCreate) {
		return
	}
	h.submit(w, r, newTarget, "Couldn't create role", "Role created successfully", func(req RoleRequest) error {
		_, err := h.service.Create(r.Context(), shared.BearerFromRequest(r), req)
		return err
	})
}

func (h *Handler) updatePage(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r, rbac.PermissionUpdate) {
		return
	}
	id := chi.URLParam(r, "roleId")
	h.submit(w, r, id, "Couldn't update role", "Role updated successfully", func(req RoleRequest) error {
		_, err := h.service.Update(r.Context(), shared.BearerFromRequest(r), id, req)
		return err
	})
}

func (h *Handler) deletePage(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r, rbac.PermissionDelete) {
		return
	}
	if _, err := h.service.Delete(r.Context(), shared.BearerFromRequest(r), chi.URLParam(r, "roleId")); err != nil {
		h.redirect(w, r, "error", upstream.MessageOf(err, "An error occurred while deleting the role."))
		return
	}
	h.redirect(w, r, "success", "Role deleted successfully")
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, kind, msg string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: msg})
	}
	http.Redirect(w, r, "/admin/roles", http.StatusSeeOther)
}
