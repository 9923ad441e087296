package users

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

// Handler manages user management endpoints.
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

// MountRoutes registers the users page and its form actions.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPage)
	r.Post("/", h.createPage)
	r.Post("/{userId}", h.updatePage)
	r.Post("/{userId}/delete", h.deletePage)
}

// MountAPI registers the users proxy under /api/admin/users.
func (h *Handler) MountAPI(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Put("/{userId}", h.update)
	r.Delete("/{userId}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.List(r.Context(), shared.BearerFromRequest(r), upstream.ParseListQuery(r.URL.Query()))
	httpx.Relay(w, resp, err, "Couldn't fetch users")
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err, "Failed to create user")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationFailed(w, shared.ValidationMessages(err))
		return
	}
	resp, err := h.service.Create(r.Context(), shared.BearerFromRequest(r), req)
	httpx.Relay(w, resp, err, "Failed to create user")
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err, "Failed to update user")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationFailed(w, shared.ValidationMessages(err))
		return
	}
	resp, err := h.service.Update(r.Context(), shared.BearerFromRequest(r), chi.URLParam(r, "userId"), req)
	httpx.Relay(w, resp, err, "Failed to update user")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Delete(r.Context(), shared.BearerFromRequest(r), chi.URLParam(r, "userId"))
	httpx.Relay(w, resp, err, "Failed to delete user")
}

// formState carries a rejected submission back into the page. Target is
// "new" for the create form or the user ID of the edit form that failed.
type formState struct {
	Target string
	Values Form
	Errors map[string]string
	Error  string
}

type listPageData struct {
	Search     string
	Error      string
	CanCreate  bool
	Rows       []Row
	Roles      []RoleOption
	Pagination shared.Pagination
	Form       formState
}

// Failed reports whether the form identified by target was just rejected.
func (d listPageData) Failed(target string) bool {
	return d.Form.Target != "" && d.Form.Target == target
}

// EditValues seeds the edit form of row: the rejected submission when that
// form failed, the stored row otherwise.
func (d listPageData) EditValues(row Row) Form {
	if d.Failed(strconv.FormatInt(row.ID, 10)) {
		return d.Form.Values
	}
	return Form{Name: row.Name, Email: row.Email, RoleID: row.RoleID}
}

// CreateValues seeds the create form.
func (d listPageData) CreateValues() Form {
	if d.Failed(newTarget) {
		return d.Form.Values
	}
	return Form{}
}

const newTarget = "new"

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
		CanCreate: profile.Permissions.Can(rbac.PermUsers, rbac.PermissionCreate),
		Form:      form,
	}
	rows, pagination, err := h.service.Page(ctx, token, query, profile.Permissions)
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		data.Error = upstream.MessageOf(err, "Couldn't fetch users")
		if status == http.StatusOK {
			status = upstream.StatusOf(err)
		}
	}
	data.Rows = rows
	data.Pagination = pagination

	if data.CanCreate || anyEditable(rows) {
		// Without options the forms fall back to a plain role id field.
		if data.Roles, err = h.service.RoleOptions(ctx, token); err != nil {
			h.logger.Warn("list role options failed", slog.Any("error", err))
		}
	}

	viewData := view.NewTemplateData(r, h.csrf, "Users", data)
	if err := h.templates.Render(w, status, "pages/users.html", viewData); err != nil {
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

// allowed checks the caller's action affordance for a form post and sends
// the browser to the admin 401 page when it is missing.
func (h *Handler) allowed(w http.ResponseWriter, r *http.Request, typ rbac.PermissionType) bool {
	profile, _ := shared.ProfileFromContext(r.Context())
	if profile.Permissions.Can(rbac.PermUsers, typ) {
		return true
	}
	http.Redirect(w, r, rbac.PathAdminDenied, http.StatusSeeOther)
	return false
}

func (h *Handler) createPage(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r, rbac.PermissionCreate) {
		return
	}
	form := FormFromRequest(r)
	req := form.CreateRequest()
	state := formState{Target: newTarget, Values: form.Redacted()}
	if err := h.validator.Struct(req); err != nil {
		state.Errors = shared.ValidationMessages(err)
		h.renderList(w, r, http.StatusUnprocessableEntity, state)
		return
	}
	if _, err := h.service.Create(r.Context(), shared.BearerFromRequest(r), req); err != nil {
		state.Error = upstream.MessageOf(err, "Failed to create user")
		h.renderList(w, r, upstream.StatusOf(err), state)
		return
	}
	h.done(w, r, "User created successfully")
}

func (h *Handler) updatePage(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r, rbac.PermissionUpdate) {
		return
	}
	id := chi.URLParam(r, "userId")
	form := FormFromRequest(r)
	req := form.UpdateRequest()
	state := formState{Target: id, Values: form.Redacted()}
	if err := h.validator.Struct(req); err != nil {
		state.Errors = shared.ValidationMessages(err)
		h.renderList(w, r, http.StatusUnprocessableEntity, state)
		return
	}
	if _, err := h.service.Update(r.Context(), shared.BearerFromRequest(r), id, req); err != nil {
		state.Error = upstream.MessageOf(err, "Failed to update user")
		h.renderList(w, r, upstream.StatusOf(err), state)
		return
	}
	h.done(w, r, "User updated successfully")
}

func (h *Handler) deletePage(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r, rbac.PermissionDelete) {
		return
	}
	if _, err := h.service.Delete(r.Context(), shared.BearerFromRequest(r), chi.URLParam(r, "userId")); err != nil {
		h.flash(r, "error", upstream.MessageOf(err, "Failed to delete user"))
		http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
		return
	}
	h.done(w, r, "User deleted successfully")
}

func (h *Handler) done(w http.ResponseWriter, r *http.Request, msg string) {
	h.flash(r, "success", msg)
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func (h *Handler) flash(r *http.Request, kind, msg string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: msg})
	}
}
