package settings

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/roleboard/roleboard/internal/platform/httpx"
	"github.com/roleboard/roleboard/internal/rbac"
	"github.com/roleboard/roleboard/internal/shared"
	"github.com/roleboard/roleboard/internal/upstream"
	"github.com/roleboard/roleboard/internal/view"
)

// Handler serves the settings page and its API proxy.
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

// MountRoutes registers the settings page.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showPage)
	r.Post("/", h.submitPage)
}

// MountAPI registers the proxy under /api/admin/settings.
func (h *Handler) MountAPI(r chi.Router) {
	r.Get("/", h.get)
	r.Put("/", h.put)
}

type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

func wrap(resp *upstream.Response) dataEnvelope {
	if resp.Empty() {
		return dataEnvelope{Data: json.RawMessage("null")}
	}
	return dataEnvelope{Data: json.RawMessage(resp.Body)}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Fetch(r.Context(), shared.BearerFromRequest(r))
	if err != nil {
		httpx.RespondError(w, err, "Unable to fetch settings")
		return
	}
	httpx.JSON(w, http.StatusOK, wrap(resp))
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	var in upstream.Settings
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err, "Unable to update settings")
		return
	}
	in = Normalize(in)
	if err := h.validator.Struct(formFrom(in)); err != nil {
		httpx.ValidationFailed(w, shared.ValidationMessages(err))
		return
	}
	resp, err := h.service.Update(r.Context(), shared.BearerFromRequest(r), in)
	if err != nil {
		httpx.RespondError(w, err, "Unable to update settings")
		return
	}
	httpx.JSON(w, http.StatusOK, wrap(resp))
}

type pageData struct {
	Settings  upstream.Settings
	Errors    map[string]string
	Error     string
	CanUpdate bool
}

func (h *Handler) showPage(w http.ResponseWriter, r *http.Request) {
	data := pageData{CanUpdate: h.canUpdate(r)}
	status := http.StatusOK
	settings, err := h.service.Load(r.Context(), shared.BearerFromRequest(r))
	if err != nil {
		h.logger.Error("load settings failed", slog.Any("error", err))
		data.Error = upstream.MessageOf(err, "Unable to fetch settings")
		status = upstream.StatusOf(err)
	}
	data.Settings = settings
	h.render(w, r, status, data)
}

func (h *Handler) submitPage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in := Normalize(upstream.Settings{
		SMTP: upstream.SMTPSettings{
			FromAddress: r.PostFormValue("smtp.from_address"),
			Host:        r.PostFormValue("smtp.host"),
			Port:        r.PostFormValue("smtp.port"),
			Username:    r.PostFormValue("smtp.username"),
			Password:    r.PostFormValue("smtp.password"),
			Encryption:  r.PostFormValue("smtp.encryption"),
		},
		Trestle: upstream.TrestleSettings{
			ClientID:     r.PostFormValue("trestle.client_id"),
			ClientSecret: r.PostFormValue("trestle.client_secret"),
			APIURL:       r.PostFormValue("trestle.api_url"),
		},
	})
	data := pageData{Settings: in, CanUpdate: h.canUpdate(r)}
	if err := h.validator.Struct(formFrom(in)); err != nil {
		data.Errors = shared.ValidationMessages(err)
		h.render(w, r, http.StatusUnprocessableEntity, data)
		return
	}
	if _, err := h.service.Update(r.Context(), shared.BearerFromRequest(r), in); err != nil {
		data.Error = upstream.MessageOf(err, "Unable to update settings")
		h.render(w, r, upstream.StatusOf(err), data)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Settings updated"})
	}
	http.Redirect(w, r, "/admin/settings", http.StatusSeeOther)
}

func (h *Handler) canUpdate(r *http.Request) bool {
	profile, _ := shared.ProfileFromContext(r.Context())
	return profile.Permissions.Can(rbac.PermSettings, rbac.PermissionUpdate)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	viewData := view.NewTemplateData(r, h.csrf, "Settings", data)
	if err := h.templates.Render(w, status, "pages/settings.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
