package auth

import (
	"encoding/json"
	"errors"
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

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		service:     service,
		templates:   templates,
		csrfManager: csrf,
		validator:   shared.NewValidator(),
	}
}

// MountRoutes registers the login, logout and password reset pages.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get(rbac.PathLogin, h.showLogin)
	r.Post(rbac.PathLogin, h.handleLogin)
	r.Get(rbac.PathAdminLogin, h.showLogin)
	r.Post(rbac.PathAdminLogin, h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Get("/forgot-password", h.showForgotPassword)
	r.Post("/forgot-password", h.handleForgotPassword)
	r.Get("/reset-password", h.showResetPassword)
	r.Get("/reset-password/{token}", h.showResetPassword)
	r.Post("/reset-password", h.handleResetPassword)
}

// MountAPI registers the JSON endpoints under /api/auth.
func (h *Handler) MountAPI(r chi.Router) {
	r.Post("/login", h.apiLogin)
	r.Post("/logout", h.apiLogout)
	r.Post("/forgot-password", h.apiForgotPassword)
	r.Post("/reset-password", h.apiResetPassword)
}

type loginResponse struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (h *Handler) apiLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err, "Invalid credentials")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationFailed(w, shared.ValidationMessages(err))
		return
	}
	result, err := h.service.Login(r.Context(), w, shared.SessionFromContext(r.Context()), req)
	if err != nil {
		h.logger.Warn("login failed", slog.String("email", req.Email), slog.Any("error", err))
		httpx.RespondError(w, err, "Invalid credentials")
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{Message: "Login successful", Data: result.Data})
}

func (h *Handler) apiLogout(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Logout(r.Context(), w, shared.SessionFromContext(r.Context()), shared.BearerFromRequest(r))
	if err == nil && !resp.Empty() {
		httpx.Raw(w, resp.Status, resp.Body)
		return
	}
	httpx.Message(w, http.StatusOK, "Logged out")
}

func (h *Handler) apiForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err, "Unable to send reset link")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationFailed(w, shared.ValidationMessages(err))
		return
	}
	resp, err := h.service.ForgotPassword(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err, "Unable to send reset link")
		return
	}
	httpx.Raw(w, resp.Status, resp.Body)
}

func (h *Handler) apiResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err, "Unable to reset password")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationFailed(w, shared.ValidationMessages(err))
		return
	}
	resp, err := h.service.ResetPassword(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err, "Unable to reset password")
		return
	}
	httpx.Raw(w, resp.Status, resp.Body)
}

type loginPageData struct {
	Email  string
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/login.html", "Login", loginPageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	req := LoginRequest{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	if err := h.validator.Struct(req); err != nil {
		data := loginPageData{Email: req.Email, Errors: shared.ValidationMessages(err)}
		h.render(w, r, http.StatusUnprocessableEntity, "pages/login.html", "Login", data)
		return
	}

	result, err := h.service.Login(r.Context(), w, shared.SessionFromContext(r.Context()), req)
	if err != nil {
		h.logger.Warn("login failed", slog.String("email", req.Email), slog.Any("error", err))
		data := loginPageData{
			Email:  req.Email,
			Errors: map[string]string{"general": upstream.MessageOf(err, "Invalid credentials")},
		}
		h.render(w, r, upstream.StatusOf(err), "pages/login.html", "Login", data)
		return
	}
	target := rbac.PathHome
	if rbac.ParseRole(result.User.Role.Name).IsAdministrative() {
		target = rbac.PathAdminHome
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	_, err := h.service.Logout(r.Context(), w, shared.SessionFromContext(r.Context()), shared.BearerFromRequest(r))
	if err != nil && !errors.Is(err, ErrNoToken) {
		h.logger.Info("logout completed locally", slog.Any("error", err))
	}
	http.Redirect(w, r, rbac.PathAdminLogin, http.StatusSeeOther)
}

type forgotPageData struct {
	Email  string
	Errors map[string]string
}

func (h *Handler) showForgotPassword(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/forgot_password.html", "Forgot Password", forgotPageData{})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	req := ForgotPasswordRequest{Email: r.PostFormValue("email")}
	if err := h.validator.Struct(req); err != nil {
		data := forgotPageData{Email: req.Email, Errors: shared.ValidationMessages(err)}
		h.render(w, r, http.StatusUnprocessableEntity, "pages/forgot_password.html", "Forgot Password", data)
		return
	}
	if _, err := h.service.ForgotPassword(r.Context(), req); err != nil {
		data := forgotPageData{
			Email:  req.Email,
			Errors: map[string]string{"general": upstream.MessageOf(err, "Unable to send reset link")},
		}
		h.render(w, r, upstream.StatusOf(err), "pages/forgot_password.html", "Forgot Password", data)
		return
	}
	flash(r, "success", "Reset link sent. Check your inbox.")
	http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
}

type resetPageData struct {
	Token  string
	Errors map[string]string
}

func (h *Handler) showResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	h.render(w, r, http.StatusOK, "pages/reset_password.html", "Reset Password", resetPageData{Token: token})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	req := ResetPasswordRequest{
		Token:                r.PostFormValue("token"),
		Password:             r.PostFormValue("password"),
		PasswordConfirmation: r.PostFormValue("password_confirmation"),
	}
	if err := h.validator.Struct(req); err != nil {
		data := resetPageData{Token: req.Token, Errors: shared.ValidationMessages(err)}
		h.render(w, r, http.StatusUnprocessableEntity, "pages/reset_password.html", "Reset Password", data)
		return
	}
	if _, err := h.service.ResetPassword(r.Context(), req); err != nil {
		data := resetPageData{
			Token:  req.Token,
			Errors: map[string]string{"general": upstream.MessageOf(err, "Unable to reset password")},
		}
		h.render(w, r, upstream.StatusOf(err), "pages/reset_password.html", "Reset Password", data)
		return
	}
	flash(r, "success", "Password updated. Please sign in.")
	http.Redirect(w, r, rbac.PathAdminLogin, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	viewData := view.NewTemplateData(r, h.csrfManager, title, data)
	if err := h.templates.Render(w, status, page, viewData); err != nil {
		h.logger.Error("render page", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func flash(r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
}
