package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/roleboard/roleboard/internal/rbac"
	"github.com/roleboard/roleboard/internal/shared"
	"github.com/roleboard/roleboard/internal/upstream"
)

// ErrNoToken is returned by Logout when the caller held no token.
var ErrNoToken = errors.New("auth: no token to revoke")

// ErrMissingToken is returned when upstream accepts a login but sends no token.
var ErrMissingToken = &upstream.Error{Status: http.StatusBadGateway, Message: "Login response missing token"}

// Service runs the login and logout flows. Both replace or clear the whole
// principal (cookies and server-side profile) together.
type Service struct {
	gateway  Gateway
	store    rbac.SessionStore
	sessions *shared.SessionManager
	csrf     *shared.CSRFManager
	audit    *shared.AuditLogger
	logger   *slog.Logger
}

// NewService constructs a new Service. sessions, csrf and audit may be nil.
func NewService(gateway Gateway, store rbac.SessionStore, sessions *shared.SessionManager, csrf *shared.CSRFManager, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		gateway:  gateway,
		store:    store,
		sessions: sessions,
		csrf:     csrf,
		audit:    audit,
		logger:   logger,
	}
}

// Login authenticates against upstream and installs the resulting principal.
func (s *Service) Login(ctx context.Context, w http.ResponseWriter, sess *shared.Session, req LoginRequest) (upstream.LoginResult, error) {
	creds := upstream.Credentials{Email: strings.TrimSpace(req.Email), Password: strings.TrimSpace(req.Password)}
	result, err := s.gateway.Login(ctx, creds)
	if err != nil {
		return upstream.LoginResult{}, err
	}
	if strings.TrimSpace(result.Token) == "" {
		return upstream.LoginResult{}, ErrMissingToken
	}

	records := result.Records()
	principal := rbac.Principal{
		Token:       result.Token,
		Role:        rbac.ParseRole(result.User.Role.Name),
		Permissions: records.Set(),
	}
	if err := s.store.Write(w, principal); err != nil {
		return upstream.LoginResult{}, fmt.Errorf("auth: write principal: %w", err)
	}

	if sess != nil && s.sessions != nil {
		if err := s.sessions.Renew(ctx, sess); err != nil {
			s.logger.Warn("renew session", slog.Any("error", err))
		}
		sess.SetProfile(shared.Profile{
			ID:          result.User.ID,
			Name:        result.User.Name,
			Email:       result.User.Email,
			Role:        result.User.Role.Name,
			Permissions: records,
		})
		if s.csrf != nil {
			s.csrf.Rotate(sess)
		}
	}

	s.audit.RecordQuietly(ctx, shared.AuditLog{
		Actor:    creds.Email,
		Action:   shared.AuditLogin,
		Entity:   "session",
		EntityID: strconv.FormatInt(result.User.ID, 10),
		Meta:     map[string]any{"role": result.User.Role.Name},
	})
	return result, nil
}

// Logout revokes token upstream and clears every piece of local state, even
// when upstream refuses. The upstream reply is returned for relaying.
func (s *Service) Logout(ctx context.Context, w http.ResponseWriter, sess *shared.Session, token string) (*upstream.Response, error) {
	actor := ""
	if profile, ok := sess.Profile(); ok {
		actor = profile.Email
	}

	var (
		resp *upstream.Response
		err  error
	)
	if upstream.BearerToken(token) != "" {
		resp, err = s.gateway.Logout(ctx, token)
		if err != nil {
			s.logger.Warn("upstream logout", slog.Any("error", err))
		}
		s.gateway.ForgetPermissions(token)
	} else {
		err = ErrNoToken
	}

	s.store.Clear(w)
	if s.sessions != nil {
		s.sessions.Destroy(sess)
	}
	s.audit.RecordQuietly(ctx, shared.AuditLog{Actor: actor, Action: shared.AuditLogout, Entity: "session"})
	return resp, err
}

// ForgotPassword forwards the reset request.
func (s *Service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (*upstream.Response, error) {
	return s.gateway.ForgotPassword(ctx, strings.TrimSpace(req.Email))
}

// ResetPassword forwards a new password with its reset token.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*upstream.Response, error) {
	return s.gateway.ResetPassword(ctx, upstream.ResetPasswordInput{
		Token:                req.Token,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
}
