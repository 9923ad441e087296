package auth

import (
	"context"

	"github.com/roleboard/roleboard/internal/upstream"
)

// Gateway is the slice of the upstream client the auth flows need.
type Gateway interface {
	Login(ctx context.Context, creds upstream.Credentials) (upstream.LoginResult, error)
	Logout(ctx context.Context, token string) (*upstream.Response, error)
	ForgotPassword(ctx context.Context, email string) (*upstream.Response, error)
	ResetPassword(ctx context.Context, in upstream.ResetPasswordInput) (*upstream.Response, error)
	ForgetPermissions(token string)
}

// LoginRequest is the login body, shared by the JSON API and the form.
type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=6"`
}

// ForgotPasswordRequest asks for a reset link.
type ForgotPasswordRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

// ResetPasswordRequest sets a new password with a mailed token.
type ResetPasswordRequest struct {
	Token                string `json:"token" form:"token" validate:"required"`
	Password             string `json:"password" form:"password" validate:"required,min=6"`
	PasswordConfirmation string `json:"password_confirmation" form:"password_confirmation" validate:"required,eqfield=Password"`
}
