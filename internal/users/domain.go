package users

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/roleboard/roleboard/internal/upstream"
)

// Gateway is the slice of the upstream client user management needs.
type Gateway interface {
	ListUsers(ctx context.Context, token string, q upstream.ListQuery) (*upstream.Response, error)
	Users(ctx context.Context, token string, q upstream.ListQuery) (upstream.UserPage, error)
	CreateUser(ctx context.Context, token string, body any) (*upstream.Response, error)
	UpdateUser(ctx context.Context, token, id string, body any) (*upstream.Response, error)
	DeleteUser(ctx context.Context, token, id string) (*upstream.Response, error)
	Roles(ctx context.Context, token string, q upstream.ListQuery) (upstream.RolePage, error)
}

// CreateRequest is the create-mode user form: a password is mandatory.
type CreateRequest struct {
	Name                 string      `json:"name" validate:"required"`
	Email                string      `json:"email" validate:"required,email"`
	RoleID               json.Number `json:"role_id" validate:"required,numeric"`
	Password             string      `json:"password" validate:"required,min=6"`
	PasswordConfirmation string      `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// UpdateRequest is the edit-mode user form: the password may be left blank,
// but when given it must be long enough and confirmed.
type UpdateRequest struct {
	Name                 string      `json:"name" validate:"required"`
	Email                string      `json:"email" validate:"required,email"`
	RoleID               json.Number `json:"role_id" validate:"required,numeric"`
	Password             string      `json:"password,omitempty" validate:"omitempty,min=6"`
	PasswordConfirmation string      `json:"password_confirmation,omitempty" validate:"eqfield=Password"`
}

// Row is one user line on the listing page.
type Row struct {
	ID        int64
	Name      string
	Email     string
	Role      string
	RoleID    string
	CanEdit   bool
	CanDelete bool
}

// RoleOption is one entry of the role picker on the user forms.
type RoleOption struct {
	Value string
	Name  string
}

// Form is the user form as posted by the users page. Passwords are never
// echoed back into a rendered form.
type Form struct {
	Name                 string
	Email                string
	RoleID               string
	Password             string
	PasswordConfirmation string
}

// FormFromRequest reads a parsed form post.
func FormFromRequest(r *http.Request) Form {
	return Form{
		Name:                 strings.TrimSpace(r.PostFormValue("name")),
		Email:                strings.TrimSpace(r.PostFormValue("email")),
		RoleID:               strings.TrimSpace(r.PostFormValue("role_id")),
		Password:             r.PostFormValue("password"),
		PasswordConfirmation: r.PostFormValue("password_confirmation"),
	}
}

func (f Form) CreateRequest() CreateRequest {
	return CreateRequest{
		Name:                 f.Name,
		Email:                f.Email,
		RoleID:               json.Number(f.RoleID),
		Password:             f.Password,
		PasswordConfirmation: f.PasswordConfirmation,
	}
}

func (f Form) UpdateRequest() UpdateRequest {
	return UpdateRequest{
		Name:                 f.Name,
		Email:                f.Email,
		RoleID:               json.Number(f.RoleID),
		Password:             f.Password,
		PasswordConfirmation: f.PasswordConfirmation,
	}
}

// Redacted drops the password fields.
func (f Form) Redacted() Form {
	f.Password, f.PasswordConfirmation = "", ""
	return f
}
