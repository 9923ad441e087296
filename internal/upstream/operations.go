package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ListQuery carries the search and paging parameters of list endpoints.
type ListQuery struct {
	Search string
	Page   int
	Limit  int
}

// Values renders the query with the defaults page=1, limit=10.
func (q ListQuery) Values() url.Values {
	page := q.Page
	if page <= 0 {
		page = 1
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	v := url.Values{}
	v.Set("search", q.Search)
	v.Set("page", strconv.Itoa(page))
	v.Set("limit", strconv.Itoa(limit))
	return v
}

// ParseListQuery reads search, page and limit from a caller's query string.
func ParseListQuery(values url.Values) ListQuery {
	page, _ := strconv.Atoi(values.Get("page"))
	limit, _ := strconv.Atoi(values.Get("limit"))
	return ListQuery{Search: values.Get("search"), Page: page, Limit: limit}
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	resp, err := c.Do(ctx, Request{
		Operation: "login",
		Method:    http.MethodPost,
		Path:      "/login",
		Body:      creds,
		Fallback:  "Invalid credentials",
	})
	if err != nil {
		return LoginResult{}, err
	}
	var envelope loginEnvelope
	if err := resp.Decode(&envelope); err != nil {
		return LoginResult{}, &Error{Status: http.StatusInternalServerError, Message: "Internal Server Error", Err: err}
	}
	var data loginData
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return LoginResult{}, &Error{Status: http.StatusInternalServerError, Message: "Internal Server Error", Err: err}
		}
	}
	return LoginResult{
		Token:       data.Token,
		User:        data.User,
		Permissions: data.Permissions,
		Data:        envelope.Data,
	}, nil
}

// Logout revokes the token upstream.
func (c *Client) Logout(ctx context.Context, token string) (*Response, error) {
	return c.Do(ctx, Request{
		Operation:     "logout",
		Method:        http.MethodPost,
		Path:          "/logout",
		Authorization: token,
		Fallback:      "Logout failed",
	})
}

// ForgotPassword asks upstream to mail a reset link pointing back at this app.
func (c *Client) ForgotPassword(ctx context.Context, email string) (*Response, error) {
	return c.Do(ctx, Request{
		Operation: "forgot_password",
		Method:    http.MethodPost,
		Path:      "/forgot-password",
		Body: map[string]string{
			"email":     email,
			"reset_url": c.ResetURL(),
		},
		Fallback: "Unable to send reset link",
	})
}

// ResetURL is the page the reset mail links to.
func (c *Client) ResetURL() string {
	return c.appURL + "/reset-password"
}

// ResetPasswordInput is the reset-password request body.
type ResetPasswordInput struct {
	Token                string `json:"token"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// ResetPassword sets a new password using a reset token.
func (c *Client) ResetPassword(ctx context.Context, in ResetPasswordInput) (*Response, error) {
	return c.Do(ctx, Request{
		Operation: "reset_password",
		Method:    http.MethodPost,
		Path:      "/reset-password",
		Body:      in,
		Fallback:  "Unable to reset password",
	})
}

// ListUsers fetches one page of users.
func (c *Client) ListUsers(ctx context.Context, token string, q ListQuery) (*Response, error) {
	return c.Do(ctx, Request{
		Operation:     "list_users",
		Method:        http.MethodGet,
		Path:          "/admin/users",
		Query:         q.Values(),
		Authorization: token,
		Fallback:      "Couldn't fetch users",
	})
}

// Users fetches and decodes one page of users.
func (c *Client) Users(ctx context.Context, token string, q ListQuery) (UserPage, error) {
	var page UserPage
	resp, err := c.ListUsers(ctx, token, q)
	if err != nil {
		return page, err
	}
	if err := resp.Decode(&page); err != nil {
		return page, fmt.Errorf("upstream: decode users: %w", err)
	}
	return page, nil
}

// CreateUser creates a user from a JSON-encodable payload.
func (c *Client) CreateUser(ctx context.Context, token string, body any) (*Response, error) {
	return c.Do(ctx, Request{
		Operation:     "create_user",
		Method:        http.MethodPost,
		Path:          "/admin/users",
		Authorization: token,
		Body:          body,
		Fallback:      "Failed to create user",
	})
}

// UpdateUser updates the user identified by id.
func (c *Client) UpdateUser(ctx context.Context, token, id string, body any) (*Response, error) {
	return c.Do(ctx, Request{
		Operation:     "update_user",
		Method:        http.MethodPut,
		Path:          "/admin/users/" + url.PathEscape(id),
		Authorization: token,
		Body:          body,
		Fallback:      "Failed to update user",
	})
}

// DeleteUser deletes the user identified by id. A 204 reply has an empty body.
func (c *Client) DeleteUser(ctx context.Context, token, id string) (*Response, error) {
	return c.Do(ctx, Request{
		Operation:     "delete_user",
		Method:        http.MethodDelete,
		Path:          "/admin/users/" + url.PathEscape(id),
		Authorization: token,
		Fallback:      "Failed to delete user",
	})
}

// ListRoles fetches one page of roles.
func (c *Client) ListRoles(ctx context.Context, token string, q ListQuery) (*Response, error) {
	return c.Do(ctx, Request{
		Operation:     "list_roles",
		Method:        http.MethodGet,
		Path:          "/admin/roles",
		Query:         q.Values(),
		Authorization: token,
		Fallback:      "Couldn't fetch roles",
	})
}

// Roles fetches and decodes one page of roles.
func (c *Client) Roles(ctx context.Context, token string, q ListQuery) (RolePage, error) {
	var page RolePage
	resp, err := c.ListRoles(ctx, token, q)
	if err != nil {
		return page, err
	}
	if err := resp.Decode(&page); err != nil {
		return page, fmt.Errorf("upstream: decode roles: %w", err)
	}
	return page, nil
}

// CreateRole creates a role.
func (c *Client) CreateRole(ctx context.Context, token string, body any) (*Response, error) {
	return c.Do(ctx, Request{
		Operation:     "create_role",
		Method:        http.MethodPost,
		Path:          "/admin/roles",
		Authorization: token,
		Body:          body,
		Fallback:      "Couldn't create role",
	})
}

// UpdateRole updates the role identified by id.
func (c *Client) UpdateRole(ctx context.Context, token, id string, body any) (*Response, error) {
	return c.Do(ctx, Request{
		Operation:     "update_role",
		Method:        http.MethodPut,
		Path:          "/admin/roles/" + url.PathEscape(id),
		Authorization: token,
		Body:          body,
		Fallback:      "Couldn't update role",
	})
}

// DeleteRole deletes the role identified by id.
func (c *Client) DeleteRole(ctx context.Context, token, id string) (*Response, error) {
	return c.Do(ctx, Request{
		Operation:     "delete_role",
		Method:        http.MethodDelete,
		Path:          "/admin/roles/" + url.PathEscape(id),
		Authorization: token,
		Fallback:      "An error occurred while deleting the role.",
	})
}

// GetSettings fetches the settings document.
func (c *Client) GetSettings(ctx context.Context, token string) (*Response, error) {
	return c.Do(ctx, Request{
		Operation:     "get_settings",
		Method:        http.MethodGet,
		Path:          "/admin/settings",
		Authorization: token,
		Fallback:      "Unable to fetch settings",
	})
}

// Settings fetches and decodes the settings document.
func (c *Client) Settings(ctx context.Context, token string) (Settings, error) {
	resp, err := c.GetSettings(ctx, token)
	if err != nil {
		return Settings{}, err
	}
	var envelope settingsEnvelope
	if err := resp.Decode(&envelope); err != nil {
		return Settings{}, fmt.Errorf("upstream: decode settings: %w", err)
	}
	return envelope.Settings, nil
}

// UpdateSettings replaces the settings document.
func (c *Client) UpdateSettings(ctx context.Context, token string, settings Settings) (*Response, error) {
	return c.Do(ctx, Request{
		Operation:     "update_settings",
		Method:        http.MethodPut,
		Path:          "/admin/settings",
		Authorization: token,
		Body:          settings,
		Fallback:      "Unable to update settings",
	})
}
