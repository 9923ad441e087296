package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roleboard/roleboard/internal/rbac"
)

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the decoded login reply. Data is kept verbatim for relaying.
type LoginResult struct {
	Token       string
	User        LoginUser
	Permissions []string
	Data        json.RawMessage
}

// LoginUser is the user object inside a login reply.
type LoginUser struct {
	ID    int64     `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  LoginRole `json:"role"`
}

// LoginRole carries the role label and its per-action permission records.
type LoginRole struct {
	ID          int64                   `json:"id"`
	Name        string                  `json:"name"`
	Permissions []rbac.PermissionRecord `json:"permissions"`
}

// Records derives the canonical permission list from a login reply.
func (r LoginResult) Records() rbac.PermissionRecords {
	return rbac.CanonicalPermissions(r.User.Role.Permissions, r.Permissions)
}

// PermissionNames decodes a JSON array whose items are either bare names or
// objects carrying permission_name.
type PermissionNames []string

// UnmarshalJSON implements json.Unmarshaler.
func (p *PermissionNames) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = nil
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("upstream: permissions: %w", err)
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			names = append(names, name)
			continue
		}
		var rec struct {
			PermissionName string `json:"permission_name"`
			Name           string `json:"name"`
		}
		if err := json.Unmarshal(item, &rec); err != nil {
			return fmt.Errorf("upstream: permission item: %w", err)
		}
		if rec.PermissionName != "" {
			names = append(names, rec.PermissionName)
		} else if rec.Name != "" {
			names = append(names, rec.Name)
		}
	}
	*p = names
	return nil
}

type loginEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type loginData struct {
	Token       string          `json:"token"`
	User        LoginUser       `json:"user"`
	Permissions PermissionNames `json:"permissions"`
}

// PageMeta is the pagination block of list replies.
type PageMeta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

// RoleRef is a role as embedded in a user row.
type RoleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts either a role object or a bare role name.
func (r *RoleRef) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*r = RoleRef{Name: name}
		return nil
	}
	type alias RoleRef
	var obj alias
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("upstream: role: %w", err)
	}
	*r = RoleRef(obj)
	return nil
}

// UserSummary is one row of the users listing.
type UserSummary struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Role  RoleRef `json:"role"`
}

// UserPage is the users listing reply.
type UserPage struct {
	Data []UserSummary `json:"data"`
	Meta PageMeta      `json:"meta"`
}

// RoleSummary is one row of the roles listing.
type RoleSummary struct {
	ID          int64                   `json:"id"`
	Name        string                  `json:"name"`
	Permissions []rbac.PermissionRecord `json:"permissions"`
}

// RolePage is the roles listing reply.
type RolePage struct {
	Data []RoleSummary `json:"data"`
	Meta PageMeta      `json:"meta"`
}

// SMTPSettings holds outbound mail configuration.
type SMTPSettings struct {
	FromAddress string `json:"from_address"`
	Host        string `json:"host"`
	Port        string `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Encryption  string `json:"encryption"`
}

// TrestleSettings holds third-party API credentials.
type TrestleSettings struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	APIURL       string `json:"api_url"`
}

// Settings is the settings document.
type Settings struct {
	SMTP    SMTPSettings    `json:"smtp"`
	Trestle TrestleSettings `json:"trestle"`
}

// UnmarshalJSON tolerates a numeric SMTP port.
func (s *SMTPSettings) UnmarshalJSON(data []byte) error {
	type alias SMTPSettings
	var raw struct {
		alias
		Port json.RawMessage `json:"port"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SMTPSettings(raw.alias)
	s.Port = ""
	if len(raw.Port) > 0 && !bytes.Equal(raw.Port, []byte("null")) {
		var str string
		if err := json.Unmarshal(raw.Port, &str); err == nil {
			s.Port = str
		} else {
			var num json.Number
			if err := json.Unmarshal(raw.Port, &num); err != nil {
				return fmt.Errorf("upstream: smtp port: %w", err)
			}
			s.Port = num.String()
		}
	}
	return nil
}

type settingsEnvelope struct {
	Settings Settings `json:"settings"`
}
