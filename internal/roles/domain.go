package roles

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/roleboard/roleboard/internal/rbac"
	"github.com/roleboard/roleboard/internal/upstream"
)

// Gateway is the slice of the upstream client role management needs.
type Gateway interface {
	ListRoles(ctx context.Context, token string, q upstream.ListQuery) (*upstream.Response, error)
	Roles(ctx context.Context, token string, q upstream.ListQuery) (upstream.RolePage, error)
	CreateRole(ctx context.Context, token string, body any) (*upstream.Response, error)
	UpdateRole(ctx context.Context, token, id string, body any) (*upstream.Response, error)
	DeleteRole(ctx context.Context, token, id string) (*upstream.Response, error)
	PermissionCatalog(ctx context.Context, token string) ([]upstream.CatalogEntry, error)
}

// RoleRequest creates or updates a role. Permissions are catalog IDs.
type RoleRequest struct {
	Name        string        `json:"name" validate:"required"`
	Permissions []json.Number `json:"permissions" validate:"min=1,dive,numeric"`
}

// Row is one role line on the listing page.
type Row struct {
	ID          int64
	Name        string
	Permissions []string
	Records     rbac.PermissionRecords
	CanEdit     bool
	CanDelete   bool
}

// PermissionOption is one checkbox of the role form. Value joins the catalog
// IDs granting the (name, type) pair with commas.
type PermissionOption struct {
	Name  string
	Type  rbac.PermissionType
	Label string
	Value string
}

// Form is the role form as posted by the roles page.
type Form struct {
	Name     string
	selected map[string]bool
}

// FormFromRequest reads a parsed form post. Each checked "permissions" value
// may carry several comma separated IDs.
func FormFromRequest(r *http.Request) Form {
	_ = r.ParseForm()
	f := Form{Name: strings.TrimSpace(r.PostForm.Get("name")), selected: map[string]bool{}}
	for _, v := range r.PostForm["permissions"] {
		f.selected[v] = true
	}
	return f
}

// Checked reports whether opt was ticked.
func (f Form) Checked(opt PermissionOption) bool {
	return f.selected[opt.Value]
}

// Request expands the ticked options into the upstream payload.
func (f Form) Request() RoleRequest {
	req := RoleRequest{Name: f.Name, Permissions: []json.Number{}}
	seen := map[string]bool{}
	for value := range f.selected {
		for _, id := range strings.Split(value, ",") {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			req.Permissions = append(req.Permissions, json.Number(id))
		}
	}
	sortNumbers(req.Permissions)
	return req
}
