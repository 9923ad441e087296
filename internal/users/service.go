package users

import (
	"context"
	"strconv"

	"github.com/roleboard/roleboard/internal/rbac"
	"github.com/roleboard/roleboard/internal/shared"
	"github.com/roleboard/roleboard/internal/upstream"
)

// Service forwards user management calls and records them in the audit trail.
type Service struct {
	gateway Gateway
	audit   *shared.AuditLogger
}

// NewService constructs a new Service. audit may be nil.
func NewService(gateway Gateway, audit *shared.AuditLogger) *Service {
	return &Service{gateway: gateway, audit: audit}
}

// List relays one page of users.
func (s *Service) List(ctx context.Context, token string, q upstream.ListQuery) (*upstream.Response, error) {
	return s.gateway.ListUsers(ctx, token, q)
}

// Page fetches one page of users as rows, with per-row affordances derived
// from the caller's permission records. Superadmin rows are never editable.
func (s *Service) Page(ctx context.Context, token string, q upstream.ListQuery, perms rbac.PermissionRecords) ([]Row, shared.Pagination, error) {
	page, err := s.gateway.Users(ctx, token, q)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	canUpdate := perms.Can(rbac.PermUsers, rbac.PermissionUpdate)
	canDelete := perms.Can(rbac.PermUsers, rbac.PermissionDelete)
	rows := make([]Row, 0, len(page.Data))
	for _, u := range page.Data {
		protected := rbac.ParseRole(u.Role.Name).IsSuperAdmin()
		rows = append(rows, Row{
			ID:        u.ID,
			Name:      u.Name,
			Email:     u.Email,
			Role:      u.Role.Name,
			RoleID:    roleID(u.Role.ID),
			CanEdit:   canUpdate && !protected,
			CanDelete: canDelete && !protected,
		})
	}
	current := page.Meta.CurrentPage
	if current == 0 {
		current = q.Page
	}
	return rows, shared.NewPagination(current, page.Meta.PerPage, page.Meta.Total), nil
}

// roleOptionsLimit is how many roles the picker asks for in one page.
const roleOptionsLimit = 100

// RoleOptions lists the roles a user can be assigned.
func (s *Service) RoleOptions(ctx context.Context, token string) ([]RoleOption, error) {
	page, err := s.gateway.Roles(ctx, token, upstream.ListQuery{Limit: roleOptionsLimit})
	if err != nil {
		return nil, err
	}
	out := make([]RoleOption, 0, len(page.Data))
	for _, role := range page.Data {
		out = append(out, RoleOption{Value: strconv.FormatInt(role.ID, 10), Name: role.Name})
	}
	return out, nil
}

func roleID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// Create forwards a new user.
func (s *Service) Create(ctx context.Context, token string, req CreateRequest) (*upstream.Response, error) {
	resp, err := s.gateway.CreateUser(ctx, token, req)
	if err == nil {
		s.record(ctx, shared.AuditCreate, "", req.Email)
	}
	return resp, err
}

// Update forwards changes to user id.
func (s *Service) Update(ctx context.Context, token, id string, req UpdateRequest) (*upstream.Response, error) {
	resp, err := s.gateway.UpdateUser(ctx, token, id, req)
	if err == nil {
		s.record(ctx, shared.AuditUpdate, id, req.Email)
	}
	return resp, err
}

// Delete removes user id.
func (s *Service) Delete(ctx context.Context, token, id string) (*upstream.Response, error) {
	resp, err := s.gateway.DeleteUser(ctx, token, id)
	if err == nil {
		s.record(ctx, shared.AuditDelete, id, "")
	}
	return resp, err
}

func (s *Service) record(ctx context.Context, action, id, email string) {
	meta := map[string]any{}
	if email != "" {
		meta["email"] = email
	}
	s.audit.RecordQuietly(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "user",
		EntityID: id,
		Meta:     meta,
	})
}

