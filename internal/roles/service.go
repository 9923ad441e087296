package roles

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/roleboard/roleboard/internal/rbac"
	"github.com/roleboard/roleboard/internal/shared"
	"github.com/roleboard/roleboard/internal/upstream"
)

// Service forwards role management calls and audits mutations.
type Service struct {
	gateway Gateway
	audit   *shared.AuditLogger
}

// NewService constructs a new Service. audit may be nil.
func NewService(gateway Gateway, audit *shared.AuditLogger) *Service {
	return &Service{gateway: gateway, audit: audit}
}

// List relays one page of roles.
func (s *Service) List(ctx context.Context, token string, q upstream.ListQuery) (*upstream.Response, error) {
	return s.gateway.ListRoles(ctx, token, q)
}

// Page fetches one page of roles as rows. The superadmin role is never
// editable.
func (s *Service) Page(ctx context.Context, token string, q upstream.ListQuery, perms rbac.PermissionRecords) ([]Row, shared.Pagination, error) {
	page, err := s.gateway.Roles(ctx, token, q)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	canUpdate := perms.Can(rbac.PermRoles, rbac.PermissionUpdate)
	canDelete := perms.Can(rbac.PermRoles, rbac.PermissionDelete)
	rows := make([]Row, 0, len(page.Data))
	for _, role := range page.Data {
		protected := rbac.ParseRole(role.Name).IsSuperAdmin()
		records := rbac.CanonicalPermissions(role.Permissions, nil)
		names := make([]string, 0, len(records))
		for _, a := range records.Affordances() {
			names = append(names, a.Name)
		}
		rows = append(rows, Row{
			ID:          role.ID,
			Name:        role.Name,
			Permissions: names,
			Records:     records,
			CanEdit:     canUpdate && !protected,
			CanDelete:   canDelete && !protected,
		})
	}
	current := page.Meta.CurrentPage
	if current == 0 {
		current = q.Page
	}
	return rows, shared.NewPagination(current, page.Meta.PerPage, page.Meta.Total), nil
}

// PermissionOptions lists the checkboxes of the role form.
func (s *Service) PermissionOptions(ctx context.Context, token string) ([]PermissionOption, error) {
	entries, err := s.gateway.PermissionCatalog(ctx, token)
	if err != nil {
		return nil, err
	}
	out := make([]PermissionOption, 0, len(entries))
	for _, e := range entries {
		out = append(out, PermissionOption{
			Name:  e.Name,
			Type:  e.Type,
			Label: e.Name + " " + string(e.Type),
			Value: strings.Join(e.IDs, ","),
		})
	}
	return out, nil
}

// sortNumbers orders IDs numerically so payloads are stable.
func sortNumbers(ids []json.Number) {
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.ParseInt(ids[i].String(), 10, 64)
		b, errB := strconv.ParseInt(ids[j].String(), 10, 64)
		if errA != nil || errB != nil {
			return ids[i] < ids[j]
		}
		return a < b
	})
}

// Create forwards a new role.
func (s *Service) Create(ctx context.Context, token string, req RoleRequest) (*upstream.Response, error) {
	resp, err := s.gateway.CreateRole(ctx, token, req)
	if err == nil {
		s.record(ctx, shared.AuditCreate, "", req)
	}
	return resp, err
}

// Update forwards changes to role id.
func (s *Service) Update(ctx context.Context, token, id string, req RoleRequest) (*upstream.Response, error) {
	resp, err := s.gateway.UpdateRole(ctx, token, id, req)
	if err == nil {
		s.record(ctx, shared.AuditUpdate, id, req)
	}
	return resp, err
}

// Delete removes role id.
func (s *Service) Delete(ctx context.Context, token, id string) (*upstream.Response, error) {
	resp, err := s.gateway.DeleteRole(ctx, token, id)
	if err == nil {
		s.record(ctx, shared.AuditDelete, id, RoleRequest{})
	}
	return resp, err
}

func (s *Service) record(ctx context.Context, action, id string, req RoleRequest) {
	meta := map[string]any{}
	if req.Name != "" {
		meta["name"] = req.Name
		meta["permissions"] = len(req.Permissions)
	}
	s.audit.RecordQuietly(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "role",
		EntityID: id,
		Meta:     meta,
	})
}
