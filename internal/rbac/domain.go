package rbac

import "strings"

// Role labels recognised by the admin area.
const (
	RoleLabelAdmin      = "admin"
	RoleLabelSuperAdmin = "superadmin"
)

type roleKind uint8

const (
	roleAbsent roleKind = iota
	roleAdmin
	roleSuperAdmin
	roleOther
)

// Role is the principal's single role label. The zero value is an absent role.
type Role struct {
	kind  roleKind
	label string
}

var (
	// RoleAdmin grants access to the admin area.
	RoleAdmin = Role{kind: roleAdmin, label: RoleLabelAdmin}
	// RoleSuperAdmin grants access to the admin area and protects its holders from edits.
	RoleSuperAdmin = Role{kind: roleSuperAdmin, label: RoleLabelSuperAdmin}
)

// RoleOther wraps any non-administrative label.
func RoleOther(label string) Role {
	return ParseRole(label)
}

// ParseRole maps a stored label onto the closed role variant. Labels are
// compared exactly; "Admin" is not "admin".
func ParseRole(label string) Role {
	switch label {
	case "":
		return Role{}
	case RoleLabelAdmin:
		return RoleAdmin
	case RoleLabelSuperAdmin:
		return RoleSuperAdmin
	default:
		return Role{kind: roleOther, label: label}
	}
}

// Present reports whether a role label was supplied at all.
func (r Role) Present() bool {
	return r.kind != roleAbsent
}

// IsAdministrative reports whether the role may enter the admin area.
func (r Role) IsAdministrative() bool {
	return r.kind == roleAdmin || r.kind == roleSuperAdmin
}

// IsSuperAdmin reports whether the role is superadmin.
func (r Role) IsSuperAdmin() bool {
	return r.kind == roleSuperAdmin
}

// String returns the raw label.
func (r Role) String() string {
	return r.label
}

// PermissionType qualifies a permission name for UI affordances.
type PermissionType string

// Supported permission types, as returned by the upstream API.
const (
	PermissionGet    PermissionType = "get"
	PermissionCreate PermissionType = "create"
	PermissionUpdate PermissionType = "update"
	PermissionDelete PermissionType = "delete"
)

// Valid reports whether t is one of the four known permission types.
func (t PermissionType) Valid() bool {
	switch t {
	case PermissionGet, PermissionCreate, PermissionUpdate, PermissionDelete:
		return true
	}
	return false
}

// Area permission names gating the admin sections.
const (
	PermDashboard = "dashboard"
	PermUsers     = "users"
	PermRoles     = "roles"
	PermSettings  = "settings"
)

// blankPermission reports whether name carries no permission at all.
// Non-blank names are kept verbatim and compared exactly: "Settings" is not
// "settings", and " users" is not "users".
func blankPermission(name string) bool {
	return strings.TrimSpace(name) == ""
}

// Principal is the request-scoped identity reconstructed from session cookies.
type Principal struct {
	Token       string
	Role        Role
	Permissions PermissionSet
}

// Authenticated reports whether a session token is present. The token is
// not validated here; the upstream API does that on data calls.
func (p Principal) Authenticated() bool {
	return p.Token != ""
}
