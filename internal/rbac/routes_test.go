package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	c := DefaultClassifier()
	tests := []struct {
		path string
		want Category
		perm string
	}{
		{"/", CategoryRoot, ""},
		{"/admin", CategoryAdminRoot, ""},
		{"/login", CategoryPublic, ""},
		{"/admin/login", CategoryPublic, ""},
		{"/admin/dashboard", CategoryAdminProtected, PermDashboard},
		{"/admin/users/12/edit", CategoryAdminProtected, PermUsers},
		{"/admin/roles", CategoryAdminProtected, PermRoles},
		{"/admin/settings", CategoryAdminProtected, PermSettings},
		{"/admin/permissions", CategoryAdminOther, ""},
		{"/admin/", CategoryAdminOther, ""},
		{"/adminx", CategoryAdminOther, ""},
		{"/home", CategoryUnclassified, ""},
		{"/login/extra", CategoryUnclassified, ""},
		{"/api/auth/login", CategoryUnclassified, ""},
	}
	for _, tt := range tests {
		got := c.Classify(tt.path)
		assert.Equal(t, tt.want, got.Category, tt.path)
		assert.Equal(t, tt.path, got.Path)
		if tt.perm == "" {
			assert.Nil(t, got.Rule, tt.path)
			continue
		}
		require.NotNil(t, got.Rule, tt.path)
		assert.Equal(t, tt.perm, got.Rule.RequiredPermission, tt.path)
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	c := NewClassifier([]RouteRule{
		{PathPrefix: "/admin/users", RequiredPermission: "users"},
		{PathPrefix: "/admin/users/audit", RequiredPermission: "audit"},
	}, nil)

	got := c.Classify("/admin/users/audit")
	require.NotNil(t, got.Rule)
	assert.Equal(t, "users", got.Rule.RequiredPermission)
}

func TestClassifierCopiesRules(t *testing.T) {
	rules := DefaultRouteRules()
	c := NewClassifier(rules, DefaultPublicPaths())
	rules[0].RequiredPermission = "tampered"

	assert.Equal(t, PermDashboard, c.Classify("/admin/dashboard").Rule.RequiredPermission)

	out := c.Rules()
	out[0].RequiredPermission = "tampered"
	assert.Equal(t, PermDashboard, c.Rules()[0].RequiredPermission)
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "admin_protected", CategoryAdminProtected.String())
	assert.Equal(t, "unclassified", CategoryUnclassified.String())
	assert.Equal(t, "unknown", Category(99).String())
}
