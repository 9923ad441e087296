package rbac

// MenuEntry is one navigation item gated by a permission name.
type MenuEntry struct {
	Label      string
	Href       string
	Icon       string
	Permission string
}

// DefaultMenu returns the admin navigation in display order.
func DefaultMenu() []MenuEntry {
	return []MenuEntry{
		{Label: "Dashboard", Href: "/admin/dashboard", Icon: "tabler-smart-home", Permission: PermDashboard},
		{Label: "Users", Href: "/admin/users", Icon: "tabler-users-group", Permission: PermUsers},
		{Label: "Roles", Href: "/admin/roles", Icon: "tabler-user-cog", Permission: PermRoles},
		{Label: "Settings", Href: "/admin/settings", Icon: "tabler-settings", Permission: PermSettings},
	}
}

// FilterMenu keeps the entries whose permission is in set, preserving order.
// An empty set yields an empty, non-nil slice.
func FilterMenu(entries []MenuEntry, set PermissionSet) []MenuEntry {
	visible := make([]MenuEntry, 0, len(entries))
	if set.IsEmpty() {
		return visible
	}
	for _, entry := range entries {
		if set.Has(entry.Permission) {
			visible = append(visible, entry)
		}
	}
	return visible
}
