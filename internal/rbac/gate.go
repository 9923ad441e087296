package rbac

// Decision is the gate's verdict: allow, or redirect to Target.
type Decision struct {
	Redirect bool
	Target   string
}

// Allow passes the request through unchanged.
func Allow() Decision {
	return Decision{}
}

// RedirectTo sends the client to target.
func RedirectTo(target string) Decision {
	return Decision{Redirect: true, Target: target}
}

// Outcome is a short label for metrics and logs.
func (d Decision) Outcome() string {
	if d.Redirect {
		return "redirect"
	}
	return "allow"
}

// Decide applies the gating rules to a classified path and principal. It has
// no side effects and reads nothing beyond its arguments.
func Decide(c Classification, p Principal) Decision {
	switch c.Category {
	case CategoryRoot:
		return RedirectTo(PathAdmin)
	case CategoryAdminRoot:
		if p.Authenticated() {
			return RedirectTo(PathAdminHome)
		}
		return RedirectTo(PathAdminLogin)
	case CategoryPublic:
		return decidePublic(p)
	case CategoryAdminProtected, CategoryAdminOther:
		return decideProtected(c, p)
	default:
		return Allow()
	}
}

func decidePublic(p Principal) Decision {
	if !p.Authenticated() {
		return Allow()
	}
	if p.Role.IsAdministrative() {
		return RedirectTo(PathAdminHome)
	}
	return RedirectTo(PathHome)
}

// decideProtected evaluates role, token and permission in that order. The role
// check only fires for a present, non-admin role label, so a request with no
// session at all is sent to a login page rather than the 401 page.
func decideProtected(c Classification, p Principal) Decision {
	if c.IsAdminPath() && p.Role.Present() && !p.Role.IsAdministrative() && c.Path != PathAdminLogin {
		return RedirectTo(PathNotAuthorized)
	}
	if !p.Authenticated() {
		if c.IsAdminPath() {
			return RedirectTo(PathAdminLogin)
		}
		return RedirectTo(PathLogin)
	}
	if c.Category == CategoryAdminProtected && c.Rule != nil && !p.Permissions.Has(c.Rule.RequiredPermission) {
		return RedirectTo(PathAdminDenied)
	}
	return Allow()
}
