package rbac

import "strings"

// Paths the gate treats specially.
const (
	PathRoot          = "/"
	PathAdmin         = "/admin"
	PathAdminLogin    = "/admin/login"
	PathAdminHome     = "/admin/dashboard"
	PathLogin         = "/login"
	PathHome          = "/home"
	PathNotAuthorized = "/401-not-authorized"
	PathAdminDenied   = "/admin/401-not-authorized"
)

// Category is the coarse classification of a request path.
type Category int

// Path categories, in the order the classifier tests them.
const (
	CategoryUnclassified Category = iota
	CategoryRoot
	CategoryAdminRoot
	CategoryPublic
	CategoryAdminProtected
	CategoryAdminOther
)

var categoryNames = map[Category]string{
	CategoryUnclassified:   "unclassified",
	CategoryRoot:           "root",
	CategoryAdminRoot:      "admin_root",
	CategoryPublic:         "public",
	CategoryAdminProtected: "admin_protected",
	CategoryAdminOther:     "admin_other",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// RouteRule binds an admin path prefix to the permission required to enter it.
type RouteRule struct {
	PathPrefix         string
	RequiredPermission string
}

// DefaultRouteRules is the admin area table. Order matters: first match wins.
func DefaultRouteRules() []RouteRule {
	return []RouteRule{
		{PathPrefix: "/admin/dashboard", RequiredPermission: PermDashboard},
		{PathPrefix: "/admin/users", RequiredPermission: PermUsers},
		{PathPrefix: "/admin/roles", RequiredPermission: PermRoles},
		{PathPrefix: "/admin/settings", RequiredPermission: PermSettings},
	}
}

// DefaultPublicPaths are matched exactly.
func DefaultPublicPaths() []string {
	return []string{PathLogin, PathAdminLogin}
}

// Classification is the classifier's verdict for one path.
type Classification struct {
	Category Category
	Path     string
	// Rule is set only for CategoryAdminProtected.
	Rule *RouteRule
}

// IsAdminPath reports whether the path lives under /admin.
func (c Classification) IsAdminPath() bool {
	return strings.HasPrefix(c.Path, PathAdmin)
}

// Classifier maps request paths to categories. It is immutable after construction.
type Classifier struct {
	rules  []RouteRule
	public map[string]struct{}
}

// NewClassifier copies the supplied rule list and public paths.
func NewClassifier(rules []RouteRule, publicPaths []string) *Classifier {
	c := &Classifier{
		rules:  append([]RouteRule(nil), rules...),
		public: make(map[string]struct{}, len(publicPaths)),
	}
	for _, p := range publicPaths {
		c.public[p] = struct{}{}
	}
	return c
}

// DefaultClassifier uses DefaultRouteRules and DefaultPublicPaths.
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultRouteRules(), DefaultPublicPaths())
}

// Rules returns a copy of the ordered rule list.
func (c *Classifier) Rules() []RouteRule {
	return append([]RouteRule(nil), c.rules...)
}

// Classify categorises path. Root and admin root are exact matches and are
// checked before the public set; protected prefixes before the /admin fallback.
func (c *Classifier) Classify(path string) Classification {
	out := Classification{Path: path}
	switch {
	case path == PathRoot:
		out.Category = CategoryRoot
		return out
	case path == PathAdmin:
		out.Category = CategoryAdminRoot
		return out
	}
	if _, ok := c.public[path]; ok {
		out.Category = CategoryPublic
		return out
	}
	for i := range c.rules {
		if strings.HasPrefix(path, c.rules[i].PathPrefix) {
			rule := c.rules[i]
			out.Category = CategoryAdminProtected
			out.Rule = &rule
			return out
		}
	}
	if strings.HasPrefix(path, PathAdmin) {
		out.Category = CategoryAdminOther
		return out
	}
	out.Category = CategoryUnclassified
	return out
}
