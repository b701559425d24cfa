package access

// NavigationItem is one sidebar destination and the roles allowed to see it.
type NavigationItem struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Roles []Role `json:"roles"`
}

// Permits reports whether role is in the item's permitted set.
func (n NavigationItem) Permits(role Role) bool {
	for _, r := range n.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type menuEntry struct {
	label    string
	path     string
	required Capability
}

var menu = []menuEntry{
	{label: "Dashboard", path: "/", required: CapViewDashboard},
	{label: "Patients", path: "/patients", required: CapViewPatients},
	{label: "Prescriptions", path: "/prescriptions", required: CapViewPrescriptions},
	{label: "Settings", path: "/settings", required: CapViewSettings},
}

// DefaultNavigation returns the full menu with each item's permitted roles
// derived from the policy.
func DefaultNavigation(p *Policy) []NavigationItem {
	items := make([]NavigationItem, 0, len(menu))
	for _, m := range menu {
		items = append(items, NavigationItem{
			Label: m.label,
			Path:  m.path,
			Roles: p.RolesWith(m.required),
		})
	}
	return items
}

// VisibleNavigation returns the items whose permitted roles include role,
// preserving input order.
func VisibleNavigation(role Role, items []NavigationItem) []NavigationItem {
	visible := make([]NavigationItem, 0, len(items))
	for _, item := range items {
		if item.Permits(role) {
			visible = append(visible, item)
		}
	}
	return visible
}
