// Package nav holds the static role menus and composes the sidebar for a request.
package nav

import (
	"strings"

	"github.com/trezcool/mothercare/core/session"
)

// Entry is one sidebar link.
type Entry struct {
	Label string
	Path  string
}

// Item is an Entry as rendered for the current route.
type Item struct {
	Entry
	Active bool
}

// Menu is the composed sidebar of a request.
type Menu struct {
	Role  session.Role
	Items []Item
}

// paths
const (
	PathDashboard  = "/dashboard"
	PathResident   = "/dashboard/resident"
	PathFields     = "/dashboard/fields"
	PathMedical    = "/dashboard/medical"
	PathAssessment = "/dashboard/assessment"
	PathReporting  = "/dashboard/reporting"
	PathKids       = "/dashboard/kids"

	PathLogin = "/login"
)

var menus = map[session.Role][]Entry{
	session.RoleAdmin: {
		{Label: "Dashboard", Path: PathDashboard},
		{Label: "Resident", Path: PathResident},
		{Label: "Fields", Path: PathFields},
		{Label: "Medical", Path: PathMedical},
		{Label: "Assessment", Path: PathAssessment},
		{Label: "Reporting", Path: PathReporting},
	},
	session.RoleEducator: {
		{Label: "Resident", Path: PathResident},
		{Label: "Medical", Path: PathMedical},
		{Label: "Assessment", Path: PathAssessment},
		{Label: "Fields", Path: PathFields},
	},
	session.RoleParent: {
		{Label: "Kids", Path: PathKids},
	},
}

// MenuFor returns the ordered menu of role. Unknown roles get an empty menu.
func MenuFor(role session.Role) []Entry {
	entries := menus[role]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Compose builds the menu of role with the entry matching currentPath marked active.
// An exact match wins; otherwise the entry with the longest path-segment prefix of currentPath.
func Compose(role session.Role, currentPath string) Menu {
	entries := MenuFor(role)
	items := make([]Item, len(entries))
	for i, e := range entries {
		items[i] = Item{Entry: e}
	}
	if active := activeIndex(entries, currentPath); active >= 0 {
		items[active].Active = true
	}
	return Menu{Role: role, Items: items}
}

func activeIndex(entries []Entry, currentPath string) int {
	active, best := -1, -1
	for i, e := range entries {
		if e.Path == currentPath {
			return i
		}
		if underPath(currentPath, e.Path) && len(e.Path) > best {
			active, best = i, len(e.Path)
		}
	}
	return active
}

// Home is the landing page of role: its first menu entry.
func Home(role session.Role) string {
	if entries := menus[role]; len(entries) > 0 {
		return entries[0].Path
	}
	return PathLogin
}

// Allows reports whether path sits under one of the menu entries of role.
func Allows(role session.Role, path string) bool {
	for _, e := range menus[role] {
		if underPath(path, e.Path) {
			return true
		}
	}
	return false
}

// underPath reports whether path equals prefix or is nested below it.
// "/dashboard" covers "/dashboard/x" but not "/dashboardx".
func underPath(path, prefix string) bool {
	if path == prefix {
		return true
	}
	if prefix == PathDashboard {
		// the admin landing page is not a section: only the exact page belongs to it
		return false
	}
	return strings.HasPrefix(path, prefix+"/")
}
