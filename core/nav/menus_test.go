package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/mothercare/core/session"
)

func labels(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Label)
	}
	return out
}

func TestMenuFor(t *testing.T) {
	tests := []struct {
		role session.Role
		want []string
	}{
		{role: session.RoleAdmin, want: []string{"Dashboard", "Resident", "Fields", "Medical", "Assessment", "Reporting"}},
		{role: session.RoleEducator, want: []string{"Resident", "Medical", "Assessment", "Fields"}},
		{role: session.RoleParent, want: []string{"Kids"}},
		{role: session.Role("janitor"), want: []string{}},
		{role: session.Role(""), want: []string{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, labels(MenuFor(tt.role)))
		})
	}
}

func TestMenuFor_ReturnsCopy(t *testing.T) {
	m := MenuFor(session.RoleAdmin)
	m[0].Label = "Hacked"
	assert.Equal(t, "Dashboard", MenuFor(session.RoleAdmin)[0].Label)
}

func TestMenuFor_EducatorHasNoReporting(t *testing.T) {
	for _, e := range MenuFor(session.RoleEducator) {
		assert.NotEqual(t, PathReporting, e.Path)
	}
}

func TestCompose(t *testing.T) {
	tests := []struct {
		name       string
		role       session.Role
		path       string
		wantActive string
	}{
		{name: "admin landing", role: session.RoleAdmin, path: "/dashboard", wantActive: "Dashboard"},
		{name: "exact section", role: session.RoleAdmin, path: "/dashboard/medical", wantActive: "Medical"},
		{name: "educator landing", role: session.RoleEducator, path: "/dashboard/resident", wantActive: "Resident"},
		{name: "last entry", role: session.RoleEducator, path: "/dashboard/fields", wantActive: "Fields"},
		{name: "nested page", role: session.RoleEducator, path: "/dashboard/resident/abc123", wantActive: "Resident"},
		{name: "nested admin page does not light dashboard", role: session.RoleAdmin, path: "/dashboard/fields/3", wantActive: "Fields"},
		{name: "lookalike prefix", role: session.RoleEducator, path: "/dashboard/residents", wantActive: ""},
		{name: "outside menu", role: session.RoleParent, path: "/dashboard/reporting", wantActive: ""},
		{name: "unknown role", role: session.Role("x"), path: "/dashboard", wantActive: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			menu := Compose(tt.role, tt.path)
			assert.Equal(t, tt.role, menu.Role)
			entries := MenuFor(tt.role)
			assert.Len(t, menu.Items, len(entries))
			for i, it := range menu.Items {
				assert.Equal(t, entries[i], it.Entry, "item %d", i)
			}

			var active []string
			for _, it := range menu.Items {
				if it.Active {
					active = append(active, it.Label)
				}
			}
			if tt.wantActive == "" {
				assert.Empty(t, active)
			} else {
				assert.Equal(t, []string{tt.wantActive}, active)
			}
		})
	}
}

func TestHome(t *testing.T) {
	assert.Equal(t, PathDashboard, Home(session.RoleAdmin))
	assert.Equal(t, PathResident, Home(session.RoleEducator))
	assert.Equal(t, PathKids, Home(session.RoleParent))
	assert.Equal(t, PathLogin, Home(session.Role("")))
}

func TestAllows(t *testing.T) {
	tests := []struct {
		role session.Role
		path string
		want bool
	}{
		{role: session.RoleAdmin, path: "/dashboard", want: true},
		{role: session.RoleAdmin, path: "/dashboard/reporting", want: true},
		{role: session.RoleAdmin, path: "/dashboard/fields/4", want: true},
		{role: session.RoleAdmin, path: "/dashboard/kids", want: false},
		{role: session.RoleEducator, path: "/dashboard", want: false},
		{role: session.RoleEducator, path: "/dashboard/reporting", want: false},
		{role: session.RoleEducator, path: "/dashboard/resident/x1", want: true},
		{role: session.RoleParent, path: "/dashboard/kids/x1", want: true},
		{role: session.RoleParent, path: "/dashboard/medical", want: false},
		{role: session.Role(""), path: "/dashboard", want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Allows(tt.role, tt.path), "%s %s", tt.role, tt.path)
	}
}
