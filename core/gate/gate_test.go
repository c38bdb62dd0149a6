package gate

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mothercare/core/nav"
	"github.com/trezcool/mothercare/core/session"
)

const (
	adminUser    = `{"id":1,"username":"admin","role":{"name":"Admin","type":"admin"}}`
	educatorUser = `{"id":2,"username":"dara","role":{"name":"Educator","type":"educator"}}`
	parentUser   = `{"id":3,"username":"srey","role":{"name":"Parent","type":"parent"}}`
	unknownUser  = `{"id":4,"username":"ghost","role":{"name":"Authenticated","type":"authenticated"}}`
)

type flakyKV struct {
	*session.MemoryKV
	failDelete bool
}

func (kv flakyKV) Delete(ctx context.Context, ns string, keys ...string) error {
	if kv.failDelete {
		return errors.New("delete failed")
	}
	return kv.MemoryKV.Delete(ctx, ns, keys...)
}

func newStore(t *testing.T, kv session.KV, token, user string) *session.Store {
	store, err := session.NewStore(kv, "browser-1")
	require.NoError(t, err)
	if token != "" {
		require.NoError(t, store.Save(context.Background(), token, session.UserRecord(user)))
	}
	return store
}

func TestGate_Evaluate(t *testing.T) {
	g := New("")

	tests := []struct {
		name         string
		token        string
		user         string
		path         string
		wantState    State
		wantRole     session.Role
		wantRedirect string
		wantReason   string
		wantCleared  bool
	}{
		{name: "no session", path: "/dashboard", wantState: Unauthenticated, wantRedirect: "/login", wantReason: ReasonMissing},
		{name: "no session on login", path: "/login", wantState: Unauthenticated, wantReason: ReasonMissing},
		{name: "admin", token: "tok", user: adminUser, path: "/dashboard", wantState: Authenticated, wantRole: session.RoleAdmin},
		{name: "educator", token: "tok", user: educatorUser, path: "/dashboard/resident", wantState: Authenticated, wantRole: session.RoleEducator},
		{name: "parent", token: "tok", user: parentUser, path: "/dashboard/kids", wantState: Authenticated, wantRole: session.RoleParent},
		{name: "signed in on login goes home", token: "tok", user: educatorUser, path: "/login", wantState: Authenticated, wantRole: session.RoleEducator, wantRedirect: "/dashboard/resident"},
		{name: "unknown role", token: "tok", user: unknownUser, path: "/dashboard", wantState: Unauthenticated, wantRedirect: "/login", wantReason: ReasonUnknownRole, wantCleared: true},
		{name: "no role on login", token: "tok", user: `{"id":9}`, path: "/login", wantState: Unauthenticated, wantReason: ReasonUnknownRole, wantCleared: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t, session.NewMemoryKV(), tt.token, tt.user)

			d, err := g.Evaluate(ctx, store, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, d.State)
			assert.Equal(t, tt.wantRole, d.Role)
			assert.Equal(t, tt.wantRedirect, d.Redirect)
			assert.Equal(t, tt.wantReason, d.Reason)
			if tt.wantState == Authenticated {
				assert.Equal(t, tt.token, d.Session.Token)
				assert.Equal(t, tt.user, d.Session.User.String())
				assert.NotEmpty(t, nav.MenuFor(d.Role))
			}

			sess, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCleared || tt.token == "", sess.IsEmpty())
		})
	}
}

func TestGate_EvaluateCorruptSession(t *testing.T) {
	ctx := context.Background()
	kv := session.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, "browser-1", map[string]string{session.KeyToken: "tok", session.KeyUser: "<html>"}))
	store := newStore(t, kv, "", "")

	d, err := New("/login").Evaluate(ctx, store, "/dashboard/medical")
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, d.State)
	assert.Equal(t, "/login", d.Redirect)
	assert.Equal(t, 0, kv.Len())
}

func TestGate_SingleRedirectToLogin(t *testing.T) {
	ctx := context.Background()
	g := New("/login")
	store := newStore(t, session.NewMemoryKV(), "", "")

	path := "/dashboard/medical"
	redirects := 0
	for i := 0; i < 3; i++ {
		d, err := g.Evaluate(ctx, store, path)
		require.NoError(t, err)
		if d.Redirect == "" {
			break
		}
		redirects++
		path = d.Redirect
	}
	assert.Equal(t, 1, redirects)
	assert.Equal(t, "/login", path)
}

func TestGate_Revoke(t *testing.T) {
	ctx := context.Background()
	g := New("/login")

	for _, path := range []string{"/dashboard", "/dashboard/medical", "/dashboard/kids/abc"} {
		store := newStore(t, session.NewMemoryKV(), "tok", adminUser)

		d, err := g.Revoke(ctx, store, path)
		require.NoError(t, err)
		assert.Equal(t, Unauthenticated, d.State)
		assert.Equal(t, "/login", d.Redirect)
		assert.Equal(t, ReasonUnauthorized, d.Reason)

		sess, err := store.Load(ctx)
		require.NoError(t, err)
		assert.True(t, sess.IsEmpty())
	}
}

func TestGate_SignOut(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, session.NewMemoryKV(), "tok", parentUser)

	d, err := New("/login").SignOut(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "/login", d.Redirect)
	assert.Equal(t, ReasonSignedOut, d.Reason)

	d, err = New("/login").Evaluate(ctx, store, "/dashboard/kids")
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, d.State)
}

func TestGate_BackendErrors(t *testing.T) {
	ctx := context.Background()
	kv := flakyKV{MemoryKV: session.NewMemoryKV(), failDelete: true}
	store := newStore(t, kv, "tok", unknownUser)

	d, err := New("/login").Evaluate(ctx, store, "/dashboard")
	assert.Error(t, err)
	assert.Equal(t, Resolving, d.State)

	_, err = New("/login").Revoke(ctx, store, "/dashboard")
	assert.Error(t, err)
}
