// Package gate decides, for every request, whether the browser is signed in and where it must go.
package gate

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/mothercare/core/nav"
	"github.com/trezcool/mothercare/core/session"
)

// State of the gate for one request.
type State int

const (
	Resolving State = iota
	Unauthenticated
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	}
	return "resolving"
}

// Reasons for reaching Unauthenticated.
const (
	ReasonMissing      = "missing session"
	ReasonUnknownRole  = "unresolved role"
	ReasonUnauthorized = "unauthorized"
	ReasonSignedOut    = "signed out"
)

// Decision is the outcome of evaluating the gate.
// Redirect is empty when the request may render in place.
type Decision struct {
	State    State
	Role     session.Role
	Session  session.Session
	Redirect string
	Reason   string
}

// Gate enforces session presence before a page renders.
type Gate struct {
	LoginPath string
}

func New(loginPath string) Gate {
	if loginPath == "" {
		loginPath = nav.PathLogin
	}
	return Gate{LoginPath: loginPath}
}

// Evaluate reads the session of store and decides for currentPath.
// Corrupted sessions are treated as missing (Store.Load clears them); a token whose
// user record carries no recognized role clears the session as well.
func (g Gate) Evaluate(ctx context.Context, store *session.Store, currentPath string) (Decision, error) {
	sess, err := store.Load(ctx)
	if err != nil {
		return Decision{State: Resolving}, errors.Wrap(err, "loading session")
	}
	if sess.IsEmpty() {
		return g.unauthenticated(currentPath, ReasonMissing), nil
	}

	role, ok := session.Resolve(sess.User)
	if !ok {
		if err = store.Clear(ctx); err != nil {
			return Decision{State: Resolving}, errors.Wrap(err, "clearing session")
		}
		return g.unauthenticated(currentPath, ReasonUnknownRole), nil
	}

	d := Decision{State: Authenticated, Role: role, Session: sess}
	if currentPath == g.LoginPath {
		d.Redirect = nav.Home(role)
	}
	return d, nil
}

// Revoke handles a 401/403 from the backend: the session is cleared and the browser sent to login.
func (g Gate) Revoke(ctx context.Context, store *session.Store, currentPath string) (Decision, error) {
	return g.end(ctx, store, currentPath, ReasonUnauthorized)
}

// SignOut ends the session at the user's request.
func (g Gate) SignOut(ctx context.Context, store *session.Store) (Decision, error) {
	return g.end(ctx, store, "", ReasonSignedOut)
}

func (g Gate) end(ctx context.Context, store *session.Store, currentPath, reason string) (Decision, error) {
	if err := store.Clear(ctx); err != nil {
		return Decision{State: Resolving}, errors.Wrap(err, "clearing session")
	}
	return g.unauthenticated(currentPath, reason), nil
}

// unauthenticated redirects to login, except when already there.
func (g Gate) unauthenticated(currentPath, reason string) Decision {
	d := Decision{State: Unauthenticated, Reason: reason}
	if currentPath != g.LoginPath {
		d.Redirect = g.LoginPath
	}
	return d
}
