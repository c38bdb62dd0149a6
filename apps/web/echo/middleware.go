package echoweb

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mothercare/core/gate"
	"github.com/trezcool/mothercare/core/nav"
	"github.com/trezcool/mothercare/core/session"
	"github.com/trezcool/mothercare/services/cms"
)

const ctxVisitKey = "visit"

// visit is what the gate learned about the current request.
type visit struct {
	decision gate.Decision
	profile  session.Profile
	menu     nav.Menu
	store    *session.Store
	cms      *cms.Client
}

func (v *visit) role() session.Role { return v.decision.Role }

// gateMiddleware evaluates the auth gate before any page renders.
// Unauthenticated requests on protected pages are sent to login; authenticated ones on login are sent home.
func (s *Server) gateMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		store, ok := getContextStore(ctx)
		if !ok {
			return errors.New("session store missing from context")
		}
		path := ctx.Request().URL.Path
		d, err := s.gate.Evaluate(ctx.Request().Context(), store, path)
		if err != nil {
			return errors.Wrap(err, "evaluating auth gate")
		}
		if d.Reason == gate.ReasonUnknownRole {
			gateRejections.Add(1)
		}
		if d.Redirect != "" {
			return ctx.Redirect(http.StatusSeeOther, d.Redirect)
		}

		v := &visit{decision: d, store: store, cms: s.deps.CMS.WithTokens(store)}
		if d.State == gate.Authenticated {
			// the role resolved, so the record decodes
			v.profile, _ = d.Session.User.Profile()
			v.menu = nav.Compose(d.Role, path)
		}
		ctx.Set(ctxVisitKey, v)
		return next(ctx)
	}
}

// roleMiddleware answers 404 inside the shell for unrouted paths and 403 when the route
// sits outside the role's menu.
// Only an authenticated visit reaches it; the session is left untouched.
func roleMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		v, err := getContextVisit(ctx)
		if err != nil {
			return err
		}
		if v.decision.State != gate.Authenticated {
			return errors.New("role check on an unauthenticated visit")
		}
		// group middlewares register a catch-all so they run before echo's 404
		if strings.HasSuffix(ctx.Path(), "/*") {
			return errPageNotFound
		}
		if !nav.Allows(v.role(), ctx.Request().URL.Path) {
			return errPageForbidden
		}
		return next(ctx)
	}
}

func getContextVisit(ctx echo.Context) (*visit, error) {
	if v, ok := ctx.Get(ctxVisitKey).(*visit); ok {
		return v, nil
	}
	return nil, errors.New("visit missing from context")
}
