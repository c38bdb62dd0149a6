package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mothercare/core"
	"github.com/trezcool/mothercare/core/nav"
	"github.com/trezcool/mothercare/core/session"
	"github.com/trezcool/mothercare/services/cms"
)

const (
	msgLoginFailed = "Login failed"
	msgNoRole      = "Your account has no access to this dashboard."
)

type (
	LoginForm struct {
		Email    string `form:"email" validate:"required,email"`
		Password string `form:"password" validate:"required,min=8"`
	}

	loginData struct {
		Email  string
		Errors map[string]string
	}
)

func (lf *LoginForm) Validate(s *Server) error {
	lf.Email = core.CleanString(lf.Email, true /* lower */)
	if err := s.deps.Validate.Struct(lf); err != nil {
		return core.TranslateValidationErrors(err, s.deps.Translator)
	}
	return nil
}

func registerAuthPages(g *echo.Group, s *Server) {
	g.GET(s.gate.LoginPath, s.loginPage)
	g.POST(s.gate.LoginPath, s.login)
}

func homeOf(v *visit) string {
	return nav.Home(v.role())
}

// Handlers

func (s *Server) loginPage(ctx echo.Context) error {
	return s.renderPage(ctx, http.StatusOK, "login", "Sign in", loginData{})
}

// login exchanges the credentials for a token, fetches the profile with its role and persists both together.
// Nothing is persisted unless the profile carries a known role.
func (s *Server) login(ctx echo.Context) error {
	var form LoginForm
	if err := ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to LoginForm")
	}
	if err := form.Validate(s); err != nil {
		var vErr *core.ValidationError
		if errors.As(err, &vErr) {
			return s.renderLoginError(ctx, http.StatusBadRequest, form.Email, "", vErr.FieldMap())
		}
		return err
	}

	v, err := getContextVisit(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()

	token, err := s.deps.CMS.Login(reqCtx, form.Email, form.Password)
	if err != nil {
		var hErr *cms.HTTPError
		if errors.As(err, &hErr) && hErr.Status < http.StatusInternalServerError {
			msg := hErr.Message
			if msg == "" {
				msg = msgLoginFailed
			}
			loginFailures.Add(1)
			return s.renderLoginError(ctx, http.StatusBadRequest, form.Email, msg, nil)
		}
		if errors.Is(err, cms.ErrNoJWT) {
			loginFailures.Add(1)
			return s.renderLoginError(ctx, http.StatusBadGateway, form.Email, msgLoginFailed, nil)
		}
		return errors.Wrap(err, "logging in")
	}

	user, err := s.deps.CMS.WithTokens(cms.StaticToken(token)).Me(reqCtx)
	if err != nil {
		if cms.IsUnauthorized(err) {
			loginFailures.Add(1)
			return s.renderLoginError(ctx, http.StatusBadRequest, form.Email, msgLoginFailed, nil)
		}
		if errors.Is(err, session.ErrInvalidUserRecord) {
			loginFailures.Add(1)
			return s.renderLoginError(ctx, http.StatusForbidden, form.Email, msgNoRole, nil)
		}
		return errors.Wrap(err, "fetching profile")
	}

	profile, err := session.ParseProfile(user, s.deps.Validate)
	if err != nil {
		loginFailures.Add(1)
		return s.renderLoginError(ctx, http.StatusForbidden, form.Email, msgNoRole, nil)
	}
	role, _ := session.ParseRole(profile.Role.Name)

	if err = v.store.Save(reqCtx, token, user); err != nil {
		return errors.Wrap(err, "saving session")
	}
	logins.Add(1)
	s.deps.Logger.Info("signed in as "+role.String(), profile.Person())
	return ctx.Redirect(http.StatusSeeOther, nav.Home(role))
}

func (s *Server) renderLoginError(ctx echo.Context, code int, email, msg string, fields map[string]string) error {
	if msg == "" && len(fields) > 0 {
		msg = msgInvalidForm
	}
	return s.renderPage(ctx, code, "login", "Sign in", loginData{Email: email, Errors: fields}, withError(msg))
}

func (s *Server) logout(ctx echo.Context) error {
	v, err := getContextVisit(ctx)
	if err != nil {
		return err
	}
	d, err := s.gate.SignOut(ctx.Request().Context(), v.store)
	if err != nil {
		return errors.Wrap(err, "signing out")
	}
	return ctx.Redirect(http.StatusSeeOther, d.Redirect)
}
