package echoweb

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mothercare/core"
	"github.com/trezcool/mothercare/services/cms"
)

const (
	msgUnavailable = "We could not reach the server. Please try again."
	msgInvalidForm = "Please correct the errors below."
)

var (
	errPageForbidden = echo.NewHTTPError(http.StatusForbidden, "You do not have access to this page.")
	errPageNotFound  = echo.NewHTTPError(http.StatusNotFound, "This page does not exist.")
)

type errorData struct {
	Retry string
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(s *Server, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		if ctx.Response().Committed {
			return
		}
		// the browser went away: nobody is left to render for
		if errors.Is(err, context.Canceled) {
			return
		}

		// any 401/403 from the CMS ends the session, whatever the page
		if cms.IsUnauthorized(err) {
			rErr := revoke(s, ctx)
			if rErr == nil {
				return
			}
			err = rErr
		}

		var code int
		var message string
		retry := ""

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = fmt.Sprint(origErr.Message)
		case validator.ValidationErrors, *core.ValidationError:
			code = http.StatusBadRequest
			message = msgInvalidForm
		default:
			switch {
			case errors.Is(err, cms.ErrNotFound) || cmsStatus(err) == http.StatusNotFound:
				code = http.StatusNotFound
				message = errPageNotFound.Message.(string)
			case cms.IsUnavailable(err) || cmsStatus(err) != 0:
				// page-scoped: the session is kept and the user may retry
				code = http.StatusBadGateway
				message = msgUnavailable
				retry = ctx.Request().URL.RequestURI()
				s.deps.Logger.Warn(msgUnavailable, err, contextPerson(ctx))
			default: // any other error is a server error
				code = http.StatusInternalServerError
				message = http.StatusText(http.StatusInternalServerError)
				s.deps.Logger.Error(message, errors.Wrap(err, message), contextPerson(ctx))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code >= http.StatusInternalServerError {
			message = err.Error()
		}

		if ctx.Request().Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(code)
		} else {
			err = s.renderPage(ctx, code, "error", http.StatusText(code), errorData{Retry: retry}, withError(message))
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

// revoke clears the session after the CMS rejected its token and sends the browser to login.
func revoke(s *Server, ctx echo.Context) error {
	store, ok := getContextStore(ctx)
	if !ok {
		return errors.New("session store missing from context")
	}
	d, err := s.gate.Revoke(ctx.Request().Context(), store, ctx.Request().URL.Path)
	if err != nil {
		return errors.Wrap(err, "revoking session")
	}
	revocations.Add(1)
	if d.Redirect == "" {
		d.Redirect = s.gate.LoginPath
	}
	return ctx.Redirect(http.StatusSeeOther, d.Redirect)
}

// cmsStatus is the status of a CMS answer wrapped in err, or 0.
func cmsStatus(err error) int {
	var hErr *cms.HTTPError
	if errors.As(err, &hErr) {
		return hErr.Status
	}
	return 0
}

func contextPerson(ctx echo.Context) core.Person {
	if v, err := getContextVisit(ctx); err == nil {
		return v.profile.Person()
	}
	return core.Person{}
}
