package echoweb

import (
	"context"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/csrf"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/mothercare/core"
	"github.com/trezcool/mothercare/core/gate"
	"github.com/trezcool/mothercare/core/session"
	"github.com/trezcool/mothercare/services/cms"
)

// Exposed under /debug/vars.
var (
	logins         = expvar.NewInt("logins")
	loginFailures  = expvar.NewInt("login_failures")
	revocations    = expvar.NewInt("session_revocations")
	gateRejections = expvar.NewInt("gate_unknown_roles")
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Sessions   session.KV
		CMS        *cms.Client
		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		gate     gate.Gate
		tickets  tickets
		shutdown chan os.Signal
		errors   chan error
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) (*Server, error) {
	rdr, err := newRenderer(deps.CMS.MediaURL)
	if err != nil {
		return nil, errors.Wrap(err, "loading templates")
	}

	s := &Server{
		deps: deps,
		app:  echo.New(),
		gate: gate.New(deps.Conf.Server.LoginPath),
		tickets: tickets{
			key:    []byte(deps.Conf.SecretKey),
			issuer: deps.Conf.AppName,
			secure: deps.Conf.Server.SecureCookies,
		},
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	s.app.Renderer = rdr
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s, nil
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if conf.Server.CSRFKey != "" {
		if !conf.Server.SecureCookies {
			s.app.Use(plaintextMiddleware)
		}
		s.app.Use(echo.WrapMiddleware(csrf.Protect(
			[]byte(conf.Server.CSRFKey),
			csrf.Secure(conf.Server.SecureCookies),
			csrf.Path("/"),
			csrf.SameSite(csrf.SameSiteLaxMode),
			csrf.ErrorHandler(http.HandlerFunc(csrfFailure)),
		)))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s, s.SignalShutdown)
	s.app.Debug = conf.Debug

	web := s.app.Group("", s.ticketMiddleware, s.gateMiddleware)
	web.GET("/", s.home)
	web.POST("/logout", s.logout)
	registerAuthPages(web, s)

	dash := web.Group("/dashboard", roleMiddleware)
	registerPages(dash, s)
}

// Start listens on the configured address. Errors other than a graceful stop are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors delivers the errors that stopped the listener.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal delivers SIGINT, SIGTERM and internal shutdown requests.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the main goroutine to shut the server down.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	signal.Stop(s.shutdown)
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// home sends every visitor to their landing page.
func (s *Server) home(ctx echo.Context) error {
	v, err := getContextVisit(ctx)
	if err != nil {
		return err
	}
	if v.decision.State != gate.Authenticated {
		return ctx.Redirect(http.StatusSeeOther, s.gate.LoginPath)
	}
	return ctx.Redirect(http.StatusSeeOther, homeOf(v))
}

// plaintextMiddleware tells the CSRF check that the request did not come over TLS.
func plaintextMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctx.SetRequest(csrf.PlaintextHTTPRequest(ctx.Request()))
		return next(ctx)
	}
}

func csrfFailure(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Forbidden - the form has expired, please reload the page and try again.", http.StatusForbidden)
}

type viewOption func(*viewData)

func withError(msg string) viewOption { return func(vd *viewData) { vd.Error = msg } }

func withFlash(msg string) viewOption { return func(vd *viewData) { vd.Flash = msg } }

func withLang(lang string) viewOption { return func(vd *viewData) { vd.Lang = lang } }

// renderPage renders a page inside the shell of the current visit.
func (s *Server) renderPage(ctx echo.Context, code int, name, title string, data interface{}, opts ...viewOption) error {
	vd := viewData{Title: title, Data: data}
	if s.deps.Conf.Server.CSRFKey != "" {
		vd.CSRF = csrf.TemplateField(ctx.Request())
	}
	if v, err := getContextVisit(ctx); err == nil && v.decision.State == gate.Authenticated {
		menu := v.menu
		vd.Menu = &menu
		vd.User = v.profile
	}
	for _, opt := range opts {
		opt(&vd)
	}
	return ctx.Render(code, name, vd)
}
