package testutil

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mothercare/core"
	"github.com/trezcool/mothercare/core/session"
	logsvc "github.com/trezcool/mothercare/services/logger"
)

// Config returns a test configuration pointing at cmsURL.
func Config(cmsURL string) *core.Config {
	return &core.Config{
		TestMode:  true,
		AppName:   "Mother Care",
		Build:     "test",
		Env:       "TEST",
		SecretKey: "test-secret-key",
		Server: core.ServerConfig{
			Address:         ":0",
			ShutdownTimeout: time.Second,
			LoginPath:       "/login",
		},
		CMS:     core.CMSConfig{BaseURL: cmsURL},
		Session: core.SessionConfig{Backend: core.SessionBackendMemory},
	}
}

// Validator returns a validator with the application validators registered.
func Validator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	session.InitValidators(validate, translator)
	return validate, translator
}

// Logger returns a logger that prints nothing and reports nowhere.
func Logger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

// Browser replays the cookies handed out by h, the way a browser would.
type Browser struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
}

func NewBrowser(t *testing.T, h http.Handler) *Browser {
	return &Browser{t: t, h: h, cookies: make(map[string]*http.Cookie)}
}

func (b *Browser) Get(path string) *httptest.ResponseRecorder {
	return b.Do(http.MethodGet, path, nil)
}

func (b *Browser) Post(path string, form url.Values) *httptest.ResponseRecorder {
	return b.Do(http.MethodPost, path, form)
}

// Do sends the request with the current cookies and keeps the ones set by the response.
func (b *Browser) Do(method, path string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	b.h.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *Browser) Cookie(name string) *http.Cookie {
	return b.cookies[name]
}

func (b *Browser) SetCookie(c *http.Cookie) {
	b.cookies[c.Name] = c
}

// Location is the redirect target of rec, or "".
func Location(rec *httptest.ResponseRecorder) string {
	return rec.Header().Get("Location")
}
