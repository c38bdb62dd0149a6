package tests

import (
	"net/http"
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	echoweb "github.com/trezcool/mothercare/apps/web/echo"
	"github.com/trezcool/mothercare/core"
	"github.com/trezcool/mothercare/core/session"
	"github.com/trezcool/mothercare/services/cms"
	"github.com/trezcool/mothercare/services/cms/cmstest"
	"github.com/trezcool/mothercare/tests"
)

var navItemRe = regexp.MustCompile(`class="nav-item( active)?" href="([^"]+)">([^<]+)</a>`)

type env struct {
	server   *echoweb.Server
	cms      *cmstest.Server
	sessions *session.MemoryKV
}

func setup(t *testing.T, configure ...func(*core.Config)) env {
	t.Helper()

	fake := cmstest.NewServer()
	t.Cleanup(fake.Close)

	conf := testutil.Config(fake.URL)
	for _, fn := range configure {
		fn(conf)
	}
	validate, translator := testutil.Validator()
	sessions := session.NewMemoryKV()

	srv, err := echoweb.NewServer(echoweb.ServerDeps{
		Conf:       conf,
		Logger:     testutil.Logger(conf),
		Sessions:   sessions,
		CMS:        cms.NewClient(conf.CMS.BaseURL, nil),
		Validate:   validate,
		Translator: translator,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	return env{server: srv, cms: fake, sessions: sessions}
}

func (e env) browser(t *testing.T) *testutil.Browser {
	return testutil.NewBrowser(t, e.server)
}

// login signs b in as email and returns the landing page it was sent to.
func login(t *testing.T, b *testutil.Browser, email string) string {
	t.Helper()
	rec := b.Post("/login", url.Values{"email": {email}, "password": {cmstest.Password}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	return testutil.Location(rec)
}

type navItem struct {
	Label  string
	Path   string
	Active bool
}

func navItems(body string) []navItem {
	var items []navItem
	for _, m := range navItemRe.FindAllStringSubmatch(body, -1) {
		items = append(items, navItem{Label: m[3], Path: m[2], Active: m[1] != ""})
	}
	return items
}

func navLabels(body string) []string {
	var labels []string
	for _, it := range navItems(body) {
		labels = append(labels, it.Label)
	}
	return labels
}
