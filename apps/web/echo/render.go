package echoweb

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/trezcool/mothercare/core/nav"
	"github.com/trezcool/mothercare/core/session"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// viewData is handed to every page template.
type viewData struct {
	Title string
	Lang  string
	Menu  *nav.Menu // nil outside the shell
	User  session.Profile
	CSRF  template.HTML
	Flash string
	Error string // page-scoped message
	Data  interface{}
}

type renderer struct {
	pages    map[string]*template.Template
	markdown goldmark.Markdown
}

var _ echo.Renderer = (*renderer)(nil)

func newRenderer(mediaURL func(string) string) (*renderer, error) {
	r := &renderer{
		pages: make(map[string]*template.Template),
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
			goldmark.WithRendererOptions(goldhtml.WithHardWraps()),
		),
	}
	funcs := template.FuncMap{
		"markdown": r.renderMarkdown,
		"media":    mediaURL,
		"add":      func(a, b int) int { return a + b },
		"sub":      func(a, b int) int { return a - b },
	}

	files, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, errors.Wrap(err, "listing templates")
	}
	for _, f := range files {
		file := "templates/" + f.Name()
		if file == layoutFile {
			continue
		}
		name := strings.TrimSuffix(path.Base(file), ".html")
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, layoutFile, file)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing template %s", name)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render executes the page name inside the layout.
func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return errors.Errorf("template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

// renderMarkdown turns CMS comments into HTML. Raw HTML in the source is escaped.
func (r *renderer) renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String()) // nolint:gosec
}
