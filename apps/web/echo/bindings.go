package echoweb

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/mothercare/core"
)

const (
	searchParam = "q"
	pageParam   = "page"
	sizeParam   = "size"
	dateParam   = "date"
	localeParam = "locale"

	defaultPageSize = 10
	maxPageSize     = 50
	dateLayout      = "2006-01-02"
)

// locales of the resident profiles
var locales = []string{"en", "km"}

type listing struct {
	Search string
	Page   int
	Size   int
}

func (l *listing) Bind(ctx echo.Context) {
	l.Search = core.CleanString(ctx.QueryParam(searchParam))
	l.Page = positiveInt(ctx.QueryParam(pageParam), 1)
	l.Size = positiveInt(ctx.QueryParam(sizeParam), defaultPageSize)
	if l.Size > maxPageSize {
		l.Size = maxPageSize
	}
}

// Matches reports whether one of values contains the search term, ignoring case.
func (l listing) Matches(values ...string) bool {
	if l.Search == "" {
		return true
	}
	term := strings.ToLower(l.Search)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

// window returns the bounds of the current page over n items.
func (l listing) window(n int) (int, int) {
	start := (l.Page - 1) * l.Size
	if start > n {
		start = n
	}
	end := start + l.Size
	if end > n {
		end = n
	}
	return start, end
}

// pageInfo feeds the "pager" template.
type pageInfo struct {
	Page  int
	Pages int
	base  *url.URL
}

func newPageInfo(u *url.URL, page, size, total int) pageInfo {
	pages := 1
	if size > 0 && total > 0 {
		pages = (total + size - 1) / size
	}
	return pageInfo{Page: page, Pages: pages, base: u}
}

func (p pageInfo) HasPrev() bool { return p.Page > 1 }

func (p pageInfo) HasNext() bool { return p.Page < p.Pages }

func (p pageInfo) PrevURL() string { return p.urlOf(p.Page - 1) }

func (p pageInfo) NextURL() string { return p.urlOf(p.Page + 1) }

func (p pageInfo) urlOf(page int) string {
	if p.base == nil {
		return "?" + pageParam + "=" + strconv.Itoa(page)
	}
	q := p.base.Query()
	q.Set(pageParam, strconv.Itoa(page))
	return p.base.Path + "?" + q.Encode()
}

// bindDate reads the `date` query param, defaulting to today. Invalid dates fall back to today.
func bindDate(ctx echo.Context, now time.Time) string {
	if d, err := time.Parse(dateLayout, ctx.QueryParam(dateParam)); err == nil {
		return d.Format(dateLayout)
	}
	return now.Format(dateLayout)
}

func bindLocale(ctx echo.Context) string {
	l := core.CleanString(ctx.QueryParam(localeParam), true /* lower */)
	for _, known := range locales {
		if l == known {
			return l
		}
	}
	return locales[0]
}

func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return n
}
