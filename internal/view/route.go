package view

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnknownRoute is returned for paths outside the list/detail/tab tree
var ErrUnknownRoute = errors.New("unknown route")

// Kind is the top-level view a route selects
type Kind int

const (
	KindList Kind = iota
	KindDetail
)

// Tab is the nested sub-view of a detail route
type Tab string

const (
	TabNone  Tab = ""
	TabPrice Tab = "price"
	TabChart Tab = "chart"
)

// Route is a parsed navigation path: "/", "/{coinId}", "/{coinId}/price" or "/{coinId}/chart"
type Route struct {
	Kind   Kind
	CoinID string
	Tab    Tab
}

// ListRoute returns the root route
func ListRoute() Route { return Route{Kind: KindList} }

// DetailRoute returns the route for a coin and optional tab
func DetailRoute(coinID string, tab Tab) Route {
	return Route{Kind: KindDetail, CoinID: coinID, Tab: tab}
}

// ParseRoute parses a navigation path. A query string, if present, is ignored.
func ParseRoute(path string) (Route, error) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return ListRoute(), nil
	}

	parts := strings.Split(trimmed, "/")
	id, err := url.PathUnescape(parts[0])
	if err != nil || strings.TrimSpace(id) == "" {
		return Route{}, fmt.Errorf("%w: %q", ErrUnknownRoute, path)
	}

	switch len(parts) {
	case 1:
		return DetailRoute(id, TabNone), nil
	case 2:
		switch Tab(parts[1]) {
		case TabPrice, TabChart:
			return DetailRoute(id, Tab(parts[1])), nil
		}
	}
	return Route{}, fmt.Errorf("%w: %q", ErrUnknownRoute, path)
}

// Path renders the route back to its canonical path
func (r Route) Path() string {
	if r.Kind == KindList {
		return "/"
	}
	p := "/" + url.PathEscape(r.CoinID)
	if r.Tab != TabNone {
		p += "/" + string(r.Tab)
	}
	return p
}

// WithTab returns the same coin route on another tab
func (r Route) WithTab(tab Tab) Route {
	return DetailRoute(r.CoinID, tab)
}

// Hint is the optional payload attached to a list-to-detail navigation so the
// detail header can render before the coin info arrives.
type Hint struct {
	Name   string
	Symbol string
}

// IsZero reports whether the hint carries nothing
func (h Hint) IsZero() bool { return h.Name == "" && h.Symbol == "" }

// HintFromQuery reads a hint from name/symbol query parameters
func HintFromQuery(v url.Values) Hint {
	return Hint{Name: strings.TrimSpace(v.Get("name")), Symbol: strings.TrimSpace(v.Get("symbol"))}
}

// Query encodes the hint as name/symbol query parameters
func (h Hint) Query() url.Values {
	v := url.Values{}
	if h.Name != "" {
		v.Set("name", h.Name)
	}
	if h.Symbol != "" {
		v.Set("symbol", h.Symbol)
	}
	return v
}
