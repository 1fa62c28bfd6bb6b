package view

import (
	"context"
	"sync"

	"coinview/internal/query"
)

// Page is the result of a navigation: exactly one of List or Detail is set
type Page struct {
	Route  Route
	List   *ListView
	Detail *DetailView
}

type observerResolver struct {
	o *query.Observer
}

func (r observerResolver) resolve(ctx context.Context, key query.Key, fetch query.FetchFunc) (query.Entry, error) {
	return r.o.Observe(ctx, key, fetch)
}

// Navigator holds long-lived navigation state. Each view section owns an
// observer, so moving between routes re-queries only the sections whose key
// changed, and sections that leave the tree are reset so late results for
// them are dropped.
type Navigator struct {
	composer *Composer

	mu    sync.Mutex
	route Route
	hint  Hint

	list  *query.Observer
	info  *query.Observer
	price *query.Observer
	chart *query.Observer
}

// NewNavigator creates a navigator positioned at the list route
func NewNavigator(c *Composer) *Navigator {
	return &Navigator{
		composer: c,
		route:    ListRoute(),
		list:     query.NewObserver(c.cache),
		info:     query.NewObserver(c.cache),
		price:    query.NewObserver(c.cache),
		chart:    query.NewObserver(c.cache),
	}
}

// Route returns the current route and hint
func (n *Navigator) Route() (Route, Hint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.route, n.hint
}

// Navigate parses path and renders it, waiting for the queries it needs
func (n *Navigator) Navigate(ctx context.Context, path string, hint Hint) (*Page, error) {
	route, err := ParseRoute(path)
	if err != nil {
		return nil, err
	}
	return n.Go(ctx, route, hint)
}

// Go renders route. A hint is kept while staying on the same coin.
func (n *Navigator) Go(ctx context.Context, route Route, hint Hint) (*Page, error) {
	n.mu.Lock()
	if hint.IsZero() && route.Kind == KindDetail && n.route.Kind == KindDetail && n.route.CoinID == route.CoinID {
		hint = n.hint
	}
	n.route, n.hint = route, hint
	n.mu.Unlock()

	page := &Page{Route: route}
	switch route.Kind {
	case KindList:
		n.info.Reset()
		n.price.Reset()
		n.chart.Reset()
		list, err := n.composer.list(ctx, observerResolver{n.list})
		if err != nil {
			return nil, err
		}
		page.List = list
	default:
		n.list.Reset()
		if route.Tab != TabChart {
			n.chart.Reset()
		}
		detail, err := n.composer.detail(ctx, route, hint,
			observerResolver{n.info}, observerResolver{n.price}, observerResolver{n.chart})
		if err != nil {
			return nil, err
		}
		page.Detail = detail
	}
	return page, nil
}

// Refresh invalidates the queries of the current route and renders it again
func (n *Navigator) Refresh(ctx context.Context) (*Page, error) {
	route, hint := n.Route()
	c := n.composer.cache
	switch route.Kind {
	case KindList:
		c.Invalidate(CoinsKey())
	default:
		c.Invalidate(InfoKey(route.CoinID))
		c.Invalidate(PriceKey(route.CoinID))
		c.Invalidate(HistoryKey(route.CoinID))
		// force the observers to treat the keys as new
		n.info.Reset()
		n.price.Reset()
		n.chart.Reset()
	}
	n.list.Reset()
	return n.Go(ctx, route, hint)
}
