package view

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"coinview/internal/paprika"
	"coinview/internal/query"
	"coinview/internal/theme"
)

// API is the upstream surface the views depend on
type API interface {
	ListCoins(ctx context.Context) ([]paprika.CoinSummary, error)
	GetCoinInfo(ctx context.Context, id string) (*paprika.CoinDetail, error)
	GetCoinPrice(ctx context.Context, id string) (*paprika.PriceQuote, error)
	GetCoinHistory(ctx context.Context, id string) ([]paprika.HistoricalPricePoint, error)
	IconURL(symbol string) string
}

// Query keys used by the views
func CoinsKey() query.Key             { return query.NewKey("coins") }
func InfoKey(id string) query.Key    { return query.NewKey("info", id) }
func PriceKey(id string) query.Key   { return query.NewKey("price", id) }
func HistoryKey(id string) query.Key { return query.NewKey("history", id) }

// Phase is the render branch of a view section
type Phase int

const (
	Loading Phase = iota
	Ready
	Failed
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the render branch plus a user-facing message when Failed
type State struct {
	Phase   Phase
	Message string
	Err     error
}

func (s State) Loading() bool { return s.Phase == Loading }
func (s State) Ready() bool   { return s.Phase == Ready }
func (s State) Failed() bool  { return s.Phase == Failed }

// Mode selects whether a view waits for pending queries
type Mode int

const (
	// Deferred starts missing fetches and renders Loading for anything pending
	Deferred Mode = iota
	// Blocking waits for every query the view depends on
	Blocking
)

// resolver yields the cache entry for a declared dependency
type resolver interface {
	resolve(ctx context.Context, key query.Key, fetch query.FetchFunc) (query.Entry, error)
}

type cacheResolver struct {
	cache *query.Cache
	mode  Mode
}

func (r cacheResolver) resolve(ctx context.Context, key query.Key, fetch query.FetchFunc) (query.Entry, error) {
	if r.mode == Deferred {
		return r.cache.Start(key, fetch), nil
	}
	return r.cache.Query(ctx, key, fetch)
}

// Options configures a Composer
type Options struct {
	ListLimit     int
	QuoteCurrency string
}

// Composer builds the list, detail and tab view models from cached queries
type Composer struct {
	api      API
	cache    *query.Cache
	theme    *theme.State
	limit    int
	currency string
}

// NewComposer wires a composer. ListLimit defaults to 50 and QuoteCurrency to USD.
func NewComposer(api API, cache *query.Cache, themeState *theme.State, opts Options) *Composer {
	if opts.ListLimit <= 0 {
		opts.ListLimit = 50
	}
	if opts.QuoteCurrency == "" {
		opts.QuoteCurrency = "USD"
	}
	return &Composer{
		api:      api,
		cache:    cache,
		theme:    themeState,
		limit:    opts.ListLimit,
		currency: strings.ToUpper(opts.QuoteCurrency),
	}
}

// Theme returns the injected theme state
func (c *Composer) Theme() *theme.State { return c.theme }

// Cache returns the backing query cache
func (c *Composer) Cache() *query.Cache { return c.cache }

// CoinItem is one navigable row of the list view
type CoinItem struct {
	ID      string
	Name    string
	Symbol  string
	Rank    int
	IsNew   bool
	IconURL string
	Route   Route
	Hint    Hint
}

// ListView is the "/" page
type ListView struct {
	State
	Theme theme.Flag
	Coins []CoinItem
	// Total is the number of coins upstream returned before truncation
	Total int
}

// DetailView is the "/{coinId}" page with its nested tab
type DetailView struct {
	Route  Route
	Theme  theme.Flag
	Header Header
	Info   InfoSection
	Price  PriceSection
	Tabs   []TabLink
	Chart  *ChartView
}

// Header is the coin title. Hint values are shown until the info query resolves.
type Header struct {
	Name     string
	Symbol   string
	Rank     int
	IconURL  string
	FromHint bool
}

// InfoSection wraps the coin info query
type InfoSection struct {
	State
	Detail *paprika.CoinDetail
}

// PriceSection wraps the ticker query
type PriceSection struct {
	State
	Currency string
	Quote    *paprika.PriceQuote
	Rows     []PriceRow
}

// TabLink is a tab whose active state is derived from the route alone
type TabLink struct {
	Tab    Tab
	Label  string
	Route  Route
	Active bool
}

// List composes the list view
func (c *Composer) List(ctx context.Context, mode Mode) (*ListView, error) {
	return c.list(ctx, cacheResolver{c.cache, mode})
}

func (c *Composer) list(ctx context.Context, r resolver) (*ListView, error) {
	entry, err := r.resolve(ctx, CoinsKey(), func(ctx context.Context) (any, error) {
		return c.api.ListCoins(ctx)
	})
	if err != nil {
		return nil, err
	}

	v := &ListView{State: stateOf(entry), Theme: c.theme.Get()}
	if !v.Ready() {
		return v, nil
	}

	coins, ok := entry.Data.([]paprika.CoinSummary)
	if !ok {
		v.State = failedState(unexpectedData(entry))
		return v, nil
	}

	v.Total = len(coins)
	n := min(len(coins), c.limit)
	v.Coins = make([]CoinItem, n)
	for i, coin := range coins[:n] {
		v.Coins[i] = CoinItem{
			ID:      coin.ID,
			Name:    coin.Name,
			Symbol:  coin.Symbol,
			Rank:    coin.Rank,
			IsNew:   coin.IsNew,
			IconURL: c.api.IconURL(coin.Symbol),
			Route:   DetailRoute(coin.ID, TabNone),
			Hint:    Hint{Name: coin.Name, Symbol: coin.Symbol},
		}
	}
	return v, nil
}

// Detail composes the detail view. Info and price are queried concurrently;
// the chart query runs only when the chart tab is selected.
func (c *Composer) Detail(ctx context.Context, route Route, hint Hint, mode Mode) (*DetailView, error) {
	r := cacheResolver{c.cache, mode}
	return c.detail(ctx, route, hint, r, r, r)
}

func (c *Composer) detail(ctx context.Context, route Route, hint Hint, infoR, priceR, chartR resolver) (*DetailView, error) {
	if route.Kind != KindDetail {
		return nil, fmt.Errorf("%w: detail view needs a coin route", ErrUnknownRoute)
	}
	id := route.CoinID

	var infoEntry, priceEntry query.Entry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		infoEntry, err = infoR.resolve(gctx, InfoKey(id), func(ctx context.Context) (any, error) {
			return c.api.GetCoinInfo(ctx, id)
		})
		return err
	})
	g.Go(func() error {
		var err error
		priceEntry, err = priceR.resolve(gctx, PriceKey(id), func(ctx context.Context) (any, error) {
			return c.api.GetCoinPrice(ctx, id)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	v := &DetailView{
		Route: route,
		Theme: c.theme.Get(),
		Info:  c.infoSection(infoEntry),
		Price: c.priceSection(priceEntry),
		Tabs:  tabsFor(route),
	}
	v.Header = c.header(hint, v.Info)

	if route.Tab == TabChart {
		chart, err := c.chart(ctx, id, chartR)
		if err != nil {
			return nil, err
		}
		v.Chart = chart
	}
	return v, nil
}

func (c *Composer) infoSection(entry query.Entry) InfoSection {
	s := InfoSection{State: stateOf(entry)}
	if s.Ready() {
		detail, ok := entry.Data.(*paprika.CoinDetail)
		if !ok {
			s.State = failedState(unexpectedData(entry))
			return s
		}
		s.Detail = detail
	}
	return s
}

func (c *Composer) priceSection(entry query.Entry) PriceSection {
	s := PriceSection{State: stateOf(entry), Currency: c.currency}
	if s.Ready() {
		quote, ok := entry.Data.(*paprika.PriceQuote)
		if !ok {
			s.State = failedState(unexpectedData(entry))
			return s
		}
		s.Quote = quote
		s.Rows = priceRows(quote, c.currency)
	}
	return s
}

// header applies the hint precedence: hint fields render while info is
// outstanding, fetched fields take over once it is ready.
func (c *Composer) header(hint Hint, info InfoSection) Header {
	h := Header{Name: hint.Name, Symbol: hint.Symbol, FromHint: !hint.IsZero()}
	if info.Ready() {
		d := info.Detail
		if d.Name != "" {
			h.Name = d.Name
		}
		if d.Symbol != "" {
			h.Symbol = d.Symbol
		}
		h.Rank = d.Rank
		h.FromHint = false
	}
	if h.Symbol != "" {
		h.IconURL = c.api.IconURL(h.Symbol)
	}
	return h
}

func tabsFor(route Route) []TabLink {
	return []TabLink{
		{Tab: TabPrice, Label: "Price", Route: route.WithTab(TabPrice), Active: route.Tab == TabPrice},
		{Tab: TabChart, Label: "Chart", Route: route.WithTab(TabChart), Active: route.Tab == TabChart},
	}
}

// Chart composes the chart tab on its own
func (c *Composer) Chart(ctx context.Context, id string, mode Mode) (*ChartView, error) {
	return c.chart(ctx, id, cacheResolver{c.cache, mode})
}

func (c *Composer) chart(ctx context.Context, id string, r resolver) (*ChartView, error) {
	entry, err := r.resolve(ctx, HistoryKey(id), func(ctx context.Context) (any, error) {
		return c.api.GetCoinHistory(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	v := &ChartView{CoinID: id, State: stateOf(entry), Mode: c.theme.Get().ChartMode()}
	if !v.Ready() {
		return v, nil
	}

	points, ok := entry.Data.([]paprika.HistoricalPricePoint)
	if !ok {
		v.State = failedState(unexpectedData(entry))
		return v, nil
	}
	v.Series = SeriesFromHistory(points)
	return v, nil
}

func stateOf(entry query.Entry) State {
	switch entry.Status {
	case query.StatusSuccess:
		return State{Phase: Ready}
	case query.StatusError:
		return failedState(entry.Err)
	default:
		return State{Phase: Loading}
	}
}

func failedState(err error) State {
	return State{Phase: Failed, Message: FailureMessage(err), Err: err}
}

func unexpectedData(entry query.Entry) error {
	return fmt.Errorf("%w: %s holds %T", paprika.ErrDecode, entry.Key, entry.Data)
}

// FailureMessage maps an error to the text shown in a failed section
func FailureMessage(err error) string {
	switch {
	case errors.Is(err, paprika.ErrNotFound):
		return "Coin not found."
	case errors.Is(err, paprika.ErrInvalidID):
		return "That is not a valid coin id."
	case errors.Is(err, paprika.ErrDecode):
		return "The price service sent a response we could not read."
	case errors.Is(err, paprika.ErrNetwork):
		return "Could not reach the price service. Try again shortly."
	default:
		return "Failed to load."
	}
}
