package view

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinview/internal/paprika"
	"coinview/internal/query"
	"coinview/internal/theme"
)

// fakeAPI serves canned data. A non-nil gate blocks the matching call until closed.
type fakeAPI struct {
	coins   []paprika.CoinSummary
	info    map[string]*paprika.CoinDetail
	prices  map[string]*paprika.PriceQuote
	history map[string][]paprika.HistoricalPricePoint

	infoErr   error
	infoGate  chan struct{}
	priceGate chan struct{}

	listCalls    atomic.Int32
	infoCalls    atomic.Int32
	priceCalls   atomic.Int32
	historyCalls atomic.Int32
}

func (f *fakeAPI) ListCoins(ctx context.Context) ([]paprika.CoinSummary, error) {
	f.listCalls.Add(1)
	return f.coins, nil
}

func (f *fakeAPI) GetCoinInfo(ctx context.Context, id string) (*paprika.CoinDetail, error) {
	f.infoCalls.Add(1)
	if f.infoGate != nil {
		<-f.infoGate
	}
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	d, ok := f.info[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", paprika.ErrNotFound, id)
	}
	return d, nil
}

func (f *fakeAPI) GetCoinPrice(ctx context.Context, id string) (*paprika.PriceQuote, error) {
	f.priceCalls.Add(1)
	if f.priceGate != nil {
		<-f.priceGate
	}
	q, ok := f.prices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", paprika.ErrNotFound, id)
	}
	return q, nil
}

func (f *fakeAPI) GetCoinHistory(ctx context.Context, id string) ([]paprika.HistoricalPricePoint, error) {
	f.historyCalls.Add(1)
	h, ok := f.history[id]
	if !ok {
		return nil, fmt.Errorf("%w: dial tcp: connection refused", paprika.ErrNetwork)
	}
	return h, nil
}

func (f *fakeAPI) IconURL(symbol string) string {
	return "https://icons.test/" + symbol
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		coins: []paprika.CoinSummary{
			{ID: "btc-bitcoin", Name: "Bitcoin", Symbol: "BTC", Rank: 1, IsActive: true, Type: "coin"},
			{ID: "eth-ethereum", Name: "Ethereum", Symbol: "ETH", Rank: 2, IsActive: true, Type: "coin"},
		},
		info: map[string]*paprika.CoinDetail{
			"btc-bitcoin": {ID: "btc-bitcoin", Name: "Bitcoin", Symbol: "BTC", Rank: 1, Description: "Digital gold"},
		},
		prices: map[string]*paprika.PriceQuote{
			"btc-bitcoin": {
				ID: "btc-bitcoin", Name: "Bitcoin", Symbol: "BTC",
				Quotes: map[string]paprika.Quote{"USD": {
					Price:            decimal.RequireFromString("63123.4567"),
					MarketCap:        decimal.NewFromInt(1240000000000),
					PercentChange24h: decimal.RequireFromString("2.5"),
					PercentChange7d:  decimal.RequireFromString("-4.1"),
				}},
			},
		},
		history: map[string][]paprika.HistoricalPricePoint{
			"btc-bitcoin": {
				{TimeClose: 1700000000, Close: decimal.RequireFromString("35000")},
				{TimeClose: 1700086400, Close: decimal.RequireFromString("36000.5")},
			},
			"new-coin": {},
		},
	}
}

func newTestComposer(t *testing.T, api API) *Composer {
	t.Helper()
	cache := query.New(query.Options{})
	t.Cleanup(cache.Close)
	return NewComposer(api, cache, theme.NewState(theme.Light), Options{})
}

func TestParseRoute(t *testing.T) {
	tests := []struct {
		path string
		want Route
	}{
		{"/", ListRoute()},
		{"", ListRoute()},
		{"/btc-bitcoin", DetailRoute("btc-bitcoin", TabNone)},
		{"/btc-bitcoin/", DetailRoute("btc-bitcoin", TabNone)},
		{"/btc-bitcoin/price", DetailRoute("btc-bitcoin", TabPrice)},
		{"/btc-bitcoin/chart?x=1", DetailRoute("btc-bitcoin", TabChart)},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ParseRoute(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRoute_Unknown(t *testing.T) {
	for _, path := range []string{"/btc-bitcoin/volume", "/a/b/c", "/%zz"} {
		_, err := ParseRoute(path)
		assert.ErrorIs(t, err, ErrUnknownRoute, path)
	}
}

func TestRoute_PathRoundTrip(t *testing.T) {
	for _, r := range []Route{ListRoute(), DetailRoute("btc-bitcoin", TabNone), DetailRoute("btc-bitcoin", TabChart)} {
		parsed, err := ParseRoute(r.Path())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
}

func TestHint_Query(t *testing.T) {
	h := Hint{Name: "Bitcoin", Symbol: "BTC"}
	assert.Equal(t, h, HintFromQuery(h.Query()))
	assert.True(t, Hint{}.IsZero())
	assert.Empty(t, Hint{}.Query())
}

func TestList_TruncatesToFirst50InOrder(t *testing.T) {
	api := newFakeAPI()
	api.coins = make([]paprika.CoinSummary, 120)
	for i := range api.coins {
		api.coins[i] = paprika.CoinSummary{ID: fmt.Sprintf("coin-%03d", i), Name: fmt.Sprintf("Coin %d", i), Symbol: "C", Rank: i + 1}
	}
	c := newTestComposer(t, api)

	v, err := c.List(context.Background(), Blocking)

	require.NoError(t, err)
	require.True(t, v.Ready())
	require.Len(t, v.Coins, 50)
	assert.Equal(t, 120, v.Total)
	for i, item := range v.Coins {
		assert.Equal(t, fmt.Sprintf("coin-%03d", i), item.ID)
	}
	assert.Equal(t, Hint{Name: "Coin 0", Symbol: "C"}, v.Coins[0].Hint)
	assert.Equal(t, "/coin-000", v.Coins[0].Route.Path())
	assert.Equal(t, "https://icons.test/C", v.Coins[0].IconURL)
}

func TestList_DeferredRendersLoading(t *testing.T) {
	api := newFakeAPI()
	gate := make(chan struct{})
	blocking := &gatedListAPI{fakeAPI: api, gate: gate}
	c := newTestComposer(t, blocking)

	v, err := c.List(context.Background(), Deferred)
	require.NoError(t, err)
	assert.True(t, v.Loading())
	assert.Empty(t, v.Coins)

	close(gate)
	v, err = c.List(context.Background(), Blocking)
	require.NoError(t, err)
	assert.True(t, v.Ready())
	assert.Len(t, v.Coins, 2)
}

type gatedListAPI struct {
	*fakeAPI
	gate chan struct{}
}

func (g *gatedListAPI) ListCoins(ctx context.Context) ([]paprika.CoinSummary, error) {
	<-g.gate
	return g.fakeAPI.ListCoins(ctx)
}

func TestDetail_HintRendersBeforeInfoResolves(t *testing.T) {
	api := newFakeAPI()
	api.infoGate = make(chan struct{})
	c := newTestComposer(t, api)
	route := DetailRoute("btc-bitcoin", TabNone)

	v, err := c.Detail(context.Background(), route, Hint{Name: "Bitcoin", Symbol: "BTC"}, Deferred)

	require.NoError(t, err)
	assert.True(t, v.Info.Loading())
	assert.Equal(t, "Bitcoin", v.Header.Name)
	assert.Equal(t, "BTC", v.Header.Symbol)
	assert.True(t, v.Header.FromHint)

	close(api.infoGate)
	v, err = c.Detail(context.Background(), route, Hint{}, Blocking)
	require.NoError(t, err)
	assert.True(t, v.Info.Ready())
	assert.Equal(t, "Bitcoin", v.Header.Name)
	assert.Equal(t, 1, v.Header.Rank)
	assert.False(t, v.Header.FromHint)
}

func TestDetail_FetchedFieldsWinOnceReady(t *testing.T) {
	c := newTestComposer(t, newFakeAPI())

	v, err := c.Detail(context.Background(), DetailRoute("btc-bitcoin", TabNone), Hint{Name: "Bitcoin"}, Blocking)

	require.NoError(t, err)
	assert.Equal(t, "Bitcoin", v.Header.Name)
	assert.Equal(t, "BTC", v.Header.Symbol, "symbol missing from the hint comes from the fetched info")
	assert.Equal(t, "https://icons.test/BTC", v.Header.IconURL)
}

func TestDetail_WithoutHintShowsNothingUntilInfo(t *testing.T) {
	api := newFakeAPI()
	api.infoGate = make(chan struct{})
	defer close(api.infoGate)
	c := newTestComposer(t, api)

	v, err := c.Detail(context.Background(), DetailRoute("btc-bitcoin", TabNone), Hint{}, Deferred)

	require.NoError(t, err)
	assert.Empty(t, v.Header.Name)
	assert.False(t, v.Header.FromHint)
}

func TestDetail_QueriesInfoAndPriceConcurrently(t *testing.T) {
	api := newFakeAPI()
	api.infoGate = make(chan struct{})
	api.priceGate = make(chan struct{})
	c := newTestComposer(t, api)

	done := make(chan *DetailView)
	go func() {
		v, err := c.Detail(context.Background(), DetailRoute("btc-bitcoin", TabPrice), Hint{}, Blocking)
		assert.NoError(t, err)
		done <- v
	}()

	assert.Eventually(t, func() bool {
		return api.infoCalls.Load() == 1 && api.priceCalls.Load() == 1
	}, time.Second, time.Millisecond, "both fetches must be in flight at once")

	close(api.priceGate)
	close(api.infoGate)
	v := <-done

	assert.True(t, v.Info.Ready())
	assert.True(t, v.Price.Ready())
	assert.Equal(t, "$63123.457", v.Price.Headline())
}

func TestDetail_TabsDerivedFromRoute(t *testing.T) {
	c := newTestComposer(t, newFakeAPI())

	for _, tab := range []Tab{TabNone, TabPrice, TabChart} {
		v, err := c.Detail(context.Background(), DetailRoute("btc-bitcoin", tab), Hint{}, Blocking)
		require.NoError(t, err)
		require.Len(t, v.Tabs, 2)
		assert.Equal(t, tab == TabPrice, v.Tabs[0].Active)
		assert.Equal(t, tab == TabChart, v.Tabs[1].Active)
		assert.Equal(t, "/btc-bitcoin/price", v.Tabs[0].Route.Path())
		assert.Equal(t, "/btc-bitcoin/chart", v.Tabs[1].Route.Path())
		assert.Equal(t, tab == TabChart, v.Chart != nil)
	}
}

func TestDetail_PriceTabUsesFetchedQuote(t *testing.T) {
	api := newFakeAPI()
	c := newTestComposer(t, api)

	v, err := c.Detail(context.Background(), DetailRoute("btc-bitcoin", TabPrice), Hint{}, Blocking)

	require.NoError(t, err)
	require.NotEmpty(t, v.Price.Rows)
	assert.Equal(t, PriceRow{Label: "Price", Value: "$63123.457"}, v.Price.Rows[0])

	byLabel := map[string]PriceRow{}
	for _, row := range v.Price.Rows {
		byLabel[row.Label] = row
	}
	assert.Equal(t, "+2.50%", byLabel["Change (24h)"].Value)
	assert.True(t, byLabel["Change (24h)"].Positive)
	assert.Equal(t, "-4.10%", byLabel["Change (7d)"].Value)
	assert.False(t, byLabel["Change (7d)"].Positive)
	assert.Equal(t, int32(1), api.priceCalls.Load(), "price tab must not fetch again")
	assert.Zero(t, api.historyCalls.Load())
}

func TestDetail_InfoNotFoundFails(t *testing.T) {
	api := newFakeAPI()
	c := newTestComposer(t, api)
	route := DetailRoute("nope-nope", TabNone)

	v, err := c.Detail(context.Background(), route, Hint{}, Blocking)

	require.NoError(t, err)
	assert.True(t, v.Info.Failed())
	assert.Equal(t, "Coin not found.", v.Info.Message)
	assert.ErrorIs(t, v.Info.Err, paprika.ErrNotFound)
	assert.Nil(t, v.Info.Detail)

	entry, ok := c.Cache().Peek(InfoKey("nope-nope"))
	require.True(t, ok)
	assert.Equal(t, query.StatusError, entry.Status)
	assert.Nil(t, entry.Data)

	c.Cache().Invalidate(InfoKey("nope-nope"))
	_, err = c.Detail(context.Background(), route, Hint{}, Blocking)
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.infoCalls.Load())
}

func TestDetail_RejectsListRoute(t *testing.T) {
	c := newTestComposer(t, newFakeAPI())

	_, err := c.Detail(context.Background(), ListRoute(), Hint{}, Blocking)

	assert.ErrorIs(t, err, ErrUnknownRoute)
}

func TestChart_SeriesFromHistory(t *testing.T) {
	c := newTestComposer(t, newFakeAPI())
	c.Theme().Set(theme.Dark)

	v, err := c.Chart(context.Background(), "btc-bitcoin", Blocking)

	require.NoError(t, err)
	require.True(t, v.Ready())
	assert.Equal(t, "dark", v.Mode)
	assert.Equal(t, "Price", v.Series.Name)
	assert.Equal(t, []float64{35000, 36000.5}, v.Series.Values)
	assert.Equal(t, "Tue, 14 Nov 2023 22:13:20 GMT", v.Series.Labels[0])
}

func TestChart_EmptyHistoryIsReady(t *testing.T) {
	c := newTestComposer(t, newFakeAPI())

	v, err := c.Chart(context.Background(), "new-coin", Blocking)

	require.NoError(t, err)
	assert.True(t, v.Ready())
	assert.False(t, v.Failed())
	assert.Equal(t, 0, v.Series.Len())
	assert.NotNil(t, v.Series.Values)
	assert.Empty(t, v.Series.Polyline(400, 200))
}

func TestChart_NetworkFailureFails(t *testing.T) {
	c := newTestComposer(t, newFakeAPI())

	v, err := c.Chart(context.Background(), "unknown", Blocking)

	require.NoError(t, err)
	assert.True(t, v.Failed())
	assert.Contains(t, v.Message, "Could not reach")
}

func TestChart_CallerCancellation(t *testing.T) {
	slow := &gatedHistoryAPI{fakeAPI: newFakeAPI(), gate: make(chan struct{})}
	defer close(slow.gate)
	c := newTestComposer(t, slow)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Chart(ctx, "btc-bitcoin", Blocking)
	assert.ErrorIs(t, err, context.Canceled)
}

type gatedHistoryAPI struct {
	*fakeAPI
	gate chan struct{}
}

func (g *gatedHistoryAPI) GetCoinHistory(ctx context.Context, id string) ([]paprika.HistoricalPricePoint, error) {
	<-g.gate
	return nil, nil
}

func TestSeries_Polyline(t *testing.T) {
	s := Series{Values: []float64{10, 20, 15}}

	assert.Equal(t, "0.00,100.00 50.00,0.00 100.00,50.00", s.Polyline(100, 100))

	flat := Series{Values: []float64{5}}
	assert.Equal(t, "50.00,50.00", flat.Polyline(100, 100))

	lo, hi := s.Bounds()
	assert.Equal(t, 10.0, lo)
	assert.Equal(t, 20.0, hi)
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "Coin not found.", FailureMessage(paprika.ErrNotFound))
	assert.Contains(t, FailureMessage(paprika.ErrNetwork), "Could not reach")
	assert.Contains(t, FailureMessage(paprika.ErrDecode), "could not read")
	assert.Contains(t, FailureMessage(paprika.ErrInvalidID), "not a valid coin id")
	assert.Equal(t, "Failed to load.", FailureMessage(assert.AnError))
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "failed", Failed.String())
}
