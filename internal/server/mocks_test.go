package server

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"coinview/internal/paprika"
)

// MockCoinAPI is an in-memory CoinAPI for testing
type MockCoinAPI struct {
	mu sync.Mutex

	Coins   []paprika.CoinSummary
	Info    map[string]*paprika.CoinDetail
	Prices  map[string]*paprika.PriceQuote
	History map[string][]paprika.HistoricalPricePoint

	ListErr    error
	InfoErr    error
	PriceErr   error
	HistoryErr error

	// PriceGate, when set, holds GetCoinPrice until it is closed
	PriceGate chan struct{}

	calls map[string]int
}

func newMockCoinAPI() *MockCoinAPI {
	return &MockCoinAPI{
		Coins: []paprika.CoinSummary{
			{ID: "btc-bitcoin", Name: "Bitcoin", Symbol: "BTC", Rank: 1, IsActive: true},
			{ID: "eth-ethereum", Name: "Ethereum", Symbol: "ETH", Rank: 2, IsActive: true, IsNew: true},
		},
		Info: map[string]*paprika.CoinDetail{
			"btc-bitcoin": {ID: "btc-bitcoin", Name: "Bitcoin", Symbol: "BTC", Rank: 1, Description: "Peer-to-peer cash", IsOpenSource: true},
		},
		Prices: map[string]*paprika.PriceQuote{
			"btc-bitcoin": {
				ID: "btc-bitcoin", Name: "Bitcoin", Symbol: "BTC",
				TotalSupply: decimal.NewFromInt(19700000),
				MaxSupply:   decimal.NewFromInt(21000000),
				Quotes: map[string]paprika.Quote{"USD": {
					Price:            decimal.RequireFromString("61000.125"),
					PercentChange24h: decimal.RequireFromString("1.25"),
				}},
			},
		},
		History: map[string][]paprika.HistoricalPricePoint{
			"btc-bitcoin": {
				{TimeClose: 1700000000, Close: decimal.NewFromInt(35000)},
				{TimeClose: 1700086400, Close: decimal.NewFromInt(36000)},
			},
		},
		calls: map[string]int{},
	}
}

func (m *MockCoinAPI) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
}

// Calls returns how many times the named operation ran
func (m *MockCoinAPI) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *MockCoinAPI) ListCoins(ctx context.Context) ([]paprika.CoinSummary, error) {
	m.record("list")
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Coins, nil
}

func (m *MockCoinAPI) GetCoinInfo(ctx context.Context, coinID string) (*paprika.CoinDetail, error) {
	m.record("info")
	if m.InfoErr != nil {
		return nil, m.InfoErr
	}
	if d, ok := m.Info[coinID]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s", paprika.ErrNotFound, coinID)
}

func (m *MockCoinAPI) GetCoinPrice(ctx context.Context, coinID string) (*paprika.PriceQuote, error) {
	m.record("price")
	if m.PriceGate != nil {
		select {
		case <-m.PriceGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.PriceErr != nil {
		return nil, m.PriceErr
	}
	if p, ok := m.Prices[coinID]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", paprika.ErrNotFound, coinID)
}

func (m *MockCoinAPI) GetCoinHistory(ctx context.Context, coinID string) ([]paprika.HistoricalPricePoint, error) {
	m.record("history")
	if m.HistoryErr != nil {
		return nil, m.HistoryErr
	}
	return m.History[coinID], nil
}

func (m *MockCoinAPI) IconURL(symbol string) string {
	return "https://icons.test/" + strings.ToLower(symbol)
}
