package server

import (
	"context"

	"coinview/internal/paprika"
	"coinview/internal/theme"
)

// CoinAPI defines the upstream operations the views are composed from
type CoinAPI interface {
	ListCoins(ctx context.Context) ([]paprika.CoinSummary, error)
	GetCoinInfo(ctx context.Context, coinID string) (*paprika.CoinDetail, error)
	GetCoinPrice(ctx context.Context, coinID string) (*paprika.PriceQuote, error)
	GetCoinHistory(ctx context.Context, coinID string) ([]paprika.HistoricalPricePoint, error)
	IconURL(symbol string) string
}

// ThemeStore defines the process-wide light/dark flag
type ThemeStore interface {
	Get() theme.Flag
	Toggle() theme.Flag
	Set(theme.Flag)
}
