package paprika

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CoinSummary is one row of the /coins listing
type CoinSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Rank     int    `json:"rank"`
	IsNew    bool   `json:"is_new"`
	IsActive bool   `json:"is_active"`
	Type     string `json:"type"`
}

// CoinDetail is the /coins/{id} document
type CoinDetail struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Symbol            string    `json:"symbol"`
	Rank              int       `json:"rank"`
	IsNew             bool      `json:"is_new"`
	IsActive          bool      `json:"is_active"`
	Type              string    `json:"type"`
	Logo              string    `json:"logo"`
	Description       string    `json:"description"`
	Message           string    `json:"message"`
	IsOpenSource      bool      `json:"open_source"`
	StartedAt         time.Time `json:"started_at"`
	DevelopmentStatus string    `json:"development_status"`
	HardwareWallet    bool      `json:"hardware_wallet"`
	ProofType         string    `json:"proof_type"`
	OrgStructure      string    `json:"org_structure"`
	HashAlgorithm     string    `json:"hash_algorithm"`
	FirstDataAt       time.Time `json:"first_data_at"`
	LastDataAt        time.Time `json:"last_data_at"`
}

// PriceQuote is the /tickers/{id} snapshot. Quotes are keyed by currency (e.g. USD).
type PriceQuote struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Symbol            string           `json:"symbol"`
	Rank              int              `json:"rank"`
	CirculatingSupply decimal.Decimal  `json:"circulating_supply"`
	TotalSupply       decimal.Decimal  `json:"total_supply"`
	MaxSupply         decimal.Decimal  `json:"max_supply"`
	BetaValue         decimal.Decimal  `json:"beta_value"`
	FirstDataAt       time.Time        `json:"first_data_at"`
	LastUpdated       time.Time        `json:"last_updated"`
	Quotes            map[string]Quote `json:"quotes"`
}

// Quote holds market figures in a single currency
type Quote struct {
	Price               decimal.Decimal `json:"price"`
	Volume24h           decimal.Decimal `json:"volume_24h"`
	Volume24hChange24h  decimal.Decimal `json:"volume_24h_change_24h"`
	MarketCap           decimal.Decimal `json:"market_cap"`
	MarketCapChange24h  decimal.Decimal `json:"market_cap_change_24h"`
	PercentChange15m    decimal.Decimal `json:"percent_change_15m"`
	PercentChange30m    decimal.Decimal `json:"percent_change_30m"`
	PercentChange1h     decimal.Decimal `json:"percent_change_1h"`
	PercentChange6h     decimal.Decimal `json:"percent_change_6h"`
	PercentChange12h    decimal.Decimal `json:"percent_change_12h"`
	PercentChange24h    decimal.Decimal `json:"percent_change_24h"`
	PercentChange7d     decimal.Decimal `json:"percent_change_7d"`
	PercentChange30d    decimal.Decimal `json:"percent_change_30d"`
	PercentChange1y     decimal.Decimal `json:"percent_change_1y"`
	AthPrice            decimal.Decimal `json:"ath_price"`
	AthDate             *time.Time      `json:"ath_date"`
	PercentFromPriceAth decimal.Decimal `json:"percent_from_price_ath"`
}

// Quote returns the quote for a currency code, matched case-insensitively
// against the upstream keys which are upper case.
func (p *PriceQuote) Quote(currency string) (Quote, bool) {
	if p == nil {
		return Quote{}, false
	}
	q, ok := p.Quotes[strings.ToUpper(currency)]
	return q, ok
}

// HistoricalPricePoint is one OHLCV bucket. Times are unix seconds.
type HistoricalPricePoint struct {
	TimeOpen  int64           `json:"time_open"`
	TimeClose int64           `json:"time_close"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	MarketCap decimal.Decimal `json:"market_cap"`
}

// ClosedAt returns TimeClose as a UTC time
func (h HistoricalPricePoint) ClosedAt() time.Time {
	return time.Unix(h.TimeClose, 0).UTC()
}
