package view

import (
	"github.com/shopspring/decimal"

	"coinview/internal/paprika"
)

// PriceRow is one labelled figure of the price tab
type PriceRow struct {
	Label string
	Value string
	// Change marks percentage rows; Positive is meaningful only for them
	Change   bool
	Positive bool
}

func priceRows(q *paprika.PriceQuote, currency string) []PriceRow {
	quote, ok := q.Quote(currency)
	if !ok {
		return nil
	}

	rows := []PriceRow{
		{Label: "Price", Value: FormatMoney(quote.Price, 3)},
		{Label: "Market cap", Value: FormatMoney(quote.MarketCap, 0)},
		{Label: "Volume (24h)", Value: FormatMoney(quote.Volume24h, 0)},
		percentRow("Change (1h)", quote.PercentChange1h),
		percentRow("Change (24h)", quote.PercentChange24h),
		percentRow("Change (7d)", quote.PercentChange7d),
		percentRow("Change (30d)", quote.PercentChange30d),
		percentRow("Change (1y)", quote.PercentChange1y),
		{Label: "All-time high", Value: FormatMoney(quote.AthPrice, 3)},
		percentRow("From all-time high", quote.PercentFromPriceAth),
	}
	if quote.AthDate != nil {
		rows = append(rows, PriceRow{Label: "All-time high date", Value: quote.AthDate.UTC().Format("2006-01-02")})
	}
	return rows
}

func percentRow(label string, d decimal.Decimal) PriceRow {
	sign := ""
	if d.IsPositive() {
		sign = "+"
	}
	return PriceRow{
		Label:    label,
		Value:    sign + d.StringFixed(2) + "%",
		Change:   true,
		Positive: !d.IsNegative(),
	}
}

// FormatMoney renders a dollar amount with the given number of decimals
func FormatMoney(d decimal.Decimal, places int32) string {
	return "$" + d.StringFixed(places)
}

// Headline returns the main price of a section, or "" when not ready
func (s PriceSection) Headline() string {
	if !s.Ready() {
		return ""
	}
	quote, ok := s.Quote.Quote(s.Currency)
	if !ok {
		return ""
	}
	return FormatMoney(quote.Price, 3)
}
