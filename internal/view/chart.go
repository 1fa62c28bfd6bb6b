package view

import (
	"strconv"
	"strings"

	"coinview/internal/paprika"
)

// labelLayout matches the UTC string form browsers print for dates
const labelLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// ChartView is the "/{coinId}/chart" tab
type ChartView struct {
	State
	CoinID string
	// Mode is the chart colour mode, "light" or "dark"
	Mode   string
	Series Series
}

// Series is a line chart of closing prices against close time
type Series struct {
	Name   string
	Values []float64
	Labels []string
}

// SeriesFromHistory maps each bucket to its close price, labelled by close time.
// An empty history gives an empty, non-nil series.
func SeriesFromHistory(points []paprika.HistoricalPricePoint) Series {
	s := Series{
		Name:   "Price",
		Values: make([]float64, len(points)),
		Labels: make([]string, len(points)),
	}
	for i, p := range points {
		s.Values[i] = p.Close.InexactFloat64()
		s.Labels[i] = p.ClosedAt().Format(labelLayout)
	}
	return s
}

// Len returns the number of points
func (s Series) Len() int { return len(s.Values) }

// Bounds returns the smallest and largest value, or zeros for an empty series
func (s Series) Bounds() (lo, hi float64) {
	if len(s.Values) == 0 {
		return 0, 0
	}
	lo, hi = s.Values[0], s.Values[0]
	for _, v := range s.Values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}

// Polyline scales the series into a width x height box (y grows downward)
// and returns it in SVG points syntax.
func (s Series) Polyline(width, height float64) string {
	n := len(s.Values)
	if n == 0 {
		return ""
	}
	lo, hi := s.Bounds()
	span := hi - lo

	var b strings.Builder
	for i, v := range s.Values {
		x := width / 2
		if n > 1 {
			x = float64(i) * width / float64(n-1)
		}
		y := height / 2
		if span > 0 {
			y = height - (v-lo)/span*height
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(x, 'f', 2, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(y, 'f', 2, 64))
	}
	return b.String()
}
