package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"coinview/internal/view"
)

var coinCmd = &cobra.Command{
	Use:   "coin <id>",
	Short: "Show one coin's details and price",
	Long: `Fetches coin info and the current ticker concurrently and prints them.
With --history the closing price series is printed as well.`,
	Example: "  coinview coin btc-bitcoin --history",
	Args:    cobra.ExactArgs(1),
	RunE:    runCoin,
}

func init() {
	rootCmd.AddCommand(coinCmd)

	coinCmd.Flags().Bool("history", false, "include the price history")
	coinCmd.Flags().StringP("format", "f", formatTable, "output format: table, json or yaml")
}

type coinReport struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Symbol      string         `json:"symbol" yaml:"symbol"`
	Rank        int            `json:"rank" yaml:"rank"`
	OpenSource  bool           `json:"open_source" yaml:"open_source"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Price       []reportRow    `json:"price,omitempty" yaml:"price,omitempty"`
	PriceError  string         `json:"price_error,omitempty" yaml:"price_error,omitempty"`
	History     []historyPoint `json:"history,omitempty" yaml:"history,omitempty"`
}

type reportRow struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

type historyPoint struct {
	Time  string  `json:"time" yaml:"time"`
	Close float64 `json:"close" yaml:"close"`
}

func runCoin(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format); err != nil {
		return err
	}
	withHistory, _ := cmd.Flags().GetBool("history")

	a := newApp(GetConfig())
	defer a.Close()

	tab := view.TabPrice
	if withHistory {
		tab = view.TabChart
	}
	detail, err := a.composer.Detail(cmd.Context(), view.DetailRoute(args[0], tab), view.Hint{}, view.Blocking)
	if err != nil {
		return err
	}
	if detail.Info.Failed() {
		return fmt.Errorf("%s: %w", detail.Info.Message, detail.Info.Err)
	}

	report := buildReport(detail)
	if withHistory && detail.Chart != nil && detail.Chart.Failed() {
		return fmt.Errorf("history: %s: %w", detail.Chart.Message, detail.Chart.Err)
	}

	if format != formatTable {
		return writeStructured(os.Stdout, format, report)
	}
	return writeCoinTable(os.Stdout, report)
}

func buildReport(d *view.DetailView) coinReport {
	r := coinReport{
		ID:     d.Route.CoinID,
		Name:   d.Header.Name,
		Symbol: d.Header.Symbol,
		Rank:   d.Header.Rank,
	}
	if info := d.Info.Detail; info != nil {
		r.OpenSource = info.IsOpenSource
		r.Description = info.Description
	}

	if d.Price.Failed() {
		r.PriceError = d.Price.Message
	}
	for _, row := range d.Price.Rows {
		r.Price = append(r.Price, reportRow{Label: row.Label, Value: row.Value})
	}

	if d.Chart != nil && d.Chart.Ready() {
		s := d.Chart.Series
		r.History = make([]historyPoint, s.Len())
		for i := range s.Values {
			r.History[i] = historyPoint{Time: s.Labels[i], Close: s.Values[i]}
		}
	}
	return r
}

func writeCoinTable(out io.Writer, r coinReport) error {
	fmt.Fprintf(out, "%s (%s)  rank %d\n", r.Name, r.Symbol, r.Rank)
	if r.Description != "" {
		fmt.Fprintf(out, "\n%s\n", r.Description)
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Open source\t%t\n", r.OpenSource)
	if r.PriceError != "" {
		fmt.Fprintf(w, "Price\t%s\n", r.PriceError)
	}
	for _, row := range r.Price {
		fmt.Fprintf(w, "%s\t%s\n", row.Label, row.Value)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(r.History) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CLOSED AT\tCLOSE")
	for _, p := range r.History {
		fmt.Fprintf(w, "%s\t%.4f\n", p.Time, p.Close)
	}
	return w.Flush()
}
