package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"coinview/internal/paprika"
	"coinview/internal/view"
)

// priceWorkers bounds concurrent ticker requests for --prices
const priceWorkers = 8

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the top ranked coins",
	Long: `Fetches the coin list and prints the first --limit entries in rank order.
With --prices the current price and 24h change of every listed coin is
fetched as well.`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().IntP("limit", "n", 0, "number of coins to show (default from config)")
	listCmd.Flags().StringP("format", "f", formatTable, "output format: table, json or yaml")
	listCmd.Flags().Bool("prices", false, "also fetch price and 24h change")

	viper.BindPFlag("features.list_limit", listCmd.Flags().Lookup("limit"))
}

type listRow struct {
	Rank      int    `json:"rank" yaml:"rank"`
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Symbol    string `json:"symbol" yaml:"symbol"`
	New       bool   `json:"is_new" yaml:"is_new"`
	Price     string `json:"price,omitempty" yaml:"price,omitempty"`
	Change24h string `json:"change_24h,omitempty" yaml:"change_24h,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format); err != nil {
		return err
	}
	withPrices, _ := cmd.Flags().GetBool("prices")

	cfg := GetConfig()
	a := newApp(cfg)
	defer a.Close()

	ctx := cmd.Context()
	list, err := a.composer.List(ctx, view.Blocking)
	if err != nil {
		return err
	}
	if list.Failed() {
		return fmt.Errorf("%s: %w", list.Message, list.Err)
	}

	rows := make([]listRow, len(list.Coins))
	for i, c := range list.Coins {
		rows[i] = listRow{Rank: c.Rank, ID: c.ID, Name: c.Name, Symbol: c.Symbol, New: c.IsNew}
	}

	if withPrices {
		if err := fillPrices(ctx, a, cfg.Upstream.QuoteCurrency, rows); err != nil {
			return err
		}
	}

	if format != formatTable {
		return writeStructured(os.Stdout, format, rows)
	}
	fmt.Fprintf(os.Stderr, "Showing %d of %d coins (config: %s)\n\n", len(rows), list.Total, GetConfigSource())
	return writeListTable(os.Stdout, rows, withPrices)
}

// fillPrices fetches tickers through the shared cache, a few at a time
func fillPrices(ctx context.Context, a *app, currency string, rows []listRow) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(priceWorkers)

	for i := range rows {
		row := &rows[i]
		g.Go(func() error {
			entry, err := a.cache.Query(ctx, view.PriceKey(row.ID), func(ctx context.Context) (any, error) {
				return a.client.GetCoinPrice(ctx, row.ID)
			})
			if err != nil {
				return err
			}
			if entry.Err != nil {
				return fmt.Errorf("price for %s: %w", row.ID, entry.Err)
			}
			pq, ok := entry.Data.(*paprika.PriceQuote)
			if !ok {
				return fmt.Errorf("price for %s: unexpected %T", row.ID, entry.Data)
			}
			if q, ok := pq.Quote(currency); ok {
				row.Price = view.FormatMoney(q.Price, 3)
				row.Change24h = q.PercentChange24h.StringFixed(2) + "%"
			}
			return nil
		})
	}
	return g.Wait()
}

func writeListTable(out io.Writer, rows []listRow, withPrices bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if withPrices {
		fmt.Fprintln(w, "RANK\tID\tNAME\tSYMBOL\tPRICE\t24H")
	} else {
		fmt.Fprintln(w, "RANK\tID\tNAME\tSYMBOL\tNEW")
	}

	for _, r := range rows {
		if withPrices {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", r.Rank, r.ID, r.Name, r.Symbol, r.Price, r.Change24h)
			continue
		}
		newMark := ""
		if r.New {
			newMark = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.Rank, r.ID, r.Name, r.Symbol, newMark)
	}
	return w.Flush()
}
