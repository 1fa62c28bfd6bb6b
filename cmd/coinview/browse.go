package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"coinview/internal/view"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse coins interactively",
	Long: `Starts an interactive session on the coin list. Type a list number to open
a coin, a path such as /btc-bitcoin/chart to jump to a view, or "help" for
the other commands. Queries are cached for the whole session.`,
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	a := newApp(GetConfig())
	defer a.Close()

	b := newBrowser(view.NewNavigator(a.composer), a.composer, os.Stdout)
	return b.Run(cmd.Context(), os.Stdin)
}

const browseHelp = `commands:
  <n>               open coin n from the list
  /<id>[/price|/chart]  go to a path
  info, price, chart    switch tab on a coin
  list, back        return to the list
  refresh           refetch the current view
  theme             toggle light/dark
  quit              leave`

// browser is a line-oriented front end for the navigator
type browser struct {
	nav      *view.Navigator
	composer *view.Composer
	out      io.Writer
	last     *view.Page
}

func newBrowser(nav *view.Navigator, composer *view.Composer, out io.Writer) *browser {
	return &browser{nav: nav, composer: composer, out: out}
}

// Run renders the list and then executes one command per input line until
// quit, EOF or ctx is done.
func (b *browser) Run(ctx context.Context, in io.Reader) error {
	if err := b.show(b.nav.Go(ctx, view.ListRoute(), view.Hint{})); err != nil {
		return err
	}

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(b.out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(b.out)
			return sc.Err()
		}
		quit, err := b.exec(ctx, strings.TrimSpace(sc.Text()))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(b.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (b *browser) exec(ctx context.Context, line string) (quit bool, err error) {
	route, hint := b.nav.Route()

	switch {
	case line == "":
		return false, b.show(b.nav.Go(ctx, route, hint))
	case line == "quit" || line == "exit" || line == "q":
		return true, nil
	case line == "help" || line == "?":
		fmt.Fprintln(b.out, browseHelp)
		return false, nil
	case line == "list" || line == "back":
		return false, b.show(b.nav.Go(ctx, view.ListRoute(), view.Hint{}))
	case line == "refresh":
		return false, b.show(b.nav.Refresh(ctx))
	case line == "theme":
		flag := b.composer.Theme().Toggle()
		fmt.Fprintf(b.out, "theme: %s\n", flag)
		return false, nil
	case line == "info" || line == "price" || line == "chart":
		if route.Kind != view.KindDetail {
			return false, errors.New("open a coin first")
		}
		tab := view.Tab(line)
		if line == "info" {
			tab = view.TabNone
		}
		return false, b.show(b.nav.Go(ctx, route.WithTab(tab), view.Hint{}))
	case strings.HasPrefix(line, "/"):
		return false, b.show(b.nav.Navigate(ctx, line, view.Hint{}))
	}

	n, convErr := strconv.Atoi(line)
	if convErr != nil {
		return false, fmt.Errorf("unknown command %q, try help", line)
	}
	if b.last == nil || b.last.List == nil || n < 1 || n > len(b.last.List.Coins) {
		return false, fmt.Errorf("no coin %d on this page", n)
	}
	item := b.last.List.Coins[n-1]
	return false, b.show(b.nav.Go(ctx, item.Route, item.Hint))
}

func (b *browser) show(page *view.Page, err error) error {
	if err != nil {
		return err
	}
	b.last = page
	if page.List != nil {
		b.renderList(page.List)
	} else {
		b.renderDetail(page.Detail)
	}
	return nil
}

func (b *browser) renderList(l *view.ListView) {
	if l.Failed() {
		fmt.Fprintln(b.out, l.Message)
		return
	}
	w := tabwriter.NewWriter(b.out, 0, 0, 2, ' ', 0)
	for i, c := range l.Coins {
		fmt.Fprintf(w, "%3d.\t%s\t%s\n", i+1, c.Name, c.Symbol)
	}
	w.Flush()
	fmt.Fprintf(b.out, "%d of %d coins\n", len(l.Coins), l.Total)
}

func (b *browser) renderDetail(d *view.DetailView) {
	name := d.Header.Name
	if name == "" {
		name = d.Route.CoinID
	}
	fmt.Fprintf(b.out, "%s %s  [%s]\n", name, d.Header.Symbol, view.DetailRoute(d.Route.CoinID, view.TabNone).Path())

	if d.Info.Failed() {
		fmt.Fprintln(b.out, d.Info.Message)
		return
	}
	fmt.Fprintf(b.out, "rank %d", d.Header.Rank)
	if headline := d.Price.Headline(); headline != "" {
		fmt.Fprintf(b.out, "  price %s", headline)
	}
	fmt.Fprintln(b.out)

	for _, tab := range d.Tabs {
		marker := " "
		if tab.Active {
			marker = "*"
		}
		fmt.Fprintf(b.out, "%s%s ", marker, tab.Label)
	}
	fmt.Fprintln(b.out)

	switch d.Route.Tab {
	case view.TabPrice:
		if d.Price.Failed() {
			fmt.Fprintln(b.out, d.Price.Message)
			return
		}
		w := tabwriter.NewWriter(b.out, 0, 0, 2, ' ', 0)
		for _, row := range d.Price.Rows {
			fmt.Fprintf(w, "  %s\t%s\n", row.Label, row.Value)
		}
		w.Flush()
	case view.TabChart:
		c := d.Chart
		switch {
		case c == nil:
		case c.Failed():
			fmt.Fprintln(b.out, c.Message)
		case c.Series.Len() == 0:
			fmt.Fprintln(b.out, "  no price history")
		default:
			lo, hi := c.Series.Bounds()
			fmt.Fprintf(b.out, "  %d points, low %.2f, high %.2f\n", c.Series.Len(), lo, hi)
			fmt.Fprintf(b.out, "  %s  ->  %s\n", c.Series.Labels[0], c.Series.Labels[c.Series.Len()-1])
		}
	}
}
