package main

import (
	"coinview/internal/config"
	"coinview/internal/paprika"
	"coinview/internal/query"
	"coinview/internal/theme"
	"coinview/internal/view"
)

// app bundles what the terminal commands share
type app struct {
	client   *paprika.Client
	cache    *query.Cache
	composer *view.Composer
}

func newApp(cfg *config.Config) *app {
	client := paprika.NewClient(cfg.Upstream)
	cache := query.New(query.Options{
		StaleTime: cfg.Cache.StaleTime,
		GCTime:    cfg.Cache.GCTime,
	})

	initial := theme.Light
	if cfg.Theme.DefaultDark {
		initial = theme.Dark
	}

	return &app{
		client: client,
		cache:  cache,
		composer: view.NewComposer(client, cache, theme.NewState(initial), view.Options{
			ListLimit:     cfg.Features.ListLimit,
			QuoteCurrency: cfg.Upstream.QuoteCurrency,
		}),
	}
}

func (a *app) Close() {
	a.cache.Close()
}
