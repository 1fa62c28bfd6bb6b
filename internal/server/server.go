package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"runtime"
	"time"

	"coinview/internal/config"
	pmath "coinview/internal/math"
	"coinview/internal/middleware"
	"coinview/internal/paprika"
	"coinview/internal/query"
	"coinview/internal/theme"
	"coinview/internal/version"
	"coinview/internal/view"
)

//go:embed templates/*.html templates/partials/*.html
var templatesFS embed.FS

//go:embed assets/*
var assetsFS embed.FS

// Chart box used by the SVG renderer
const (
	chartWidth  = 400
	chartHeight = 200
)

// Server holds all dependencies for the HTTP server
type Server struct {
	cfg       *config.Config
	templates *template.Template
	composer  *view.Composer
	cache     *query.Cache
	theme     ThemeStore
	refresh   *pmath.Sampler
	mux       *http.ServeMux
	startedAt time.Time
}

// Template functions
var funcMap = template.FuncMap{
	"coinPath": coinPath,
	"hintPath": func(r view.Route, h view.Hint) string {
		p := coinPath(r)
		if q := h.Query().Encode(); q != "" {
			p += "?" + q
		}
		return p
	},
	"polyline": func(s view.Series) string {
		return s.Polyline(chartWidth, chartHeight)
	},
	"chartWidth":  func() int { return chartWidth },
	"chartHeight": func() int { return chartHeight },
	"pathEscape":  url.PathEscape,
	"first": func(labels []string) string {
		if len(labels) == 0 {
			return ""
		}
		return labels[0]
	},
	"last": func(labels []string) string {
		if len(labels) == 0 {
			return ""
		}
		return labels[len(labels)-1]
	},
}

// coinPath mounts a view route under /coins so coin ids never collide with
// the server's own paths.
func coinPath(r view.Route) string {
	if r.Kind == view.KindList {
		return "/"
	}
	return "/coins" + r.Path()
}

// New creates a server talking to the configured upstream API
func New(cfg *config.Config) (*Server, error) {
	return NewWithAPI(cfg, paprika.NewClient(cfg.Upstream))
}

// NewWithAPI creates a server over an arbitrary CoinAPI
func NewWithAPI(cfg *config.Config, api CoinAPI) (*Server, error) {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html", "templates/partials/*.html")
	if err != nil {
		return nil, err
	}

	initial := theme.Light
	if cfg.Theme.DefaultDark {
		initial = theme.Dark
	}
	themeState := theme.NewState(initial)

	cache := query.New(query.Options{
		StaleTime: cfg.Cache.StaleTime,
		GCTime:    cfg.Cache.GCTime,
	})

	s := &Server{
		cfg:       cfg,
		templates: tmpl,
		cache:     cache,
		theme:     themeState,
		composer: view.NewComposer(api, cache, themeState, view.Options{
			ListLimit:     cfg.Features.ListLimit,
			QuoteCurrency: cfg.Upstream.QuoteCurrency,
		}),
		refresh:   pmath.NewSampler(uint64(time.Now().UnixNano())),
		mux:       http.NewServeMux(),
		startedAt: time.Now(),
	}

	s.setupRoutes()
	return s, nil
}

// Close releases the query cache
func (s *Server) Close() {
	s.cache.Close()
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	assetsSubFS, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		slog.Error("failed to create assets sub-filesystem", "error", err)
	} else {
		s.mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.FS(assetsSubFS))))
	}

	// Pages
	s.mux.HandleFunc("GET /{$}", s.handleList)
	s.mux.HandleFunc("GET /coins/{coinId}", s.handleDetail)
	s.mux.HandleFunc("GET /coins/{coinId}/{tab}", s.handleDetail)

	// HTMX fragments
	s.mux.HandleFunc("GET /fragments/list", s.handleListFragment)
	s.mux.HandleFunc("GET /fragments/coins/{coinId}/info", s.handleInfoFragment)
	s.mux.HandleFunc("GET /fragments/coins/{coinId}/price", s.handlePriceFragment)
	s.mux.HandleFunc("GET /fragments/coins/{coinId}/chart", s.handleChartFragment)

	// Actions
	s.mux.HandleFunc("POST /theme", s.handleToggleTheme)
	s.mux.HandleFunc("POST /cache/invalidate", s.handleInvalidate)

	// API endpoints
	s.mux.HandleFunc("GET /metadata", s.handleMetadata)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the HTTP handler with middleware applied
func (s *Server) Handler() http.Handler {
	// RequestID runs first so the logger and recovery can read it from context
	var h http.Handler = s.mux
	h = middleware.BasicAuthMiddleware(&s.cfg.Security.BasicAuth)(h)
	h = middleware.IPAllowlistMiddleware(&s.cfg.Security.IPAllowlist)(h)
	h = middleware.RecoveryMiddleware(h)
	h = middleware.LoggingMiddleware(h)
	return middleware.RequestIDMiddleware(h)
}

// PageData holds common data for page rendering
type PageData struct {
	Title        string
	Theme        theme.Flag
	Palette      theme.Palette
	RefreshMs    int
	Version      string
	Commit       string
	List         *view.ListView
	Detail       *view.DetailView
	HintQuery    string
	ActiveRoute  string
	CacheEntries int
}

func (s *Server) pageData(title string) PageData {
	flag := s.theme.Get()
	info := version.Get()
	return PageData{
		Title:        title,
		Theme:        flag,
		Palette:      flag.Palette(),
		RefreshMs:    s.refresh.Delay(float64(s.cfg.Features.AvgRefreshIntervalMs)),
		Version:      info.Version,
		Commit:       info.Commit,
		CacheEntries: s.cache.Stats().Entries,
	}
}

// handleList renders the coin list page; a pending list renders a placeholder
// that loads /fragments/list.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.composer.List(r.Context(), view.Deferred)
	if err != nil {
		s.abandoned(r, err)
		return
	}

	data := s.pageData("Coins")
	data.List = list
	s.render(w, r, statusOf(list.State), "list.html", data)
}

// handleDetail renders /coins/{coinId} and its price/chart tabs
func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	route, ok := detailRoute(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	hint := view.HintFromQuery(r.URL.Query())

	detail, err := s.composer.Detail(r.Context(), route, hint, view.Deferred)
	if err != nil {
		s.abandoned(r, err)
		return
	}

	title := detail.Header.Name
	if title == "" {
		title = route.CoinID
	}
	data := s.pageData(title)
	data.Detail = detail
	data.HintQuery = hint.Query().Encode()
	s.render(w, r, statusOf(detail.Info.State), "detail.html", data)
}

func (s *Server) handleListFragment(w http.ResponseWriter, r *http.Request) {
	list, err := s.composer.List(r.Context(), view.Blocking)
	if err != nil {
		s.abandoned(r, err)
		return
	}
	s.render(w, r, statusOf(list.State), "list_body", list)
}

func (s *Server) handleInfoFragment(w http.ResponseWriter, r *http.Request) {
	s.renderDetailFragment(w, r, view.TabNone, "info")
}

func (s *Server) handlePriceFragment(w http.ResponseWriter, r *http.Request) {
	s.renderDetailFragment(w, r, view.TabPrice, "price")
}

func (s *Server) renderDetailFragment(w http.ResponseWriter, r *http.Request, tab view.Tab, name string) {
	route := view.DetailRoute(r.PathValue("coinId"), tab)
	hint := view.HintFromQuery(r.URL.Query())

	detail, err := s.composer.Detail(r.Context(), route, hint, view.Blocking)
	if err != nil {
		s.abandoned(r, err)
		return
	}

	status := statusOf(detail.Info.State)
	if tab == view.TabPrice {
		status = statusOf(detail.Price.State)
	}

	data := s.pageData(detail.Header.Name)
	data.Detail = detail
	data.HintQuery = hint.Query().Encode()
	s.render(w, r, status, name, data)
}

func (s *Server) handleChartFragment(w http.ResponseWriter, r *http.Request) {
	chart, err := s.composer.Chart(r.Context(), r.PathValue("coinId"), view.Blocking)
	if err != nil {
		s.abandoned(r, err)
		return
	}
	s.render(w, r, statusOf(chart.State), "chart", chart)
}

// handleToggleTheme flips the theme and sends the browser back where it was
func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	flag := s.theme.Toggle()
	slog.Info("theme_toggled", "theme", flag.String(), "request_id", middleware.GetRequestID(r.Context()))

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	target := "/"
	if ref, err := url.Parse(r.Referer()); err == nil && ref.Path != "" && ref.Host == r.Host {
		target = ref.RequestURI()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// InvalidateResponse reports how many cache entries were dropped
type InvalidateResponse struct {
	Name    string `json:"name"`
	Removed int    `json:"removed"`
}

var invalidatable = map[string]bool{
	view.CoinsKey().Name():     true,
	view.InfoKey("").Name():    true,
	view.PriceKey("").Name():   true,
	view.HistoryKey("").Name(): true,
}

// handleInvalidate drops every cached entry for a query name, or only the
// entry for one coin when coinId is given
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if !invalidatable[name] {
		http.Error(w, fmt.Sprintf("unknown query name %q", name), http.StatusBadRequest)
		return
	}

	removed := 0
	if id := r.URL.Query().Get("coinId"); id != "" {
		if s.cache.Invalidate(query.NewKey(name, id)) {
			removed = 1
		}
	} else {
		removed = s.cache.InvalidatePrefix(name)
	}
	slog.Info("cache_invalidated", "name", name, "removed", removed)

	writeJSON(w, "/cache/invalidate", InvalidateResponse{Name: name, Removed: removed})
}

// MetadataResponse holds the metadata endpoint response
type MetadataResponse struct {
	Version    string      `json:"version"`
	Commit     string      `json:"commit"`
	CommitDate string      `json:"commit_date"`
	Theme      string      `json:"theme"`
	Cache      query.Stats `json:"cache"`
}

// handleMetadata returns version, theme and cache statistics as JSON
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	versionInfo := version.Get()
	writeJSON(w, "/metadata", MetadataResponse{
		Version:    versionInfo.Version,
		Commit:     versionInfo.Commit,
		CommitDate: versionInfo.CommitDate,
		Theme:      s.theme.Get().String(),
		Cache:      s.cache.Stats(),
	})
}

// HealthResponse holds the liveness endpoint response
type HealthResponse struct {
	Status     string  `json:"status"`
	Uptime     string  `json:"uptime"`
	Goroutines int     `json:"goroutines"`
	MemoryMB   float64 `json:"memory_mb"`
	GoVersion  string  `json:"go_version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, "/health", HealthResponse{
		Status:     "ok",
		Uptime:     time.Since(s.startedAt).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		MemoryMB:   float64(mem.Alloc) / 1024 / 1024,
		GoVersion:  runtime.Version(),
	})
}

func detailRoute(r *http.Request) (view.Route, bool) {
	id := r.PathValue("coinId")
	if id == "" {
		return view.Route{}, false
	}
	switch tab := view.Tab(r.PathValue("tab")); tab {
	case view.TabNone, view.TabPrice, view.TabChart:
		return view.DetailRoute(id, tab), true
	default:
		return view.Route{}, false
	}
}

// statusOf maps a failed section to the response status; loading and ready
// sections are 200.
func statusOf(st view.State) int {
	if !st.Failed() {
		return http.StatusOK
	}
	switch {
	case errors.Is(st.Err, paprika.ErrNotFound), errors.Is(st.Err, paprika.ErrInvalidID):
		return http.StatusNotFound
	case errors.Is(st.Err, paprika.ErrDecode):
		return http.StatusBadGateway
	case errors.Is(st.Err, paprika.ErrNetwork):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abandoned handles a view that stopped waiting because the request ended.
// The underlying fetch keeps running and fills the cache.
func (s *Server) abandoned(r *http.Request, err error) {
	level := slog.LevelWarn
	if errors.Is(err, context.Canceled) {
		level = slog.LevelDebug
	}
	slog.Log(r.Context(), level, "view_abandoned",
		"request_id", middleware.GetRequestID(r.Context()),
		"path", r.URL.Path,
		"error", err,
	)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("template_error",
			"template", name,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
	}
}

func writeJSON(w http.ResponseWriter, endpoint string, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json_encode_error", "endpoint", endpoint, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
