// Package discovery composes the filter, the catalog fetcher, the rating
// cache and the proximity ranker into the list a consumer browses.
//
// Model follows the bubbletea update loop: intents arrive as messages,
// network work leaves as commands, and all state is mutated from Update
// only. It can be embedded in a TUI or run headless with Drive.
package discovery

import (
	"context"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/rendis/catalogtap/internal/engine/catalog"
	"github.com/rendis/catalogtap/internal/engine/filter"
	"github.com/rendis/catalogtap/internal/engine/geo"
	"github.com/rendis/catalogtap/internal/engine/ranking"
	"github.com/rendis/catalogtap/internal/engine/rating"
	"github.com/rendis/catalogtap/internal/model"
)

// Backend is everything the model needs from the marketplace API.
// *catalog.Client satisfies it.
type Backend interface {
	catalog.ProductSource
	rating.Source
	Location(ctx context.Context) (*model.ConsumerLocation, error)
	Categories(ctx context.Context) ([]string, error)
}

// Config tunes a Model. Zero values pick defaults.
type Config struct {
	PageSize  int
	Timeout   time.Duration
	RatingRPS float64
	Initial   filter.State // region, commune, category and page to start from
	Logger    *log.Logger
}

// Model is the discovery view model.
type Model struct {
	backend Backend
	timeout time.Duration
	logger  *log.Logger

	filter  *filter.Filter
	fetcher *catalog.Fetcher
	ratings *rating.Cache

	location       *model.ConsumerLocation
	locationLoaded bool
	locationErr    error
	categories     []string
	categoriesErr  error

	shown    filter.State // filter of the accepted page
	page     model.PageResult
	hasPage  bool
	ranked   []model.RankedProduct
	loading  bool
	err      error
	rankRuns int
}

// New returns a model that has not started loading yet; run Init first.
func New(backend Backend, cfg Config) Model {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	f := filter.New(geo.Admin(), cfg.PageSize)
	if cfg.Initial.Region != "" {
		f.SetRegion(cfg.Initial.Region)
	}
	if cfg.Initial.Commune != "" {
		f.SetCommune(cfg.Initial.Commune)
	}
	if cfg.Initial.Category != "" {
		f.SetCategory(cfg.Initial.Category)
	}
	if cfg.Initial.Page > 1 {
		f.SetPage(cfg.Initial.Page)
	}

	return Model{
		backend: backend,
		timeout: timeout,
		logger:  logger.WithPrefix("discovery"),
		filter:  f,
		fetcher: catalog.NewFetcher(backend, timeout, logger),
		ratings: rating.New(backend, rating.Options{
			RequestsPerSecond: cfg.RatingRPS,
			Burst:             f.State().PageSize,
			Timeout:           timeout,
			Logger:            logger,
		}),
		loading: true,
	}
}

// Init loads the consumer location and the categories once and fetches
// the first page. None of the three waits for the others.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadLocation(), m.loadCategories(), m.fetcher.Fetch(m.filter.State()))
}

// Update applies one message and returns the follow-up work.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LocationLoadedMsg:
		m.locationLoaded = true
		if msg.Err != nil {
			m.logger.Warn("location unavailable", "err", msg.Err)
			m.locationErr = msg.Err
			return m, nil
		}
		m.location = msg.Location
		if m.hasPage {
			m.rerank()
		}
		return m, nil

	case CategoriesLoadedMsg:
		if msg.Err != nil {
			m.logger.Warn("categories unavailable", "err", msg.Err)
			m.categoriesErr = msg.Err
			m.categories = []string{}
			return m, nil
		}
		m.categories = msg.Categories
		return m, nil

	case catalog.PageLoadedMsg:
		return m.applyPage(msg)

	case rating.LoadedMsg:
		// Ratings enrich Listings but never change the order.
		return m, nil

	case RegionSelectedMsg:
		return m.change(func(f *filter.Filter) { f.SetRegion(msg.Region) })
	case CommuneSelectedMsg:
		return m.change(func(f *filter.Filter) { f.SetCommune(msg.Commune) })
	case CategorySelectedMsg:
		return m.change(func(f *filter.Filter) { f.SetCategory(msg.Category) })
	case PageSelectedMsg:
		return m.change(func(f *filter.Filter) { f.SetPage(msg.Page) })
	case NextPageMsg:
		return m.change(func(f *filter.Filter) { f.NextPage() })
	case PrevPageMsg:
		return m.change(func(f *filter.Filter) { f.PrevPage() })
	case PageSizeSelectedMsg:
		return m.change(func(f *filter.Filter) { f.SetPageSize(msg.Size) })
	case FiltersSelectedMsg:
		return m.change(func(f *filter.Filter) {
			f.SetRegion(msg.Region)
			f.SetCommune(msg.Commune)
			f.SetCategory(msg.Category)
		})
	case ClearFiltersMsg:
		return m.change(func(f *filter.Filter) { f.Clear() })
	case RefreshMsg:
		return m.fetch()
	}
	return m, nil
}

// change applies a filter mutation and fetches only if the state moved.
func (m Model) change(mutate func(*filter.Filter)) (Model, tea.Cmd) {
	before := m.filter.State()
	mutate(m.filter)
	if m.filter.State() == before {
		return m, nil
	}
	return m.fetch()
}

func (m Model) fetch() (Model, tea.Cmd) {
	m.loading = true
	return m, m.fetcher.Fetch(m.filter.State())
}

func (m Model) applyPage(msg catalog.PageLoadedMsg) (Model, tea.Cmd) {
	if !m.fetcher.IsCurrent(msg.Generation) {
		m.logger.Debug("discarding stale page", "gen", msg.Generation, "latest", m.fetcher.Latest())
		return m, nil
	}
	m.loading = false
	if msg.Err != nil {
		m.logger.Error("catalog fetch failed", "err", msg.Err, "elapsed", msg.Elapsed)
		m.err = msg.Err
		return m, nil
	}

	m.err = nil
	m.page = msg.Result
	m.shown = msg.Filter
	m.hasPage = true
	m.filter.SetTotalPages(msg.Result.TotalPages)
	m.rerank()
	m.logger.Info("page loaded",
		"page", msg.Filter.Page, "items", len(msg.Result.Items),
		"total", msg.Result.Total, "elapsed", msg.Elapsed)

	enrich := m.ratings.EnsureAll(producerIDs(msg.Result.Items))
	if last := m.filter.TotalPages(); msg.Filter.Page > last {
		m.logger.Info("page out of range", "page", msg.Filter.Page, "last", last)
		m.filter.SetPage(last)
		var refetch tea.Cmd
		m, refetch = m.fetch()
		return m, tea.Batch(enrich, refetch)
	}
	return m, enrich
}

func (m *Model) rerank() {
	m.ranked = ranking.Rank(m.page.Items, m.location)
	m.rankRuns++
}

func (m Model) loadLocation() tea.Cmd {
	backend, timeout := m.backend, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		loc, err := backend.Location(ctx)
		return LocationLoadedMsg{Location: loc, Err: err}
	}
}

func (m Model) loadCategories() tea.Cmd {
	backend, timeout := m.backend, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		cats, err := backend.Categories(ctx)
		return CategoriesLoadedMsg{Categories: cats, Err: err}
	}
}

// Listings returns the ranked page with the ratings known so far.
func (m Model) Listings() []model.Listing {
	out := make([]model.Listing, len(m.ranked))
	for i, r := range m.ranked {
		out[i] = model.Listing{RankedProduct: r}
		if summary, status := m.ratings.Lookup(r.ProducerID); status == rating.StatusReady {
			out[i].Rating = &summary
		}
	}
	return out
}

// Pagination describes the accepted page. Before the first page arrives
// it reports the requested page and a single page.
func (m Model) Pagination() model.Pagination {
	if !m.hasPage {
		return model.Pagination{Page: m.filter.State().Page, TotalPages: 1}
	}
	return model.Pagination{
		Page:       m.shown.Page,
		TotalPages: m.page.TotalPages,
		Total:      m.page.Total,
	}
}

// Filter returns the current filter state, which may be ahead of the
// shown page while a fetch is in flight.
func (m Model) Filter() filter.State { return m.filter.State() }

// Location returns the consumer location, nil when none is saved or it
// could not be loaded.
func (m Model) Location() *model.ConsumerLocation { return m.location }

// LocationLoaded reports whether the location request has finished.
func (m Model) LocationLoaded() bool { return m.locationLoaded }

func (m Model) Categories() []string { return m.categories }

func (m Model) Loading() bool { return m.loading }

// Err returns the error of the latest catalog fetch, nil after a success.
// The previous page stays visible while Err is set.
func (m Model) Err() error { return m.err }

// RatingStatus exposes the cache state of a producer for display.
func (m Model) RatingStatus(producerID string) rating.Status {
	_, st := m.ratings.Lookup(producerID)
	return st
}

// Close cancels the in-flight catalog request.
func (m Model) Close() { m.fetcher.Stop() }

func producerIDs(items []model.Product) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, p := range items {
		if p.ProducerID == "" {
			continue
		}
		if _, ok := seen[p.ProducerID]; ok {
			continue
		}
		seen[p.ProducerID] = struct{}{}
		ids = append(ids, p.ProducerID)
	}
	return ids
}
