package tui

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/rendis/catalogtap/internal/engine/discovery"
	"github.com/rendis/catalogtap/internal/tui/views"
)

type viewID int

const (
	viewHome viewID = iota
	viewCatalog
	viewFilters
	viewRegions
	viewRecent
)

// Options configures the TUI.
type Options struct {
	Backend   discovery.Backend
	Discovery discovery.Config
	ExportDir string
	// Recent defaults to the store in the user config dir.
	Recent  *RecentStore
	Version string
	Logger  *log.Logger
}

// App is the root bubbletea model. The catalog view lives for the whole
// session so that fetches and rating lookups keep flowing while other
// views are shown.
type App struct {
	currentView viewID
	width       int
	height      int
	home        views.HomeModel
	catalog     views.CatalogModel
	filters     views.FiltersModel
	regions     views.RegionsModel
	recentView  views.RecentModel
	recent      RecentStore
	logger      *log.Logger
}

func NewApp(opts Options) App {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	recent := NewRecentStore("")
	if opts.Recent != nil {
		recent = *opts.Recent
	}

	cfg := opts.Discovery
	cfg.Logger = logger
	if !cfg.Initial.Active() {
		if last, ok := recent.Last(); ok {
			logger.Info("restoring last filter", "region", last.Region, "commune", last.Commune, "category", last.Category)
			cfg.Initial = last
		}
	}
	disco := discovery.New(opts.Backend, cfg)

	return App{
		currentView: viewHome,
		home:        views.NewHomeModel(opts.Version),
		catalog:     views.NewCatalogModel(disco, opts.ExportDir, logger),
		recent:      recent,
		logger:      logger.WithPrefix("tui"),
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(a.home.Init(), a.catalog.Init())
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		return a.updateCurrent(msg)
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	case views.NavigateToHome:
		a.currentView = viewHome
		return a, nil
	case views.NavigateToCatalog:
		a.currentView = viewCatalog
		return a, a.sizeCmd()
	case views.NavigateToFilters:
		a.currentView = viewFilters
		disco := a.catalog.Discovery()
		a.filters = views.NewFiltersModel(disco.Filter(), disco.Categories())
		return a, a.filters.Init()
	case views.NavigateToRegions:
		a.currentView = viewRegions
		a.regions = views.NewRegionsModel()
		return a, a.regions.Init()
	case views.NavigateToRecent:
		a.currentView = viewRecent
		var entries []views.RecentEntry
		for _, e := range a.recent.Load() {
			entries = append(entries, views.RecentEntry{
				Region:   e.Region,
				Commune:  e.Commune,
				Category: e.Category,
				UsedAt:   e.UsedAt,
			})
		}
		a.recentView = views.NewRecentModel(entries)
		return a, a.recentView.Init()
	case views.ApplyFiltersMsg:
		a.currentView = viewCatalog
		var cmd tea.Cmd
		a, cmd = a.updateCatalog(msg)
		if err := a.recent.Save(a.catalog.Discovery().Filter()); err != nil {
			a.logger.Warn("could not save recent filter", "err", err)
		}
		return a, tea.Batch(cmd, a.sizeCmd())
	}

	// Everything else feeds the catalog, which owns the discovery model,
	// and also the current view for its own widgets.
	a, cmd := a.updateCatalog(msg)
	if a.currentView == viewCatalog {
		return a, cmd
	}
	a, viewCmd := a.updateCurrentView(msg)
	return a, tea.Batch(cmd, viewCmd)
}

func (a App) updateCatalog(msg tea.Msg) (App, tea.Cmd) {
	m, cmd := a.catalog.Update(msg)
	a.catalog = m.(views.CatalogModel)
	return a, cmd
}

func (a App) updateCurrent(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.currentView == viewCatalog {
		return a.updateCatalog(msg)
	}
	return a.updateCurrentView(msg)
}

// updateCurrentView routes msg to the active non-catalog view.
func (a App) updateCurrentView(msg tea.Msg) (App, tea.Cmd) {
	var m tea.Model
	var cmd tea.Cmd
	switch a.currentView {
	case viewHome:
		m, cmd = a.home.Update(msg)
		a.home = m.(views.HomeModel)
	case viewFilters:
		m, cmd = a.filters.Update(msg)
		a.filters = m.(views.FiltersModel)
	case viewRegions:
		m, cmd = a.regions.Update(msg)
		a.regions = m.(views.RegionsModel)
	case viewRecent:
		m, cmd = a.recentView.Update(msg)
		a.recentView = m.(views.RecentModel)
	}
	return a, cmd
}

func (a App) View() string {
	var content string
	switch a.currentView {
	case viewHome:
		content = a.home.View()
	case viewCatalog:
		content = a.catalog.View()
	case viewFilters:
		content = a.filters.View()
	case viewRegions:
		content = a.regions.View()
	case viewRecent:
		content = a.recentView.View()
	}

	return lipgloss.Place(
		a.width, a.height,
		lipgloss.Center, lipgloss.Top,
		content,
	)
}

// sizeCmd sends a WindowSizeMsg so newly shown views get the current terminal size.
func (a App) sizeCmd() tea.Cmd {
	w, h := a.width, a.height
	return func() tea.Msg {
		return tea.WindowSizeMsg{Width: w, Height: h}
	}
}

// Run starts the TUI and blocks until the user quits.
func Run(opts Options) error {
	p := tea.NewProgram(NewApp(opts), tea.WithAltScreen())
	final, err := p.Run()
	if app, ok := final.(App); ok {
		app.catalog.Discovery().Close()
	}
	return err
}
