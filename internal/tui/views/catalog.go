package views

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"

	"github.com/rendis/catalogtap/internal/engine/contact"
	"github.com/rendis/catalogtap/internal/engine/discovery"
	"github.com/rendis/catalogtap/internal/engine/export"
	"github.com/rendis/catalogtap/internal/engine/geo"
	"github.com/rendis/catalogtap/internal/engine/ranking"
	"github.com/rendis/catalogtap/internal/engine/rating"
	"github.com/rendis/catalogtap/internal/model"
	"github.com/rendis/catalogtap/internal/tui/components"
	"github.com/rendis/catalogtap/internal/tui/styles"
)

type focusArea int

const (
	focusTable focusArea = iota
	focusCard
)

type exportDoneMsg struct {
	Path string
	Rows int
	Err  error
}

// CatalogModel shows the ranked page of the discovery model as a table
// with a detail card and an optional map panel.
type CatalogModel struct {
	disco     discovery.Model
	table     table.Model
	spinner   spinner.Model
	ratingBar progress.Model
	mapView   components.MapView
	listings  []model.Listing
	mapIndex  []int // listing index -> map point index, -1 without coords
	focus     focusArea
	selected  int
	showMap   bool
	width     int
	height    int
	exportDir string
	exportMsg string
	logger    *log.Logger

	cardScrollY int
	cardLines   []string
}

func NewCatalogModel(disco discovery.Model, exportDir string, logger *log.Logger) CatalogModel {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	mv := components.NewMapView(30, 12)
	var capitals []orb.Point
	for _, r := range geo.Regions() {
		if p, ok := geo.Capital(r); ok {
			capitals = append(capitals, p)
		}
	}
	mv.SetLandmarks(capitals)

	m := CatalogModel{
		disco:     disco,
		spinner:   sp,
		ratingBar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(20), progress.WithoutPercentage()),
		mapView:   mv,
		selected:  -1,
		exportDir: exportDir,
		logger:    logger.WithPrefix("catalog-view"),
	}
	m.buildTable()
	return m
}

func (m CatalogModel) Init() tea.Cmd {
	return tea.Batch(m.disco.Init(), m.spinner.Tick)
}

// Discovery exposes the wrapped model, mostly for the filter state.
func (m CatalogModel) Discovery() discovery.Model { return m.disco }

func (m CatalogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case exportDoneMsg:
		if msg.Err != nil {
			m.logger.Error("export failed", "err", msg.Err)
			m.exportMsg = fmt.Sprintf("Export error: %v", msg.Err)
		} else {
			m.logger.Info("exported page", "path", msg.Path, "rows", msg.Rows)
			m.exportMsg = fmt.Sprintf("Exported %d rows to %s", msg.Rows, msg.Path)
		}
		return m, nil
	case ApplyFiltersMsg:
		return m.apply(discovery.FiltersSelectedMsg{
			Region:   msg.Region,
			Commune:  msg.Commune,
			Category: msg.Category,
		})
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m.apply(msg)
}

// apply forwards msg to the discovery model and refreshes the widgets.
func (m CatalogModel) apply(msg tea.Msg) (CatalogModel, tea.Cmd) {
	var cmd tea.Cmd
	m.disco, cmd = m.disco.Update(msg)
	m.refresh()
	return m, cmd
}

func (m CatalogModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.focus == focusCard {
		maxScroll := max(len(m.cardLines)-m.panelHeight(), 0)
		switch key {
		case "esc", "enter":
			m.focus = focusTable
			m.table.SetStyles(focusedTableStyles())
		case "up", "k":
			if m.cardScrollY > 0 {
				m.cardScrollY--
			}
		case "down", "j":
			if m.cardScrollY < maxScroll {
				m.cardScrollY++
			}
		}
		return m, nil
	}

	switch key {
	case "esc", "q":
		return m, func() tea.Msg { return NavigateToHome{} }
	case "enter", "1":
		if m.selected >= 0 {
			m.focus = focusCard
			m.table.SetStyles(unfocusedTableStyles())
		}
		return m, nil
	case "n", "right":
		return m.apply(discovery.NextPageMsg{})
	case "p", "left":
		return m.apply(discovery.PrevPageMsg{})
	case "+", "=":
		return m.apply(discovery.PageSizeSelectedMsg{Size: m.disco.Filter().PageSize + 1})
	case "-":
		return m.apply(discovery.PageSizeSelectedMsg{Size: m.disco.Filter().PageSize - 1})
	case "c":
		return m.apply(discovery.ClearFiltersMsg{})
	case "r":
		m.exportMsg = ""
		return m.apply(discovery.RefreshMsg{})
	case "f", "/":
		return m, func() tea.Msg { return NavigateToFilters{} }
	case "e":
		return m, m.exportCmd("csv")
	case "g":
		return m, m.exportCmd("geojson")
	case "m":
		m.showMap = !m.showMap
		m.updateLayout()
		return m, nil
	case "z":
		if m.showMap {
			m.mapView.ZoomIn()
		}
		return m, nil
	case "Z":
		if m.showMap {
			m.mapView.ZoomOut()
		}
		return m, nil
	case "0":
		if m.showMap {
			m.mapView.ZoomReset()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	if c := m.table.Cursor(); c != m.selected && c < len(m.listings) {
		m.selected = c
		m.cardScrollY = 0
		m.cacheCard()
		m.mapView.SetSelected(m.selectedPoint())
	}
	return m, cmd
}

// refresh pulls the listings out of the discovery model.
func (m *CatalogModel) refresh() {
	m.listings = m.disco.Listings()
	switch {
	case len(m.listings) == 0:
		m.selected = -1
	case m.selected < 0:
		m.selected = 0
	case m.selected >= len(m.listings):
		m.selected = len(m.listings) - 1
	}
	m.table.SetRows(m.rows())
	if m.selected >= 0 {
		m.table.SetCursor(m.selected)
	}
	m.cacheCard()
	m.refreshMap()
}

func (m *CatalogModel) refreshMap() {
	var points []orb.Point
	m.mapIndex = make([]int, len(m.listings))
	for i, l := range m.listings {
		m.mapIndex[i] = -1
		pl := l.ProducerLocation
		if !pl.HasCoords() {
			continue
		}
		m.mapIndex[i] = len(points)
		points = append(points, orb.Point{*pl.Longitude, *pl.Latitude})
	}
	var consumer *orb.Point
	if loc := m.disco.Location(); loc.HasCoords() {
		consumer = &orb.Point{*loc.Longitude, *loc.Latitude}
	}
	m.mapView.SetPoints(points)
	m.mapView.SetConsumer(consumer)
	m.mapView.SetSelected(m.selectedPoint())
}

func (m CatalogModel) selectedPoint() int {
	if m.selected < 0 || m.selected >= len(m.mapIndex) {
		return -1
	}
	return m.mapIndex[m.selected]
}

func (m CatalogModel) columnWidths() (name, cat, commune int) {
	name, cat, commune = 26, 12, 16
	avail := m.width
	if m.showMap {
		avail -= m.mapWidth() + 4
	}
	if avail > 120 {
		extra := avail - 120
		name += extra * 5 / 10
		cat += extra * 2 / 10
		commune += extra * 3 / 10
	}
	return name, cat, commune
}

func (m *CatalogModel) buildTable() {
	nameW, catW, communeW := m.columnWidths()
	columns := []table.Column{
		{Title: "Name", Width: nameW},
		{Title: "Category", Width: catW},
		{Title: "Commune", Width: communeW},
		{Title: "Price", Width: 10},
		{Title: "Distance", Width: 9},
		{Title: "Rating", Width: 18},
		{Title: "Tier", Width: 7},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(m.tableHeight()),
	)
	t.SetStyles(focusedTableStyles())
	m.table = t
	m.table.SetRows(m.rows())
	if m.selected >= 0 {
		m.table.SetCursor(m.selected)
	}
}

func (m CatalogModel) rows() []table.Row {
	nameW, catW, communeW := m.columnWidths()
	rows := make([]table.Row, len(m.listings))
	for i, l := range m.listings {
		dist, _ := l.DistanceLabel()
		label, _ := l.RatingLabel()
		rows[i] = table.Row{
			truncate(l.Name, nameW),
			truncate(l.Category, catW),
			truncate(l.ProducerLocation.Commune, communeW),
			"$" + l.Price.String(),
			dist,
			label,
			tierLabel(l.PriorityTier),
		}
	}
	return rows
}

func tierLabel(tier int) string {
	switch tier {
	case ranking.TierCommune:
		return "commune"
	case ranking.TierRegion:
		return "region"
	default:
		return "other"
	}
}

func focusedTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Secondary)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(styles.Primary).
		Bold(true)
	return s
}

func unfocusedTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Muted)
	s.Selected = s.Selected.
		Foreground(styles.Text).
		Background(lipgloss.Color("#333333")).
		Bold(false)
	return s
}

func (m CatalogModel) tableHeight() int {
	return max(m.height/2-6, 5)
}

func (m CatalogModel) panelHeight() int {
	return max(m.height/2-8, 6)
}

func (m CatalogModel) mapWidth() int {
	return max(m.width/4, 20)
}

func (m *CatalogModel) updateLayout() {
	if m.width <= 0 {
		return
	}
	m.mapView.SetSize(m.mapWidth(), m.tableHeight()+1)
	m.buildTable()
	if m.focus == focusCard {
		m.table.SetStyles(unfocusedTableStyles())
	}
}

func (m *CatalogModel) cacheCard() {
	if m.selected < 0 || m.selected >= len(m.listings) {
		m.cardLines = nil
		return
	}
	m.cardLines = cardLines(m.listings[m.selected])
}

func cardLines(l model.Listing) []string {
	lines := []string{l.Name}
	if label, ok := l.RatingLabel(); ok {
		lines = append(lines, label)
	}
	if l.Category != "" {
		lines = append(lines, l.Category)
	}
	lines = append(lines, "")

	addRow := func(label, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("%-10s %s", label, value))
		}
	}

	pl := l.ProducerLocation
	addRow("Price:", "$"+l.Price.String())
	if l.Stock != nil {
		addRow("Stock:", strconv.Itoa(*l.Stock))
	}
	addRow("Region:", pl.Region)
	addRow("Commune:", pl.Commune)
	if pl.HasCoords() {
		addRow("Coords:", fmt.Sprintf("%.5f, %.5f", *pl.Latitude, *pl.Longitude))
	}
	if d, ok := l.DistanceLabel(); ok {
		addRow("Distance:", d)
	}
	addRow("Match:", tierLabel(l.PriorityTier))
	if link, ok := contact.WhatsAppLink(l.ProducerPublic.Phone, contact.DefaultCountryCode); ok {
		addRow("WhatsApp:", link)
	}
	addRow("Producer:", l.ProducerID)
	addRow("Image:", l.ImageURL)
	return lines
}

func (m CatalogModel) exportCmd(format string) tea.Cmd {
	if len(m.listings) == 0 {
		return func() tea.Msg {
			return exportDoneMsg{Err: fmt.Errorf("nothing to export")}
		}
	}
	listings := m.listings
	consumer := m.disco.Location()
	dir := m.exportDir
	return func() tea.Msg {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return exportDoneMsg{Err: err}
		}
		name := fmt.Sprintf("catalogtap_%s.%s", time.Now().Format("20060102_150405"), format)
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return exportDoneMsg{Err: err}
		}
		defer f.Close()

		if format == "csv" {
			err = export.WriteCSV(f, listings)
		} else {
			err = export.WriteGeoJSON(f, listings, consumer)
		}
		return exportDoneMsg{Path: path, Rows: len(listings), Err: err}
	}
}

func (m CatalogModel) View() string {
	var b strings.Builder

	pg := m.disco.Pagination()
	title := styles.Title.Render(fmt.Sprintf("Catalog: %d products", pg.Total))
	b.WriteString(title + "  " + m.locationBadge())
	if m.disco.Loading() {
		b.WriteString("  " + m.spinner.View())
	}
	b.WriteString("\n")
	b.WriteString(m.filterLine())
	b.WriteString("\n")

	if err := m.disco.Err(); err != nil {
		b.WriteString(styles.ErrorText.Render(fmt.Sprintf("Catalog unavailable: %v (r to retry)", err)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	var tableView string
	if len(m.listings) == 0 && !m.disco.Loading() {
		tableView = lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("No products match the current filters")
	} else {
		tableView = m.table.View()
	}
	if m.showMap {
		mapBox := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(styles.Muted).
			Render(m.mapView.View())
		tableView = lipgloss.JoinHorizontal(lipgloss.Top, tableView, " ", mapBox)
	}
	b.WriteString(tableView)
	b.WriteString("\n")
	b.WriteString(m.pageLine(pg))
	b.WriteString("\n\n")

	cardColor := styles.Muted
	if m.focus == focusCard {
		cardColor = styles.Primary
	}
	cardW := max(m.width-4, 40)
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(cardColor).
		Padding(0, 1).
		Width(cardW).
		Height(m.panelHeight()).
		Render(m.viewCard(cardW-2, m.panelHeight()))
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(cardColor).Render("[1] Details"))
	b.WriteString("\n")
	b.WriteString(card)
	b.WriteString("\n")

	if m.exportMsg != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Success).Render(m.exportMsg))
		b.WriteString("\n")
	}

	var status string
	if m.focus == focusCard {
		status = "↑↓ scroll • esc back to table"
	} else {
		status = "↑↓ navigate • n/p page • +/- page size • f filters • c clear • r refresh • e csv • g geojson • m map • esc back"
	}
	b.WriteString(styles.StatusBar.Render(status))
	return b.String()
}

func (m CatalogModel) locationBadge() string {
	if !m.disco.LocationLoaded() {
		return lipgloss.NewStyle().Foreground(styles.Muted).Render("locating…")
	}
	loc := m.disco.Location()
	if loc == nil {
		return lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).Render("no saved location")
	}
	var parts []string
	for _, p := range []string{loc.Commune, loc.Region} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "saved location")
	}
	return styles.Badge.Render("Near " + strings.Join(parts, ", "))
}

func (m CatalogModel) filterLine() string {
	st := m.disco.Filter()
	show := func(label, v string) string {
		if v == "" {
			v = "any"
		}
		return styles.Label.Render(label) + styles.Value.Render(v)
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top,
		show("Region:", st.Region), "  ",
		show("Commune:", st.Commune), "  ",
		show("Category:", st.Category),
	)
	if st.Active() {
		line += lipgloss.NewStyle().Foreground(styles.Muted).Render("  (c clear)")
	}
	return line
}

func (m CatalogModel) pageLine(pg model.Pagination) string {
	line := fmt.Sprintf("Page %d/%d • %d per page", pg.Page, pg.TotalPages, m.disco.Filter().PageSize)
	out := lipgloss.NewStyle().Foreground(styles.Muted).Render(line)

	done, total := m.ratingProgress()
	if total > 0 && done < total {
		out += "  " + m.ratingBar.ViewAs(float64(done)/float64(total)) +
			lipgloss.NewStyle().Foreground(styles.Muted).Render(fmt.Sprintf(" ratings %d/%d", done, total))
	}
	return out
}

// ratingProgress counts the producers on the page whose rating lookup has
// settled, successfully or not.
func (m CatalogModel) ratingProgress() (done, total int) {
	seen := make(map[string]bool)
	for _, l := range m.listings {
		if l.ProducerID == "" || seen[l.ProducerID] {
			continue
		}
		seen[l.ProducerID] = true
		total++
		switch m.disco.RatingStatus(l.ProducerID) {
		case rating.StatusReady, rating.StatusUnavailable:
			done++
		}
	}
	return done, total
}

func (m CatalogModel) viewCard(w, h int) string {
	if len(m.cardLines) == 0 {
		return lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("Select a product\nto view details")
	}
	lines := m.cardLines

	scrollY := min(m.cardScrollY, len(lines)-h)
	scrollY = max(scrollY, 0)
	end := min(scrollY+h, len(lines))
	visible := lines[scrollY:end]

	label := lipgloss.NewStyle().Foreground(styles.Muted)
	valStyle := lipgloss.NewStyle().Foreground(styles.Text)

	var sb strings.Builder
	for i, line := range visible {
		switch {
		case scrollY+i == 0:
			sb.WriteString(lipgloss.NewStyle().Bold(true).Foreground(styles.Text).Render(truncate(line, w)))
		case strings.HasSuffix(line, "opiniones)"):
			sb.WriteString(styles.Rating.Render(truncate(line, w)))
		case strings.HasPrefix(line, "WhatsApp:"), strings.HasPrefix(line, "Image:"):
			lbl, val, _ := strings.Cut(line, " ")
			sb.WriteString(label.Render(fmt.Sprintf("%-10s ", lbl)))
			sb.WriteString(lipgloss.NewStyle().Foreground(styles.Primary).
				Render(truncate(strings.TrimSpace(val), w-11)))
		default:
			sb.WriteString(valStyle.Render(truncate(line, w)))
		}
		if i < len(visible)-1 {
			sb.WriteString("\n")
		}
	}

	if scrollY > 0 {
		sb.WriteString("\n")
		sb.WriteString(label.Render("  ▲ more above"))
	}
	if end < len(lines) {
		sb.WriteString("\n")
		sb.WriteString(label.Render("  ▼ more below"))
	}
	return sb.String()
}

// truncate cuts s to max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
