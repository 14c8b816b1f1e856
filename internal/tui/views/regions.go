package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/catalogtap/internal/engine/geo"
	"github.com/rendis/catalogtap/internal/tui/styles"
)

const regionsPageRows = 16

// RegionsModel browses the administrative lookup: regions first, then the
// communes of the chosen region. Enter applies the selection as a filter.
type RegionsModel struct {
	regions  []string
	communes []string
	region   string // set while browsing communes
	cursor   int
	offset   int
}

func NewRegionsModel() RegionsModel {
	return RegionsModel{regions: geo.Regions()}
}

func (m RegionsModel) Init() tea.Cmd {
	return nil
}

func (m RegionsModel) items() []string {
	if m.region != "" {
		return m.communes
	}
	return m.regions
}

func (m RegionsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	items := m.items()
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(items)-1 {
			m.cursor++
		}
	case "right", "l":
		if m.region == "" && m.cursor < len(items) {
			m.region = items[m.cursor]
			m.communes = geo.CommunesOf(m.region)
			m.cursor, m.offset = 0, 0
		}
	case "enter":
		if m.cursor >= len(items) {
			return m, nil
		}
		apply := ApplyFiltersMsg{Region: items[m.cursor]}
		if m.region != "" {
			apply = ApplyFiltersMsg{Region: m.region, Commune: items[m.cursor]}
		}
		return m, func() tea.Msg { return apply }
	case "left", "h", "backspace":
		if m.region != "" {
			m.cursor = indexOf(m.regions, m.region)
			m.region, m.communes = "", nil
			m.offset = 0
		}
	case "esc":
		if m.region != "" {
			m.cursor = indexOf(m.regions, m.region)
			m.region, m.communes = "", nil
			m.offset = 0
			break
		}
		return m, func() tea.Msg { return NavigateToHome{} }
	}
	m.scroll()
	return m, nil
}

// scroll keeps the cursor inside the visible window.
func (m *RegionsModel) scroll() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+regionsPageRows {
		m.offset = m.cursor - regionsPageRows + 1
	}
}

func indexOf(items []string, s string) int {
	for i, it := range items {
		if it == s {
			return i
		}
	}
	return 0
}

func (m RegionsModel) View() string {
	var b strings.Builder

	if m.region == "" {
		b.WriteString(styles.Title.Render("Regions"))
	} else {
		b.WriteString(styles.Title.Render("Communes of " + m.region))
	}
	b.WriteString("\n\n")

	items := m.items()
	if len(items) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).Render("Nothing here"))
		b.WriteString("\n")
	}
	end := min(m.offset+regionsPageRows, len(items))
	for i := m.offset; i < end; i++ {
		cursor := "  "
		style := styles.InactiveItem
		if i == m.cursor {
			cursor = "> "
			style = styles.ActiveItem
		}
		line := cursor + style.Render(items[i])
		if m.region == "" {
			line += lipgloss.NewStyle().Foreground(styles.Muted).
				Render(fmt.Sprintf("  %d communes", len(geo.CommunesOf(items[i]))))
		}
		b.WriteString(line + "\n")
	}
	if end < len(items) {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Render("  ▼ more below") + "\n")
	}

	b.WriteString("\n")
	if m.region == "" {
		b.WriteString(styles.StatusBar.Render("↑↓ navigate • → communes • enter filter by region • esc back"))
	} else {
		b.WriteString(styles.StatusBar.Render("↑↓ navigate • enter filter by commune • ← regions"))
	}
	return styles.Border.Render(b.String())
}
