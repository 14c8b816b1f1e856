package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/catalogtap/internal/tui/styles"
)

type menuItem struct {
	key   string
	label string
	desc  string
	msg   tea.Msg // nil quits
}

type HomeModel struct {
	items   []menuItem
	cursor  int
	version string
}

func NewHomeModel(version string) HomeModel {
	return HomeModel{
		version: version,
		items: []menuItem{
			{key: "b", label: "Browse Catalog", desc: "Products ranked by proximity", msg: NavigateToCatalog{}},
			{key: "f", label: "Filters", desc: "Pick region, commune and category", msg: NavigateToFilters{}},
			{key: "r", label: "Regions", desc: "Browse regions and communes", msg: NavigateToRegions{}},
			{key: "h", label: "Recent Filters", desc: "Reapply a previous filter", msg: NavigateToRecent{}},
			{key: "q", label: "Quit", desc: "Exit catalogtap"},
		},
	}
}

func (m HomeModel) Init() tea.Cmd {
	return nil
}

func (m HomeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter":
		return m, m.handleSelect()
	default:
		for i, it := range m.items {
			if it.key == key.String() {
				m.cursor = i
				return m, m.handleSelect()
			}
		}
	}
	return m, nil
}

func (m HomeModel) handleSelect() tea.Cmd {
	next := m.items[m.cursor].msg
	if next == nil {
		return tea.Quit
	}
	return func() tea.Msg { return next }
}

func (m HomeModel) View() string {
	var b strings.Builder

	logo := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Render("  catalogtap")

	version := lipgloss.NewStyle().
		Foreground(styles.Muted).
		Render(" " + m.version)

	tagline := lipgloss.NewStyle().
		Foreground(styles.Secondary).
		Italic(true).
		Render("  Local producers, nearest first")

	b.WriteString(logo + version + "\n")
	b.WriteString(tagline + "\n\n")

	for i, item := range m.items {
		cursor := "  "
		style := styles.InactiveItem
		if i == m.cursor {
			cursor = "> "
			style = styles.ActiveItem
		}

		key := lipgloss.NewStyle().
			Foreground(styles.Secondary).
			Bold(true).
			Render(fmt.Sprintf("[%s]", item.key))

		label := style.Render(item.label)
		desc := lipgloss.NewStyle().
			Foreground(styles.Muted).
			Render(" - " + item.desc)

		b.WriteString(fmt.Sprintf("%s%s %s%s\n", cursor, key, label, desc))
	}

	b.WriteString("\n")
	b.WriteString(styles.StatusBar.Render("↑↓ navigate • enter select • q quit"))

	return styles.Border.Render(b.String())
}
