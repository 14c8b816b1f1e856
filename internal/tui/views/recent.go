package views

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/catalogtap/internal/engine/geo"
	"github.com/rendis/catalogtap/internal/tui/styles"
)

type RecentEntry struct {
	Region   string
	Commune  string
	Category string
	UsedAt   time.Time
}

func (e RecentEntry) describe() string {
	var parts []string
	if e.Commune != "" {
		parts = append(parts, e.Commune)
	}
	if e.Region != "" {
		parts = append(parts, e.Region)
	}
	where := strings.Join(parts, ", ")
	switch {
	case where == "":
		return e.Category
	case e.Category == "":
		return where
	default:
		return e.Category + " in " + where
	}
}

// RecentModel lists previously applied filters.
type RecentModel struct {
	entries []RecentEntry
	cursor  int
}

func NewRecentModel(entries []RecentEntry) RecentModel {
	return RecentModel{entries: entries}
}

func (m RecentModel) Init() tea.Cmd {
	return nil
}

func (m RecentModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.entries)-1 {
				m.cursor++
			}
		case "enter":
			if m.cursor < len(m.entries) {
				e := m.entries[m.cursor]
				return m, func() tea.Msg {
					return ApplyFiltersMsg{Region: e.Region, Commune: e.Commune, Category: e.Category}
				}
			}
		case "esc":
			return m, func() tea.Msg { return NavigateToHome{} }
		}
	}
	return m, nil
}

func (m RecentModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Recent Filters"))
	b.WriteString("\n\n")

	if len(m.entries) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("No recent filters"))
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("esc back"))
		return styles.Border.Render(b.String())
	}

	for i, entry := range m.entries {
		cursor := "  "
		style := styles.InactiveItem
		if i == m.cursor {
			cursor = "> "
			style = styles.ActiveItem
		}

		name := style.Render(entry.describe())
		// entries saved before a lookup change may no longer resolve
		if entry.Commune != "" && !geo.Admin().Contains(entry.Region, entry.Commune) {
			name = lipgloss.NewStyle().Foreground(styles.Error).Strikethrough(true).Render(entry.describe())
		}
		ago := lipgloss.NewStyle().Foreground(styles.Muted).Render("  " + timeAgo(entry.UsedAt))

		b.WriteString(fmt.Sprintf("%s%s\n%s\n", cursor, name, ago))
	}

	b.WriteString("\n")
	b.WriteString(styles.StatusBar.Render("enter apply • esc back"))

	return styles.Border.Render(b.String())
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
