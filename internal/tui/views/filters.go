package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/catalogtap/internal/engine/filter"
	"github.com/rendis/catalogtap/internal/engine/geo"
	"github.com/rendis/catalogtap/internal/tui/styles"
)

const maxSuggestions = 6

const (
	fieldRegion = iota
	fieldCommune
	fieldCategory
	fieldCount
)

// FiltersModel edits region, commune and category together and applies
// them as a single change.
type FiltersModel struct {
	inputs      []textinput.Model
	focused     int
	categories  []string
	suggestions []string
	suggIdx     int
	err         string
}

func NewFiltersModel(current filter.State, categories []string) FiltersModel {
	inputs := make([]textinput.Model, fieldCount)
	inputs[fieldRegion] = newInput("type to search region...", current.Region, 40)
	inputs[fieldCommune] = newInput("optional: Quilpué, Talca...", current.Commune, 40)
	inputs[fieldCategory] = newInput("optional: Frutas, Verduras...", current.Category, 30)
	inputs[fieldRegion].Focus()

	return FiltersModel{
		inputs:     inputs,
		focused:    fieldRegion,
		categories: categories,
		suggIdx:    -1,
	}
}

func newInput(placeholder, value string, width int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 80
	if width > 0 {
		ti.Width = width
	}
	if value != "" {
		ti.SetValue(value)
	}
	return ti
}

func (m FiltersModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m FiltersModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			return m, func() tea.Msg { return NavigateToCatalog{} }

		case "up":
			if len(m.suggestions) > 0 && m.suggIdx > 0 {
				m.suggIdx--
				return m, nil
			}
			m.err = ""
			return m, m.focusPrev()

		case "down":
			if len(m.suggestions) > 0 && m.suggIdx < len(m.suggestions)-1 {
				m.suggIdx++
				return m, nil
			}
			m.err = ""
			return m, m.focusNext()

		case "tab":
			m.err = ""
			m.selectSuggestion()
			return m, m.focusNext()

		case "shift+tab":
			m.err = ""
			return m, m.focusPrev()

		case "ctrl+u":
			m.inputs[m.focused].SetValue("")
			m.suggestions = nil
			m.suggIdx = -1
			return m, nil

		case "enter":
			if len(m.suggestions) > 0 {
				m.selectSuggestion()
				return m, m.focusNext()
			}
			return m, m.submit()
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	m.updateSuggestions()
	return m, cmd
}

func (m *FiltersModel) selectSuggestion() {
	if m.suggIdx >= 0 && m.suggIdx < len(m.suggestions) {
		m.inputs[m.focused].SetValue(m.suggestions[m.suggIdx])
		if m.focused == fieldRegion {
			m.dropForeignCommune()
		}
	}
	m.suggestions = nil
	m.suggIdx = -1
}

// dropForeignCommune clears the commune input when it does not belong to
// the region being typed.
func (m *FiltersModel) dropForeignCommune() {
	raw := strings.TrimSpace(m.inputs[fieldCommune].Value())
	if raw == "" {
		return
	}
	region, ok := geo.ResolveRegion(m.inputs[fieldRegion].Value())
	if !ok {
		return
	}
	if _, ok := geo.ResolveCommune(region, raw); !ok {
		m.inputs[fieldCommune].SetValue("")
	}
}

func (m FiltersModel) candidates() []string {
	switch m.focused {
	case fieldRegion:
		return geo.Regions()
	case fieldCommune:
		if region, ok := geo.ResolveRegion(m.inputs[fieldRegion].Value()); ok {
			return geo.CommunesOf(region)
		}
		return nil
	default:
		return m.categories
	}
}

func (m *FiltersModel) updateSuggestions() {
	raw := strings.TrimSpace(m.inputs[m.focused].Value())
	if raw == "" {
		m.suggestions = nil
		m.suggIdx = -1
		return
	}

	q := geo.Normalize(raw)
	var matches []string
	for _, c := range m.candidates() {
		n := geo.Normalize(c)
		if n == q {
			// exact match, nothing to suggest
			matches = nil
			break
		}
		if strings.Contains(n, q) {
			matches = append(matches, c)
			if len(matches) >= maxSuggestions {
				break
			}
		}
	}
	m.suggestions = matches
	if len(matches) > 0 {
		if m.suggIdx < 0 || m.suggIdx >= len(matches) {
			m.suggIdx = 0
		}
	} else {
		m.suggIdx = -1
	}
}

func (m *FiltersModel) focusNext() tea.Cmd {
	return m.focusTo((m.focused + 1) % fieldCount)
}

func (m *FiltersModel) focusPrev() tea.Cmd {
	return m.focusTo((m.focused + fieldCount - 1) % fieldCount)
}

func (m *FiltersModel) focusTo(idx int) tea.Cmd {
	m.inputs[m.focused].Blur()
	m.focused = idx
	m.suggestions = nil
	m.suggIdx = -1
	m.inputs[m.focused].Focus()
	return textinput.Blink
}

// resolve validates the three inputs and returns their canonical spelling.
func (m FiltersModel) resolve() (ApplyFiltersMsg, error) {
	var out ApplyFiltersMsg

	if raw := strings.TrimSpace(m.inputs[fieldRegion].Value()); raw != "" {
		region, ok := geo.ResolveRegion(raw)
		if !ok {
			return out, fmt.Errorf("unknown region %q", raw)
		}
		out.Region = region
	}

	if raw := strings.TrimSpace(m.inputs[fieldCommune].Value()); raw != "" {
		commune, ok := geo.ResolveCommune(out.Region, raw)
		switch {
		case !ok && out.Region == "":
			return out, fmt.Errorf("unknown commune %q", raw)
		case !ok:
			return out, fmt.Errorf("%q is not a commune of %s", raw, out.Region)
		}
		if out.Region == "" {
			// a bare commune implies its region
			out.Region, _ = geo.RegionOf(commune)
		}
		out.Commune = commune
	}

	if raw := strings.TrimSpace(m.inputs[fieldCategory].Value()); raw != "" {
		out.Category = raw
		if len(m.categories) > 0 {
			q := geo.Normalize(raw)
			found := false
			for _, c := range m.categories {
				if geo.Normalize(c) == q {
					out.Category = c
					found = true
					break
				}
			}
			if !found {
				return out, fmt.Errorf("unknown category %q", raw)
			}
		}
	}
	return out, nil
}

func (m *FiltersModel) submit() tea.Cmd {
	msg, err := m.resolve()
	if err != nil {
		m.err = err.Error()
		return nil
	}
	return func() tea.Msg { return msg }
}

func (m FiltersModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Filters") + "\n\n")

	labels := [fieldCount]string{"Region:", "Commune:", "Category:"}
	for i := range fieldCount {
		b.WriteString(fmt.Sprintf("%s %s\n", styles.Label.Render(labels[i]), m.inputs[i].View()))
		if i == m.focused && len(m.suggestions) > 0 {
			b.WriteString(m.renderSuggestions())
		}
	}

	if m.focused == fieldCategory && len(m.categories) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("  categories unavailable, any value is sent as typed") + "\n")
	}

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorText.Render("  " + m.err))
	}

	b.WriteString("\n\n")
	b.WriteString(styles.StatusBar.Render("enter apply • tab next • ctrl+u clear field • esc back"))

	return styles.Border.Render(b.String())
}

func (m FiltersModel) renderSuggestions() string {
	var sb strings.Builder
	active := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	inactive := lipgloss.NewStyle().Foreground(styles.Muted)

	for i, s := range m.suggestions {
		if i == m.suggIdx {
			sb.WriteString(active.Render("  > " + s))
		} else {
			sb.WriteString(inactive.Render("    " + s))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
