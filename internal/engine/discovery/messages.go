package discovery

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rendis/catalogtap/internal/model"
)

// LocationLoadedMsg carries the consumer location, nil when none is saved.
type LocationLoadedMsg struct {
	Location *model.ConsumerLocation
	Err      error
}

// CategoriesLoadedMsg carries the category list.
type CategoriesLoadedMsg struct {
	Categories []string
	Err        error
}

// Intents.
type (
	RegionSelectedMsg   struct{ Region string }
	CommuneSelectedMsg  struct{ Commune string }
	CategorySelectedMsg struct{ Category string }
	PageSelectedMsg     struct{ Page int }
	PageSizeSelectedMsg struct{ Size int }
	NextPageMsg         struct{}
	PrevPageMsg         struct{}
	FiltersSelectedMsg  struct{ Region, Commune, Category string }
	ClearFiltersMsg     struct{}
	RefreshMsg          struct{} // refetch the current state unconditionally
)

// Drive runs cmd and every command it leads to, feeding each message
// back through Update, until no work is left. Batches are flattened and
// run in order, so Drive is deterministic for a deterministic backend.
func Drive(m Model, cmd tea.Cmd) Model {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg := next()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		if msg == nil {
			continue
		}
		var follow tea.Cmd
		m, follow = m.Update(msg)
		queue = append(queue, follow)
	}
	return m
}
