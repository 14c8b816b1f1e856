package tui

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rendis/catalogtap/internal/config"
	"github.com/rendis/catalogtap/internal/engine/filter"
)

const maxRecent = 10

// RecentFilter is a region/commune/category combination the user applied.
type RecentFilter struct {
	Region   string    `json:"region,omitempty"`
	Commune  string    `json:"commune,omitempty"`
	Category string    `json:"category,omitempty"`
	UsedAt   time.Time `json:"used_at"`
}

func (r RecentFilter) same(o RecentFilter) bool {
	return r.Region == o.Region && r.Commune == o.Commune && r.Category == o.Category
}

// RecentStore keeps the last applied filters in a JSON file.
type RecentStore struct {
	path string
}

// NewRecentStore stores under dir; an empty dir means the user config dir.
func NewRecentStore(dir string) RecentStore {
	if dir == "" {
		if d, err := config.Dir(); err == nil {
			dir = d
		}
	}
	return RecentStore{path: filepath.Join(dir, "recent_filters.json")}
}

func (s RecentStore) Load() []RecentFilter {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var entries []RecentFilter
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	return entries
}

// Last returns the most recent filter as a starting state.
func (s RecentStore) Last() (filter.State, bool) {
	entries := s.Load()
	if len(entries) == 0 {
		return filter.State{}, false
	}
	e := entries[0]
	return filter.State{Region: e.Region, Commune: e.Commune, Category: e.Category}, true
}

// Save records st at the front of the list. Inactive states are ignored.
func (s RecentStore) Save(st filter.State) error {
	if !st.Active() {
		return nil
	}
	entry := RecentFilter{Region: st.Region, Commune: st.Commune, Category: st.Category, UsedAt: time.Now()}

	entries := s.Load()
	filtered := make([]RecentFilter, 0, len(entries)+1)
	filtered = append(filtered, entry)
	for _, e := range entries {
		if !e.same(entry) {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) > maxRecent {
		filtered = filtered[:maxRecent]
	}

	data, err := json.MarshalIndent(filtered, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
