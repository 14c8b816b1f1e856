package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/catalogtap/internal/engine/filter"
)

func TestRecentStore_SaveAndLast(t *testing.T) {
	s := NewRecentStore(t.TempDir())

	_, ok := s.Last()
	assert.False(t, ok)

	require.NoError(t, s.Save(filter.State{Region: "Valparaíso", Commune: "Quilpué", Page: 3, PageSize: 9}))
	require.NoError(t, s.Save(filter.State{Category: "Miel"}))

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, filter.State{Category: "Miel"}, last)

	entries := s.Load()
	require.Len(t, entries, 2)
	assert.Equal(t, "Quilpué", entries[1].Commune)
}

func TestRecentStore_Dedup(t *testing.T) {
	s := NewRecentStore(t.TempDir())
	st := filter.State{Region: "Maule"}

	require.NoError(t, s.Save(st))
	require.NoError(t, s.Save(filter.State{Category: "Frutas"}))
	require.NoError(t, s.Save(st))

	entries := s.Load()
	require.Len(t, entries, 2)
	assert.Equal(t, "Maule", entries[0].Region)
}

func TestRecentStore_IgnoresInactive(t *testing.T) {
	dir := t.TempDir()
	s := NewRecentStore(dir)

	require.NoError(t, s.Save(filter.State{Page: 2, PageSize: 9}))
	_, err := os.Stat(filepath.Join(dir, "recent_filters.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestRecentStore_Cap(t *testing.T) {
	s := NewRecentStore(t.TempDir())
	for i := range maxRecent + 5 {
		require.NoError(t, s.Save(filter.State{Category: fmt.Sprintf("c%d", i)}))
	}
	entries := s.Load()
	require.Len(t, entries, maxRecent)
	assert.Equal(t, fmt.Sprintf("c%d", maxRecent+4), entries[0].Category)
}

func TestRecentStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recent_filters.json"), []byte("{not json"), 0o644))

	s := NewRecentStore(dir)
	assert.Nil(t, s.Load())
	require.NoError(t, s.Save(filter.State{Region: "Maule"}))
	assert.Len(t, s.Load(), 1)
}
