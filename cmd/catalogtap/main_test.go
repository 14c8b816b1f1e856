package main

import (
	"bytes"
	"encoding/csv"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/catalogtap/internal/devserver"
	"github.com/rendis/catalogtap/internal/engine/filter"
	"github.com/rendis/catalogtap/internal/engine/storage"
	"github.com/rendis/catalogtap/internal/model"
)

func TestFilterFlagsState(t *testing.T) {
	tests := []struct {
		name    string
		flags   filterFlags
		want    filter.State
		wantErr string
	}{
		{
			name:  "defaults",
			flags: filterFlags{page: 1},
			want:  filter.State{Page: 1, PageSize: 9},
		},
		{
			name:  "region is canonicalised",
			flags: filterFlags{region: "valparaiso", page: 2, limit: 20},
			want:  filter.State{Region: "Valparaíso", Page: 2, PageSize: 20},
		},
		{
			name:  "commune implies region",
			flags: filterFlags{commune: "quilpue", category: "Frutas", page: 0},
			want:  filter.State{Region: "Valparaíso", Commune: "Quilpué", Category: "Frutas", Page: 1, PageSize: 9},
		},
		{name: "unknown region", flags: filterFlags{region: "atlantis"}, wantErr: "unknown region"},
		{name: "foreign commune", flags: filterFlags{region: "maule", commune: "quilpue"}, wantErr: "not a commune of Maule"},
		{name: "unknown commune", flags: filterFlags{commune: "gotham"}, wantErr: "unknown commune"},
		{name: "limit too large", flags: filterFlags{limit: 101}, wantErr: "--limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.flags.state(9)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// execute runs the root command with args against a fresh config dir.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRegionsCommand(t *testing.T) {
	out, err := execute(t, "regions")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 16)
	assert.Contains(t, out, "Metropolitana de Santiago")

	out, err = execute(t, "regions", "VALPARAISO")
	require.NoError(t, err)
	assert.Contains(t, out, "Quilpué")
	assert.NotContains(t, out, "Talca")

	_, err = execute(t, "regions", "atlantis")
	assert.Error(t, err)
}

// fixtureAPI serves three products from a SQLite store: one in the
// consumer's commune, one elsewhere in the region and one in Maule.
func fixtureAPI(t *testing.T) string {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.InsertProducts([]model.Product{
		{ID: "a", Name: "Paltas", Price: decimal.NewFromInt(2500), Category: "Frutas", ProducerID: "p1",
			ProducerLocation: model.ProducerLocation{Region: "Valparaíso", Commune: "Quilpué",
				Latitude: model.Float(-33.05), Longitude: model.Float(-71.44)},
			ProducerPublic: model.ProducerPublic{Phone: "+56 9 1234 5678"}},
		{ID: "b", Name: "Miel de ulmo", Price: decimal.NewFromInt(6000), Category: "Miel", ProducerID: "p2",
			ProducerLocation: model.ProducerLocation{Region: "Maule", Commune: "Talca"}},
		{ID: "c", Name: "Frutillas", Price: decimal.NewFromInt(1800), Category: "Frutas", ProducerID: "p2",
			ProducerLocation: model.ProducerLocation{Region: "Valparaíso", Commune: "Limache"}},
	})
	require.NoError(t, err)
	require.NoError(t, store.SetRating("p1", model.RatingSummary{AverageScore: model.Float(4.5), Count: 8}))
	require.NoError(t, store.SetLocation(&model.ConsumerLocation{
		Region: "Valparaíso", Commune: "Quilpué",
		Latitude: model.Float(-33.0472), Longitude: model.Float(-71.4419),
	}))

	srv := httptest.NewServer(devserver.NewRouter(store, devserver.Options{}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestBrowseCommand(t *testing.T) {
	url := fixtureAPI(t)

	out, err := execute(t, "--api-url", url, "browse", "--region", "valparaiso", "--limit", "5")
	require.NoError(t, err)

	assert.Contains(t, out, "2 products")
	assert.Contains(t, out, "Ranked for Quilpué, Valparaíso")
	assert.Contains(t, out, "4.5 (8 opiniones)")
	assert.Contains(t, out, "https://wa.me/56912345678")
	assert.NotContains(t, out, "Miel de ulmo")
	assert.Less(t, strings.Index(out, "Paltas"), strings.Index(out, "Frutillas"), "same commune ranks first")
}

func TestExportCommand(t *testing.T) {
	url := fixtureAPI(t)
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "page.csv")
	_, err := execute(t, "--api-url", url, "export", "--format", "csv", "-o", csvPath, "--category", "Frutas", "--region", "", "--limit", "0")
	require.NoError(t, err)
	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3, "header plus two fruit listings")

	dbPath := filepath.Join(dir, "snap.db")
	_, err = execute(t, "--api-url", url, "export", "--format", "db", "-o", dbPath, "--category", "", "--limit", "0")
	require.NoError(t, err)
	assert.FileExists(t, dbPath)
}

func TestExportRejectsFormat(t *testing.T) {
	_, err := execute(t, "export", "--format", "xml", "-o", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown --format")

	_, err = execute(t, "export", "--format", "db", "-o", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output is required")
}
