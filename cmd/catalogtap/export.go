package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/rendis/catalogtap/internal/engine/export"
	"github.com/rendis/catalogtap/internal/engine/storage"
)

var (
	exportFlags  filterFlags
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write one ranked page as CSV, GeoJSON or a SQLite snapshot",
	Example: `  catalogtap export --region valparaiso > page.csv
  catalogtap export --format geojson -o page.geojson --commune quilpue
  catalogtap export --format db -o snapshots.db --category Miel`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportFlags.register(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "csv, geojson or db")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output path (stdout for csv and geojson when empty)")
}

func runExport(cmd *cobra.Command, _ []string) error {
	switch exportFormat {
	case "csv", "geojson":
	case "db":
		if exportOutput == "" {
			return fmt.Errorf("--output is required with --format db")
		}
	default:
		return fmt.Errorf("unknown --format %q (want csv, geojson or db)", exportFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := exportFlags.state(cfg.PageSize)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), log.WarnLevel)

	m, err := discover(cfg, st, logger)
	if err != nil {
		return err
	}
	listings := m.Listings()

	if exportFormat == "db" {
		store, err := storage.NewStore(exportOutput)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()
		id, err := store.SaveSnapshot(m.Filter(), m.Pagination(), listings)
		if err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "snapshot %d: %d listings saved to %s\n", id, len(listings), exportOutput)
		return nil
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		w = f
	}

	if exportFormat == "csv" {
		err = export.WriteCSV(w, listings)
	} else {
		err = export.WriteGeoJSON(w, listings, m.Location())
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", exportFormat, err)
	}
	if exportOutput != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d listings written to %s\n", len(listings), exportOutput)
	}
	return nil
}
