package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/rendis/catalogtap/internal/engine/discovery"
	"github.com/rendis/catalogtap/internal/tui"
)

var (
	tuiFlags     filterFlags
	tuiExportDir string
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive catalog browser (default)",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func init() {
	tuiFlags.register(tuiCmd)
	tuiCmd.Flags().StringVar(&tuiExportDir, "export-dir", "", "directory for e/g exports (default: working directory)")
}

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := tuiFlags.state(cfg.PageSize)
	if err != nil {
		return err
	}

	logFile, err := openSessionLog(cfg.LogDir)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := newLogger(logFile, log.InfoLevel)
	logger.Info("session start", "api", cfg.APIURL, "version", Version)
	fmt.Fprintf(cmd.ErrOrStderr(), "Log: %s\n", logFile.Name())

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	exportDir := tuiExportDir
	if exportDir == "" {
		if wd, err := os.Getwd(); err == nil {
			exportDir = wd
		}
	}
	exportDir, _ = filepath.Abs(exportDir)

	err = tui.Run(tui.Options{
		Backend: client,
		Discovery: discovery.Config{
			PageSize:  st.PageSize,
			Timeout:   cfg.RequestTimeout,
			RatingRPS: cfg.RatingRPS,
			Initial:   st,
		},
		ExportDir: exportDir,
		Version:   Version,
		Logger:    logger,
	})
	logger.Info("session end", "err", err)
	return err
}
