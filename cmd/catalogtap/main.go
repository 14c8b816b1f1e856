package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rendis/catalogtap/internal/config"
	"github.com/rendis/catalogtap/internal/engine/catalog"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	cfgFile string
	apiURL  string
	token   string
	verbose bool

	rootCmd = &cobra.Command{
		Use:   "catalogtap",
		Short: "Browse a local producers catalog, nearest first",
		Long: `catalogtap lists marketplace products ranked by how close the producer is
to the consumer's saved location: same commune first, then same region,
then everything else, nearest first where coordinates are known.

Without a subcommand the interactive TUI starts.`,
		Example: `  catalogtap                                  Launch the TUI
  catalogtap browse --region valparaiso       Print the first ranked page
  catalogtap export --format geojson -o p.geojson --commune quilpue
  catalogtap serve --seed                     Run a local fixture API`,
		SilenceUsage: true,
		RunE:         runTUI,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/catalogtap/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "base URL of the marketplace API (overrides api_url)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token (overrides token)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(tuiCmd, browseCmd, exportCmd, regionsCmd, serveCmd, versionCmd)
}

func main() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}

func versionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// loadConfig resolves the configuration with the persistent flags applied
// on top and validates it.
func loadConfig() (*config.Config, error) {
	overrides := map[string]any{}
	if apiURL != "" {
		overrides["api_url"] = apiURL
	}
	if token != "" {
		overrides["token"] = token
	}
	cfg, err := config.Load(config.LoadOptions{ConfigFile: cfgFile, Overrides: overrides})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger. The TUI owns the terminal, so it
// logs to a session file; headless commands log to w.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	if verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           level,
	})
	return logger.With("session", uuid.NewString())
}

// openSessionLog creates catalogtap_<timestamp>.log under dir.
func openSessionLog(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	name := fmt.Sprintf("catalogtap_%s.log", time.Now().Format("20060102_150405"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}
	return f, nil
}

func newClient(cfg *config.Config, logger *log.Logger) (*catalog.Client, error) {
	return catalog.NewClient(catalog.Options{
		BaseURL:    cfg.APIURL,
		Token:      cfg.Token,
		Timeout:    cfg.RequestTimeout,
		ProxyURL:   cfg.ProxyURL,
		BrowserTLS: cfg.BrowserTLS,
		UserAgent:  "catalogtap/" + Version,
		Logger:     logger,
	})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println("catalogtap " + versionString())
	},
}
