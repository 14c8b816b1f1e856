// Package config loads catalogtap settings from defaults, an optional YAML
// file, a .env.local file and CATALOGTAP_* environment variables, in
// increasing order of precedence. Explicit overrides (command-line flags)
// win over all of them.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rendis/catalogtap/internal/engine/filter"
)

const (
	AppName      = "catalogtap"
	EnvPrefix    = "CATALOGTAP"
	DotEnvFile   = ".env.local"
	ConfigName   = "config.yaml"
	maxRatingRPS = 100
)

// Config holds every tunable of the client and the fixture server.
type Config struct {
	APIURL         string        `mapstructure:"api_url"`
	Token          string        `mapstructure:"token"`
	PageSize       int           `mapstructure:"page_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RatingRPS      float64       `mapstructure:"rating_rps"`
	ProxyURL       string        `mapstructure:"proxy_url"`
	BrowserTLS     bool          `mapstructure:"browser_tls"`
	LogDir         string        `mapstructure:"log_dir"`
}

// Default returns the built-in settings. APIURL has no default.
func Default() Config {
	return Config{
		PageSize:       filter.DefaultPageSize,
		RequestTimeout: 8 * time.Second,
		RatingRPS:      8,
		LogDir:         defaultLogDir(),
	}
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// ConfigFile is an explicit YAML file; it must exist. When empty the
	// default file under Dir() is read if present.
	ConfigFile string
	// EnvFile is a dotenv file loaded into the environment if present.
	// Empty means DotEnvFile in the working directory.
	EnvFile string
	// Overrides are applied last, keyed like the YAML file.
	Overrides map[string]any
}

// Load resolves the configuration. It does not validate it.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DotEnvFile
	}
	if fileExists(envFile) {
		// godotenv.Load never overrides variables already set.
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	defaults := Default()
	v.SetDefault("api_url", defaults.APIURL)
	v.SetDefault("token", defaults.Token)
	v.SetDefault("page_size", defaults.PageSize)
	v.SetDefault("request_timeout", defaults.RequestTimeout)
	v.SetDefault("rating_rps", defaults.RatingRPS)
	v.SetDefault("proxy_url", defaults.ProxyURL)
	v.SetDefault("browser_tls", defaults.BrowserTLS)
	v.SetDefault("log_dir", defaults.LogDir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	path := opts.ConfigFile
	if path != "" && !fileExists(path) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	if path == "" {
		if dir, err := Dir(); err == nil && fileExists(filepath.Join(dir, ConfigName)) {
			path = filepath.Join(dir, ConfigName)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	for k, val := range opts.Overrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	return &cfg, nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.APIURL == "" {
		errs = append(errs, fmt.Errorf("api_url is required (set %s_API_URL or api_url in %s)", EnvPrefix, ConfigName))
	} else if u, err := url.Parse(c.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_url %q must be an absolute http(s) URL", c.APIURL))
	}
	if c.PageSize < 1 || c.PageSize > filter.MaxPageSize {
		errs = append(errs, fmt.Errorf("page_size %d out of range 1..%d", c.PageSize, filter.MaxPageSize))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.RatingRPS <= 0 || c.RatingRPS > maxRatingRPS {
		errs = append(errs, fmt.Errorf("rating_rps %g out of range (0, %d]", c.RatingRPS, maxRatingRPS))
	}
	if c.ProxyURL != "" {
		if u, err := url.Parse(c.ProxyURL); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("proxy_url %q is not a valid URL", c.ProxyURL))
		}
	}
	return errors.Join(errs...)
}

// Dir returns the per-user configuration directory of catalogtap.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

func defaultLogDir() string {
	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, AppName)
	}
	return filepath.Join(os.TempDir(), AppName)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
