package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/gcfg.v1"

	"github.com/ytget/ytflow/internal/platform"
)

// Application identity
const (
	AppName        = "ytflow"
	ConfigFileName = "ytflow.ini"
	EnvFileName    = ".env"
	EnvPrefix      = "YTFLOW_"
)

// Server defaults
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8000
)

// Download defaults
const (
	DefaultMaxParallel  = 2
	MinParallel         = 1
	MaxParallelCeiling  = 10
	DefaultHistorySize  = 5
	DefaultRetries      = 1
	DefaultRetryDelay   = 2 * time.Second
	DefaultCancelGrace  = 10 * time.Second
	DefaultDownloadsDir = "ytflow"
)

// Dashboard defaults
const (
	DefaultRefreshInterval = 500 * time.Millisecond
	DefaultRecentTasks     = 8
)

// Log defaults
const (
	DefaultLogLevel    = "info"
	DefaultLogFileName = "ytflow.log"
	DefaultPIDFileName = "ytflow.pid"
)

// ServerParams configures the HTTP gateway
type ServerParams struct {
	Host    string `gcfg:"host"`
	Port    int    `gcfg:"port"`
	PIDFile string `gcfg:"pid-file"`
}

// DownloadParams configures the queue and the worker pool
type DownloadParams struct {
	Dir            string `gcfg:"dir"`
	MaxParallel    int    `gcfg:"max-parallel"`
	History        int    `gcfg:"history"`
	Retries        int    `gcfg:"retries"`
	RetryDelayStr  string `gcfg:"retry-delay"`
	CancelGraceStr string `gcfg:"cancel-grace"`

	RetryDelay  time.Duration `gcfg:"-"`
	CancelGrace time.Duration `gcfg:"-"`
}

// OriginParams lists the hosts accepted by the gateway
type OriginParams struct {
	Allow []string `gcfg:"allow"`
}

// ToolParams overrides external tool discovery
type ToolParams struct {
	FFmpeg     string `gcfg:"ffmpeg"`
	FFprobe    string `gcfg:"ffprobe"`
	YTDLP      string `gcfg:"ytdlp"`
	AutoUpdate bool   `gcfg:"auto-update"`
}

// LogParams configures logging
type LogParams struct {
	Level string `gcfg:"level"`
	File  string `gcfg:"file"`
}

// DashboardParams configures the terminal status view
type DashboardParams struct {
	IntervalStr string `gcfg:"interval"`
	Recent      int    `gcfg:"recent"`

	Interval time.Duration `gcfg:"-"`
}

// Config represents the ytflow configuration
type Config struct {
	Server    ServerParams
	Downloads DownloadParams
	Origins   OriginParams
	Tools     ToolParams
	Log       LogParams
	Dashboard DashboardParams
}

// NewConfig reads the configuration file p over the defaults. A missing
// file is not an error, the defaults are used as is.
func NewConfig(p string) (*Config, error) {
	cfg := Config{
		Server: ServerParams{
			Host:    DefaultHost,
			Port:    DefaultPort,
			PIDFile: filepath.Join(StateDir(), DefaultPIDFileName),
		},
		Downloads: DownloadParams{
			MaxParallel:    DefaultMaxParallel,
			History:        DefaultHistorySize,
			Retries:        DefaultRetries,
			RetryDelayStr:  DefaultRetryDelay.String(),
			CancelGraceStr: DefaultCancelGrace.String(),
		},
		Tools: ToolParams{
			AutoUpdate: true,
		},
		Log: LogParams{
			Level: DefaultLogLevel,
			File:  filepath.Join(StateDir(), DefaultLogFileName),
		},
		Dashboard: DashboardParams{
			IntervalStr: DefaultRefreshInterval.String(),
			Recent:      DefaultRecentTasks,
		},
	}

	if p != "" {
		err := gcfg.ReadFileInto(&cfg, p)
		switch {
		case err == nil:
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Addr returns the listen address of the gateway
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SetMaxParallel stores a clamped concurrency limit
func (c *Config) SetMaxParallel(n int) {
	c.Downloads.MaxParallel = ClampParallel(n)
}

func (c *Config) finalize() error {
	var err error

	if c.Downloads.RetryDelay, err = parseDuration("retry-delay", c.Downloads.RetryDelayStr, DefaultRetryDelay); err != nil {
		return err
	}
	if c.Downloads.CancelGrace, err = parseDuration("cancel-grace", c.Downloads.CancelGraceStr, DefaultCancelGrace); err != nil {
		return err
	}
	if c.Dashboard.Interval, err = parseDuration("interval", c.Dashboard.IntervalStr, DefaultRefreshInterval); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	c.Downloads.MaxParallel = ClampParallel(c.Downloads.MaxParallel)
	if c.Downloads.History < 1 {
		c.Downloads.History = DefaultHistorySize
	}
	if c.Downloads.Retries < 0 {
		c.Downloads.Retries = 0
	}
	if c.Dashboard.Recent < 1 {
		c.Dashboard.Recent = DefaultRecentTasks
	}
	if len(c.Origins.Allow) == 0 {
		c.Origins.Allow = append([]string(nil), platform.DefaultAllowedOrigins...)
	}

	return nil
}

// ClampParallel keeps a concurrency limit within [MinParallel, MaxParallelCeiling]
func ClampParallel(n int) int {
	if n < MinParallel {
		return MinParallel
	}
	if n > MaxParallelCeiling {
		return MaxParallelCeiling
	}
	return n
}

// DefaultDownloadDir returns ~/Downloads/ytflow
func DefaultDownloadDir() string {
	dir, err := platform.GetHomeDownloadsDir()
	if err != nil {
		return filepath.Join(os.TempDir(), DefaultDownloadsDir)
	}
	return filepath.Join(dir, DefaultDownloadsDir)
}

// ConfigDir returns the per-user configuration directory
func ConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(os.TempDir(), AppName)
}

// StateDir returns the per-user directory for logs and the PID file
func StateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(os.TempDir(), AppName)
}

// DefaultConfigPath returns the default location of the INI file
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}

// LoadEnv loads .env files from the working directory and the config
// directory into the process environment. Existing variables win.
func LoadEnv() error {
	for _, p := range []string{EnvFileName, filepath.Join(ConfigDir(), EnvFileName)} {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func parseDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s value %q: negative duration", name, value)
	}
	return d, nil
}
