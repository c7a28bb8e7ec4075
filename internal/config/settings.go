package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ytget/ytflow/internal/platform"
)

// SettingsFileName is the name of the persisted preferences file
const SettingsFileName = "settings.yaml"

// Preferences are the values remembered between runs
type Preferences struct {
	DownloadDir string `yaml:"download_directory,omitempty"`
	MaxParallel int    `yaml:"max_parallel_downloads,omitempty"`
}

// Settings manages persisted user preferences
type Settings struct {
	mu    sync.Mutex
	path  string
	prefs Preferences
}

// NewSettings loads preferences from path. A missing file yields empty preferences.
func NewSettings(path string) (*Settings, error) {
	s := &Settings{path: path}

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &s.prefs); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return s, nil
}

// DefaultSettingsPath returns the default location of the preferences file
func DefaultSettingsPath() string {
	return filepath.Join(ConfigDir(), SettingsFileName)
}

// GetDownloadDirectory returns the saved download directory or fallback
func (s *Settings) GetDownloadDirectory(fallback string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prefs.DownloadDir != "" {
		return s.prefs.DownloadDir
	}
	if fallback != "" {
		return fallback
	}
	return DefaultDownloadDir()
}

// SetDownloadDirectory stores an absolute download directory and persists it
func (s *Settings) SetDownloadDirectory(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if err := platform.CreateDirectoryIfNotExists(abs); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	s.mu.Lock()
	s.prefs.DownloadDir = abs
	s.mu.Unlock()

	return abs, s.Save()
}

// GetMaxParallelDownloads returns the saved concurrency limit or fallback
func (s *Settings) GetMaxParallelDownloads(fallback int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prefs.MaxParallel <= 0 {
		return ClampParallel(fallback)
	}
	return ClampParallel(s.prefs.MaxParallel)
}

// SetMaxParallelDownloads stores a clamped concurrency limit and persists it
func (s *Settings) SetMaxParallelDownloads(count int) error {
	s.mu.Lock()
	s.prefs.MaxParallel = ClampParallel(count)
	s.mu.Unlock()

	return s.Save()
}

// Save writes the preferences to disk
func (s *Settings) Save() error {
	s.mu.Lock()
	b, err := yaml.Marshal(&s.prefs)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := platform.CreateDirectoryIfNotExists(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, platform.DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return os.Rename(tmp, s.path)
}
