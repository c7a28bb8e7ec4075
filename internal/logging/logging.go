package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation settings
const (
	MaxSizeMB  = 10
	MaxBackups = 3
	MaxAgeDays = 28
)

// Options configures the logger
type Options struct {
	Level    string
	File     string
	Console  bool // also write to stdout
	Debug    bool
	Colorize bool
}

// Setup configures the standard logrus logger and returns a closer for the log file
func Setup(opts Options) (io.Closer, error) {
	logger := log.StandardLogger()

	level, err := log.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}
	if opts.Debug {
		level = log.DebugLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
		DisableColors: !opts.Colorize,
	})

	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		fileLogger := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    MaxSizeMB,
			MaxBackups: MaxBackups,
			MaxAge:     MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, fileLogger)
		closer = fileLogger
	}

	if opts.Console || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	logger.SetOutput(io.MultiWriter(writers...))

	return closer, nil
}

// WithComponent returns an entry tagged with the component name
func WithComponent(component string) *log.Entry {
	return log.WithField("component", component)
}

// WithTaskID returns an entry tagged with the task id
func WithTaskID(entry *log.Entry, taskID string) *log.Entry {
	return entry.WithField("task-id", taskID)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
