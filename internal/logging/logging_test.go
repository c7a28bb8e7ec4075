package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestSetup_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ytflow.log")

	closer, err := Setup(Options{Level: "info", File: path})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer log.SetOutput(os.Stderr)

	WithTaskID(WithComponent("test"), "abc").Info("hello from test")

	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Log file not created: %v", err)
	}
	for _, want := range []string{"hello from test", "component=test", "task-id=abc"} {
		if !strings.Contains(string(b), want) {
			t.Errorf("Expected log to contain %q, got %s", want, b)
		}
	}
}

func TestSetup_Levels(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)
	defer log.SetOutput(os.Stderr)

	if _, err := Setup(Options{Level: "loud"}); err == nil {
		t.Error("Expected error for invalid level")
	}

	if _, err := Setup(Options{Level: "warn", Debug: true}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Errorf("Expected debug level, got %s", log.GetLevel())
	}
}
