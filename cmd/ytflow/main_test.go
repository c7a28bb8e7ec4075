package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"
)

func newTestContext(t *testing.T, args map[string]string) *cli.Context {
	t.Helper()

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("config", "", "")
	set.String("addr", "", "")

	for k, v := range args {
		if err := set.Set(k, v); err != nil {
			t.Fatal(err)
		}
	}

	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestServerAddr(t *testing.T) {
	dir := t.TempDir()

	wildcard := filepath.Join(dir, "wildcard.ini")
	if err := os.WriteFile(wildcard, []byte("[server]\nhost = 0.0.0.0\nport = 9100\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		args     map[string]string
		expected string
	}{
		{"explicit", map[string]string{"addr": "10.0.0.5:8000"}, "10.0.0.5:8000"},
		{"defaults", map[string]string{"config": filepath.Join(dir, "missing.ini")}, "127.0.0.1:8000"},
		{"wildcard host", map[string]string{"config": wildcard}, "127.0.0.1:9100"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			addr, err := serverAddr(newTestContext(t, test.args))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if addr != test.expected {
				t.Errorf("Expected %s, got %s", test.expected, addr)
			}
		})
	}
}
