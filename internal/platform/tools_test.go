package platform

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestFindTool_Override(t *testing.T) {
	if runtime.GOOS == OSWindows {
		t.Skip("exec bits are not used on windows")
	}

	dir := t.TempDir()
	tool := filepath.Join(dir, "fake-ffmpeg")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\necho 'ffmpeg version 7.1'\n"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindTool(FFmpegCommand, tool)
	if err != nil {
		t.Fatalf("FindTool failed: %v", err)
	}
	if got != tool {
		t.Errorf("Expected %s, got %s", tool, got)
	}

	version, err := ProbeVersion(context.Background(), tool, FFmpegVersionFlag)
	if err != nil {
		t.Fatalf("ProbeVersion failed: %v", err)
	}
	if version != "ffmpeg version 7.1" {
		t.Errorf("Unexpected version %q", version)
	}
}

func TestFindTool_MissingOverride(t *testing.T) {
	if _, err := FindTool(FFmpegCommand, filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Expected error for missing override")
	}
}

func TestFindTool_NotExecutable(t *testing.T) {
	if runtime.GOOS == OSWindows {
		t.Skip("exec bits are not used on windows")
	}

	p := filepath.Join(t.TempDir(), "plain")
	os.WriteFile(p, []byte("x"), 0644)

	if _, err := FindTool("plain", p); err == nil {
		t.Error("Expected error for non-executable file")
	}
}

func TestDiscoverTool_Missing(t *testing.T) {
	tool := DiscoverTool(context.Background(), "ytflow-definitely-missing-tool", "")
	if tool.Found() {
		t.Error("Expected tool to be missing")
	}
}
