package platform

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// External tool names
const (
	FFmpegCommand  = "ffmpeg"
	FFprobeCommand = "ffprobe"
	YTDLPCommand   = "yt-dlp"
)

// Version probing
const (
	VersionProbeTimeout = 10 * time.Second
	FFmpegVersionFlag   = "-version"
	YTDLPVersionFlag    = "--version"
)

// Tool describes a discovered external executable
type Tool struct {
	Name    string
	Path    string
	Version string
	Err     error
}

// Found reports whether the tool was located
func (t *Tool) Found() bool {
	return t.Err == nil && t.Path != ""
}

// FindTool resolves an executable. An explicit override wins, then PATH,
// then the directory of the running binary.
func FindTool(name, override string) (string, error) {
	if override != "" {
		if isExecutableFile(override) {
			return override, nil
		}
		return "", fmt.Errorf("%s not found at %s", name, override)
	}

	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}

	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), executableName(name))
		if isExecutableFile(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%s not found in PATH or next to the executable", name)
}

// ProbeVersion runs the tool with the version flag and returns the first output line
func ProbeVersion(ctx context.Context, path, flag string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, VersionProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, flag).Output()
	if err != nil {
		return "", fmt.Errorf("failed to run %s %s: %w", path, flag, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}

	return "", fmt.Errorf("empty version output from %s", path)
}

// DiscoverTool locates a tool and probes its version
func DiscoverTool(ctx context.Context, name, override string) *Tool {
	t := &Tool{Name: name}

	t.Path, t.Err = FindTool(name, override)
	if t.Err != nil {
		return t
	}

	flag := FFmpegVersionFlag
	if name == YTDLPCommand {
		flag = YTDLPVersionFlag
	}

	if v, err := ProbeVersion(ctx, t.Path, flag); err == nil {
		t.Version = v
	} else {
		t.Err = err
	}

	return t
}

func executableName(name string) string {
	if runtime.GOOS == OSWindows && !strings.HasSuffix(name, ".exe") {
		return name + ".exe"
	}
	return name
}

func isExecutableFile(p string) bool {
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == OSWindows {
		return true
	}
	return info.Mode()&0111 != 0
}
