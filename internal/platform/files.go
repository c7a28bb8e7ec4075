package platform

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Operating system constants
const (
	OSDarwin  = "darwin"
	OSWindows = "windows"
	OSLinux   = "linux"
)

// File permissions
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// Command constants
const (
	OpenCommand     = "open"
	ExplorerCommand = "explorer"
	XDGOpenCommand  = "xdg-open"
)

// Command parameters
const (
	MacOSSelectFlag    = "-R"
	WindowsSelectParam = "/select,"
)

// File manager names
var (
	LinuxFileManagers = []string{"nautilus", "dolphin", "thunar", "nemo", "pcmanfm"}
)

// Filename limits
const (
	MaxFileNameLength   = 200
	FallbackFileName    = "download"
	InvalidFileNameRune = '_'
	invalidFileNameSet  = `<>:"/\|?*`
)

// File extensions to skip
var (
	SkippedExtensions = []string{".part", ".ytdl", ".temp", ".tmp"}
)

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// GetHomeDownloadsDir returns the standard Downloads directory for the user
func GetHomeDownloadsDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, "Downloads"), nil
}

// SanitizeFilename makes name safe on every target filesystem. Reserved
// characters and control characters become '_', leading and trailing dots
// and spaces are trimmed and the result is cut to MaxFileNameLength bytes.
func SanitizeFilename(name string) string {
	name = norm.NFC.String(name)

	var b strings.Builder
	b.Grow(len(name))

	for _, r := range name {
		switch {
		case r == utf8.RuneError:
			continue
		case strings.ContainsRune(invalidFileNameSet, r), unicode.IsControl(r):
			b.WriteRune(InvalidFileNameRune)
		default:
			b.WriteRune(r)
		}
	}

	result := strings.Trim(b.String(), ". ")
	if len(result) > MaxFileNameLength {
		cut := MaxFileNameLength
		for cut > 0 && !utf8.RuneStart(result[cut]) {
			cut--
		}
		result = strings.TrimRight(result[:cut], ". ")
	}

	if result == "" {
		return FallbackFileName
	}
	return result
}

// SanitizeFileNameWithExt sanitizes the base name of file and keeps its extension
func SanitizeFileNameWithExt(file string) string {
	ext := filepath.Ext(file)
	base := strings.TrimSuffix(file, ext)

	if ext != "" {
		ext = "." + SanitizeFilename(strings.TrimPrefix(ext, "."))
	}

	base = SanitizeFilename(base)
	if over := len(base) + len(ext) - MaxFileNameLength; over > 0 && over < len(base) {
		base = SanitizeFilename(base[:len(base)-over])
	}

	return base + ext
}

// IsPartialFile reports whether the file is an unfinished download artifact
func IsPartialFile(name string) bool {
	for _, ext := range SkippedExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// ListMediaFiles returns regular files in dir that are not partial downloads
func ListMediaFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || IsPartialFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}

	return files, nil
}

// ReservePath creates an empty placeholder at path, or at path with a " (n)"
// suffix, and returns the name it claimed. The claim is exclusive, so
// concurrent callers never receive the same name.
func ReservePath(path string) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)

	candidate := path
	for i := 1; ; i++ {
		f, err := os.OpenFile(candidate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, DefaultFilePermissions)
		if err == nil {
			return candidate, f.Close()
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("failed to reserve %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
	}
}

// MoveFile moves src into dstDir under a sanitized unique name and returns
// the final path. It falls back to copying across filesystems.
func MoveFile(src, dstDir string) (string, error) {
	if err := CreateDirectoryIfNotExists(dstDir); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dstDir, err)
	}

	dst, err := ReservePath(filepath.Join(dstDir, SanitizeFileNameWithExt(filepath.Base(src))))
	if err != nil {
		return "", err
	}

	// replaces the placeholder
	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}

	if err := copyFile(src, dst); err != nil {
		os.Remove(dst)
		return "", err
	}

	return dst, os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_TRUNC|os.O_WRONLY, DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}

	return out.Close()
}

// OpenFileInManager opens the file in the system file manager and highlights it
func OpenFileInManager(filePath string) error {
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("file does not exist: %w", err)
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	switch runtime.GOOS {
	case OSDarwin:
		return exec.Command(OpenCommand, MacOSSelectFlag, absPath).Run()
	case OSWindows:
		return exec.Command(ExplorerCommand, WindowsSelectParam, absPath).Run()
	case OSLinux:
		return openFileInManagerLinux(absPath)
	default:
		return fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// openFileInManagerLinux opens directory containing file on Linux
// Note: File selection is not standardized on Linux, so we open the parent directory
func openFileInManagerLinux(filePath string) error {
	dir := filepath.Dir(filePath)

	if err := exec.Command(XDGOpenCommand, dir).Run(); err == nil {
		return nil
	}

	for _, fm := range LinuxFileManagers {
		if _, err := exec.LookPath(fm); err == nil {
			return exec.Command(fm, dir).Run()
		}
	}

	return fmt.Errorf("no suitable file manager found")
}
