package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PIDFile records the process id of a running server
type PIDFile struct {
	Path string
}

// NewPIDFile returns a PID file handle for path
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write stores the current process id
func (p *PIDFile) Write() error {
	if err := CreateDirectoryIfNotExists(filepath.Dir(p.Path)); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}
	return os.WriteFile(p.Path, []byte(strconv.Itoa(os.Getpid())+"\n"), DefaultFilePermissions)
}

// Read returns the recorded process id
func (p *PIDFile) Read() (int, error) {
	b, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed pid file %s", p.Path)
	}

	return pid, nil
}

// Remove deletes the PID file if it still belongs to this process
func (p *PIDFile) Remove() error {
	pid, err := p.Read()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	return os.Remove(p.Path)
}
