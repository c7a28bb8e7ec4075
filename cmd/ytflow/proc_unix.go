//go:build !windows

package main

import (
	"os"
	"os/exec"
	"syscall"
)

func startDetached(exe string, args, env []string) (*os.Process, error) {
	cmd := exec.Command(exe, args...)
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd.Process, nil
}

func terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}
