// Package pidfile enforces a single daemon instance per state
// directory. Exactly one daemon may own the database at a time, so
// startup takes the pid lock before anything else.
package pidfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile manages the daemon's process-id lock file
type PIDFile struct {
	path string
}

// New creates a PID file manager for the given path
func New(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path reports where the lock file lives
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire takes the pid lock. A stale file left by a dead process is
// removed and taken over; a live owner fails the acquire unless force
// is set, which evicts the recorded pid unconditionally.
func (p *PIDFile) Acquire(force bool) error {
	if _, err := os.Stat(p.path); err == nil {
		data, err := os.ReadFile(p.path)
		if err != nil {
			return fmt.Errorf("failed to read existing PID file: %w", err)
		}

		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		switch {
		case err != nil:
			// Garbage in the file; treat as stale
			_ = os.Remove(p.path)
		case isProcessRunning(pid) && !force:
			return fmt.Errorf("daemon is already running (PID %d)", pid)
		default:
			_ = os.Remove(p.path)
		}
	}

	pidData := fmt.Sprintf("%d\n", os.Getpid())
	if err := os.WriteFile(p.path, []byte(pidData), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Release removes the PID file. Missing file is not an error.
func (p *PIDFile) Release() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// isProcessRunning probes a pid with signal 0
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// FindProcess always succeeds on unix; signal 0 does the real check
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if err == syscall.EPERM {
		// Alive but owned by someone else
		return true
	}
	return false
}
