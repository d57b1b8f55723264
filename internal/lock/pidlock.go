package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Lock is a single-instance guard built on a PID file and flock(2). The lock
// is held for as long as the file descriptor stays open, so a crashed process
// releases it automatically.
type Lock struct {
	path string
	f    *os.File
}

// Acquire takes an exclusive non-blocking lock at path and records the current
// PID in the file. It fails immediately if another process holds the lock.
func Acquire(path string) (*Lock, error) {
	if path == "" {
		return nil, fmt.Errorf("lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if owner, perr := ReadOwnerPID(path); perr == nil && owner > 0 {
			return nil, fmt.Errorf("lock held by pid %d: %w", owner, err)
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	abort := func(stage string, cause error) (*Lock, error) {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", stage, cause)
	}

	if err := f.Truncate(0); err != nil {
		return abort("truncate lock file", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return abort("seek lock file", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return abort("write pid", err)
	}
	if err := f.Sync(); err != nil {
		return abort("sync lock file", err)
	}

	return &Lock{path: path, f: f}, nil
}

// PathFor derives the canonical lock file location from the state database
// path: the database name with a .pid extension, in the same directory.
// Every consumer of the lock must go through this so writer and readers
// agree on the location.
func PathFor(statePath string) string {
	dir := filepath.Dir(statePath)
	base := filepath.Base(statePath)
	ext := filepath.Ext(base)
	return filepath.Join(dir, base[:len(base)-len(ext)]+".pid")
}

// ReadOwnerPID reports the PID recorded in the lock file at path. It does not
// verify that the process is still alive.
func ReadOwnerPID(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("parse lock file %s: %w", path, err)
	}
	return pid, nil
}

func (l *Lock) Path() string { return l.path }

// Release unlocks and closes the PID file. The file itself is left in place.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
