package lock

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireRecordsOwnPID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mediamill.lock")
	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = l.Release() })

	pid, err := ReadOwnerPID(path)
	if err != nil {
		t.Fatalf("ReadOwnerPID: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("lock file pid = %d, want %d", pid, os.Getpid())
	}
}

func TestAcquireFailsWhileHeld(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mediamill.lock")
	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = l.Release() })

	if _, err := Acquire(path); err == nil {
		t.Fatal("second Acquire succeeded, want error while lock is held")
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mediamill.lock")
	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	l2, err := Acquire(path)
	if err != nil {
		t.Fatalf("re-Acquire after release: %v", err)
	}
	_ = l2.Release()
}

func TestPathFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		statePath string
		want      string
	}{
		{"/var/lib/mediamill/jobs.db", "/var/lib/mediamill/jobs.pid"},
		{"./data/mediamill.db", "data/mediamill.pid"},
		{"/srv/state", "/srv/state.pid"},
	}
	for _, tt := range tests {
		if got := PathFor(tt.statePath); got != tt.want {
			t.Errorf("PathFor(%q) = %q, want %q", tt.statePath, got, tt.want)
		}
	}
}

func TestAcquireEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := Acquire(""); err == nil {
		t.Fatal("Acquire with empty path succeeded, want error")
	}
}
