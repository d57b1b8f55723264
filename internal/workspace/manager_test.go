package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	tmpDir := t.TempDir()
	m, err := NewManager(filepath.Join(tmpDir, "input"), filepath.Join(tmpDir, "output"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	return m
}

func TestNewManagerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewManager("", "/out"); err == nil {
		t.Fatal("expected error for empty input dir")
	}
	if _, err := NewManager("/in", "  "); err == nil {
		t.Fatal("expected error for empty output dir")
	}
}

func TestSaveUpload(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	stored, err := m.SaveUpload("movie.mp4", strings.NewReader("fake video bytes"))
	if err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}

	if stored.FileID == "" {
		t.Fatal("file id must be set")
	}
	if filepath.Ext(stored.Filename) != ".mp4" {
		t.Fatalf("extension not preserved: %q", stored.Filename)
	}
	if stored.Checksum == "" {
		t.Fatal("checksum must be set")
	}

	data, err := os.ReadFile(stored.Path)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "fake video bytes" {
		t.Fatalf("content mangled: %q", data)
	}
}

func TestSaveUploadChecksumIsStable(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	a, err := m.SaveUpload("a.bin", strings.NewReader("same content"))
	if err != nil {
		t.Fatalf("SaveUpload a: %v", err)
	}
	b, err := m.SaveUpload("b.bin", strings.NewReader("same content"))
	if err != nil {
		t.Fatalf("SaveUpload b: %v", err)
	}

	if a.Checksum != b.Checksum {
		t.Fatalf("identical content produced different checksums: %s vs %s", a.Checksum, b.Checksum)
	}
	if a.FileID == b.FileID {
		t.Fatal("file ids must be unique")
	}
}

func TestSaveUploadStripsDirectoryComponents(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	stored, err := m.SaveUpload("../../etc/passwd", strings.NewReader("nope"))
	if err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}
	if filepath.Dir(stored.Path) != m.InputDir() {
		t.Fatalf("upload escaped input dir: %s", stored.Path)
	}
}

func TestOutputPathFor(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	got := m.OutputPathFor("abc123", ".mp4")
	want := filepath.Join(m.OutputDir(), "abc123_output.mp4")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
