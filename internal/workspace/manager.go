// Package workspace manages the shared input/output directories that workers
// read from and write to, and persists API uploads into them.
package workspace

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Manager owns the storage directories named in configuration. It never
// inspects or transforms file contents beyond checksumming on ingest.
type Manager struct {
	inputDir  string
	outputDir string
}

// NewManager creates a Manager rooted at the given directories.
func NewManager(inputDir, outputDir string) (*Manager, error) {
	in := strings.TrimSpace(inputDir)
	out := strings.TrimSpace(outputDir)
	if in == "" {
		return nil, fmt.Errorf("input directory is empty")
	}
	if out == "" {
		return nil, fmt.Errorf("output directory is empty")
	}

	return &Manager{
		inputDir:  filepath.Clean(in),
		outputDir: filepath.Clean(out),
	}, nil
}

func (m *Manager) InputDir() string  { return m.inputDir }
func (m *Manager) OutputDir() string { return m.outputDir }

// EnsureDirs creates the storage directories if missing.
func (m *Manager) EnsureDirs() error {
	if err := os.MkdirAll(m.inputDir, 0o755); err != nil {
		return fmt.Errorf("create input directory: %w", err)
	}
	if err := os.MkdirAll(m.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}

// StoredFile describes one persisted upload.
type StoredFile struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
}

// SaveUpload streams r into the input directory under a fresh uuid-based
// name, preserving the original extension. The content is checksummed
// (blake3) while it is written.
func (m *Manager) SaveUpload(originalName string, r io.Reader) (StoredFile, error) {
	if strings.TrimSpace(originalName) == "" {
		return StoredFile{}, fmt.Errorf("filename is empty")
	}

	fileID := uuid.NewString()
	// Only the extension of the client-supplied name survives; the base name
	// is replaced entirely, so traversal characters cannot reach the path.
	ext := filepath.Ext(filepath.Base(originalName))
	storedName := fileID + ext
	path := filepath.Join(m.inputDir, storedName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return StoredFile{}, fmt.Errorf("create upload file: %w", err)
	}

	hasher := blake3.New()
	if _, err := io.Copy(io.MultiWriter(f, hasher), r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return StoredFile{}, fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return StoredFile{}, fmt.Errorf("close upload file: %w", err)
	}

	return StoredFile{
		FileID:   fileID,
		Filename: storedName,
		Path:     path,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// OutputPathFor derives the conventional output location for a stored input.
func (m *Manager) OutputPathFor(fileID, ext string) string {
	return filepath.Join(m.outputDir, fileID+"_output"+ext)
}
