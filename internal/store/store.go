package store

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/amaumene/pondtv/internal/metrics"
	"github.com/amaumene/pondtv/internal/models"
)

// CorruptionError reports a catalog file that exists but cannot be parsed.
// The caller decides how to recover; the store never drops the file.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("catalog file %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// Store persists the catalog document atomically. Saves write a sibling
// temp file, fsync it, and rename onto the canonical path, so a crash at
// any point leaves either the old document or the new one, never a mixture.
type Store struct {
	path string
	mu   sync.Mutex
}

// New creates a store for the catalog file at path
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the canonical catalog path
func (s *Store) Path() string {
	return s.path
}

// BackupPath returns the disaster-recovery snapshot path
func (s *Store) BackupPath() string {
	return s.path + ".backup"
}

// Load reads the catalog from disk. A missing file yields an empty,
// well-formed catalog; an unparsable file yields a *CorruptionError.
func (s *Store) Load() (*models.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(s.path)
}

// LoadBackup reads the backup snapshot. It is used only by corruption
// recovery, never in the normal load path.
func (s *Store) LoadBackup() (*models.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(s.BackupPath())
}

func (s *Store) read(path string) (*models.Catalog, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return models.NewCatalog(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	catalog := models.NewCatalog()
	if err := yaml.Unmarshal(data, catalog); err != nil {
		return nil, &CorruptionError{Path: path, Err: err}
	}

	catalog.Normalize()
	return catalog, nil
}

// Save atomically persists the catalog to the canonical path
func (s *Store) Save(catalog *models.Catalog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(s.path, catalog)
}

// Backup atomically persists the catalog to the backup path
func (s *Store) Backup(catalog *models.Catalog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(s.BackupPath(), catalog)
}

func (s *Store) write(path string, catalog *models.Catalog) error {
	if err := s.writeOnce(path, catalog); err != nil {
		metrics.StoreSaveFailures.Inc()
		return err
	}
	metrics.StoreSaves.Inc()
	return nil
}

func (s *Store) writeOnce(path string, catalog *models.Catalog) error {
	catalog.Normalize()

	data, err := yaml.Marshal(catalog)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp catalog file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp catalog file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp catalog file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp catalog file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp catalog file: %w", err)
	}

	return nil
}
