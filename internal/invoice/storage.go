package invoice

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage defines the interface for source document storage
type Storage interface {
	// Save writes a file and returns the name to retrieve it by
	Save(filename string, data []byte) (string, error)

	// Get retrieves a file by name
	Get(name string) ([]byte, error)

	// Delete removes a file
	Delete(name string) error
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage rooted at basePath
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// path confines name to the storage directory
func (l *LocalStorage) path(name string) (string, error) {
	base := filepath.Base(filepath.Clean(name))
	if base == "." || base == string(filepath.Separator) || base != name {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(l.basePath, base), nil
}

// Save writes a file to local storage
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	path, err := l.path(filename)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}

// Get reads a file from local storage
func (l *LocalStorage) Get(name string) ([]byte, error) {
	path, err := l.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(name string) error {
	path, err := l.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
