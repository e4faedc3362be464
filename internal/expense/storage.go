package expense

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Storage defines the interface for receipt photo storage
type Storage interface {
	// Save saves a file and returns the path to retrieve it by
	Save(filename string, data []byte) (string, error)

	// Get retrieves a file by path
	Get(path string) ([]byte, error)

	// Delete removes a file
	Delete(path string) error

	// List returns every stored file
	List() ([]StoredFile, error)
}

// StoredFile describes a file held by Storage
type StoredFile struct {
	Path    string
	ModTime time.Time
}

// LocalStorage implements the Storage interface on the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates the base directory if needed
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// resolve joins path under the base directory, refusing anything that escapes it
func (l *LocalStorage) resolve(path string) (string, error) {
	if path == "" || filepath.IsAbs(path) || strings.Contains(filepath.ToSlash(path), "..") {
		return "", fmt.Errorf("invalid storage path: %q", path)
	}
	return filepath.Join(l.basePath, path), nil
}

// Save writes a file to local storage. Readers never see a partial file:
// the data lands in a temporary file that is renamed into place.
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	fullPath, err := l.resolve(filename)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(l.basePath, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", fmt.Errorf("setting file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", fmt.Errorf("moving file into place: %w", err)
	}
	return filename, nil
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(path string) ([]byte, error) {
	fullPath, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(path string) error {
	fullPath, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// List returns the files in the base directory, skipping in-flight uploads
func (l *LocalStorage) List() ([]StoredFile, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("reading storage directory: %w", err)
	}

	files := make([]StoredFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed since ReadDir
			continue
		}
		files = append(files, StoredFile{Path: entry.Name(), ModTime: info.ModTime()})
	}
	return files, nil
}
