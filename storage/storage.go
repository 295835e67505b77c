package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config contains storage configuration
type Config struct {
	BasePath string // Base directory for all stored files
}

// DefaultConfig returns default storage configuration
func DefaultConfig() Config {
	return Config{
		BasePath: "./storage",
	}
}

// Storage archives crawled page text on the filesystem, grouped by
// crawl run
type Storage struct {
	config Config
}

// New creates a new Storage instance
func New(config Config) (*Storage, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory: %w", err)
	}

	return &Storage{
		config: config,
	}, nil
}

// SaveSnapshot saves the text of one crawled page under
// snapshots/<runID>/<name>.txt and returns the relative file path from
// the base storage directory. A name collision within the run gets a
// numeric suffix.
func (s *Storage) SaveSnapshot(runID, name, text string) (string, error) {
	dirPath := filepath.Join(s.config.BasePath, "snapshots", runID)

	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	filename := name + ".txt"
	filePath := filepath.Join(dirPath, filename)

	counter := 1
	for fileExists(filePath) {
		filename = fmt.Sprintf("%s-%d.txt", name, counter)
		filePath = filepath.Join(dirPath, filename)
		counter++
	}

	if err := os.WriteFile(filePath, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot file: %w", err)
	}

	relPath, err := filepath.Rel(s.config.BasePath, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to get relative path: %w", err)
	}

	return relPath, nil
}

// ReadSnapshot reads a previously saved snapshot
func (s *Storage) ReadSnapshot(relPath string) (string, error) {
	fullPath := filepath.Join(s.config.BasePath, relPath)

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to read snapshot file: %w", err)
	}

	return string(data), nil
}

// DeleteSnapshot deletes a snapshot from the filesystem
func (s *Storage) DeleteSnapshot(relPath string) error {
	fullPath := filepath.Join(s.config.BasePath, relPath)

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot file: %w", err)
	}

	return nil
}

// GetFullPath returns the full filesystem path for a relative path
func (s *Storage) GetFullPath(relPath string) string {
	return filepath.Join(s.config.BasePath, relPath)
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
