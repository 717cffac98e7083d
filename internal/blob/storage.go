// Package blob stores note attachment files on local disk and serves them
// by URL path.
package blob

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// Saved describes a stored attachment file.
type Saved struct {
	// StoredName is the on-disk filename, {attachmentID}{ext}.
	StoredName string
	// URL is the public path the file is served under.
	URL string
	// Size in bytes.
	Size int64
	// MimeType is sniffed from the content.
	MimeType string
}

// Store manages attachment files under a single directory.
// Thread-safe for concurrent operations.
type Store struct {
	basePath string
	baseURL  string
	mu       sync.RWMutex
}

// NewStore creates a Store rooted at basePath, serving files under baseURL
// (e.g. "/attachments"). The directory is created if missing.
func NewStore(basePath, baseURL string) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create attachments directory: %w", err)
	}

	return &Store{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Save stores the file data under the attachment ID, keeping the original
// filename's extension. Returns where it landed.
func (s *Store) Save(attachmentID, originalFilename string, data []byte) (Saved, error) {
	if attachmentID == "" {
		return Saved{}, fmt.Errorf("attachment ID cannot be empty")
	}
	if len(data) == 0 {
		return Saved{}, fmt.Errorf("file data cannot be empty")
	}

	storedName := attachmentID + safeExt(originalFilename)

	s.mu.Lock()
	defer s.mu.Unlock()

	fullPath := filepath.Join(s.basePath, storedName)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return Saved{}, fmt.Errorf("failed to write attachment file: %w", err)
	}

	return Saved{
		StoredName: storedName,
		URL:        s.baseURL + "/" + storedName,
		Size:       int64(len(data)),
		MimeType:   http.DetectContentType(data),
	}, nil
}

// Get reads a stored attachment back.
func (s *Store) Get(storedName string) ([]byte, error) {
	if storedName == "" {
		return nil, fmt.Errorf("stored name cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(storedName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("attachment not found: %s: %w", storedName, err)
		}
		return nil, fmt.Errorf("failed to read attachment file: %w", err)
	}
	return data, nil
}

// Exists checks whether a stored attachment is on disk.
func (s *Store) Exists(storedName string) bool {
	if storedName == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.Path(storedName))
	return err == nil
}

// Delete removes a stored attachment. A file that's already gone is not an
// error.
func (s *Store) Delete(storedName string) error {
	if storedName == "" {
		return fmt.Errorf("stored name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(storedName)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete attachment file: %w", err)
	}
	return nil
}

// Path returns the full filesystem path for a stored attachment.
func (s *Store) Path(storedName string) string {
	// Flatten anything path-like down to a bare name.
	return filepath.Join(s.basePath, filepath.Base(storedName))
}

// BasePath returns the directory attachments are stored in.
func (s *Store) BasePath() string {
	return s.basePath
}

// StoredNameFromURL extracts the on-disk filename from an attachment URL.
func StoredNameFromURL(url string) string {
	return path.Base(url)
}

// safeExt returns a lowercased, sanitized extension from the original
// filename, or "" when there isn't a usable one.
func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
