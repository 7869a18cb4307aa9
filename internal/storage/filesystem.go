package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
)

const fileScheme = "file"

// FileSystemStore keeps objects as files under a root directory, one file
// per key:
//
//	<root>/
//	  assets/<asset-id>/<filename>
//	  thumbnails/<scan-id>.jpg
//
// Signed URLs are file:// URLs carrying an expiry.
type FileSystemStore struct {
	root string
	now  func() time.Time
}

// NewFileSystemStore creates a store rooted at root, creating it if needed.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving store root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &FileSystemStore{root: abs, now: time.Now}, nil
}

// Put writes size bytes from r to the file for key.
func (s *FileSystemStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	dest, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	return writeFile(dest, r, size)
}

// SignedURL returns a file:// URL for key that expires after ttl.
func (s *FileSystemStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	p, err := s.pathFor(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("object not accessible: %w", err)
	}
	return signURL(fileScheme, filepath.ToSlash(p), s.now().Add(ttl)), nil
}

// Fetch opens the file behind a URL issued by SignedURL.
func (s *FileSystemStore) Fetch(ctx context.Context, signedURL string) (io.ReadCloser, error) {
	p, err := verifyURL(signedURL, fileScheme, s.now())
	if err != nil {
		return nil, err
	}
	p = filepath.FromSlash(p)
	if !s.contains(p) {
		return nil, fmt.Errorf("url points outside the store")
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object not found: %s", p)
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

// ValidateSetup verifies that the root directory is accessible.
func (s *FileSystemStore) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("store root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store root is not a directory: %s", s.root)
	}
	return nil
}

func (s *FileSystemStore) pathFor(key string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if !s.contains(p) || p == s.root {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return p, nil
}

func (s *FileSystemStore) contains(p string) bool {
	rel, err := filepath.Rel(s.root, filepath.Clean(p))
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// writeFile writes r to destPath through a temp file and rename so readers
// never see a partial object.
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemStore implements shield.ObjectStore interface
var _ shield.ObjectStore = (*FileSystemStore)(nil)
