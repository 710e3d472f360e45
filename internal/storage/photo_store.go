package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrNotImage   = errors.New("uploaded file is not an image")
	ErrPhotoSize  = errors.New("photo size out of range")
	ErrInvalidKey = errors.New("invalid object key")
)

// MaxPhotoBytes bounds a single uploaded photo
const MaxPhotoBytes = 10 << 20

// PhotoStore persists uploaded photos and exposes them at public URLs
type PhotoStore interface {
	Save(ctx context.Context, prefix string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// LocalStore keeps photos on disk under a base directory
type LocalStore struct {
	dir       string
	publicURL string
}

// NewLocalStore creates the base directory if needed
func NewLocalStore(dir, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create photo directory: %w", err)
	}
	return &LocalStore{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Dir returns the directory served under the public URL
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save writes data under prefix with a random name and returns its key
func (s *LocalStore) Save(_ context.Context, prefix string, data []byte) (string, error) {
	if len(data) == 0 || len(data) > MaxPhotoBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrPhotoSize, len(data))
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", ErrNotImage
	}

	key := path.Join(prefix, uuid.NewString()+mt.Extension())
	full, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create photo directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write photo: %w", err)
	}
	return key, nil
}

// Delete removes the object; a missing object is not an error
func (s *LocalStore) Delete(_ context.Context, key string) error {
	if key == "" || isAbsoluteURL(key) {
		return nil
	}
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	return nil
}

// URL returns the public URL of key. Keys that are already absolute URLs
// (photos hosted elsewhere) are returned unchanged.
func (s *LocalStore) URL(key string) string {
	if key == "" || isAbsoluteURL(key) {
		return key
	}
	return s.publicURL + "/" + key
}

func (s *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
