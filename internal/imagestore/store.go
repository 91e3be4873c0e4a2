// Package imagestore manages the scanned image files referenced by image
// rows.
package imagestore

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/renderinc/dil/internal/dilerr"
)

// AllowedExtensions are the only extensions a stored image may carry.
var AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".tiff"}

func init() {
	// The builtin table lacks TIFF and the system table is not always there.
	_ = mime.AddExtensionType(".tiff", "image/tiff")
}

// DetectExtension guesses the MIME type of filename from its extension and
// returns the extension to store it under. Non-image or unknown types are
// validation errors.
func DetectExtension(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "", dilerr.Validation("cannot detect MIME type of %q", filename)
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	candidates, err := mime.ExtensionsByType(mimeType)
	if err != nil {
		return "", dilerr.Validation("cannot map MIME type %s: %v", mimeType, err)
	}
	if slices.Contains(candidates, ext) && slices.Contains(AllowedExtensions, ext) {
		return ext, nil
	}
	for _, c := range candidates {
		if slices.Contains(AllowedExtensions, c) {
			return c, nil
		}
	}
	return "", dilerr.Validation("extension %s (%s) is not allowed, expected one of %s",
		ext, mimeType, strings.Join(AllowedExtensions, ", "))
}

// Store is a flat directory of image files.
type Store struct {
	dir string
}

// New opens the store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image store: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the absolute location of name inside the store.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Exists reports whether name is present in the store.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Rename moves oldName to newName within the store.
func (s *Store) Rename(oldName, newName string) error {
	if err := os.Rename(s.Path(oldName), s.Path(newName)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return dilerr.Validation("image file %q not found in store", oldName)
		}
		return fmt.Errorf("rename image %s: %w", oldName, err)
	}
	return nil
}

// Remove deletes name from the store. A missing file is not an error.
func (s *Store) Remove(name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image %s: %w", name, err)
	}
	return nil
}
