// Package uploads keeps image attachments on the local filesystem and maps
// them to the public URLs stored on repair jobs.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrForeignURL is returned for URLs that do not point into this store
	ErrForeignURL = errors.New("url is not managed by this upload store")

	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
)

// Store saves files as <uuid>_<sanitized name> under dir
type Store struct {
	dir    string
	prefix string
	newID  func() string
}

// NewStore creates dir if needed. prefix is the URL path files are served under.
func NewStore(dir, prefix string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	return &Store{
		dir:    dir,
		prefix: "/" + strings.Trim(prefix, "/"),
		newID:  func() string { return uuid.New().String() },
	}, nil
}

// Dir returns the directory files are written to
func (s *Store) Dir() string {
	return s.dir
}

// Save writes r under a unique name derived from filename and returns its URL
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	name := s.newID() + "_" + SecureFilename(filename)

	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close upload file: %w", err)
	}

	return s.prefix + "/" + name, nil
}

// Remove deletes the file behind url. A file that is already gone is not an error.
func (s *Store) Remove(url string) error {
	name, err := s.NameFromURL(url)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove upload file: %w", err)
	}
	return nil
}

// NameFromURL extracts the stored file name from a URL produced by Save
func (s *Store) NameFromURL(url string) (string, error) {
	name, ok := strings.CutPrefix(url, s.prefix+"/")
	if !ok || name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrForeignURL, url)
	}
	return name, nil
}

// SecureFilename reduces name to a safe base name made of letters, digits,
// '_', '.' and '-'. An empty result becomes "file".
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	return name
}
