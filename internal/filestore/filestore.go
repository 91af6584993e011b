// Package filestore manages per-project asset files on local disk. Each
// project owns one directory under the configured root; asset names are
// sanitized before touching the filesystem.
package filestore

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

const (
	prefixAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	prefixLength   = 12
)

// randomPrefix returns the random key prepended to stored file names, so
// re-uploading a file with the same name yields a distinct asset.
func randomPrefix() string {
	buf := make([]byte, prefixLength)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("filestore: read random bytes: %v", err))
	}
	for i, b := range buf {
		buf[i] = prefixAlphabet[int(b)%len(prefixAlphabet)]
	}
	return string(buf)
}

// CleanFileName strips path components and replaces any character outside
// [a-zA-Z0-9_.-] with an underscore. Spaces collapse to underscores too, so
// the result is safe as both a filesystem name and a record key.
func CleanFileName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	return unsafeChars.ReplaceAllString(base, "_")
}

// Store reads and writes project asset files under a root directory.
type Store struct {
	root string
}

// New creates a store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{root: dir}
}

// ProjectDir returns the directory holding a project's files.
func (s *Store) ProjectDir(projectID string) string {
	return filepath.Join(s.root, projectID)
}

// Read returns the content of a project asset. The name is cleaned before
// lookup so callers can pass user input directly.
func (s *Store) Read(projectID, name string) (string, error) {
	path := filepath.Join(s.ProjectDir(projectID), CleanFileName(name))
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read asset %s: %w", name, err)
	}
	return string(data), nil
}

// Write stores content under the project's directory and returns the stored
// file name and byte size. The stored name is the cleaned original prefixed
// with a random key, so writing the same name twice creates two files.
func (s *Store) Write(projectID, name string, r io.Reader) (string, int64, error) {
	cleaned := CleanFileName(name)
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "", 0, fmt.Errorf("invalid file name %q", name)
	}

	dir := s.ProjectDir(projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create project dir: %w", err)
	}

	stored := randomPrefix() + "_" + cleaned
	for {
		if _, err := os.Stat(filepath.Join(dir, stored)); os.IsNotExist(err) {
			break
		}
		stored = randomPrefix() + "_" + cleaned
	}

	f, err := os.Create(filepath.Join(dir, stored))
	if err != nil {
		return "", 0, fmt.Errorf("create asset file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		return "", 0, fmt.Errorf("write asset file: %w", err)
	}
	return stored, size, nil
}
