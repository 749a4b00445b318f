package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalStorage keeps files under a base directory, partitioned by
// YYYY/MM/DD, each named by a random UUID.
type LocalStorage struct {
	baseDir string
}

func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{baseDir: baseDir}
}

// Save copies r into a new file and returns its path relative to the base
// directory along with the number of bytes written.
func (s *LocalStorage) Save(r io.Reader, ext string, now time.Time) (string, int64, error) {
	dir := filepath.Join(now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(filepath.Join(s.baseDir, dir), 0755); err != nil {
		return "", 0, fmt.Errorf("create upload dir: %w", err)
	}

	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	rel := filepath.ToSlash(filepath.Join(dir, uuid.NewString()+ext))

	f, err := os.OpenFile(filepath.Join(s.baseDir, rel), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(filepath.Join(s.baseDir, rel))
		return "", 0, err
	}
	return rel, n, nil
}

// Open opens a stored file for reading.
func (s *LocalStorage) Open(rel string) (*os.File, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Remove deletes a stored file. A missing file is not an error.
func (s *LocalStorage) Remove(rel string) error {
	path, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *LocalStorage) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage path %q", rel)
	}
	return filepath.Join(s.baseDir, clean), nil
}
