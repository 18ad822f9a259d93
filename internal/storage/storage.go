// Package storage keeps uploaded data-source files on local disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/KaramelBytes/insighthub-cli/internal/logging"
	"github.com/KaramelBytes/insighthub-cli/internal/utils"
)

var (
	// ErrNotFound is returned when a stored file does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidName is returned for names that could escape the upload directory.
	ErrInvalidName = errors.New("invalid file name")
)

// StoredFile describes a file written by Save.
type StoredFile struct {
	Name string // file name inside the store
	Path string // absolute path on disk
	Size int64
}

// Store is the file-content provider used by the data-source service.
type Store interface {
	Save(ctx context.Context, originalName, prefix string, data []byte) (*StoredFile, error)
	Content(ctx context.Context, name string) (string, error)
	Delete(ctx context.Context, name string) (bool, error)
}

// LocalStore stores files in a single directory.
type LocalStore struct {
	dir string
	log logging.Logger
}

var prefixSanitizer = regexp.MustCompile(`(?i)[^a-z0-9]`)

// NewLocal creates dir if needed and returns a store rooted there.
func NewLocal(dir string, log logging.Logger) (*LocalStore, error) {
	if log == nil {
		log = logging.Nop()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := utils.EnsureDir(abs); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	log.Info("upload directory ready", "path", abs)
	return &LocalStore{dir: abs, log: log}, nil
}

// Dir returns the upload directory.
func (s *LocalStore) Dir() string { return s.dir }

// Save writes data under a new name "<prefix>_<uuid><ext>", where ext comes
// from originalName and prefix has every non-alphanumeric byte replaced by "_".
func (s *LocalStore) Save(ctx context.Context, originalName, prefix string, data []byte) (*StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := uuid.NewString() + filepath.Ext(originalName)
	if p := prefixSanitizer.ReplaceAllString(prefix, "_"); p != "" {
		name = p + "_" + name
	}
	path := filepath.Join(s.dir, name)
	if err := utils.SafeWriteFile(path, data); err != nil {
		s.log.Error("store file failed", err, "original_name", originalName)
		return nil, fmt.Errorf("store file: %w", err)
	}
	s.log.Info("stored file", "original_name", originalName, "stored_name", name, "size", len(data))
	return &StoredFile{Name: name, Path: path, Size: int64(len(data))}, nil
}

// Content returns the full text of a stored file.
func (s *LocalStore) Content(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("file not found", "name", name)
			return "", fmt.Errorf("read %s: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	s.log.Debug("read file", "name", name, "size", len(b))
	return string(b), nil
}

// Delete removes a stored file. A missing file reports false without error.
func (s *LocalStore) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := s.resolve(name)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("file not found for deletion", "name", name)
			return false, nil
		}
		return false, fmt.Errorf("delete %s: %w", name, err)
	}
	s.log.Info("deleted file", "name", name)
	return true, nil
}

func (s *LocalStore) resolve(name string) (string, error) {
	if name == "" || name == "." || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return filepath.Join(s.dir, name), nil
}
