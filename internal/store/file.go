package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	filePermissions = 0o640
	dirPermissions  = 0o750
)

// ErrCorruptRecord indicates a record file is malformed JSON.
var ErrCorruptRecord = errors.New("record file is corrupted")

// FileStore keeps one JSON file per key under a directory. Writes go through
// a temp file and rename so a crash never leaves a half-written record.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, storeError("open", dir, fmt.Errorf("empty directory"))
	}
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, storeError("open", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", storeError("validate", key, fmt.Errorf("key escapes store directory"))
	}
	return filepath.Join(s.dir, clean+".json"), nil
}

// Get implements Store. A corrupt record is moved aside and reported.
func (s *FileStore) Get(key string, v any) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(p) //nolint:gosec // path is derived from a validated key
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, storeError("get", key, err)
	}

	if err := JSONDecode(data, v); err != nil {
		corruptPath := fmt.Sprintf("%s.corrupt.%d", p, time.Now().UTC().UnixNano())
		if renameErr := os.Rename(p, corruptPath); renameErr != nil {
			return false, storeError("decode", key, fmt.Errorf("%w: %w (also failed to move file: %w)", ErrCorruptRecord, err, renameErr))
		}
		return false, storeError("decode", key, fmt.Errorf("%w: %w (moved to %s)", ErrCorruptRecord, err, corruptPath))
	}
	return true, nil
}

// Put implements Store.
func (s *FileStore) Put(key string, v any) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	data, err := JSONEncode(v)
	if err != nil {
		return storeError("encode", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(p), dirPermissions); err != nil {
		return storeError("put", key, err)
	}
	if err := writeAtomic(p, data, filePermissions); err != nil {
		return storeError("put", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return storeError("delete", key, err)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

// writeAtomic writes to a temp file in the target directory, fsyncs, then renames.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmpFile.Name()
	closed := false
	defer func() {
		if !closed {
			_ = tmpFile.Close()
		}
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		return fmt.Errorf("setting temp file permissions: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	closed = true

	if err := os.Rename(tmpPath, path); err != nil { //nolint:gosec // path is derived from a validated key
		return fmt.Errorf("renaming temp file: %w", err)
	}

	if dirFile, err := os.Open(dir); err == nil { //nolint:gosec // dir is derived from a validated key
		_ = dirFile.Sync()
		_ = dirFile.Close()
	}
	return nil
}
