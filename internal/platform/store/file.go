package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File keeps the document in a single file on local disk.
type File struct {
	path string
}

// NewFile returns a file backend; an empty path means patients.json in the
// working directory.
func NewFile(path string) *File {
	if path == "" {
		path = "patients.json"
	}
	return &File{path: path}
}

func (f *File) Driver() string { return DriverFile }

// Path returns the file location.
func (f *File) Path() string { return f.path }

func (f *File) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", f.path, ErrDocumentNotFound)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write replaces the file contents. The data goes to a temporary file in
// the same directory first and is renamed over the old file, so readers
// never observe a half-written document.
func (f *File) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".patients-*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *File) Ping(_ context.Context) error {
	info, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", f.path, ErrDocumentNotFound)
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", f.path)
	}
	return nil
}

func (f *File) Close() error { return nil }
