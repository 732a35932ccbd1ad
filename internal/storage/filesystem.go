package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// metaDir is the per-container subdirectory holding metadata sidecar files.
const metaDir = ".meta"

// FilesystemStore implements Store on the local filesystem. Objects live at
// <root>/<container>/<name>; metadata lives in a JSON sidecar at
// <root>/<container>/.meta/<name>.json so that List can skip it.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates a filesystem-backed store rooted at the given
// directory, creating it if needed.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &FilesystemStore{root: root}, nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid object name: %q", name)
	}
	if strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid object name: %q", name)
	}
	return nil
}

func (fs *FilesystemStore) objectPath(container, name string) string {
	return filepath.Join(fs.root, container, name)
}

func (fs *FilesystemStore) metaPath(container, name string) string {
	return filepath.Join(fs.root, container, metaDir, name+".json")
}

// Put stores object bytes, overwriting any previous object of the same name.
func (fs *FilesystemStore) Put(ctx context.Context, container, name string, r io.Reader) error {
	if err := validName(name); err != nil {
		return err
	}
	dir := filepath.Join(fs.root, container)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create container dir: %w", err)
	}

	// Write to a temp file and rename so readers never observe partial bytes
	tmp, err := os.CreateTemp(dir, metaDir+"-put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, fs.objectPath(container, name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to commit object: %w", err)
	}

	// A fresh blob starts with empty metadata, even on overwrite
	if err := os.Remove(fs.metaPath(container, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	return nil
}

// Get opens the object for reading.
func (fs *FilesystemStore) Get(ctx context.Context, container, name string) (io.ReadCloser, error) {
	if err := validName(name); err != nil {
		return nil, ErrNotFound
	}
	f, err := os.Open(fs.objectPath(container, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

// GetMetadata returns the object's metadata. An object with no sidecar has
// empty metadata, which is not an error; a missing object is ErrNotFound.
func (fs *FilesystemStore) GetMetadata(ctx context.Context, container, name string) (map[string]string, error) {
	if err := validName(name); err != nil {
		return nil, ErrNotFound
	}
	if _, err := os.Stat(fs.objectPath(container, name)); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	data, err := os.ReadFile(fs.metaPath(container, name))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	meta := map[string]string{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return meta, nil
}

// SetMetadata replaces the full metadata set for the object.
func (fs *FilesystemStore) SetMetadata(ctx context.Context, container, name string, meta map[string]string) error {
	if err := validName(name); err != nil {
		return ErrNotFound
	}
	if _, err := os.Stat(fs.objectPath(container, name)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to stat object: %w", err)
	}

	dir := filepath.Join(fs.root, container, metaDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create metadata dir: %w", err)
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "set-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, fs.metaPath(container, name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to commit metadata: %w", err)
	}
	return nil
}

// List enumerates object names in a container. A container that was never
// written to lists as empty.
func (fs *FilesystemStore) List(ctx context.Context, container string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(fs.root, container))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list container: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}
