package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Store is the catalog's view of the blob namespace: named containers of
// named objects, each object carrying a flat string-to-string metadata
// mapping alongside its bytes.
type Store interface {
	// Put stores object bytes. Overwrite-or-create, idempotent.
	Put(ctx context.Context, container, name string, r io.Reader) error

	// Get returns a reader for the object bytes.
	// Returns ErrNotFound if the object does not exist.
	Get(ctx context.Context, container, name string) (io.ReadCloser, error)

	// GetMetadata returns the object's metadata, empty if none was ever set.
	// Returns ErrNotFound if the object itself does not exist.
	GetMetadata(ctx context.Context, container, name string) (map[string]string, error)

	// SetMetadata replaces the full metadata set for the object.
	// Returns ErrNotFound if the object does not exist.
	SetMetadata(ctx context.Context, container, name string, meta map[string]string) error

	// List enumerates object names in a container, in no defined order.
	// Object bytes are not loaded; metadata is fetched lazily per item.
	List(ctx context.Context, container string) ([]string, error)
}
