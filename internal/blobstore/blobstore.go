// Package blobstore manages uploaded image blobs and their lifecycle state.
// A blob starts out pending after upload, becomes committed when a cat
// record takes ownership of it, and is orphaned again when that record is
// deleted or its image replaced.
package blobstore

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

var ErrNotFound = errors.New("blob not found")

// Info describes a stored blob.
type Info struct {
	Ref       string
	Filename  string
	Extension string
	Size      int64
}

// Store is the collaborator the cat service is given. Delete is idempotent:
// removing an absent blob is a no-op, which tolerates races and re-entrant
// cleanup. Implementations must never remove a blob that is still committed
// to a live record; the service owns that transition.
type Store interface {
	Upload(ctx context.Context, r io.Reader, filename string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Stat(ctx context.Context, ref string) (Info, error)
	MarkCommitted(ctx context.Context, ref string) error
	MarkOrphan(ctx context.Context, ref string) error
	Delete(ctx context.Context, ref string) error
	URLFor(ref string) (string, bool)
}

// extensionOf returns the lowercased extension of a filename without the dot.
func extensionOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}
