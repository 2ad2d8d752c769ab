package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	pendingDir   = "pending"
	committedDir = "committed"
)

// DiskStore keeps blobs on the local filesystem. The lifecycle state lives
// in the directory layout: pending/ holds uploaded-but-unreferenced blobs,
// committed/ holds blobs owned by a record. State transitions are renames,
// so a blob never exists in both states.
type DiskStore struct {
	dataDir string
	baseURL string

	// guards the rename pairs so concurrent commit/orphan of the same ref
	// cannot interleave
	mu sync.Mutex
}

func NewDiskStore(dataDir, baseURL string) (*DiskStore, error) {
	for _, dir := range []string{pendingDir, committedDir} {
		if err := os.MkdirAll(filepath.Join(dataDir, dir), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create blob directory: %w", err)
		}
	}
	return &DiskStore{dataDir: dataDir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Upload streams the data into pending/ and returns the new blob reference.
// The write goes to a temp file first and is renamed into place, so a
// half-written blob is never visible under its final name.
func (d *DiskStore) Upload(ctx context.Context, r io.Reader, filename string) (string, error) {
	ref := uuid.New().String() + "_" + sanitizeFilename(filename)
	fullPath := filepath.Join(d.dataDir, pendingDir, ref)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write blob data: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to sync blob data: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close blob file: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to rename blob file: %w", err)
	}
	return ref, nil
}

func (d *DiskStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	path, _, err := d.locate(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open blob %s: %w", ref, err)
	}
	return f, nil
}

func (d *DiskStore) Stat(ctx context.Context, ref string) (Info, error) {
	path, _, err := d.locate(ref)
	if err != nil {
		return Info{}, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, ErrNotFound
		}
		return Info{}, fmt.Errorf("failed to stat blob %s: %w", ref, err)
	}
	filename := originalFilename(ref)
	return Info{
		Ref:       ref,
		Filename:  filename,
		Extension: extensionOf(filename),
		Size:      fi.Size(),
	}, nil
}

// MarkCommitted moves a pending blob into the committed state. Committing an
// already committed blob is a no-op so re-submissions stay idempotent.
func (d *DiskStore) MarkCommitted(ctx context.Context, ref string) error {
	return d.transition(ref, pendingDir, committedDir)
}

// MarkOrphan moves a committed blob back out of the committed state. The
// blob is then eligible for Delete. Orphaning a blob that is not committed
// is a no-op.
func (d *DiskStore) MarkOrphan(ctx context.Context, ref string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	from := filepath.Join(d.dataDir, committedDir, ref)
	if _, err := os.Stat(from); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat blob %s: %w", ref, err)
	}
	to := filepath.Join(d.dataDir, pendingDir, ref)
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("failed to orphan blob %s: %w", ref, err)
	}
	return nil
}

// Delete removes the blob wherever it lives. Deleting an absent or already
// deleted blob is not an error.
func (d *DiskStore) Delete(ctx context.Context, ref string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, dir := range []string{pendingDir, committedDir} {
		err := os.Remove(filepath.Join(d.dataDir, dir, ref))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete blob %s: %w", ref, err)
		}
	}
	return nil
}

func (d *DiskStore) URLFor(ref string) (string, bool) {
	if _, _, err := d.locate(ref); err != nil {
		return "", false
	}
	return d.baseURL + "/" + ref, true
}

func (d *DiskStore) transition(ref, fromDir, toDir string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	to := filepath.Join(d.dataDir, toDir, ref)
	if _, err := os.Stat(to); err == nil {
		return nil
	}
	from := filepath.Join(d.dataDir, fromDir, ref)
	if _, err := os.Stat(from); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to stat blob %s: %w", ref, err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("failed to move blob %s: %w", ref, err)
	}
	return nil
}

// locate finds the blob in either state directory, committed first.
func (d *DiskStore) locate(ref string) (path, state string, err error) {
	if !validRef(ref) {
		return "", "", ErrNotFound
	}
	for _, dir := range []string{committedDir, pendingDir} {
		p := filepath.Join(d.dataDir, dir, ref)
		if _, statErr := os.Stat(p); statErr == nil {
			return p, dir, nil
		}
	}
	return "", "", ErrNotFound
}

// validRef rejects refs that could escape the data directory.
func validRef(ref string) bool {
	return ref != "" && ref == filepath.Base(ref) && !strings.HasPrefix(ref, ".")
}

func sanitizeFilename(filename string) string {
	base := filepath.Base(filename)
	base = strings.ReplaceAll(base, " ", "-")
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "upload"
	}
	return base
}

// originalFilename strips the uuid prefix from a blob ref. The uuid never
// contains an underscore, so everything after the first one is the name the
// file was uploaded with.
func originalFilename(ref string) string {
	if i := strings.Index(ref, "_"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
