// Package myerrors defines the error types the cat service returns so the
// transport layer can tell user-correctable failures from server-side ones.
package myerrors

import (
	"fmt"
	"strings"

	"github.com/MatviyVovchuk/cat-registry/internal/validation"
)

// ValidationError carries the collected field failures of a submission.
// Nothing was persisted when this is returned.
type ValidationError struct {
	Fields []validation.FieldResult
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Reason))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type NotFoundError struct {
	Id int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cat %d not found", e.Id)
}

// StorageError means the row store failed. The current operation was
// aborted; the caller should see a generic retry message.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// BlobError means the blob layer failed for a specific reference.
type BlobError struct {
	Ref string
	Op  string
	Err error
}

func (e *BlobError) Error() string {
	return fmt.Sprintf("blob %s failed for %s: %v", e.Op, e.Ref, e.Err)
}

func (e *BlobError) Unwrap() error {
	return e.Err
}
