// Package validation holds the field rules for cat submissions. All checks
// are pure: no I/O, no panics, same input always gives the same result.
package validation

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Reason identifies why a field failed validation.
type Reason string

const (
	ReasonRequired        Reason = "required"
	ReasonTooShort        Reason = "too_short"
	ReasonTooLong         Reason = "too_long"
	ReasonInvalidFormat   Reason = "invalid_format"
	ReasonUnsupportedType Reason = "unsupported_type"
	ReasonTooLarge        Reason = "too_large"
	ReasonUnknownField    Reason = "unknown_field"
)

const (
	FieldName  = "name"
	FieldEmail = "email"
	FieldImage = "image"
)

const (
	MinNameLength = 2
	MaxNameLength = 32
	// MaxImageSize is 2 MB.
	MaxImageSize = 2097152
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

var allowedExtensions = map[string]struct{}{
	"jpeg": {},
	"jpg":  {},
	"png":  {},
}

type FieldResult struct {
	Field   string `json:"field"`
	Valid   bool   `json:"valid"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message"`
}

// ImageMeta is the blob metadata needed to validate an uploaded image.
type ImageMeta struct {
	Filename string
	Size     int64
}

// Result is the outcome of validating a whole submission. Field checks are
// collected, not fail-fast, so a caller can show every problem at once.
type Result struct {
	Fields []FieldResult
}

func (r Result) OK() bool {
	for _, f := range r.Fields {
		if !f.Valid {
			return false
		}
	}
	return true
}

// Failed returns only the invalid field results.
func (r Result) Failed() []FieldResult {
	var failed []FieldResult
	for _, f := range r.Fields {
		if !f.Valid {
			failed = append(failed, f)
		}
	}
	return failed
}

func valid(field, message string) FieldResult {
	return FieldResult{Field: field, Valid: true, Message: message}
}

func invalid(field string, reason Reason, message string) FieldResult {
	return FieldResult{Field: field, Reason: reason, Message: message}
}

// Name checks the cat name. Length is counted in Unicode code points, not
// bytes, so a two-character non-Latin name passes.
func Name(name string) FieldResult {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return invalid(FieldName, ReasonRequired, "The name is required.")
	}
	length := utf8.RuneCountInString(trimmed)
	if length < MinNameLength {
		return invalid(FieldName, ReasonTooShort, "The name must be between 2 and 32 characters long.")
	}
	if length > MaxNameLength {
		return invalid(FieldName, ReasonTooLong, "The name must be between 2 and 32 characters long.")
	}
	return valid(FieldName, "The name is valid.")
}

func Email(email string) FieldResult {
	if email == "" {
		return invalid(FieldEmail, ReasonRequired, "The email is required.")
	}
	if !emailPattern.MatchString(email) {
		return invalid(FieldEmail, ReasonInvalidFormat, "The email is not valid.")
	}
	return valid(FieldEmail, "The email is valid.")
}

// Image checks uploaded image metadata. A nil meta means no blob was
// supplied (or the reference points at nothing).
func Image(meta *ImageMeta) FieldResult {
	if meta == nil {
		return invalid(FieldImage, ReasonRequired, "The image is required.")
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(meta.Filename), "."))
	if _, ok := allowedExtensions[ext]; !ok {
		return invalid(FieldImage, ReasonUnsupportedType, "Invalid file type. Allowed formats: jpeg, jpg, png.")
	}
	if meta.Size > MaxImageSize {
		return invalid(FieldImage, ReasonTooLarge, "The file size exceeds 2 MB.")
	}
	return valid(FieldImage, "The image is valid.")
}

// Submission validates a full create submission. The image is required.
func Submission(name, email string, image *ImageMeta) Result {
	return Result{Fields: []FieldResult{
		Name(name),
		Email(email),
		Image(image),
	}}
}

// UpdateSubmission validates an edit submission. When no image reference is
// supplied the record keeps its current one and the image rules are skipped.
func UpdateSubmission(name, email string, image *ImageMeta, imageSupplied bool) Result {
	fields := []FieldResult{
		Name(name),
		Email(email),
	}
	if imageSupplied {
		fields = append(fields, Image(image))
	}
	return Result{Fields: fields}
}
