// Package tars implements the Tars/JCE tag-length-value wire format:
// a schema-driven binary codec with compact integer encoding, zero-value
// elision, and forward-compatible schema evolution.
package tars

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common conditions.
// These can be checked using errors.Is().
var (
	// ErrUnexpectedEOF indicates the data was truncated unexpectedly.
	ErrUnexpectedEOF = errors.New("tars: unexpected end of data")

	// ErrInvalidWireType indicates a wire type code outside 0..=13.
	ErrInvalidWireType = errors.New("tars: invalid wire type")

	// ErrInvalidUTF8 indicates a string field contains invalid UTF-8.
	ErrInvalidUTF8 = errors.New("tars: invalid UTF-8 string")

	// ErrMaxDepthExceeded indicates the maximum nesting depth was exceeded.
	ErrMaxDepthExceeded = errors.New("tars: maximum nesting depth exceeded")

	// ErrMaxSizeExceeded indicates a framer buffer or packet limit was exceeded.
	ErrMaxSizeExceeded = errors.New("tars: maximum size exceeded")

	// ErrNegativeLength indicates a negative container size was decoded.
	ErrNegativeLength = errors.New("tars: negative length")

	// ErrTrailingBytes indicates unconsumed bytes after a complete decode.
	ErrTrailingBytes = errors.New("tars: trailing bytes after value")

	// ErrUnknownTag indicates an unknown field tag in forbid-unknown-tags mode.
	ErrUnknownTag = errors.New("tars: unknown tag")

	// ErrRequiredFieldMissing indicates a required field was not present.
	ErrRequiredFieldMissing = errors.New("tars: required field missing")

	// ErrDuplicateTag indicates a tag appeared twice (schema collision or
	// raw decode duplicate).
	ErrDuplicateTag = errors.New("tars: duplicate tag")

	// ErrReentrantEncode indicates the goroutine-local encode buffer was
	// already borrowed by an enclosing encode on the same goroutine.
	ErrReentrantEncode = errors.New("tars: re-entrant encode")

	// ErrTypeMismatch indicates a value does not match its declared type.
	ErrTypeMismatch = errors.New("tars: type mismatch")

	// ErrNotPointer indicates the target for unmarshaling is not a pointer.
	ErrNotPointer = errors.New("tars: target must be a pointer")

	// ErrNilPointer indicates the target pointer is nil.
	ErrNilPointer = errors.New("tars: nil pointer")

	// ErrUnionNoMatch indicates a value matched no union variant.
	ErrUnionNoMatch = errors.New("tars: value does not match any union variant")

	// ErrUnionNoNone indicates nil was passed to a union with no
	// optional or none variant.
	ErrUnionNoNone = errors.New("tars: union does not accept nil")
)

// PathItem is one step of a decode path: a field name, a list index, a
// map key, or a wire tag.
type PathItem struct {
	// Field is a struct field name (empty if not a field step).
	Field string

	// Index is a list element index (used when Field and Key are empty
	// and Tag is negative).
	Index int

	// Key is a rendered map key (empty if not a map step).
	Key string

	// Tag is a wire tag, or -1 when this step is not a tag.
	Tag int
}

func (p PathItem) render(b *strings.Builder) {
	switch {
	case p.Field != "":
		b.WriteByte('.')
		b.WriteString(p.Field)
	case p.Key != "":
		fmt.Fprintf(b, "[%q]", p.Key)
	case p.Tag >= 0:
		fmt.Fprintf(b, "<tag:%d>", p.Tag)
	default:
		fmt.Fprintf(b, "[%d]", p.Index)
	}
}

// DecodeError provides detailed context for decoding failures.
// It implements the error interface and supports error unwrapping.
type DecodeError struct {
	// Offset is the byte offset in the input where the error occurred,
	// or -1 when unknown.
	Offset int

	// Path is the decode path from the root to the failing value,
	// outermost step first.
	Path []PathItem

	// Message describes what went wrong.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error returns a formatted error message with the rendered path.
func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString("tars: decode at <root>")
	for _, p := range e.Path {
		p.render(&b)
	}
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " (offset %d)", e.Offset)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// Unwrap returns the underlying cause of the error.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches the target.
// This supports errors.Is() for checking the cause.
func (e *DecodeError) Is(target error) bool {
	return e.Cause != nil && errors.Is(e.Cause, target)
}

// NewDecodeError creates a new DecodeError without offset information.
func NewDecodeError(message string, cause error) *DecodeError {
	return &DecodeError{Offset: -1, Message: message, Cause: cause}
}

// NewDecodeErrorAt creates a new DecodeError at a byte offset.
func NewDecodeErrorAt(offset int, message string, cause error) *DecodeError {
	return &DecodeError{Offset: offset, Message: message, Cause: cause}
}

// prependPath decorates err with a path step at the current recursive
// boundary. ValidationError values pass through unmodified; plain errors
// are wrapped into a DecodeError first.
func prependPath(err error, item PathItem) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	var de *DecodeError
	if errors.As(err, &de) {
		de.Path = append([]PathItem{item}, de.Path...)
		return de
	}
	return &DecodeError{
		Offset:  -1,
		Path:    []PathItem{item},
		Message: err.Error(),
		Cause:   err,
	}
}

// fieldPath returns a field-name path step.
func fieldPath(name string) PathItem { return PathItem{Field: name, Tag: -1} }

// indexPath returns a list-index path step.
func indexPath(i int) PathItem { return PathItem{Index: i, Tag: -1} }

// keyPath returns a map-key path step.
func keyPath(key any) PathItem { return PathItem{Key: fmt.Sprint(key), Tag: -1} }

// tagPath returns a wire-tag path step.
func tagPath(tag uint8) PathItem { return PathItem{Tag: int(tag)} }

// EncodeError provides detailed context for encoding failures.
// Encoder errors are raised immediately and carry no path decoration.
type EncodeError struct {
	// Type is the name of the type being encoded.
	Type string

	// Field is the name of the field being encoded (if applicable).
	Field string

	// Message describes what went wrong.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error returns a formatted error message.
func (e *EncodeError) Error() string {
	var prefix string
	if e.Type != "" && e.Field != "" {
		prefix = e.Type + "." + e.Field + ": "
	} else if e.Type != "" {
		prefix = e.Type + ": "
	} else if e.Field != "" {
		prefix = e.Field + ": "
	}
	return "tars: encode " + prefix + e.Message
}

// Unwrap returns the underlying cause of the error.
func (e *EncodeError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches the target.
func (e *EncodeError) Is(target error) bool {
	return e.Cause != nil && errors.Is(e.Cause, target)
}

// NewEncodeError creates a new EncodeError.
func NewEncodeError(message string, cause error) *EncodeError {
	return &EncodeError{Message: message, Cause: cause}
}

// NewFieldEncodeError creates an EncodeError for a specific field.
func NewFieldEncodeError(typeName, fieldName, message string, cause error) *EncodeError {
	return &EncodeError{Type: typeName, Field: fieldName, Message: message, Cause: cause}
}

// ValidationError reports a constraint or structural type-match failure.
// ValidationError is never decorated with a decode path: the message
// already identifies the field and the violated predicate.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string

	// Message identifies the violated predicate.
	Message string
}

// Error returns the validation failure message.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "tars: validation failed for " + e.Field + ": " + e.Message
	}
	return "tars: validation failed: " + e.Message
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
