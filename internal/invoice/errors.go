package invoice

import (
	"errors"
	"fmt"
)

var (
	// ErrUnrecognizedLayout is returned when a document matches none of the known layout
	// signatures. Supporting it requires a new rule table.
	ErrUnrecognizedLayout = errors.New("unrecognized invoice layout")

	// ErrFieldExtraction is returned when a required field cannot be resolved.
	ErrFieldExtraction = errors.New("field extraction failed")
)

// UnrecognizedLayoutError carries the full normalized text so the new template can be inspected.
type UnrecognizedLayoutError struct {
	Path string
	Text string
}

func (e *UnrecognizedLayoutError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invoice: %s: %v (%d characters of text)", e.Path, ErrUnrecognizedLayout, len(e.Text))
	}
	return fmt.Sprintf("invoice: %v (%d characters of text)", ErrUnrecognizedLayout, len(e.Text))
}

func (e *UnrecognizedLayoutError) Is(target error) bool {
	return target == ErrUnrecognizedLayout
}

// FieldExtractionError names the required field a layout's rules could not resolve.
type FieldExtractionError struct {
	Path   string
	Layout Layout
	Field  Field
	Value  string // raw value found, if any
	Reason string
}

func (e *FieldExtractionError) Error() string {
	msg := fmt.Sprintf("invoice: %s: layout %d: field %s: %s", e.Path, e.Layout, e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (value %q)", e.Value)
	}
	return msg
}

func (e *FieldExtractionError) Is(target error) bool {
	return target == ErrFieldExtraction
}

// DocumentError wraps failures that happen before extraction, such as an unreadable file.
type DocumentError struct {
	Op   string
	Path string
	Err  error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("invoice: %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// WrapDocumentError wraps err as a DocumentError unless it already carries invoice context.
func WrapDocumentError(op, path string, err error) error {
	if err == nil {
		return nil
	}

	var docErr *DocumentError
	var layoutErr *UnrecognizedLayoutError
	var fieldErr *FieldExtractionError
	if errors.As(err, &docErr) || errors.As(err, &layoutErr) || errors.As(err, &fieldErr) {
		return err
	}

	return &DocumentError{Op: op, Path: path, Err: err}
}
