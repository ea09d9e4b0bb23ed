package detail

import (
	"errors"
	"fmt"
)

var (
	// ErrUnrecognizedDetailSchema indicates a file name that matches no known export convention
	ErrUnrecognizedDetailSchema = errors.New("unrecognized detail schema")

	// ErrNoDetailFiles indicates an empty detail directory
	ErrNoDetailFiles = errors.New("no detail files")

	// ErrMissingColumn indicates a file whose header lacks a column of its schema
	ErrMissingColumn = errors.New("missing detail column")

	// ErrNoUsableDetails indicates that every detail file in a directory failed to load
	ErrNoUsableDetails = errors.New("no usable detail files")

	// ErrInvalidDetailRow indicates a row skipped because its amount cannot be read
	ErrInvalidDetailRow = errors.New("invalid detail row")

	// ErrUnalignedColumns indicates a fixed-width file whose rows cannot be cut into the header columns
	ErrUnalignedColumns = errors.New("fixed-width columns do not line up with the header")
)

// UnrecognizedDetailSchemaError is returned for a file whose name matches no schema.
type UnrecognizedDetailSchemaError struct {
	Path string
}

func (e *UnrecognizedDetailSchemaError) Error() string {
	return fmt.Sprintf("detail: %s: %v", e.Path, ErrUnrecognizedDetailSchema)
}

func (e *UnrecognizedDetailSchemaError) Is(target error) bool {
	return target == ErrUnrecognizedDetailSchema
}

// NoDetailFilesError is returned when a directory holds no detail files at all.
type NoDetailFilesError struct {
	Dir string
}

func (e *NoDetailFilesError) Error() string {
	return fmt.Sprintf("detail: %s: %v", e.Dir, ErrNoDetailFiles)
}

func (e *NoDetailFilesError) Is(target error) bool {
	return target == ErrNoDetailFiles
}

// MissingColumnError names the schema column absent from a file header.
type MissingColumnError struct {
	Path   string
	Schema string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("detail: %s: schema %s: column %q: %v", e.Path, e.Schema, e.Column, ErrMissingColumn)
}

func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}

// InvalidRowError describes a detail row that was skipped.
type InvalidRowError struct {
	Path  string
	Row   int
	Value string
	Err   error
}

func (e *InvalidRowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("detail: %s: row %d: invalid amount %q: %v", e.Path, e.Row, e.Value, e.Err)
	}
	return fmt.Sprintf("detail: %s: row %d: invalid amount %q", e.Path, e.Row, e.Value)
}

func (e *InvalidRowError) Unwrap() error {
	return e.Err
}

func (e *InvalidRowError) Is(target error) bool {
	return target == ErrInvalidDetailRow
}
