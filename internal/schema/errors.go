package schema

import (
	"errors"
	"fmt"
)

// DefinitionError represents an invalid record-types library definition.
//
// Definition errors are detected once, during Build. A library that built
// successfully never produces a DefinitionError afterwards.
type DefinitionError struct {
	// Code identifies the error category.
	Code DefinitionErrorCode

	// Message is a human-readable description.
	Message string

	// Path locates the offending definition, e.g. "Person.addresses".
	Path string
}

// DefinitionErrorCode categorizes definition errors.
type DefinitionErrorCode string

const (
	// ErrCodeUnknownType indicates a reference to a record type that does not exist.
	ErrCodeUnknownType DefinitionErrorCode = "UNKNOWN_RECORD_TYPE"

	// ErrCodeBadID indicates a missing, duplicate or ill-typed id property.
	ErrCodeBadID DefinitionErrorCode = "BAD_ID_PROPERTY"

	// ErrCodeBadValueType indicates an unknown or misplaced value type.
	ErrCodeBadValueType DefinitionErrorCode = "BAD_VALUE_TYPE"

	// ErrCodeBadKey indicates a map key declaration that does not resolve
	// to exactly one key value type.
	ErrCodeBadKey DefinitionErrorCode = "BAD_MAP_KEY"

	// ErrCodeBadSubtypes indicates an invalid polymorphic subtype table.
	ErrCodeBadSubtypes DefinitionErrorCode = "BAD_SUBTYPES"
)

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDefinitionError returns true if the error is a library definition error.
// Uses errors.As to handle wrapped errors.
func IsDefinitionError(err error) bool {
	var de *DefinitionError
	return errors.As(err, &de)
}

func defErr(code DefinitionErrorCode, path, format string, args ...any) *DefinitionError {
	return &DefinitionError{Code: code, Message: fmt.Sprintf(format, args...), Path: path}
}
