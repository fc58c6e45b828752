package parser

import (
	"errors"
	"fmt"
)

// MarkupError represents an invalid columns markup detected during Init.
//
// Markup errors include:
//   - First column not resolving to the top record type's id property
//   - Child level prefix not longer than the parent's
//   - More than one collection axis linked to the same anchor
//   - Columns following a collection within the same object level
//   - Unknown properties, subtypes or reference targets
//   - Fetched marker on a non-reference property
type MarkupError struct {
	// Code identifies the error category.
	Code MarkupErrorCode

	// Message is a human-readable description.
	Message string

	// Column is the zero-based markup column the error was detected at.
	Column int

	// Label is the offending column label.
	Label string
}

// MarkupErrorCode categorizes markup errors.
type MarkupErrorCode string

const (
	// ErrCodeFirstColumnNotID indicates column 0 does not resolve to the
	// top record type's id property.
	ErrCodeFirstColumnNotID MarkupErrorCode = "FIRST_COLUMN_NOT_ID"

	// ErrCodeBadLabel indicates a label that does not match the markup grammar.
	ErrCodeBadLabel MarkupErrorCode = "BAD_LABEL"

	// ErrCodeBadPrefix indicates a nesting prefix that is not strictly
	// longer than its parent's, or leftover columns after the top level.
	ErrCodeBadPrefix MarkupErrorCode = "BAD_PREFIX"

	// ErrCodeUnknownProperty indicates a property name not present in the schema.
	ErrCodeUnknownProperty MarkupErrorCode = "UNKNOWN_PROPERTY"

	// ErrCodeUnknownSubtype indicates an unknown polymorphic subtype or
	// reference target name in a polymorphic tier.
	ErrCodeUnknownSubtype MarkupErrorCode = "UNKNOWN_SUBTYPE"

	// ErrCodeFetchedNonRef indicates a fetched marker on a non-reference property.
	ErrCodeFetchedNonRef MarkupErrorCode = "FETCHED_NON_REF"

	// ErrCodeMultipleAxes indicates a second collection axis linked to an
	// anchor that already has one.
	ErrCodeMultipleAxes MarkupErrorCode = "MULTIPLE_COLLECTION_AXES"

	// ErrCodeLevelExhausted indicates a column following a collection
	// within the same object level.
	ErrCodeLevelExhausted MarkupErrorCode = "LEVEL_EXHAUSTED"

	// ErrCodeUnknownExtractor indicates a value type with no registered extractor.
	ErrCodeUnknownExtractor MarkupErrorCode = "UNKNOWN_EXTRACTOR"
)

// Error implements the error interface.
func (e *MarkupError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("%s: %s (col=%d, label=%q)", e.Code, e.Message, e.Column, e.Label)
	}
	return fmt.Sprintf("%s: %s (col=%d)", e.Code, e.Message, e.Column)
}

// IsMarkupError returns true if the error is a markup error.
// Uses errors.As to handle wrapped errors.
func IsMarkupError(err error) bool {
	var me *MarkupError
	return errors.As(err, &me)
}

// DataError represents malformed result set data detected during FeedRow.
//
// After a DataError the parser's handler state is inconsistent; callers
// must discard the parser or call Reset before reading records.
type DataError struct {
	// Code identifies the error category.
	Code DataErrorCode

	// Message is a human-readable description.
	Message string

	// Row is the zero-based row the error was detected at.
	Row int

	// Column is the zero-based column the error was detected at.
	Column int
}

// DataErrorCode categorizes data errors.
type DataErrorCode string

const (
	// ErrCodeNullID indicates a null top record id.
	ErrCodeNullID DataErrorCode = "NULL_RECORD_ID"

	// ErrCodeNoAnchorChange indicates a row in which no anchor on the
	// collection axis changed.
	ErrCodeNoAnchorChange DataErrorCode = "NO_ANCHOR_CHANGE"

	// ErrCodeNullValue indicates a null cell for a non-optional property.
	ErrCodeNullValue DataErrorCode = "NULL_VALUE"

	// ErrCodeRepeatedNullAnchor indicates consecutive null anchor cells
	// within one owning scope.
	ErrCodeRepeatedNullAnchor DataErrorCode = "REPEATED_NULL_ANCHOR"

	// ErrCodeNullExpected indicates a non-null anchor cell after the
	// collection was reported absent in the same scope.
	ErrCodeNullExpected DataErrorCode = "NULL_EXPECTED"

	// ErrCodeUnexpectedNull indicates a null anchor cell after the
	// collection produced elements in the same scope.
	ErrCodeUnexpectedNull DataErrorCode = "UNEXPECTED_NULL"

	// ErrCodeStuckAnchor indicates a repeated map key within one owning scope.
	ErrCodeStuckAnchor DataErrorCode = "STUCK_ANCHOR"

	// ErrCodeMultiplePolyValues indicates more than one value for a
	// polymorphic slot in one row.
	ErrCodeMultiplePolyValues DataErrorCode = "MULTIPLE_POLY_VALUES"

	// ErrCodeNoPolyValue indicates no subtype or target matched for a
	// polymorphic slot that demands one.
	ErrCodeNoPolyValue DataErrorCode = "NO_POLY_VALUE"

	// ErrCodeNullRefID indicates a null referred record id in a fetched
	// reference element.
	ErrCodeNullRefID DataErrorCode = "NULL_REF_ID"
)

// Error implements the error interface.
func (e *DataError) Error() string {
	return fmt.Sprintf("%s: %s (row=%d, col=%d)", e.Code, e.Message, e.Row, e.Column)
}

// IsDataError returns true if the error is a result set data error.
// Uses errors.As to handle wrapped errors.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// UsageError represents API misuse: double Init, feeding before Init,
// row length mismatch, or incompatible parsers handed to Merge.
type UsageError struct {
	// Code identifies the error category.
	Code UsageErrorCode

	// Message is a human-readable description.
	Message string
}

// UsageErrorCode categorizes usage errors.
type UsageErrorCode string

const (
	// ErrCodeUnknownRecordType indicates the schema does not know the
	// requested top record type.
	ErrCodeUnknownRecordType UsageErrorCode = "UNKNOWN_RECORD_TYPE"

	// ErrCodeAlreadyInitialized indicates a second Init call.
	ErrCodeAlreadyInitialized UsageErrorCode = "ALREADY_INITIALIZED"

	// ErrCodeNotInitialized indicates FeedRow or Merge before Init.
	ErrCodeNotInitialized UsageErrorCode = "NOT_INITIALIZED"

	// ErrCodeBadArgument indicates a malformed argument such as an empty
	// markup or a row of the wrong length.
	ErrCodeBadArgument UsageErrorCode = "BAD_ARGUMENT"

	// ErrCodeIncompatibleMerge indicates parsers that cannot be merged:
	// different top record types, different record counts, id or
	// polymorphic type mismatches.
	ErrCodeIncompatibleMerge UsageErrorCode = "INCOMPATIBLE_MERGE"
)

// Error implements the error interface.
func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUsageError returns true if the error is an API usage error.
// Uses errors.As to handle wrapped errors.
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

func markupErr(code MarkupErrorCode, col int, lbl string, format string, args ...any) *MarkupError {
	return &MarkupError{Code: code, Message: fmt.Sprintf(format, args...), Column: col, Label: lbl}
}

func dataErr(code DataErrorCode, row, col int, format string, args ...any) *DataError {
	return &DataError{Code: code, Message: fmt.Sprintf(format, args...), Row: row, Column: col}
}

func usageErr(code UsageErrorCode, format string, args ...any) *UsageError {
	return &UsageError{Code: code, Message: fmt.Sprintf(format, args...)}
}
