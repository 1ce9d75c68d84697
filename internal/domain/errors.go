package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeDocumentLoad          ErrorType = "document_load"
	ErrorTypePageTimeout           ErrorType = "page_timeout"
	ErrorTypePageExtraction        ErrorType = "page_extraction"
	ErrorTypeComparisonMismatch    ErrorType = "comparison_mismatch"
	ErrorTypeAggregationOrder      ErrorType = "aggregation_order"
	ErrorTypeStaleBaseline         ErrorType = "stale_baseline"
	ErrorTypeInvalidPartition      ErrorType = "invalid_partition"
	ErrorTypeManifestInconsistency ErrorType = "manifest_inconsistency"
	ErrorTypeValidation            ErrorType = "validation"
	ErrorTypeConfig                ErrorType = "config"
	ErrorTypeIO                    ErrorType = "io"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// IsType reports whether err, or any error it wraps, is a DomainError of type t.
func IsType(err error, t ErrorType) bool {
	var de *DomainError
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Type == t {
			return true
		}
		err = de.Err
	}
	return false
}

// TypeOf returns the type of the outermost DomainError in err's chain, or ""
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// Common error constructors
func DocumentLoadError(message string, err error) *DomainError {
	return NewError(ErrorTypeDocumentLoad, message, err)
}

func PageExtractionTimeout(page int, err error) *DomainError {
	return NewError(ErrorTypePageTimeout, fmt.Sprintf("page %d timed out", page), err)
}

func PageExtractionError(page int, err error) *DomainError {
	return NewError(ErrorTypePageExtraction, fmt.Sprintf("page %d failed", page), err)
}

func ComparisonMismatch(message string, err error) *DomainError {
	return NewError(ErrorTypeComparisonMismatch, message, err)
}

func AggregationOrderViolation(message string, err error) *DomainError {
	return NewError(ErrorTypeAggregationOrder, message, err)
}

func StaleBaselineError(message string, err error) *DomainError {
	return NewError(ErrorTypeStaleBaseline, message, err)
}

func InvalidPartitionRequest(message string, err error) *DomainError {
	return NewError(ErrorTypeInvalidPartition, message, err)
}

func ManifestInconsistency(message string, err error) *DomainError {
	return NewError(ErrorTypeManifestInconsistency, message, err)
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}
