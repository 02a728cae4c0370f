package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

/**
 * Custom error types for the medical report pipeline
 *
 * Every pipeline stage fails with a ProcessingError carrying a stable code,
 * so the HTTP layer can map failures without string matching.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Request errors
	ErrorInputValidation ErrorCode = "INPUT_VALIDATION"

	// Pipeline errors
	ErrorConversionFailed  ErrorCode = "CONVERSION_FAILED"
	ErrorRecognitionFailed ErrorCode = "RECOGNITION_FAILED"
	ErrorEmptyText         ErrorCode = "EMPTY_TEXT"
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	RequestID string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewInputValidationError(message string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInputValidation,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func NewConversionError(requestID string, message string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorConversionFailed,
		Message:   fmt.Sprintf("Failed to convert PDF: %s", message),
		RequestID: requestID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewRecognitionError(requestID string, page int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorRecognitionFailed,
		Message:   fmt.Sprintf("OCR extraction failed on page %d", page),
		RequestID: requestID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"page": page,
		},
		Cause: cause,
	}
}

func NewEmptyTextError(requestID string, pages int) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEmptyText,
		Message:   "No text could be extracted from the PDF. The file may be an image-only PDF or empty.",
		RequestID: requestID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"pages": pages,
		},
	}
}

func NewProcessingTimeoutError(requestID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		RequestID: requestID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

// WithRequestID stamps the request id on the error if it has none yet.
func (e *ProcessingError) WithRequestID(requestID string) *ProcessingError {
	if e.RequestID == "" {
		e.RequestID = requestID
	}
	return e
}

// ToMap converts error to map for status tracking and logs
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}

// CodeOf returns the code of the first ProcessingError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe.Code, true
	}
	return "", false
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// HTTPStatus maps an error to the status the API answers with.
func HTTPStatus(err error) int {
	if Is(err, ErrorInputValidation) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// MessageOf returns the client-facing message carried by err, or fallback
// when err is not a ProcessingError.
func MessageOf(err error, fallback string) string {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe.Message
	}
	return fallback
}
