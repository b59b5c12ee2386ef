package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType defines distinct categories for errors originating from TubeBrew components.
type ErrorType string

const (
	// DownloadError represents failures while streaming a video to disk.
	DownloadError ErrorType = "download_error"
	// ExtractionError represents failures reported by the extractor while resolving a URL.
	ExtractionError ErrorType = "extraction_error"
	// TranscodingError represents failures of the external media tool during MP3 conversion.
	TranscodingError ErrorType = "transcoding_error"
	// ValidationError represents invalid user input or configuration.
	ValidationError ErrorType = "validation_error"
	// SystemError represents file I/O or process execution problems.
	SystemError ErrorType = "system_error"
	// CanceledError marks work abandoned because the batch was canceled.
	CanceledError ErrorType = "canceled_error"
)

// AppOnlyMarker is the extractor message for videos that are only playable inside the official app.
const AppOnlyMarker = "The following content is not available on this app"

// StructuredError represents a detailed error originating from TubeBrew operations.
// It includes a type, message, optional details, timestamp, and a specific error code.
type StructuredError struct {
	// Type categorizes the error (e.g., DownloadError, TranscodingError).
	Type ErrorType `json:"type"`
	// Message provides a concise, human-readable description of the error.
	Message string `json:"message"`
	// Details offers additional context or the underlying error message, if available.
	Details string `json:"details,omitempty"`
	// Timestamp marks when the error occurred in RFC3339 format.
	Timestamp string `json:"timestamp"`
	// Code provides a specific integer code, see error_codes.go.
	Code int `json:"code"`

	cause error
}

// Error implements the standard `error` interface for StructuredError.
func (e *StructuredError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Message, e.Details)
}

// Unwrap returns the wrapped cause, if any.
func (e *StructuredError) Unwrap() error {
	return e.cause
}

// JSON returns the StructuredError serialized as a JSON string.
func (e *StructuredError) JSON() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// New creates a new StructuredError instance.
// It automatically sets the Timestamp to the current time.
func New(errorType ErrorType, message, details string, code int) *StructuredError {
	return &StructuredError{
		Type:      errorType,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().Format(time.RFC3339),
		Code:      code,
	}
}

// Wrap creates a new StructuredError using the message of err as Details.
// The original error stays reachable through errors.Is / errors.As.
func Wrap(err error, errorType ErrorType, message string, code int) *StructuredError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	se := New(errorType, message, details, code)
	se.cause = err
	return se
}

// IsType reports whether err (or anything it wraps) is a StructuredError of the given type.
func IsType(err error, errorType ErrorType) bool {
	var se *StructuredError
	for err != nil {
		if !stderrors.As(err, &se) {
			return false
		}
		if se.Type == errorType {
			return true
		}
		err = se.cause
	}
	return false
}

// IsAppOnlyContent reports whether the extractor refused the video as app-only content.
func IsAppOnlyContent(err error) bool {
	return err != nil && strings.Contains(err.Error(), AppOnlyMarker)
}
