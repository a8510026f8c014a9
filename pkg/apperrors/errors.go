package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrInactiveUser    = errors.New("inactive user")

	// ErrDuplicateReport signals that a report with the same content hash is already stored.
	ErrDuplicateReport = errors.New("report already uploaded")
	// ErrMalformedReport signals that a document lacks the structure needed to create a report.
	ErrMalformedReport = errors.New("malformed report document")
	// ErrPayloadTooLarge signals an upload larger than the configured limit.
	ErrPayloadTooLarge = errors.New("upload exceeds size limit")
)
