// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, not_found) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., export_failed, list_failed) are reserved for
//     failures that cannot be conveyed by status alone.
//
// The ingestion endpoints answer tracking clients with plain text for 400/405
// and only use these codes for 413 and 503.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_found",
//	  "message": "datalogger not found"
//	}
package handlers

const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeNotFound           = "not_found"
	ErrCodeRateLimited        = "too_many_requests"
	ErrCodeInternal           = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodePayloadTooLarge    = "payload_too_large"

	// Domain-specific:
	ErrCodeListFailed       = "list_failed"
	ErrCodeExportFailed     = "export_failed"
	ErrCodeArchiveFailed    = "archive_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
