// Package errors provides structured error handling for partyline services.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// History errors
	CodeHistoryCorrupt     Code = "HISTORY_CORRUPT"
	CodeHistoryPersist     Code = "HISTORY_PERSIST"
	CodeHistoryUnavailable Code = "HISTORY_UNAVAILABLE"

	// Identity errors
	CodeIdentityInvalid     Code = "IDENTITY_INVALID"
	CodeIdentityUnavailable Code = "IDENTITY_UNAVAILABLE"

	// Configuration errors
	CodeConfigInvalid Code = "CONFIG_INVALID"
)

// HTTPStatus maps domain codes to the status used on HTTP surfaces.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeIdentityInvalid:
		return http.StatusUnauthorized
	case CodeIdentityUnavailable, CodeHistoryUnavailable:
		return http.StatusServiceUnavailable
	case CodeConfigInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
