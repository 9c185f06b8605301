package dto

import "net/http"

// Error codes. Format: ERR_<CATEGORY>_<DESCRIPTION>
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeRunInProgress is used when another run holds the run lock
	ErrCodeRunInProgress = "ERR_RUN_IN_PROGRESS"
	// ErrCodeRunFailed is used when a run started but hit its failure boundary
	ErrCodeRunFailed = "ERR_RUN_FAILED"
)

var errorCodeToHTTPStatus = map[string]int{
	ErrCodeInternal:      http.StatusInternalServerError,
	ErrCodeBadRequest:    http.StatusBadRequest,
	ErrCodeRunInProgress: http.StatusConflict,
	ErrCodeRunFailed:     http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status for an error code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeToHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
