// Package errors maps demolauncher failures to HTTP responses and process
// exit codes.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/3leaps/demolauncher/pkg/engine"
	"github.com/3leaps/demolauncher/pkg/listing"
	"github.com/3leaps/demolauncher/pkg/navigator"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-ID"

// Error codes used in HTTP error envelopes.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeNavigationBlocked  = "NAVIGATION_BLOCKED"
	CodeFetchFailed        = "FETCH_FAILED"
	CodeHistoryEmpty       = "HISTORY_EMPTY"
	CodeNoSource           = "NO_SOURCE"
	CodeNotAFolder         = "NOT_A_FOLDER"
	CodeNotAFile           = "NOT_A_FILE"
	CodeConflict           = "CONFLICT"
	CodeTimeout            = "TIMEOUT"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// Process exit codes, following sysexits(3) where one applies.
const (
	ExitSuccess                    = 0
	ExitFailure                    = 1
	ExitInvalidArgument            = 64
	ExitFileNotFound               = 66
	ExitExternalServiceUnavailable = 69
	ExitFileWriteError             = 73
	ExitSignalInt                  = 130
)

// ErrorBody is the payload of an HTTP error response.
type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HTTPErrorResponse is the JSON envelope for every error returned by the
// API server.
type HTTPErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// AppError is an error with an explicit HTTP status and code.
type AppError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewBadRequest returns a 400 error.
func NewBadRequest(message string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: message}
}

// NewNotFound returns a 404 error.
func NewNotFound(message string) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: CodeNotFound, Message: message}
}

// NewExternalServiceError returns a 503 error for an unreachable dependency.
func NewExternalServiceError(message string) *AppError {
	return &AppError{Status: http.StatusServiceUnavailable, Code: CodeServiceUnavailable, Message: message}
}

// WrapInternal wraps err as a 500 error. A canceled or expired ctx is
// reported as a timeout instead.
func WrapInternal(ctx context.Context, err error, message string) *AppError {
	if ctx != nil && ctx.Err() != nil {
		return &AppError{Status: http.StatusGatewayTimeout, Code: CodeTimeout, Message: message, Err: err}
	}
	return &AppError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: message, Err: err}
}

// Classify maps err to an HTTP status and error code.
func Classify(err error) (int, string) {
	var appErr *AppError
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.As(err, &appErr):
		return appErr.Status, appErr.Code
	case errors.Is(err, listing.ErrNavigationBlocked):
		return http.StatusForbidden, CodeNavigationBlocked
	case errors.Is(err, listing.ErrHistoryEmpty):
		return http.StatusConflict, CodeHistoryEmpty
	case errors.Is(err, navigator.ErrNoSource):
		return http.StatusConflict, CodeNoSource
	case errors.Is(err, listing.ErrNotAFolder):
		return http.StatusBadRequest, CodeNotAFolder
	case errors.Is(err, listing.ErrNotAFile):
		return http.StatusBadRequest, CodeNotAFile
	case errors.Is(err, listing.ErrEntryNotFound), errors.Is(err, navigator.ErrUnknownSource):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, engine.ErrAlreadyRunning):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, engine.ErrNotInstalled):
		return http.StatusServiceUnavailable, CodeServiceUnavailable
	case errors.Is(err, listing.ErrFetch):
		return http.StatusBadGateway, CodeFetchFailed
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	status, _ := Classify(err)
	switch {
	case errors.Is(err, context.Canceled):
		return ExitSignalInt
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return ExitExternalServiceUnavailable
	case status == http.StatusNotFound:
		return ExitFileNotFound
	case status >= 400 && status < 500:
		return ExitInvalidArgument
	default:
		return ExitFailure
	}
}

// RespondWithError writes err as an HTTPErrorResponse.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Classify(err)
	body := ErrorBody{
		Code:    code,
		Message: err.Error(),
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		body.Details = appErr.Details
	}
	var lerr *listing.Error
	if errors.As(err, &lerr) && lerr.URL != "" {
		if body.Details == nil {
			body.Details = map[string]any{}
		}
		body.Details["url"] = lerr.URL
	}
	if r != nil {
		body.RequestID = r.Header.Get(RequestIDHeader)
	}
	WriteJSONError(w, status, body)
}

// WriteJSONError writes body with status.
func WriteJSONError(w http.ResponseWriter, status int, body ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{Error: body})
}

// NotFoundHandler answers unknown routes.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	RespondWithError(w, r, NewNotFound(fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path)))
}

// MethodNotAllowedHandler answers known routes called with the wrong method.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	RespondWithError(w, r, &AppError{
		Status:  http.StatusMethodNotAllowed,
		Code:    CodeMethodNotAllowed,
		Message: fmt.Sprintf("method %s not allowed for %s", r.Method, r.URL.Path),
	})
}
