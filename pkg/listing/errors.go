package listing

import (
	"errors"
	"fmt"
)

// Sentinel errors for listing and navigation operations.
var (
	// ErrFetch indicates the remote listing could not be retrieved or parsed.
	// It covers transport failures, non-success status codes and malformed
	// index documents. The caller may retry.
	ErrFetch = errors.New("fetch failed")

	// ErrNavigationBlocked indicates the target folder lies outside the
	// source root. No request was issued.
	ErrNavigationBlocked = errors.New("navigation blocked: target outside root")

	// ErrNotAFolder indicates a descend was attempted on a file entry.
	ErrNotAFolder = errors.New("entry is not a folder")

	// ErrNotAFile indicates a file operation was attempted on a folder entry.
	ErrNotAFile = errors.New("entry is not a file")

	// ErrHistoryEmpty indicates Back was requested with nothing to go back to.
	ErrHistoryEmpty = errors.New("history is empty")

	// ErrEntryNotFound indicates no entry in the current listing matches.
	ErrEntryNotFound = errors.New("entry not found")
)

// Error wraps listing errors with context.
type Error struct {
	// Op is the operation that failed (e.g., "list", "browse").
	Op string

	// Protocol is the listing protocol in use, if known.
	Protocol Protocol

	// URL is the folder or file URL involved.
	URL string

	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	if e.Protocol != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Protocol, e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// FetchError builds an *Error that matches ErrFetch and carries cause in its
// message.
func FetchError(op string, proto Protocol, url string, cause error) error {
	if cause == nil {
		return &Error{Op: op, Protocol: proto, URL: url, Err: ErrFetch}
	}
	return &Error{Op: op, Protocol: proto, URL: url, Err: fmt.Errorf("%w: %w", ErrFetch, cause)}
}

// IsFetch returns true if the error indicates a listing fetch failure.
func IsFetch(err error) bool {
	return errors.Is(err, ErrFetch)
}

// IsNavigationBlocked returns true if the error indicates a root escape.
func IsNavigationBlocked(err error) bool {
	return errors.Is(err, ErrNavigationBlocked)
}

// IsHistoryEmpty returns true if Back had nothing to return to.
func IsHistoryEmpty(err error) bool {
	return errors.Is(err, ErrHistoryEmpty)
}
