// Package output provides JSONL output for listings, downloads and errors.
//
// Each line is a typed record envelope with a type-specific payload, so a
// consumer can parse any line independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants follow the pattern demolauncher.<type>.v<version>.
const (
	// TypeEntry identifies a folder or file in a listing.
	TypeEntry = "demolauncher.entry.v1"

	// TypeSummary identifies the per-listing summary.
	TypeSummary = "demolauncher.summary.v1"

	// TypeError identifies error records.
	TypeError = "demolauncher.error.v1"

	// TypeDownload identifies a finished download.
	TypeDownload = "demolauncher.download.v1"

	// TypeProgress identifies download progress updates.
	TypeProgress = "demolauncher.progress.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "demolauncher.entry.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// SessionID correlates records from one browsing session.
	SessionID string `json:"session_id"`

	// Source is the name of the selected demo source.
	Source string `json:"source"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// EntryRecord is one listing entry.
type EntryRecord struct {
	// Kind is "folder" or "file".
	Kind string `json:"kind"`

	// Name is the display name, including the folder prefix.
	Name string `json:"name"`

	// RealID is the relative link or object key.
	RealID string `json:"real_id"`

	// URL is the absolute URL of the entry, when it could be resolved.
	URL string `json:"url,omitempty"`

	// Folder is the listed folder URL.
	Folder string `json:"folder"`

	LocallyPresent bool `json:"locally_present,omitempty"`
}

// SummaryRecord closes a listing.
type SummaryRecord struct {
	Folder     string `json:"folder"`
	Breadcrumb string `json:"breadcrumb,omitempty"`
	Folders    int    `json:"folders"`
	Files      int    `json:"files"`

	// Filter is the filter pattern applied, if any.
	Filter string `json:"filter,omitempty"`

	Duration      time.Duration `json:"duration_ns"`
	DurationHuman string        `json:"duration"`
}

// ErrorRecord is the data payload for errors.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// URL is the folder or file URL related to this error, if any.
	URL string `json:"url,omitempty"`

	// Details contains additional error context.
	Details any `json:"details,omitempty"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeFetchFailed indicates a listing or download request failed.
	ErrCodeFetchFailed = "FETCH_FAILED"

	// ErrCodeNavigationBlocked indicates a folder outside the source root.
	ErrCodeNavigationBlocked = "NAVIGATION_BLOCKED"

	// ErrCodeNotFound indicates an unknown entry or source.
	ErrCodeNotFound = "NOT_FOUND"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal = "INTERNAL"
)

// DownloadRecord describes a demo fetched to disk.
type DownloadRecord struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	LocalPath string `json:"local_path"`
	Bytes     int64  `json:"bytes"`

	// Skipped is true when the file was already present.
	Skipped bool `json:"skipped,omitempty"`

	Duration time.Duration `json:"duration_ns"`
}

// ProgressRecord is a download progress update.
type ProgressRecord struct {
	Name           string  `json:"name"`
	BytesComplete  int64   `json:"bytes_complete"`
	BytesTotal     int64   `json:"bytes_total"`
	Percent        int     `json:"percent"`
	BytesPerSecond float64 `json:"bytes_per_second,omitempty"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
