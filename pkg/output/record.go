// Package output provides JSONL output for listing results.
//
// Output is structured as typed record envelopes containing entries,
// errors, and a page summary. Each line is a self-contained JSON
// object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/3leaps/nimbusview/pkg/listing"
	"github.com/3leaps/nimbusview/pkg/provider"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: nimbusview.<type>.v<version>
const (
	// TypeEntry identifies listing entry records.
	TypeEntry = "nimbusview.entry.v1"

	// TypeError identifies error records.
	TypeError = "nimbusview.error.v1"

	// TypeSummary identifies page summary records.
	TypeSummary = "nimbusview.summary.v1"

	// TypePrefix identifies per-prefix tree records.
	TypePrefix = "nimbusview.prefix.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "nimbusview.entry.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// JobID is the correlation ID for this invocation.
	JobID string `json:"job_id"`

	// Provider identifies the storage provider (e.g., "s3", "azblob").
	Provider string `json:"provider"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// EntryRecord is the data payload for one listing row.
type EntryRecord struct {
	Kind          string     `json:"kind"`
	Name          string     `json:"name"`
	Label         string     `json:"label"`
	Location      string     `json:"location"`
	ContentLength *int64     `json:"content_length,omitempty"`
	LastModified  *time.Time `json:"last_modified,omitempty"`
}

// NewEntryRecord builds an EntryRecord from an entry and its display label
// and location.
func NewEntryRecord(e listing.Entry, label, location string) *EntryRecord {
	return &EntryRecord{
		Kind:          e.Kind.String(),
		Name:          e.Name,
		Label:         label,
		Location:      location,
		ContentLength: e.ContentLength,
		LastModified:  e.LastModified,
	}
}

// ErrorRecord is the data payload for errors.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Prefix is the prefix being listed when the error occurred.
	Prefix string `json:"prefix,omitempty"`

	// Page is the zero-based page index requested.
	Page int `json:"page"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeAccessDenied indicates permission failure.
	ErrCodeAccessDenied = "ACCESS_DENIED"

	// ErrCodeNotFound indicates the container or bucket was not found.
	ErrCodeNotFound = "NOT_FOUND"

	// ErrCodeThrottled indicates rate limiting.
	ErrCodeThrottled = "THROTTLED"

	// ErrCodeUnavailable indicates the listing API could not be reached.
	ErrCodeUnavailable = "UNAVAILABLE"

	// ErrCodeInvalidCursor indicates a continuation token was rejected.
	ErrCodeInvalidCursor = "INVALID_CURSOR"

	// ErrCodePageOutOfRange indicates a page beyond the known cursors.
	ErrCodePageOutOfRange = "PAGE_OUT_OF_RANGE"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal = "INTERNAL"
)

// ErrorCode maps a provider error to an ErrorRecord code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case provider.IsAccessDenied(err), provider.IsInvalidCredentials(err):
		return ErrCodeAccessDenied
	case provider.IsNotFound(err), provider.IsBucketNotFound(err):
		return ErrCodeNotFound
	case provider.IsThrottled(err):
		return ErrCodeThrottled
	case provider.IsInvalidCursor(err):
		return ErrCodeInvalidCursor
	case provider.IsProviderUnavailable(err):
		return ErrCodeUnavailable
	default:
		return ErrCodeInternal
	}
}

// SummaryRecord is the data payload emitted after a page.
type SummaryRecord struct {
	Prefix     string `json:"prefix"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	HasNext    bool   `json:"has_next"`
	Folders    int    `json:"folders"`
	Files      int    `json:"files"`
	BytesTotal int64  `json:"bytes_total"`
	Sort       string `json:"sort,omitempty"`

	// Duration is the wall time spent producing the page.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`
}

// PrefixRecord summarizes the direct contents of one prefix in a tree walk.
type PrefixRecord struct {
	Prefix  string `json:"prefix"`
	Depth   int    `json:"depth"`
	Folders int    `json:"folders"`
	Files   int    `json:"files"`
	Bytes   int64  `json:"bytes"`
	Pages   int    `json:"pages"`

	// Truncated is set when the page limit stopped the listing early.
	Truncated bool `json:"truncated,omitempty"`
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
