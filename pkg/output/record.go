// Package output provides JSONL export of job records.
//
// Output is structured as typed record envelopes. Each line is a
// self-contained JSON object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants follow the pattern gridjobs.<type>.v<version>.
const (
	// TypeJob identifies job records.
	TypeJob = "gridjobs.job.v1"

	// TypeError identifies error records.
	TypeError = "gridjobs.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "gridjobs.summary.v1"
)

// Record is the envelope for all JSONL output. The Type field determines
// how to interpret Data.
type Record struct {
	Type string    `json:"type"`
	TS   time.Time `json:"ts"`

	// Registry is the job directory the records were read from.
	Registry string `json:"registry"`

	Data json.RawMessage `json:"data"`
}

// JobRecord is the data payload for a single job.
type JobRecord struct {
	// Number is the job number within the registry.
	Number int `json:"number"`

	State   string `json:"state"`
	Attempt int    `json:"attempt"`
	WMSID   string `json:"wms_id,omitempty"`

	// Submitted and Changed are zero when the job never reached that point.
	Submitted time.Time `json:"submitted,omitzero"`
	Changed   time.Time `json:"changed,omitzero"`

	// History maps attempt number to destination, keyed as strings in JSON.
	History map[int]string `json:"history,omitempty"`

	// Fields is the full persisted record.
	Fields map[string]string `json:"fields"`
}

// ErrorRecord is the data payload for errors.
//
// Errors are emitted as records rather than failing the entire export,
// allowing partial results when a job cannot be rendered.
type ErrorRecord struct {
	// Code is a machine-readable error code, e.g. PARSE_ERROR.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Job is the job number related to this error, if any.
	Job *int `json:"job,omitempty"`

	Details any `json:"details,omitempty"`
}

// SummaryRecord is emitted once at the end of an export.
type SummaryRecord struct {
	// Jobs is the number of job records written.
	Jobs int `json:"jobs"`

	// Capacity is the registry's job limit.
	Capacity int `json:"capacity"`

	// States counts exported jobs per state name.
	States map[string]int `json:"states"`

	Errors int `json:"errors"`

	Duration      time.Duration `json:"duration_ns"`
	DurationHuman string        `json:"duration"`

	// Selector is the selector expression the export was filtered by.
	Selector string `json:"selector,omitempty"`
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
