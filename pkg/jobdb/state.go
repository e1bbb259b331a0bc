package jobdb

import "strings"

// JobState is the lifecycle state of a job.
//
// NOTE: The ordinal of each state is used as a bit index by JobClass and the
// upper-case name is what record files store. Both are part of the stable
// on-disk contract: never reorder or rename.
type JobState int

const (
	StateInit JobState = iota
	StateSubmitted
	StateDisabled
	StateReady
	StateWaiting
	StateQueued
	StateAborted
	StateRunning
	StateCancelled
	StateDone
	StateFailed
	StateSuccess
)

var stateNames = [...]string{
	StateInit:      "INIT",
	StateSubmitted: "SUBMITTED",
	StateDisabled:  "DISABLED",
	StateReady:     "READY",
	StateWaiting:   "WAITING",
	StateQueued:    "QUEUED",
	StateAborted:   "ABORTED",
	StateRunning:   "RUNNING",
	StateCancelled: "CANCELLED",
	StateDone:      "DONE",
	StateFailed:    "FAILED",
	StateSuccess:   "SUCCESS",
}

var stateByName = func() map[string]JobState {
	m := make(map[string]JobState, len(stateNames))
	for i, name := range stateNames {
		m[name] = JobState(i)
	}
	return m
}()

// States returns all states in ordinal order.
func States() []JobState {
	out := make([]JobState, len(stateNames))
	for i := range stateNames {
		out[i] = JobState(i)
	}
	return out
}

// Valid reports whether s is one of the known states.
func (s JobState) Valid() bool {
	return s >= 0 && int(s) < len(stateNames)
}

func (s JobState) String() string {
	if !s.Valid() {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// ParseState looks up a state by name. Matching is case-insensitive and
// ignores surrounding whitespace.
func ParseState(name string) (JobState, bool) {
	s, ok := stateByName[strings.ToUpper(strings.TrimSpace(name))]
	return s, ok
}

// MarshalText implements encoding.TextMarshaler.
func (s JobState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode
// to StateFailed, matching how record files are read.
func (s *JobState) UnmarshalText(b []byte) error {
	st, ok := ParseState(string(b))
	if !ok {
		st = StateFailed
	}
	*s = st
	return nil
}
