package jobdb

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Record keys with a fixed meaning. Everything else in a record belongs to
// the job's metadata bag.
const (
	KeyStatus    = "status"
	KeyID        = "id"
	KeyAttempt   = "attempt"
	KeySubmitted = "submitted"
	KeyChanged   = "changed"
	KeyRuntime   = "runtime"
	KeyDest      = "dest"
	KeyLegacy    = "legacy"

	historyPrefix = "history_"
	wmsIDPrefix   = "WMSID"

	// keyWMSID is an old spelling of the identifier key; it is dropped on load.
	keyWMSID = "wmsId"
)

// now is the clock used for timestamps. Tests replace it.
var now = time.Now

// Job is the in-memory record of a single job.
//
// Timestamps are seconds since the epoch (0 = never). The attempt and
// timestamp texts read from disk are written back verbatim for as long as
// the typed field still holds the value parsed from them.
type Job struct {
	State     JobState
	NextState *JobState
	Attempt   int
	History   map[int]string
	WMSID     string
	Submitted float64
	Changed   float64

	meta map[string]string
	raw  map[string]rawValue
}

// rawValue is a numeric field as read from disk.
type rawValue struct {
	text string
	num  float64
}

// NewJob returns a fresh job in state INIT.
func NewJob() *Job {
	return &Job{
		State:   StateInit,
		History: make(map[int]string),
		meta:    make(map[string]string),
	}
}

// Load reads the record file at path and builds a Job from it.
func Load(path string) (*Job, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}
	rec, err := DecodeRecord(bytes.NewReader(b))
	if err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}
	return LoadData(path, rec)
}

// LoadData builds a Job from a decoded record. name is only used in error
// messages. Legacy identifiers are normalized to the WMSID form; the raw
// value is kept under the "legacy" key so GetAll can write it back
// unchanged until the next AssignID.
//
// rec is not modified. On any failure no Job is returned.
func LoadData(name string, rec Record) (*Job, error) {
	job, err := loadData(rec.Clone())
	if err != nil {
		content, _ := EncodeRecord(rec)
		return nil, &ParseError{Source: name, Content: string(content), Err: err}
	}
	return job, nil
}

func loadData(data Record) (*Job, error) {
	job := NewJob()

	job.State = StateFailed
	if st, ok := ParseState(data[KeyStatus]); ok {
		job.State = st
	}

	if raw, ok := data[KeyID]; ok {
		id, err := normalizeWMSID(raw)
		if err != nil {
			return nil, err
		}
		if id != raw {
			data[KeyLegacy] = raw
		}
		job.WMSID = id
	}

	if v, ok := data[KeyAttempt]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("attempt: %w", err)
		}
		if n < 0 {
			return nil, fmt.Errorf("attempt: negative value %d", n)
		}
		job.Attempt = n
		job.keepRaw(KeyAttempt, v, float64(n))
	}

	submitted, hasSubmitted := data[KeySubmitted]
	if hasSubmitted {
		f, err := parseTimestamp(submitted)
		if err != nil {
			return nil, fmt.Errorf("submitted: %w", err)
		}
		job.Submitted = f
		job.keepRaw(KeySubmitted, submitted, f)
	}

	if _, ok := data[KeyRuntime]; !ok {
		runtime := 0.0
		if hasSubmitted {
			runtime = unixSeconds(now()) - job.Submitted
		}
		data[KeyRuntime] = formatTimestamp(runtime)
	}

	if v, ok := data[KeyChanged]; ok {
		f, err := parseTimestamp(v)
		if err != nil {
			return nil, fmt.Errorf("changed: %w", err)
		}
		job.Changed = f
		job.keepRaw(KeyChanged, v, f)
	}

	for k := 1; k <= job.Attempt; k++ {
		key := historyKey(k)
		if dest, ok := data[key]; ok {
			job.History[k] = dest
			delete(data, key)
		}
	}

	for _, key := range []string{KeyStatus, keyWMSID, KeyID, KeyAttempt, KeySubmitted, KeyChanged} {
		delete(data, key)
	}
	job.meta = data
	return job, nil
}

// normalizeWMSID converts legacy identifiers to WMSID.<backend>.<id>.
func normalizeWMSID(raw string) (string, error) {
	if strings.HasPrefix(raw, wmsIDPrefix) {
		return raw, nil
	}
	if strings.HasPrefix(raw, "https") {
		return wmsIDPrefix + ".GLITEWMS." + raw, nil
	}
	localID, backend, ok := strings.Cut(raw, ".")
	if !ok {
		return "", fmt.Errorf("legacy id %q has no backend suffix", raw)
	}
	return fmt.Sprintf("%s.%s.%s", wmsIDPrefix, backend, localID), nil
}

// GetAll renders the job as a flat record: the metadata bag plus the typed
// fields. If a legacy identifier is still pending it is written as "id" in
// place of the canonical one and removed from the bag.
func (j *Job) GetAll() Record {
	out := make(Record, len(j.meta)+len(j.History)+5)
	for k, v := range j.meta {
		out[k] = v
	}
	out[KeyStatus] = j.State.String()
	out[KeyAttempt] = j.numeric(KeyAttempt, float64(j.Attempt), strconv.Itoa(j.Attempt))
	out[KeySubmitted] = j.numeric(KeySubmitted, j.Submitted, formatTimestamp(j.Submitted))
	out[KeyChanged] = j.numeric(KeyChanged, j.Changed, formatTimestamp(j.Changed))
	for k, dest := range j.History {
		out[historyKey(k)] = dest
	}
	if j.WMSID != "" {
		out[KeyID] = j.WMSID
		if legacy := j.meta[KeyLegacy]; legacy != "" {
			out[KeyID] = legacy
			delete(j.meta, KeyLegacy)
			delete(out, KeyLegacy)
		}
	}
	return out
}

// Set stores a metadata value. Last write wins.
func (j *Job) Set(key, value string) {
	j.ensureMeta()
	j.meta[key] = value
}

// Get returns a metadata value or def when the key is absent.
func (j *Job) Get(key, def string) string {
	if v, ok := j.meta[key]; ok {
		return v
	}
	return def
}

// Lookup returns a metadata value and whether it was present.
func (j *Job) Lookup(key string) (string, bool) {
	v, ok := j.meta[key]
	return v, ok
}

// Delete removes a metadata key.
func (j *Job) Delete(key string) {
	delete(j.meta, key)
}

// Metadata returns a copy of the metadata bag.
func (j *Job) Metadata() map[string]string {
	out := make(map[string]string, len(j.meta))
	for k, v := range j.meta {
		out[k] = v
	}
	return out
}

// Update moves the job to state and records the current destination for
// the current attempt, overwriting any earlier entry for that attempt.
func (j *Job) Update(state JobState) {
	j.State = state
	j.Changed = unixSeconds(now())
	if j.History == nil {
		j.History = make(map[int]string)
	}
	j.History[j.Attempt] = j.Get(KeyDest, "N/A")
}

// AssignID starts a new submission attempt under wmsID. Call it once per
// attempt, before the Update calls belonging to that attempt.
func (j *Job) AssignID(wmsID string) {
	delete(j.meta, KeyLegacy)
	j.WMSID = wmsID
	j.Attempt++
	j.Submitted = unixSeconds(now())
}

// InClass reports whether the job's state belongs to c.
func (j *Job) InClass(c JobClass) bool {
	return c.Contains(j.State)
}

// SubmittedAt returns the submission time, or the zero time if the job was
// never submitted.
func (j *Job) SubmittedAt() time.Time {
	return secondsToTime(j.Submitted)
}

// ChangedAt returns the time of the last state update, or the zero time.
func (j *Job) ChangedAt() time.Time {
	return secondsToTime(j.Changed)
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	c := *j
	if j.NextState != nil {
		ns := *j.NextState
		c.NextState = &ns
	}
	c.History = make(map[int]string, len(j.History))
	for k, v := range j.History {
		c.History[k] = v
	}
	c.meta = j.Metadata()
	c.raw = make(map[string]rawValue, len(j.raw))
	for k, v := range j.raw {
		c.raw[k] = v
	}
	return &c
}

func (j *Job) keepRaw(key, text string, num float64) {
	if j.raw == nil {
		j.raw = make(map[string]rawValue, 3)
	}
	j.raw[key] = rawValue{text: text, num: num}
}

// numeric returns the text read from disk for key if the field still holds
// the value parsed from it, and formatted otherwise.
func (j *Job) numeric(key string, num float64, formatted string) string {
	if rv, ok := j.raw[key]; ok && rv.num == num {
		return rv.text
	}
	return formatted
}

func (j *Job) ensureMeta() {
	if j.meta == nil {
		j.meta = make(map[string]string)
	}
}

func historyKey(attempt int) string {
	return historyPrefix + strconv.Itoa(attempt)
}

func parseTimestamp(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid timestamp %q", v)
	}
	return f, nil
}

func formatTimestamp(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func secondsToTime(f float64) time.Time {
	if f == 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
