package jobdb

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setClock(t *testing.T, ts time.Time) {
	t.Helper()
	orig := now
	now = func() time.Time { return ts }
	t.Cleanup(func() { now = orig })
}

func canonicalRecord() Record {
	return Record{
		"status":    "RUNNING",
		"attempt":   "2",
		"submitted": "1700000000.5",
		"changed":   "1700000100.25",
		"runtime":   "100",
		"history_1": "ce01.example.org",
		"history_2": "ce02.example.org",
		"id":        "WMSID.CREAM.12345",
		"dest":      "ce02.example.org",
		"retcode":   "0",
	}
}

func TestLoadData_RoundTrip(t *testing.T) {
	rec := canonicalRecord()

	job, err := LoadData("job_1.txt", rec)
	require.NoError(t, err)

	assert.Equal(t, StateRunning, job.State)
	assert.Equal(t, 2, job.Attempt)
	assert.Equal(t, 1700000000.5, job.Submitted)
	assert.Equal(t, 1700000100.25, job.Changed)
	assert.Equal(t, "WMSID.CREAM.12345", job.WMSID)
	assert.Equal(t, map[int]string{1: "ce01.example.org", 2: "ce02.example.org"}, job.History)

	assert.Equal(t, rec, job.GetAll())
	assert.Equal(t, canonicalRecord(), rec, "input record must not be modified")
}

func TestLoadData_NumericFieldsVerbatim(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{key: "submitted", value: "1700000000.10"},
		{key: "submitted", value: "1700000000.123456789"},
		{key: "submitted", value: "1.7e9"},
		{key: "changed", value: " 1700000100.250 "},
		{key: "attempt", value: "01"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			rec := canonicalRecord()
			rec[tt.key] = tt.value

			job, err := LoadData("job_1.txt", rec)
			require.NoError(t, err)
			assert.Equal(t, rec, job.GetAll())
		})
	}
}

func TestJob_NumericFieldsRegeneratedOnChange(t *testing.T) {
	setClock(t, time.Unix(1700000900, 0))

	rec := canonicalRecord()
	rec["attempt"] = "02"
	rec["submitted"] = "1700000000.50"
	rec["changed"] = "1700000100.250"
	job, err := LoadData("job_1.txt", rec)
	require.NoError(t, err)

	job.Update(StateDone)
	out := job.GetAll()
	assert.Equal(t, "1700000900", out["changed"])
	assert.Equal(t, "02", out["attempt"], "update keeps the attempt text")
	assert.Equal(t, "1700000000.50", out["submitted"])

	job.AssignID("WMSID.CREAM.2")
	out = job.GetAll()
	assert.Equal(t, "3", out["attempt"])
	assert.Equal(t, "1700000900", out["submitted"])
}

func TestLoadData_MetadataExcludesIdentityKeys(t *testing.T) {
	rec := canonicalRecord()
	rec["wmsId"] = "stale"

	job, err := LoadData("job_1.txt", rec)
	require.NoError(t, err)

	meta := job.Metadata()
	for _, key := range []string{"status", "wmsId", "id", "attempt", "submitted", "changed", "history_1", "history_2"} {
		_, ok := meta[key]
		assert.False(t, ok, "key %s should not be in the metadata bag", key)
	}
	assert.Equal(t, "ce02.example.org", job.Get("dest", ""))
	assert.Equal(t, "0", job.Get("retcode", ""))
}

func TestLoadData_LegacyIDNormalization(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		wantID     string
		wantLegacy bool
	}{
		{name: "url", id: "https://x/123", wantID: "WMSID.GLITEWMS.https://x/123", wantLegacy: true},
		{name: "dotted", id: "12345.CREAM", wantID: "WMSID.CREAM.12345", wantLegacy: true},
		{name: "dotted keeps tail", id: "12345.ARC.site", wantID: "WMSID.ARC.site.12345", wantLegacy: true},
		{name: "canonical", id: "WMSID.CREAM.12345", wantID: "WMSID.CREAM.12345", wantLegacy: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := LoadData("job_7.txt", Record{"status": "QUEUED", "id": tt.id})
			require.NoError(t, err)

			assert.Equal(t, tt.wantID, job.WMSID)
			legacy, ok := job.Lookup(KeyLegacy)
			assert.Equal(t, tt.wantLegacy, ok)
			if tt.wantLegacy {
				assert.Equal(t, tt.id, legacy)
			}

			// The first serialization writes the original id back.
			assert.Equal(t, tt.id, job.GetAll()["id"])
			_, ok = job.GetAll()[KeyLegacy]
			assert.False(t, ok)
			// Legacy is consumed: afterwards the canonical form is written.
			assert.Equal(t, tt.wantID, job.GetAll()["id"])
		})
	}
}

func TestLoadData_AssignIDClearsLegacy(t *testing.T) {
	job, err := LoadData("job_7.txt", Record{"id": "12345.CREAM"})
	require.NoError(t, err)

	job.AssignID("WMSID.ARC.999")

	_, ok := job.Lookup(KeyLegacy)
	assert.False(t, ok)
	assert.Equal(t, "WMSID.ARC.999", job.GetAll()["id"])
}

func TestLoadData_Defaults(t *testing.T) {
	ts := time.Unix(1700000500, 0)
	setClock(t, ts)

	t.Run("missing status is FAILED", func(t *testing.T) {
		job, err := LoadData("job_1.txt", Record{})
		require.NoError(t, err)
		assert.Equal(t, StateFailed, job.State)
		assert.Equal(t, 0, job.Attempt)
		assert.Empty(t, job.WMSID)
		assert.Equal(t, "0", job.Get(KeyRuntime, ""))
	})

	t.Run("unknown status is FAILED", func(t *testing.T) {
		job, err := LoadData("job_1.txt", Record{"status": "BOGUS"})
		require.NoError(t, err)
		assert.Equal(t, StateFailed, job.State)
	})

	t.Run("runtime derived from submitted", func(t *testing.T) {
		job, err := LoadData("job_1.txt", Record{"submitted": "1700000000"})
		require.NoError(t, err)
		assert.Equal(t, "500", job.Get(KeyRuntime, ""))
	})

	t.Run("runtime kept when present", func(t *testing.T) {
		job, err := LoadData("job_1.txt", Record{"submitted": "1700000000", "runtime": "12"})
		require.NoError(t, err)
		assert.Equal(t, "12", job.Get(KeyRuntime, ""))
	})

	t.Run("history beyond attempt stays in metadata", func(t *testing.T) {
		job, err := LoadData("job_1.txt", Record{"attempt": "1", "history_1": "a", "history_2": "b"})
		require.NoError(t, err)
		assert.Equal(t, map[int]string{1: "a"}, job.History)
		assert.Equal(t, "b", job.Get("history_2", ""))
	})
}

func TestLoadData_Errors(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
	}{
		{name: "legacy id without backend", rec: Record{"id": "12345"}},
		{name: "non numeric attempt", rec: Record{"attempt": "two"}},
		{name: "negative attempt", rec: Record{"attempt": "-1"}},
		{name: "bad submitted", rec: Record{"submitted": "yesterday"}},
		{name: "bad changed", rec: Record{"changed": "NaN"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := LoadData("job_3.txt", tt.rec)
			require.Error(t, err)
			assert.Nil(t, job)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, "job_3.txt", perr.Source)
			assert.NotEmpty(t, perr.Content)
			assert.True(t, errors.Is(err, ErrParse))
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "job_1.txt")
		b, err := EncodeRecord(canonicalRecord())
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, b, 0644))

		job, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, canonicalRecord(), job.GetAll())
	})

	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(dir, "job_404.txt")
		_, err := Load(path)
		var perr *ParseError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, path, perr.Source)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(dir, "job_2.txt")
		require.NoError(t, os.WriteFile(path, []byte("this is not a record\n"), 0644))
		_, err := Load(path)
		var perr *ParseError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, path, perr.Source)
	})
}

func TestJob_StateTransition(t *testing.T) {
	submitAt := time.Unix(1700000000, 0)
	setClock(t, submitAt)

	job := NewJob()
	assert.Equal(t, StateInit, job.State)
	assert.Equal(t, 0, job.Attempt)

	job.AssignID("WMSID.X.1")
	assert.Equal(t, 1, job.Attempt)
	assert.Equal(t, "WMSID.X.1", job.WMSID)
	assert.Equal(t, float64(submitAt.Unix()), job.Submitted)
	assert.Equal(t, submitAt.UTC(), job.SubmittedAt())

	setClock(t, submitAt.Add(30*time.Second))
	job.Update(StateRunning)
	assert.Equal(t, StateRunning, job.State)
	assert.GreaterOrEqual(t, job.Changed, job.Submitted)
	assert.Equal(t, "N/A", job.History[1])

	job.Set(KeyDest, "ce01.example.org")
	job.Update(StateDone)
	assert.Equal(t, "ce01.example.org", job.History[1], "update overwrites the entry of the current attempt")
	assert.Equal(t, StateDone, job.State)
}

func TestJob_RealClockOrdering(t *testing.T) {
	before := float64(time.Now().UnixNano()) / 1e9

	job := NewJob()
	job.AssignID("WMSID.X.1")
	job.Update(StateRunning)

	assert.GreaterOrEqual(t, job.Submitted, before)
	assert.GreaterOrEqual(t, job.Changed, job.Submitted)
}

func TestJob_SetGet(t *testing.T) {
	job := NewJob()
	assert.Equal(t, "fallback", job.Get("missing", "fallback"))

	job.Set("k", "v1")
	job.Set("k", "v2")
	assert.Equal(t, "v2", job.Get("k", ""))

	job.Delete("k")
	_, ok := job.Lookup("k")
	assert.False(t, ok)

	var zero Job
	zero.Set("k", "v")
	assert.Equal(t, "v", zero.Get("k", ""))
}

func TestJob_Clone(t *testing.T) {
	job := NewJob()
	job.Set("dest", "a")
	job.AssignID("WMSID.X.1")
	job.Update(StateQueued)

	c := job.Clone()
	c.Set("dest", "b")
	c.History[1] = "b"

	assert.Equal(t, "a", job.Get("dest", ""))
	assert.Equal(t, "a", job.History[1])
	assert.Equal(t, job.WMSID, c.WMSID)
}

func TestJob_TimeAccessorsZero(t *testing.T) {
	job := NewJob()
	assert.True(t, job.SubmittedAt().IsZero())
	assert.True(t, job.ChangedAt().IsZero())
}
