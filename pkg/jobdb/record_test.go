package jobdb

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRecord_SortedAndEscaped(t *testing.T) {
	rec := Record{
		"status":    "RUNNING",
		"attempt":   "2",
		"changed":   "1700000000.25",
		"history_1": "ce01.example.org",
		"note":      "line one\nline \"two\" a=b",
		"negative":  "-3",
		"exp":       "1e5",
	}

	b, err := EncodeRecord(rec)
	require.NoError(t, err)

	want := strings.Join([]string{
		`attempt=2`,
		`changed=1700000000.25`,
		`exp="1e5"`,
		`history_1="ce01.example.org"`,
		`negative=-3`,
		`note="line one\nline \"two\" a=b"`,
		`status="RUNNING"`,
	}, "\n") + "\n"
	assert.Equal(t, want, string(b))

	got, err := DecodeRecord(strings.NewReader(string(b)))
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestDecodeRecord_HandEdited(t *testing.T) {
	input := `
# edited by hand
status = "DONE"
attempt= 3
dest=ce02.example.org
empty=""
`
	got, err := DecodeRecord(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, Record{
		"status":  "DONE",
		"attempt": "3",
		"dest":    "ce02.example.org",
		"empty":   "",
	}, got)
}

func TestDecodeRecord_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "missing separator", input: "status\n"},
		{name: "empty key", input: "=1\n"},
		{name: "bad quoting", input: "status=\"RUNNING\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRecord(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestEncodeRecord_RejectsBadKeys(t *testing.T) {
	_, err := EncodeRecord(Record{"a=b": "1"})
	assert.Error(t, err)

	_, err = EncodeRecord(Record{"": "1"})
	assert.Error(t, err)
}
