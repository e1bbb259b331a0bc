package jobdb

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Record is the flat key/value form of a Job as stored on disk.
//
// File format, one pair per line:
//
//	attempt=2
//	changed=1700000000.25
//	history_1="ce01.example.org"
//	id="WMSID.CREAM.12345"
//	status="RUNNING"
//
// Plain decimal numbers are written bare, every other value is written as a
// double-quoted Go string literal so that quotes, newlines and '=' survive.
// Blank lines and lines starting with '#' are ignored when reading.
type Record map[string]string

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Keys returns the record keys in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EncodeRecord renders r in the record text format with sorted keys.
func EncodeRecord(r Record) ([]byte, error) {
	var buf bytes.Buffer
	for _, k := range r.Keys() {
		if err := validKey(k); err != nil {
			return nil, err
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(encodeValue(r[k]))
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// DecodeRecord parses the record text format.
func DecodeRecord(rd io.Reader) (Record, error) {
	out := make(Record)
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, raw, ok := strings.Cut(text, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: missing '='", line)
		}
		key = strings.TrimSpace(key)
		if err := validKey(key); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		value, err := decodeValue(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("line %d: key %q: %w", line, key, err)
		}
		out[key] = value
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func validKey(k string) error {
	if k == "" {
		return fmt.Errorf("empty key")
	}
	if strings.ContainsAny(k, "=\n\r#") || strings.TrimSpace(k) != k {
		return fmt.Errorf("invalid key %q", k)
	}
	return nil
}

func encodeValue(v string) string {
	if isPlainNumber(v) {
		return v
	}
	return strconv.Quote(v)
}

func decodeValue(raw string) (string, error) {
	if strings.HasPrefix(raw, `"`) {
		v, err := strconv.Unquote(raw)
		if err != nil {
			return "", fmt.Errorf("bad quoting: %w", err)
		}
		return v, nil
	}
	return raw, nil
}

// isPlainNumber accepts optionally signed decimal integers and fractions.
// Exponents, hex and the like are quoted so they read back verbatim.
func isPlainNumber(v string) bool {
	if v == "" {
		return false
	}
	i := 0
	if v[0] == '-' {
		i++
	}
	digits, dot := 0, false
	for ; i < len(v); i++ {
		switch c := v[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits > 0 && v[len(v)-1] != '.'
}
