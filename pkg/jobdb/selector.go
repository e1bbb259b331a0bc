package jobdb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Selector decides whether a job takes part in an iteration. A nil Selector
// matches every job.
type Selector func(jobNum int, job *Job) bool

// All matches every job.
func All(int, *Job) bool { return true }

// And matches when every non-nil selector matches. It returns nil when no
// selector is given, and the single selector unchanged when only one is.
func And(sels ...Selector) Selector {
	active := compact(sels)
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return func(n int, job *Job) bool {
		for _, s := range active {
			if !s(n, job) {
				return false
			}
		}
		return true
	}
}

// Or matches when any non-nil selector matches. With no selectors it
// returns nil (match all).
func Or(sels ...Selector) Selector {
	active := compact(sels)
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return func(n int, job *Job) bool {
		for _, s := range active {
			if s(n, job) {
				return true
			}
		}
		return false
	}
}

// Not inverts s. Not(nil) matches nothing.
func Not(s Selector) Selector {
	return func(n int, job *Job) bool {
		return s != nil && !s(n, job)
	}
}

func compact(sels []Selector) []Selector {
	out := make([]Selector, 0, len(sels))
	for _, s := range sels {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// InClass matches jobs whose state belongs to c.
func InClass(c JobClass) Selector {
	return func(_ int, job *Job) bool {
		return c.Contains(job.State)
	}
}

// InStates matches jobs in any of the given states.
func InStates(states ...JobState) Selector {
	return InClass(newClass("", states...))
}

// NumberRange matches job numbers in [lo, hi].
func NumberRange(lo, hi int) Selector {
	return func(n int, _ *Job) bool {
		return n >= lo && n <= hi
	}
}

// MetaMatch matches jobs whose metadata value for key matches the glob
// pattern. Jobs without the key never match.
func MetaMatch(key, pattern string) Selector {
	return func(_ int, job *Job) bool {
		v, ok := job.Lookup(key)
		if !ok {
			return false
		}
		matched, _ := doublestar.Match(pattern, v)
		return matched
	}
}

// WMSIDMatch matches jobs whose WMS id matches the glob pattern.
func WMSIDMatch(pattern string) Selector {
	return func(_ int, job *Job) bool {
		if job.WMSID == "" {
			return false
		}
		matched, _ := doublestar.Match(pattern, job.WMSID)
		return matched
	}
}

// ParseSelector builds a selector from a comma separated list of terms that
// must all match:
//
//	class:ATWMS          job state is in the named class
//	state:RUNNING|DONE   job state is one of the listed states
//	range:10-20          job number is in the inclusive range
//	id:WMSID.CREAM.*     WMS id matches the glob
//	meta:dest=*.cern.ch  metadata value matches the glob
//
// A term prefixed with '!' is negated. An empty expression yields a nil
// selector.
func ParseSelector(expr string) (Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	var sels []Selector
	for _, term := range strings.Split(expr, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		negate := strings.HasPrefix(term, "!")
		if negate {
			term = strings.TrimSpace(term[1:])
		}
		sel, err := parseTerm(term)
		if err != nil {
			return nil, fmt.Errorf("selector term %q: %w", term, err)
		}
		if negate {
			sel = Not(sel)
		}
		sels = append(sels, sel)
	}
	return And(sels...), nil
}

func parseTerm(term string) (Selector, error) {
	kind, arg, ok := strings.Cut(term, ":")
	if !ok {
		return nil, fmt.Errorf("expected <kind>:<value>")
	}
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, fmt.Errorf("missing value")
	}

	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "class":
		c, ok := ClassByName(arg)
		if !ok {
			return nil, fmt.Errorf("unknown job class %q", arg)
		}
		return InClass(c), nil
	case "state":
		var states []JobState
		for _, name := range strings.Split(arg, "|") {
			st, ok := ParseState(name)
			if !ok {
				return nil, fmt.Errorf("unknown job state %q", name)
			}
			states = append(states, st)
		}
		return InStates(states...), nil
	case "range":
		loStr, hiStr, ok := strings.Cut(arg, "-")
		if !ok {
			return nil, fmt.Errorf("expected <lo>-<hi>")
		}
		lo, err := strconv.Atoi(strings.TrimSpace(loStr))
		if err != nil {
			return nil, fmt.Errorf("range start: %w", err)
		}
		hi, err := strconv.Atoi(strings.TrimSpace(hiStr))
		if err != nil {
			return nil, fmt.Errorf("range end: %w", err)
		}
		if hi < lo {
			return nil, fmt.Errorf("range end %d is before start %d", hi, lo)
		}
		return NumberRange(lo, hi), nil
	case "id":
		if !doublestar.ValidatePattern(arg) {
			return nil, fmt.Errorf("invalid pattern %q", arg)
		}
		return WMSIDMatch(arg), nil
	case "meta":
		key, pattern, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected <key>=<pattern>")
		}
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
		return MetaMatch(key, pattern), nil
	default:
		return nil, fmt.Errorf("unknown selector kind %q", kind)
	}
}
