package output

import (
	"github.com/3leaps/gridjobs/pkg/jobdb"
)

// NewJobRecord renders job number n for export.
//
// The payload is built from a clone, so rendering does not consume the
// legacy id of the live job.
func NewJobRecord(n int, job *jobdb.Job) *JobRecord {
	c := job.Clone()
	rec := &JobRecord{
		Number:    n,
		State:     c.State.String(),
		Attempt:   c.Attempt,
		WMSID:     c.WMSID,
		Submitted: c.SubmittedAt(),
		Changed:   c.ChangedAt(),
		Fields:    c.GetAll(),
	}
	if len(c.History) > 0 {
		rec.History = make(map[int]string, len(c.History))
		for k, v := range c.History {
			rec.History[k] = v
		}
	}
	return rec
}

// StateCounts tallies job records by state name.
func StateCounts(jobs []*JobRecord) map[string]int {
	out := make(map[string]int)
	for _, j := range jobs {
		out[j.State]++
	}
	return out
}
