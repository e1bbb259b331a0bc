package jobdb

import "strings"

// JobClass is a named set of states with a shared scheduling meaning,
// stored as a bitmask over state ordinals.
type JobClass struct {
	Name    string
	Mask    uint32
	Members []JobState
}

func newClass(name string, members ...JobState) JobClass {
	var mask uint32
	for _, s := range members {
		mask |= 1 << uint(s)
	}
	return JobClass{Name: name, Mask: mask, Members: members}
}

var (
	// ClassAtWMS: the job is known to the backend but not yet running.
	ClassAtWMS      = newClass("ATWMS", StateSubmitted, StateWaiting, StateReady, StateQueued)
	ClassRunning    = newClass("RUNNING", StateRunning)
	ClassProcessing = newClass("PROCESSING", StateSubmitted, StateWaiting, StateReady, StateQueued, StateRunning)
	// ClassReady: the job may be (re)submitted.
	ClassReady    = newClass("READY", StateInit, StateFailed, StateAborted, StateCancelled)
	ClassDone     = newClass("DONE", StateDone)
	ClassSuccess  = newClass("SUCCESS", StateSuccess)
	ClassDisabled = newClass("DISABLED", StateDisabled)
	// ClassEndState: nothing more will happen to the job.
	ClassEndState  = newClass("ENDSTATE", StateSuccess, StateDisabled)
	ClassProcessed = newClass("PROCESSED", StateSuccess, StateFailed, StateCancelled, StateAborted)
)

var classTable = []JobClass{
	ClassAtWMS,
	ClassRunning,
	ClassProcessing,
	ClassReady,
	ClassDone,
	ClassSuccess,
	ClassDisabled,
	ClassEndState,
	ClassProcessed,
}

// Contains reports whether state is a member of the class.
func (c JobClass) Contains(state JobState) bool {
	if !state.Valid() {
		return false
	}
	return c.Mask&(1<<uint(state)) != 0
}

func (c JobClass) String() string {
	return c.Name
}

// Classes returns the predefined classes in table order.
func Classes() []JobClass {
	out := make([]JobClass, len(classTable))
	copy(out, classTable)
	return out
}

// ClassByName looks up a predefined class, case-insensitively.
func ClassByName(name string) (JobClass, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, c := range classTable {
		if c.Name == name {
			return c, true
		}
	}
	return JobClass{}, false
}
