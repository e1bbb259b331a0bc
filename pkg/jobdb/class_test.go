package jobdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobClass_Membership(t *testing.T) {
	tests := []struct {
		class   JobClass
		members []JobState
	}{
		{ClassAtWMS, []JobState{StateSubmitted, StateWaiting, StateReady, StateQueued}},
		{ClassRunning, []JobState{StateRunning}},
		{ClassProcessing, []JobState{StateSubmitted, StateWaiting, StateReady, StateQueued, StateRunning}},
		{ClassReady, []JobState{StateInit, StateFailed, StateAborted, StateCancelled}},
		{ClassDone, []JobState{StateDone}},
		{ClassSuccess, []JobState{StateSuccess}},
		{ClassDisabled, []JobState{StateDisabled}},
		{ClassEndState, []JobState{StateSuccess, StateDisabled}},
		{ClassProcessed, []JobState{StateSuccess, StateFailed, StateCancelled, StateAborted}},
	}

	for _, tt := range tests {
		t.Run(tt.class.Name, func(t *testing.T) {
			in := make(map[JobState]bool)
			for _, s := range tt.members {
				in[s] = true
			}
			for _, s := range States() {
				assert.Equal(t, in[s], tt.class.Contains(s), "state %s", s)
			}
			assert.ElementsMatch(t, tt.members, tt.class.Members)
		})
	}
}

func TestJobClass_RunningJob(t *testing.T) {
	job := NewJob()
	job.State = StateRunning

	assert.True(t, job.InClass(ClassRunning))
	assert.True(t, job.InClass(ClassProcessing))
	assert.False(t, job.InClass(ClassDone))
	assert.False(t, job.InClass(ClassSuccess))
	assert.False(t, job.InClass(ClassEndState))
	assert.False(t, job.InClass(ClassProcessed))
}

func TestJobClass_MaskValues(t *testing.T) {
	assert.Equal(t, uint32(1<<7), ClassRunning.Mask)
	assert.Equal(t, uint32(1<<11|1<<2), ClassEndState.Mask)
	assert.False(t, ClassEndState.Contains(JobState(99)))
}

func TestClassByName(t *testing.T) {
	c, ok := ClassByName("processing")
	require.True(t, ok)
	assert.Equal(t, ClassProcessing.Mask, c.Mask)

	_, ok = ClassByName("NOPE")
	assert.False(t, ok)

	assert.Len(t, Classes(), 9)
}
