package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_ForwardChain(t *testing.T) {
	chain := []State{StateQueued, StateExtractingMetadata, StateDetecting, StateScoring, StateCompleted}
	for i := 0; i < len(chain)-1; i++ {
		assert.Truef(t, CanTransition(chain[i], chain[i+1]), "%s -> %s", chain[i], chain[i+1])
	}

	// loncat stage tidak boleh
	assert.False(t, CanTransition(StateQueued, StateDetecting))
	assert.False(t, CanTransition(StateExtractingMetadata, StateScoring))
	// mundur juga tidak
	assert.False(t, CanTransition(StateDetecting, StateExtractingMetadata))
	assert.False(t, CanTransition(StateScoring, StateQueued))
}

func TestCanTransition_FailCancelFromAnyNonTerminal(t *testing.T) {
	for _, from := range []State{StateQueued, StateExtractingMetadata, StateDetecting, StateScoring} {
		assert.Truef(t, CanTransition(from, StateFailed), "%s -> FAILED", from)
		assert.Truef(t, CanTransition(from, StateCancelled), "%s -> CANCELLED", from)
	}
}

func TestCanTransition_TerminalAbsorbing(t *testing.T) {
	for _, from := range []State{StateCompleted, StateFailed, StateCancelled} {
		assert.True(t, from.Terminal())
		for _, to := range []State{StateQueued, StateDetecting, StateCompleted, StateFailed, StateCancelled} {
			assert.Falsef(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStageProgress_MonotonicAlongPipeline(t *testing.T) {
	chain := []State{StateQueued, StateExtractingMetadata, StateDetecting, StateScoring, StateCompleted}
	prev := -1
	for _, s := range chain {
		p := StageProgress(s)
		assert.Greaterf(t, p, prev, "progress at %s", s)
		prev = p
	}
	assert.Equal(t, 0, StageProgress(StateQueued))
	assert.Equal(t, 100, StageProgress(StateCompleted))
}

func TestComputeBatchStatus(t *testing.T) {
	list := []*AnalysisJob{
		{ID: "a", State: StateQueued},
		{ID: "b", State: StateDetecting},
		{ID: "c", State: StateScoring},
		{ID: "d", State: StateCompleted},
		{ID: "e", State: StateFailed},
		{ID: "f", State: StateCancelled},
	}
	st := ComputeBatchStatus("batch-1", list)
	assert.Equal(t, BatchID("batch-1"), st.BatchID)
	assert.Equal(t, 1, st.Queued)
	assert.Equal(t, 2, st.Running)
	assert.Equal(t, 1, st.Completed)
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, 1, st.Cancelled)
	assert.Equal(t, 6, st.Total)

	// view turunan: hitung ulang setelah state berubah
	list[0].State = StateCompleted
	st = ComputeBatchStatus("batch-1", list)
	assert.Equal(t, 0, st.Queued)
	assert.Equal(t, 2, st.Completed)
}
