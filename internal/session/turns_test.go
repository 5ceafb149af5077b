package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rag-agent/backend/internal/retrieval"
)

func TestRecordAppendsAndNumbersTurns(t *testing.T) {
	tracker := NewTurnTracker(20)
	state := &State{ID: "s1"}

	docs := []retrieval.Document{{Content: "ctx", Source: "a", Score: 0.8}}
	first := tracker.Record(state, "q1", "a1", 0.8, docs)
	second := tracker.Record(state, "q2", "a2", 0.6, nil)

	assert.Equal(t, 1, first.TurnNumber)
	assert.Equal(t, 2, second.TurnNumber)
	assert.Equal(t, 1, first.ContextCount)
	assert.Equal(t, 0, second.ContextCount)
	assert.Len(t, state.Turns, 2)
	assert.False(t, first.Timestamp.IsZero())
}

func TestRecordEnforcesFIFOCap(t *testing.T) {
	tracker := NewTurnTracker(20)
	state := &State{ID: "s1"}

	for i := 1; i <= 25; i++ {
		tracker.Record(state, fmt.Sprintf("q%d", i), "a", 0.5, nil)
	}

	require.Len(t, state.Turns, 20)
	assert.Equal(t, "q6", state.Turns[0].Question)
	assert.Equal(t, "q25", state.Turns[19].Question)
	assert.Equal(t, 25, state.Turns[19].TurnNumber)
}

func TestConfidenceTrend(t *testing.T) {
	tracker := NewTurnTracker(20)

	tests := []struct {
		name        string
		confidences []float64
		want        string
	}{
		{"too-few-turns", []float64{0.5, 0.6}, TrendStable},
		{"improving", []float64{0.4, 0.5, 0.6}, TrendImproving},
		{"declining", []float64{0.8, 0.6, 0.5}, TrendDeclining},
		{"flat", []float64{0.5, 0.5, 0.5}, TrendStable},
		{"mixed", []float64{0.4, 0.7, 0.5}, TrendStable},
		{"plateau-is-not-improving", []float64{0.4, 0.6, 0.6}, TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &State{ID: "s1"}
			for _, c := range tt.confidences {
				tracker.Record(state, "q", "a", c, nil)
			}
			assert.Equal(t, tt.want, tracker.ConfidenceTrend(state))
		})
	}
}

func TestContextUsageTrend(t *testing.T) {
	tracker := NewTurnTracker(20)
	state := &State{ID: "s1"}

	for _, n := range []int{1, 2, 3} {
		docs := make([]retrieval.Document, n)
		tracker.Record(state, "q", "a", 0.5, docs)
	}

	assert.Equal(t, TrendImproving, tracker.ContextUsageTrend(state))
	assert.Equal(t, 3, tracker.Depth(state))
}
