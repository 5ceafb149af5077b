package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThresholdBaseline(t *testing.T) {
	m := NewThresholdManager(ThresholdConfig{})
	state := &State{ID: "s1"}

	// turn 1: 0.7 - 0.05, neutral quality and complexity
	got := m.Threshold(state, 1, 0.5, 0.5)

	assert.InDelta(t, 0.65, got, 1e-9)
}

func TestThresholdTurnReliefCapsAtPointThree(t *testing.T) {
	m := NewThresholdManager(ThresholdConfig{})
	state := &State{ID: "s1"}

	atSix := m.Threshold(state, 6, 0.5, 0.5)
	atTwenty := m.Threshold(state, 20, 0.5, 0.5)

	assert.InDelta(t, 0.4, atSix, 1e-9)
	assert.InDelta(t, atSix, atTwenty, 1e-9)
}

func TestThresholdContextQualityAndComplexity(t *testing.T) {
	m := NewThresholdManager(ThresholdConfig{})
	state := &State{ID: "s1"}

	highQuality := m.Threshold(state, 1, 0.9, 0.5)
	complexConv := m.Threshold(state, 1, 0.5, 0.8)
	simpleConv := m.Threshold(state, 1, 0.5, 0.2)

	assert.InDelta(t, 0.75, highQuality, 1e-9)
	assert.InDelta(t, 0.55, complexConv, 1e-9)
	assert.InDelta(t, 0.70, simpleConv, 1e-9)
}

func TestThresholdStaysWithinBounds(t *testing.T) {
	m := NewThresholdManager(ThresholdConfig{})

	for _, state := range []*State{
		{ID: "low", ConfidenceAdjustment: -0.2},
		{ID: "high", ConfidenceAdjustment: 0.2},
	} {
		for turn := 1; turn <= 25; turn++ {
			for _, quality := range []float64{0, 0.5, 1} {
				for _, complexity := range []float64{0, 0.5, 1} {
					got := m.Threshold(state, turn, quality, complexity)
					assert.GreaterOrEqual(t, got, 0.3)
					assert.LessOrEqual(t, got, 0.95)
				}
			}
		}
	}
}

func TestRecordFeedbackNudges(t *testing.T) {
	m := NewThresholdManager(ThresholdConfig{})
	state := &State{ID: "s1"}

	m.RecordFeedback(state, 0.8, 0.7, true)
	assert.InDelta(t, 0.02, state.ConfidenceAdjustment, 1e-9)
	assert.Equal(t, 1, state.FeedbackCount)

	// second feedback decays: -0.03 * 1/(1+0.1)
	m.RecordFeedback(state, 0.5, 0.7, false)
	assert.InDelta(t, 0.02-0.03/1.1, state.ConfidenceAdjustment, 1e-9)
	assert.Equal(t, 2, state.FeedbackCount)
}

func TestRecordFeedbackMixedSignalsAreIgnored(t *testing.T) {
	m := NewThresholdManager(ThresholdConfig{})
	state := &State{ID: "s1"}

	// success but below expectation, failure but above expectation
	m.RecordFeedback(state, 0.5, 0.7, true)
	m.RecordFeedback(state, 0.9, 0.7, false)

	assert.Zero(t, state.ConfidenceAdjustment)
	assert.Equal(t, 2, state.FeedbackCount)
}

func TestRecordFeedbackClampsAdjustment(t *testing.T) {
	m := NewThresholdManager(ThresholdConfig{})
	state := &State{ID: "s1"}

	for i := 0; i < 100; i++ {
		m.RecordFeedback(state, 0.9, 0.5, true)
	}
	assert.LessOrEqual(t, state.ConfidenceAdjustment, 0.2)

	state = &State{ID: "s2"}
	for i := 0; i < 100; i++ {
		m.RecordFeedback(state, 0.1, 0.5, false)
	}
	assert.GreaterOrEqual(t, state.ConfidenceAdjustment, -0.2)
}
