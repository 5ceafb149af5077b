package session

import (
	"go.uber.org/zap"

	"github.com/rag-agent/backend/pkg/logger"
)

// ThresholdManager computes the adaptive confidence floor a retrieved
// answer must clear for the current turn, and folds outcome feedback back
// into a bounded per-session adjustment. It is an intentionally simple
// bounded integral controller, not a learned model.
type ThresholdManager struct {
	base    float64
	min     float64
	max     float64
	maxSkew float64
}

type ThresholdConfig struct {
	Base    float64
	Min     float64
	Max     float64
	MaxSkew float64
}

func NewThresholdManager(cfg ThresholdConfig) *ThresholdManager {
	if cfg.Base == 0 {
		cfg.Base = 0.7
	}
	if cfg.Min == 0 {
		cfg.Min = 0.3
	}
	if cfg.Max == 0 {
		cfg.Max = 0.95
	}
	if cfg.MaxSkew == 0 {
		cfg.MaxSkew = 0.2
	}
	return &ThresholdManager{base: cfg.Base, min: cfg.Min, max: cfg.Max, maxSkew: cfg.MaxSkew}
}

// Threshold derives the confidence floor for one turn. Later turns tolerate
// lower confidence; strong context raises the bar, a complex conversation
// lowers it. The caller must hold the session.
func (m *ThresholdManager) Threshold(state *State, turnNumber int, contextQuality, conversationComplexity float64) float64 {
	threshold := m.base

	turnRelief := float64(turnNumber) * 0.05
	if turnRelief > 0.3 {
		turnRelief = 0.3
	}
	threshold -= turnRelief

	if contextQuality > 0.8 {
		threshold += 0.1
	}

	if conversationComplexity > 0.7 {
		threshold -= 0.1
	} else if conversationComplexity < 0.3 {
		threshold += 0.05
	}

	threshold += state.ConfidenceAdjustment

	return clamp(threshold, m.min, m.max)
}

// RecordFeedback nudges the session's adjustment toward outcomes: confirmed
// successes at or above expectation raise the floor slightly, failures below
// expectation lower it. A decay factor makes early feedback count more than
// late feedback. The caller must hold the session.
func (m *ThresholdManager) RecordFeedback(state *State, actualConfidence, expectedConfidence float64, success bool) {
	var delta float64
	switch {
	case success && actualConfidence >= expectedConfidence:
		delta = 0.02
	case !success && actualConfidence < expectedConfidence:
		delta = -0.03
	default:
		delta = 0
	}

	decay := 1.0 / (1.0 + 0.1*float64(state.FeedbackCount))
	state.ConfidenceAdjustment = clamp(state.ConfidenceAdjustment+delta*decay, -m.maxSkew, m.maxSkew)
	state.FeedbackCount++

	logger.Debug("Confidence feedback recorded",
		zap.String("session_id", state.ID),
		zap.Float64("delta", delta*decay),
		zap.Float64("adjustment", state.ConfidenceAdjustment),
		zap.Int("feedback_count", state.FeedbackCount),
	)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
