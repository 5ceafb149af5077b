package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/rag-agent/backend/internal/retrieval"
	"github.com/rag-agent/backend/pkg/logger"
)

const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// TurnTracker appends turn records and derives trend signals from them.
type TurnTracker struct {
	maxTurns int
}

func NewTurnTracker(maxTurns int) *TurnTracker {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	return &TurnTracker{maxTurns: maxTurns}
}

// Record appends one completed exchange and enforces the FIFO history cap
// at the write boundary. The caller must hold the session.
func (t *TurnTracker) Record(state *State, question, answer string, confidence float64, contextUsed []retrieval.Document) TurnRecord {
	record := TurnRecord{
		TurnNumber:   state.NextTurnNumber(),
		Timestamp:    time.Now().UTC(),
		Question:     question,
		Answer:       answer,
		Confidence:   confidence,
		ContextUsed:  contextUsed,
		ContextCount: len(contextUsed),
	}

	state.Turns = append(state.Turns, record)
	if len(state.Turns) > t.maxTurns {
		state.Turns = state.Turns[len(state.Turns)-t.maxTurns:]
	}

	logger.Debug("Turn recorded",
		zap.String("session_id", state.ID),
		zap.Int("turn", record.TurnNumber),
		zap.Float64("confidence", confidence),
		zap.Int("context_count", record.ContextCount),
	)

	return record
}

// ConfidenceTrend looks at the last three confidences: strictly increasing
// is improving, strictly decreasing is declining, anything else (including
// fewer than three turns) is stable. The caller must hold the session.
func (t *TurnTracker) ConfidenceTrend(state *State) string {
	n := len(state.Turns)
	if n < 3 {
		return TrendStable
	}

	a := state.Turns[n-3].Confidence
	b := state.Turns[n-2].Confidence
	c := state.Turns[n-1].Confidence

	switch {
	case a < b && b < c:
		return TrendImproving
	case a > b && b > c:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// ContextUsageTrend mirrors ConfidenceTrend for the amount of retrieved
// context each answer consumed.
func (t *TurnTracker) ContextUsageTrend(state *State) string {
	n := len(state.Turns)
	if n < 3 {
		return TrendStable
	}

	a := state.Turns[n-3].ContextCount
	b := state.Turns[n-2].ContextCount
	c := state.Turns[n-1].ContextCount

	switch {
	case a < b && b < c:
		return TrendImproving
	case a > b && b > c:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// Depth is the number of recorded turns, a proxy for how established the
// conversation is.
func (t *TurnTracker) Depth(state *State) int {
	return len(state.Turns)
}
