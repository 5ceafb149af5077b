package session

import (
	"go.uber.org/zap"

	"github.com/rag-agent/backend/pkg/logger"
)

// StageParams are the retrieval breadth settings attached to one relaxation
// stage: how many results to ask for, the similarity floor below which hits
// are discarded, and the weight retrieved context carries in the answer.
type StageParams struct {
	Name                string
	TopK                int
	SimilarityThreshold float64
	ContextWeight       float64
}

var stages = [4]StageParams{
	{Name: "moderate", TopK: 5, SimilarityThreshold: 0.7, ContextWeight: 0.8},
	{Name: "relaxed", TopK: 8, SimilarityThreshold: 0.6, ContextWeight: 0.6},
	{Name: "broad", TopK: 12, SimilarityThreshold: 0.5, ContextWeight: 0.4},
	{Name: "very_broad", TopK: 15, SimilarityThreshold: 0.4, ContextWeight: 0.3},
}

// StageMachine widens retrieval progressively as a conversation gets longer
// or keeps missing, and tightens it again when answers land with high
// confidence.
type StageMachine struct {
	initialBoostTurns   int
	transitionThreshold float64
}

type StageConfig struct {
	InitialBoostTurns   int
	TransitionThreshold float64
}

func NewStageMachine(cfg StageConfig) *StageMachine {
	if cfg.InitialBoostTurns == 0 {
		cfg.InitialBoostTurns = 3
	}
	if cfg.TransitionThreshold == 0 {
		cfg.TransitionThreshold = 0.6
	}
	return &StageMachine{
		initialBoostTurns:   cfg.InitialBoostTurns,
		transitionThreshold: cfg.TransitionThreshold,
	}
}

// Select picks the stage for the coming turn and returns its parameters.
// The base stage follows the turn-number bucket, the previous turn's
// confidence moves it one step either way, and a stored stage pushed up by
// failure feedback is never undercut. Early turns get a breadth boost to
// compensate for thin conversation context. The caller must hold the
// session.
func (m *StageMachine) Select(state *State, turnNumber int) StageParams {
	stage := stageForTurn(turnNumber)

	if prev, ok := state.LastConfidence(); ok {
		if prev < m.transitionThreshold && stage > 0 {
			stage = minInt(stage+1, 3)
		} else if prev > 0.8 && stage < 3 {
			stage = maxInt(stage-1, 0)
		}
	}

	// Feedback-driven relaxation survives across turns.
	if state.RelaxationStage > stage {
		stage = state.RelaxationStage
	}
	state.RelaxationStage = stage

	params := stages[stage]
	if turnNumber <= m.initialBoostTurns {
		params.TopK = minInt(params.TopK+2, 15)
		params.SimilarityThreshold = maxFloat(params.SimilarityThreshold-0.05, 0.3)
		params.ContextWeight = minFloat(params.ContextWeight+0.1, 1.0)
	}

	logger.Debug("Relaxation stage selected",
		zap.String("session_id", state.ID),
		zap.Int("turn", turnNumber),
		zap.String("stage", params.Name),
		zap.Int("top_k", params.TopK),
		zap.Float64("similarity_threshold", params.SimilarityThreshold),
	)

	return params
}

// RecordFeedback nudges the stored stage independent of the turn-number
// rule: misses widen the next retrieval, confident hits narrow it. The
// caller must hold the session.
func (m *StageMachine) RecordFeedback(state *State, confidence float64, success bool) {
	switch {
	case !success || confidence < m.transitionThreshold:
		state.RelaxationStage = minInt(state.RelaxationStage+1, 3)
	case confidence > 0.8:
		state.RelaxationStage = maxInt(state.RelaxationStage-1, 0)
	}
}

// Stages exposes the full stage table, mainly for diagnostics endpoints.
func Stages() []StageParams {
	out := make([]StageParams, len(stages))
	copy(out, stages[:])
	return out
}

func stageForTurn(turnNumber int) int {
	switch {
	case turnNumber <= 3:
		return 0
	case turnNumber <= 6:
		return 1
	case turnNumber <= 12:
		return 2
	default:
		return 3
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
