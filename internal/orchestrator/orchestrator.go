package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rag-agent/backend/internal/decision"
	"github.com/rag-agent/backend/internal/directive"
	"github.com/rag-agent/backend/internal/expansion"
	"github.com/rag-agent/backend/internal/metrics"
	"github.com/rag-agent/backend/internal/ranking"
	"github.com/rag-agent/backend/internal/retrieval"
	"github.com/rag-agent/backend/internal/session"
	"github.com/rag-agent/backend/pkg/logger"
)

// ErrAllQueriesFailed distinguishes a retrieval provider outage from a
// search that ran and found nothing. It wraps the engine's unavailability
// sentinel, so fallback-capable modes surface it instead of answering from
// model knowledge as if the corpus were empty.
var ErrAllQueriesFailed = fmt.Errorf("all retrieval queries failed: %w", decision.ErrRetrievalUnavailable)

// defaultContextQuality is assumed on the first turn, before any retrieved
// context exists to measure.
const defaultContextQuality = 0.5

const defaultQueryConcurrency = 4

// Request is one question posed within a session. SystemMessage may carry a
// retrieval directive; an empty or directive-free message gets defaults.
type Request struct {
	SessionID     string `json:"session_id"`
	Question      string `json:"question"`
	SystemMessage string `json:"system_message,omitempty"`
}

// Response is the answered turn with its full audit trail.
type Response struct {
	RequestID       string                `json:"request_id"`
	SessionID       string                `json:"session_id"`
	TurnNumber      int                   `json:"turn_number"`
	Answer          string                `json:"answer"`
	Sources         []retrieval.Document  `json:"sources"`
	Confidence      float64               `json:"confidence"`
	Success         bool                  `json:"success"`
	Transparency    decision.Transparency `json:"transparency"`
	ResponseMode    string                `json:"response_mode"`
	RelaxationStage string                `json:"relaxation_stage"`
	Threshold       float64               `json:"confidence_threshold"`
	ExpandedQueries []string              `json:"expanded_queries"`
	Goal            string                `json:"goal,omitempty"`
	Phase           string                `json:"phase,omitempty"`
	LatencyMS       int64                 `json:"latency_ms"`
}

// Orchestrator wires the per-turn pipeline: directive parsing, conversation
// analysis, query expansion, staged retrieval fan-out, the decision engine,
// and the feedback loops into session state. One Process call handles one
// turn; turns within a session serialize on the session lock.
type Orchestrator struct {
	store      *session.Store
	tracker    *session.TurnTracker
	stages     *session.StageMachine
	thresholds *session.ThresholdManager
	engine     *decision.Engine
	retriever  retrieval.Retriever

	queryConcurrency int
}

type Config struct {
	Store      *session.Store
	Tracker    *session.TurnTracker
	Stages     *session.StageMachine
	Thresholds *session.ThresholdManager
	Engine     *decision.Engine
	Retriever  retrieval.Retriever

	// QueryConcurrency bounds how many expanded queries hit the retriever
	// at once. Zero means the default.
	QueryConcurrency int
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil || cfg.Engine == nil || cfg.Retriever == nil {
		return nil, fmt.Errorf("store, engine and retriever are required")
	}
	if cfg.Tracker == nil {
		cfg.Tracker = session.NewTurnTracker(0)
	}
	if cfg.Stages == nil {
		cfg.Stages = session.NewStageMachine(session.StageConfig{})
	}
	if cfg.Thresholds == nil {
		cfg.Thresholds = session.NewThresholdManager(session.ThresholdConfig{})
	}
	if cfg.QueryConcurrency <= 0 {
		cfg.QueryConcurrency = defaultQueryConcurrency
	}

	return &Orchestrator{
		store:            cfg.Store,
		tracker:          cfg.Tracker,
		stages:           cfg.Stages,
		thresholds:       cfg.Thresholds,
		engine:           cfg.Engine,
		retriever:        cfg.Retriever,
		queryConcurrency: cfg.QueryConcurrency,
	}, nil
}

// Process answers one turn. Session state is read and written under the
// session lock for the whole call, so concurrent requests against the same
// session observe each other's completed turns.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("question must not be empty")
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	start := time.Now()
	requestID := uuid.NewString()

	state, release := o.store.Acquire(req.SessionID)
	defer release()

	turnNumber := state.NextTurnNumber()
	d := directive.Parse(req.SystemMessage)

	history := historyMessages(state, req.Question)
	analysis := expansion.Analyze(history)
	state.Goal = expansion.DetectGoal(history)
	state.Phase = expansion.DetectPhase(history)

	threshold := o.thresholds.Threshold(state, turnNumber, contextQuality(state), analysis.Complexity)
	if !d.MinConfidenceSet {
		d.MinConfidence = threshold
	}

	stage := o.stages.Select(state, turnNumber)

	queries := expansion.GenerateEnhancedQueries(req.Question, expansion.Context{
		History: history,
		Goal:    state.Goal,
		Phase:   state.Phase,
	})

	logger.Info("Processing turn",
		zap.String("request_id", requestID),
		zap.String("session_id", req.SessionID),
		zap.Int("turn", turnNumber),
		zap.String("response_mode", string(d.ResponseMode)),
		zap.String("stage", stage.Name),
		zap.Float64("threshold", d.MinConfidence),
		zap.Int("expanded_queries", len(queries)),
	)

	outcome, err := o.engine.Decide(ctx, req.Question, req.SystemMessage, d, o.retrieveFunc(queries, stage, d))
	if err != nil {
		metrics.TurnsTotal.WithLabelValues("error").Inc()
		logger.Error("Turn failed",
			zap.String("request_id", requestID),
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to process turn: %w", err)
	}

	o.thresholds.RecordFeedback(state, outcome.Confidence, d.MinConfidence, outcome.Success)
	o.stages.RecordFeedback(state, outcome.Confidence, outcome.Success)
	o.tracker.Record(state, req.Question, outcome.Answer, outcome.Confidence, outcome.Sources)

	elapsed := time.Since(start)
	status := "ok"
	if !outcome.Success {
		status = "refused"
	}
	metrics.TurnsTotal.WithLabelValues(status).Inc()
	metrics.TurnDuration.WithLabelValues(string(d.ResponseMode)).Observe(elapsed.Seconds())
	metrics.Decisions.WithLabelValues(outcome.Transparency.FinalDecision).Inc()
	metrics.ConfidenceScore.Observe(outcome.Confidence)
	metrics.ExpandedQueries.Observe(float64(len(queries)))
	metrics.RelaxationStage.WithLabelValues(stage.Name).Set(float64(state.RelaxationStage))

	return &Response{
		RequestID:       requestID,
		SessionID:       req.SessionID,
		TurnNumber:      turnNumber,
		Answer:          outcome.Answer,
		Sources:         outcome.Sources,
		Confidence:      outcome.Confidence,
		Success:         outcome.Success,
		Transparency:    outcome.Transparency,
		ResponseMode:    string(d.ResponseMode),
		RelaxationStage: stage.Name,
		Threshold:       d.MinConfidence,
		ExpandedQueries: queries,
		Goal:            state.Goal,
		Phase:           state.Phase,
		LatencyMS:       elapsed.Milliseconds(),
	}, nil
}

// History returns a session's recorded turns for the history endpoint.
func (o *Orchestrator) History(sessionID string) []session.TurnRecord {
	return o.store.Peek(sessionID)
}

// RecordFeedback applies explicit user feedback to a session's adaptive
// state, outside the turn pipeline.
func (o *Orchestrator) RecordFeedback(sessionID string, confidence float64, success bool) {
	state, release := o.store.Acquire(sessionID)
	defer release()

	o.thresholds.RecordFeedback(state, confidence, confidence, success)
	o.stages.RecordFeedback(state, confidence, success)
}

// retrieveFunc closes the expanded queries, stage parameters and directive
// into the single retrieval call the decision engine sees. Queries fan out
// concurrently; results are filtered by the stage's similarity floor, merged
// in query order, deduplicated, ranked against the directive and capped at
// the stage's TopK.
func (o *Orchestrator) retrieveFunc(queries []string, stage session.StageParams, d directive.Directive) decision.RetrieveFunc {
	return func(ctx context.Context) ([]retrieval.Document, error) {
		if len(queries) == 0 {
			return nil, nil
		}

		results := make([][]retrieval.Document, len(queries))

		var mu sync.Mutex
		failed := 0

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.queryConcurrency)
		for i, query := range queries {
			i, query := i, query
			g.Go(func() error {
				docs, err := o.retriever.Retrieve(gctx, query, stage.TopK)
				if err != nil {
					logger.Warn("Expanded query failed",
						zap.String("query", query),
						zap.Error(err),
					)
					metrics.RetrievalFailures.Inc()
					mu.Lock()
					failed++
					mu.Unlock()
					return nil
				}
				results[i] = filterByScore(docs, stage.SimilarityThreshold)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if failed == len(queries) {
			return nil, ErrAllQueriesFailed
		}

		merged := mergeResults(results)
		ranked := ranking.Rank(merged, d)
		if len(ranked) > stage.TopK {
			ranked = ranked[:stage.TopK]
		}
		return ranked, nil
	}
}

// historyMessages flattens recorded turns into role-tagged messages and
// appends the question being asked now.
func historyMessages(state *session.State, question string) []expansion.Message {
	messages := make([]expansion.Message, 0, 2*len(state.Turns)+1)
	for _, turn := range state.Turns {
		messages = append(messages, expansion.Message{Role: "user", Content: turn.Question})
		messages = append(messages, expansion.Message{Role: "assistant", Content: turn.Answer})
	}
	return append(messages, expansion.Message{Role: "user", Content: question})
}

// contextQuality is the mean score of the context used on the previous
// turn, or the neutral default when there is none.
func contextQuality(state *session.State) float64 {
	if len(state.Turns) == 0 {
		return defaultContextQuality
	}

	last := state.Turns[len(state.Turns)-1]
	if len(last.ContextUsed) == 0 {
		return defaultContextQuality
	}

	var sum float64
	for _, doc := range last.ContextUsed {
		sum += doc.Score
	}
	return sum / float64(len(last.ContextUsed))
}

func filterByScore(docs []retrieval.Document, floor float64) []retrieval.Document {
	out := docs[:0:0]
	for _, doc := range docs {
		if doc.Score >= floor {
			out = append(out, doc)
		}
	}
	return out
}

// mergeResults concatenates per-query results in query order and drops
// duplicates, keeping the first (highest-priority query's) copy.
func mergeResults(results [][]retrieval.Document) []retrieval.Document {
	seen := make(map[string]struct{})
	var merged []retrieval.Document
	for _, docs := range results {
		for _, doc := range docs {
			key := doc.Source + "\x00" + doc.Content
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, doc)
		}
	}
	return merged
}
