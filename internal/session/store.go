package session

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/rag-agent/backend/internal/retrieval"
	"github.com/rag-agent/backend/pkg/logger"
)

// TurnRecord is one completed question/answer exchange. Immutable once
// appended to a session's history.
type TurnRecord struct {
	TurnNumber   int                  `json:"turn_number"`
	Timestamp    time.Time            `json:"timestamp"`
	Question     string               `json:"question"`
	Answer       string               `json:"answer"`
	Confidence   float64              `json:"confidence"`
	ContextUsed  []retrieval.Document `json:"context_used,omitempty"`
	ContextCount int                  `json:"context_count"`
}

// State is the per-session mutable record shared by the threshold manager,
// the relaxation stage machine and the turn tracker. Callers must hold the
// session via Store.Acquire while reading or writing it.
type State struct {
	mu sync.Mutex

	ID                   string
	Turns                []TurnRecord
	ConfidenceAdjustment float64
	FeedbackCount        int
	RelaxationStage      int
	Goal                 string
	Phase                string
}

// LastConfidence returns the most recent turn's confidence, or ok=false on
// a fresh session.
func (s *State) LastConfidence() (float64, bool) {
	if len(s.Turns) == 0 {
		return 0, false
	}
	return s.Turns[len(s.Turns)-1].Confidence, true
}

// NextTurnNumber is the 1-based number the turn currently being processed
// will record under.
func (s *State) NextTurnNumber() int {
	if len(s.Turns) == 0 {
		return 1
	}
	return s.Turns[len(s.Turns)-1].TurnNumber + 1
}

// Store owns every live session, bounded so an unbounded session population
// cannot grow memory without limit. Least recently used sessions are evicted
// first.
type Store struct {
	mu       sync.Mutex
	sessions *lru.Cache[string, *State]
}

func NewStore(maxSessions int) (*Store, error) {
	if maxSessions <= 0 {
		return nil, fmt.Errorf("maxSessions must be positive, got %d", maxSessions)
	}

	sessions, err := lru.NewWithEvict[string, *State](maxSessions, func(id string, _ *State) {
		logger.Debug("Session evicted", zap.String("session_id", id))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	return &Store{sessions: sessions}, nil
}

// Acquire returns the session state for id, creating it on first use, with
// its per-session lock held. The returned release function must be called
// when the turn is finished. Turns for the same session therefore serialize,
// while different sessions proceed in parallel.
func (s *Store) Acquire(id string) (*State, func()) {
	s.mu.Lock()
	state, ok := s.sessions.Get(id)
	if !ok {
		state = &State{ID: id}
		s.sessions.Add(id, state)
	}
	s.mu.Unlock()

	state.mu.Lock()
	return state, state.mu.Unlock
}

// Peek returns a snapshot of the session's turn history without touching
// recency, or nil when the session is unknown.
func (s *Store) Peek(id string) []TurnRecord {
	s.mu.Lock()
	state, ok := s.sessions.Peek(id)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	out := make([]TurnRecord, len(state.Turns))
	copy(out, state.Turns)
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Len()
}
