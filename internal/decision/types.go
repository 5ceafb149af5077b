package decision

import (
	"context"
	"errors"

	"github.com/rag-agent/backend/internal/retrieval"
)

// ErrRetrievalUnavailable marks a retrieval failure that must surface as an
// error instead of being absorbed by an LLM fallback: the provider was
// unreachable, not merely silent. RetrieveFunc implementations wrap it when
// no query could be served at all; an ordinary error still means one lookup
// failed and fallback remains legitimate.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// LLM is the completion callback the engine answers through. A failure here
// is fatal to the strategy branch that made the call.
type LLM interface {
	Complete(ctx context.Context, systemMessage, userMessage string) (string, error)
}

// RetrieveFunc produces the candidate documents for the current turn. The
// orchestrator closes it over query expansion, fan-out and ranking; the
// engine only sees one call. nil error with no documents means the search
// ran and found nothing.
type RetrieveFunc func(ctx context.Context) ([]retrieval.Document, error)

// Decision labels form a closed vocabulary; audit consumers match on them.
const (
	DecisionUseRAGResults          = "use_rag_results"
	DecisionUseHighConfidenceRAG   = "use_high_confidence_rag"
	DecisionUseLLMFallback         = "use_llm_fallback"
	DecisionUseLLMOnly             = "use_llm_only"
	DecisionUseLLMWithSupplement   = "use_llm_with_rag_supplement"
	DecisionRefuseToAnswer         = "refuse_to_answer"
	DecisionUseRAGResultsPriority  = "use_rag_results_priority"
	DecisionUseLLMFallbackPriority = "use_llm_fallback_priority"
)

// Transparency is the audit record attached to every answer. It is output
// only: returned to the caller, never persisted by the engine.
type Transparency struct {
	RAGAttempted         bool    `json:"rag_attempted"`
	RAGSuccessful        bool    `json:"rag_successful"`
	RAGDocumentsFound    int     `json:"rag_documents_found"`
	LLMFallbackTriggered bool    `json:"llm_fallback_triggered"`
	ConfidenceThreshold  float64 `json:"confidence_threshold,omitempty"`
	ActualConfidence     float64 `json:"actual_confidence,omitempty"`
	FinalDecision        string  `json:"final_decision"`
}

// Outcome is one strategy's result. Success=false marks a refusal, not an
// error; transport-level failures surface as errors from Decide instead.
type Outcome struct {
	Answer       string
	Sources      []retrieval.Document
	Confidence   float64
	Success      bool
	Transparency Transparency
}
