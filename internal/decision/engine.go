package decision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rag-agent/backend/internal/directive"
	"github.com/rag-agent/backend/internal/retrieval"
	"github.com/rag-agent/backend/pkg/logger"
)

const genericSystemPrompt = `You are a helpful assistant. Answer the question from your general knowledge. If you are not certain, say so rather than guessing.`

const ragSystemPrompt = `You are a helpful assistant. Answer the question using ONLY the provided context documents. Cite sources using [source] notation. If the context does not cover the question, say what is missing.`

const refusalAnswer = "I couldn't find relevant information in the knowledge base to answer this question, and my instructions don't allow answering without it."

// llmOnlyConfidence is reported for answers produced without retrieved
// context, matching the floor used when no sources back a response.
const llmOnlyConfidence = 0.3

// supplementKeywords trigger the supplemental retrieval in LLM_PRIORITY
// mode.
var supplementKeywords = []string{"document", "file", "upload", "specific", "context", "reference"}

// Engine executes one of the six response strategies. Each strategy is a
// pure function of (question, system message, directive, retrieve callback)
// plus the injected LLM client; session state never enters here.
type Engine struct {
	llm LLM
}

func NewEngine(llm LLM) *Engine {
	return &Engine{llm: llm}
}

// Decide runs the strategy selected by the directive's response mode and
// returns the answer with its full audit record. The returned error is
// reserved for LLM failures, which are fatal to the chosen branch.
func (e *Engine) Decide(ctx context.Context, question, systemMessage string, d directive.Directive, retrieve RetrieveFunc) (*Outcome, error) {
	mode := d.ResponseMode
	switch mode {
	case directive.ModeRAGOnly:
		return e.ragOnly(ctx, question, d, retrieve)
	case directive.ModeLLMOnly:
		return e.llmOnly(ctx, question, systemMessage)
	case directive.ModeHybrid:
		return e.hybrid(ctx, question, systemMessage, d, retrieve, false)
	case directive.ModeRAGPriority:
		return e.hybrid(ctx, question, systemMessage, d, retrieve, true)
	case directive.ModeSmartFallback:
		return e.smartFallback(ctx, question, systemMessage, d, retrieve)
	case directive.ModeLLMPriority:
		return e.llmPriority(ctx, question, systemMessage, d, retrieve)
	default:
		logger.Warn("Unknown response mode, defaulting to hybrid", zap.String("mode", string(mode)))
		return e.hybrid(ctx, question, systemMessage, d, retrieve, false)
	}
}

func (e *Engine) ragOnly(ctx context.Context, question string, d directive.Directive, retrieve RetrieveFunc) (*Outcome, error) {
	docs, err := e.attemptRetrieval(ctx, retrieve)
	if errors.Is(err, ErrRetrievalUnavailable) {
		return nil, err
	}
	if err == nil && len(docs) > 0 {
		return e.answerFromDocs(ctx, question, d, docs, DecisionUseRAGResults)
	}

	if d.FallbackStrategy == directive.FallbackRefuse {
		logger.Info("Refusing to answer without retrieved context",
			zap.String("question", question),
		)
		return &Outcome{
			Answer:  refusalAnswer,
			Sources: []retrieval.Document{},
			Success: false,
			Transparency: Transparency{
				RAGAttempted:        true,
				RAGSuccessful:       false,
				ConfidenceThreshold: d.MinConfidence,
				FinalDecision:       DecisionRefuseToAnswer,
			},
		}, nil
	}

	return e.llmFallback(ctx, question, genericSystemPrompt, d, DecisionUseLLMFallback)
}

func (e *Engine) llmOnly(ctx context.Context, question, systemMessage string) (*Outcome, error) {
	if strings.TrimSpace(systemMessage) == "" {
		systemMessage = genericSystemPrompt
	}

	answer, err := e.llm.Complete(ctx, systemMessage, question)
	if err != nil {
		return nil, fmt.Errorf("llm completion failed: %w", err)
	}

	return &Outcome{
		Answer:     answer,
		Sources:    []retrieval.Document{},
		Confidence: llmOnlyConfidence,
		Success:    true,
		Transparency: Transparency{
			FinalDecision: DecisionUseLLMOnly,
		},
	}, nil
}

// hybrid retrieves first and falls back to the model's own knowledge. The
// priority flag only changes the audit labels: RAG_PRIORITY runs the exact
// same decision tree.
func (e *Engine) hybrid(ctx context.Context, question, systemMessage string, d directive.Directive, retrieve RetrieveFunc, priority bool) (*Outcome, error) {
	useRAG := DecisionUseRAGResults
	useFallback := DecisionUseLLMFallback
	if priority {
		useRAG = DecisionUseRAGResultsPriority
		useFallback = DecisionUseLLMFallbackPriority
	}

	docs, err := e.attemptRetrieval(ctx, retrieve)
	if errors.Is(err, ErrRetrievalUnavailable) {
		return nil, err
	}
	if err == nil && len(docs) > 0 {
		return e.answerFromDocs(ctx, question, d, docs, useRAG)
	}

	if strings.TrimSpace(systemMessage) == "" {
		systemMessage = genericSystemPrompt
	}
	return e.llmFallback(ctx, question, systemMessage, d, useFallback)
}

func (e *Engine) smartFallback(ctx context.Context, question, systemMessage string, d directive.Directive, retrieve RetrieveFunc) (*Outcome, error) {
	docs, err := e.attemptRetrieval(ctx, retrieve)
	if errors.Is(err, ErrRetrievalUnavailable) {
		return nil, err
	}
	if err != nil || len(docs) == 0 {
		if strings.TrimSpace(systemMessage) == "" {
			systemMessage = genericSystemPrompt
		}
		return e.llmFallback(ctx, question, systemMessage, d, DecisionUseLLMFallback)
	}

	confidence := meanScore(docs)
	if confidence >= d.MinConfidence {
		outcome, err := e.answerFromDocs(ctx, question, d, docs, DecisionUseHighConfidenceRAG)
		if err != nil {
			return nil, err
		}
		outcome.Transparency.ActualConfidence = confidence
		return outcome, nil
	}

	logger.Debug("Retrieved confidence below threshold, taking hybrid branch",
		zap.Float64("confidence", confidence),
		zap.Float64("threshold", d.MinConfidence),
	)

	// Hybrid with documents in hand answers from them; the low confidence
	// stays visible in the audit record.
	outcome, err := e.answerFromDocs(ctx, question, d, docs, DecisionUseRAGResults)
	if err != nil {
		return nil, err
	}
	outcome.Transparency.ActualConfidence = confidence
	return outcome, nil
}

func (e *Engine) llmPriority(ctx context.Context, question, systemMessage string, d directive.Directive, retrieve RetrieveFunc) (*Outcome, error) {
	if strings.TrimSpace(systemMessage) == "" {
		systemMessage = genericSystemPrompt
	}

	answer, err := e.llm.Complete(ctx, systemMessage, question)
	if err != nil {
		return nil, fmt.Errorf("llm completion failed: %w", err)
	}

	outcome := &Outcome{
		Answer:     answer,
		Sources:    []retrieval.Document{},
		Confidence: llmOnlyConfidence,
		Success:    true,
		Transparency: Transparency{
			FinalDecision: DecisionUseLLMOnly,
		},
	}

	if !containsSupplementKeyword(question) {
		return outcome, nil
	}

	// The answer text is final; retrieval only supplements its sources.
	docs, err := e.attemptRetrieval(ctx, retrieve)
	if err != nil || len(docs) == 0 {
		return outcome, nil
	}

	outcome.Sources = docs
	outcome.Confidence = meanScore(docs)
	outcome.Transparency.RAGAttempted = true
	outcome.Transparency.RAGSuccessful = true
	outcome.Transparency.RAGDocumentsFound = len(docs)
	outcome.Transparency.ActualConfidence = outcome.Confidence
	outcome.Transparency.FinalDecision = DecisionUseLLMWithSupplement
	return outcome, nil
}

func (e *Engine) attemptRetrieval(ctx context.Context, retrieve RetrieveFunc) ([]retrieval.Document, error) {
	docs, err := retrieve(ctx)
	if err != nil {
		logger.Warn("Retrieval failed", zap.Error(err))
		return nil, err
	}
	return docs, nil
}

func (e *Engine) answerFromDocs(ctx context.Context, question string, d directive.Directive, docs []retrieval.Document, decision string) (*Outcome, error) {
	answer, err := e.llm.Complete(ctx, ragSystemPrompt, buildContextPrompt(question, docs))
	if err != nil {
		return nil, fmt.Errorf("llm completion failed: %w", err)
	}

	return &Outcome{
		Answer:     answer,
		Sources:    docs,
		Confidence: meanScore(docs),
		Success:    true,
		Transparency: Transparency{
			RAGAttempted:        true,
			RAGSuccessful:       true,
			RAGDocumentsFound:   len(docs),
			ConfidenceThreshold: d.MinConfidence,
			FinalDecision:       decision,
		},
	}, nil
}

func (e *Engine) llmFallback(ctx context.Context, question, systemMessage string, d directive.Directive, decision string) (*Outcome, error) {
	answer, err := e.llm.Complete(ctx, systemMessage, question)
	if err != nil {
		return nil, fmt.Errorf("llm completion failed: %w", err)
	}

	return &Outcome{
		Answer:     answer,
		Sources:    []retrieval.Document{},
		Confidence: llmOnlyConfidence,
		Success:    true,
		Transparency: Transparency{
			RAGAttempted:         true,
			RAGSuccessful:        false,
			LLMFallbackTriggered: true,
			ConfidenceThreshold:  d.MinConfidence,
			FinalDecision:        decision,
		},
	}, nil
}

func buildContextPrompt(question string, docs []retrieval.Document) string {
	var b strings.Builder
	b.WriteString("Context documents:\n")
	for i, doc := range docs {
		fmt.Fprintf(&b, "\n[%d] (source: %s)\n%s\n", i+1, doc.Source, doc.Content)
	}
	fmt.Fprintf(&b, "\nQuestion: %s", question)
	return b.String()
}

func meanScore(docs []retrieval.Document) float64 {
	if len(docs) == 0 {
		return 0
	}
	var sum float64
	for _, doc := range docs {
		sum += doc.Score
	}
	mean := sum / float64(len(docs))
	if mean > 1 {
		return 1
	}
	return mean
}

func containsSupplementKeyword(question string) bool {
	lower := strings.ToLower(question)
	for _, kw := range supplementKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
