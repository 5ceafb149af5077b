package directive

// ResponseMode selects one of the six answer strategies.
type ResponseMode string

const (
	ModeRAGOnly       ResponseMode = "rag_only"
	ModeLLMOnly       ResponseMode = "llm_only"
	ModeHybrid        ResponseMode = "hybrid"
	ModeSmartFallback ResponseMode = "smart_fallback"
	ModeRAGPriority   ResponseMode = "rag_priority"
	ModeLLMPriority   ResponseMode = "llm_priority"
)

// FallbackStrategy controls what happens when retrieval cannot answer.
type FallbackStrategy string

const (
	FallbackLLMKnowledge FallbackStrategy = "llm_knowledge"
	FallbackRefuse       FallbackStrategy = "refuse"
	FallbackHybrid       FallbackStrategy = "hybrid"
)

const DefaultMinConfidence = 0.7

// Directive is the structured retrieval policy parsed from a request's
// system message. Constructed once per request, immutable afterwards.
type Directive struct {
	ResponseMode       ResponseMode
	DocumentContexts   []string
	ContentDomains     []string
	DocumentCategories []string
	MinConfidence      float64
	FallbackStrategy   FallbackStrategy

	// MinConfidenceSet records whether MIN_CONFIDENCE was given explicitly,
	// so the adaptive per-session threshold knows when it may override the
	// default.
	MinConfidenceSet bool
}

// Default returns the all-defaults directive used when no directive text is
// present or nothing in it parses.
func Default() Directive {
	return Directive{
		ResponseMode:     ModeHybrid,
		MinConfidence:    DefaultMinConfidence,
		FallbackStrategy: FallbackHybrid,
	}
}

// HasPrimaryFilters reports whether the directive constrains document
// context types or content domains. These act as a hard gate in ranking.
func (d Directive) HasPrimaryFilters() bool {
	return len(d.DocumentContexts) > 0 || len(d.ContentDomains) > 0
}

// HasFilters reports whether any document-context filter is set at all.
func (d Directive) HasFilters() bool {
	return d.HasPrimaryFilters() || len(d.DocumentCategories) > 0
}

func validMode(m ResponseMode) bool {
	switch m {
	case ModeRAGOnly, ModeLLMOnly, ModeHybrid, ModeSmartFallback, ModeRAGPriority, ModeLLMPriority:
		return true
	}
	return false
}

func validFallback(f FallbackStrategy) bool {
	switch f {
	case FallbackLLMKnowledge, FallbackRefuse, FallbackHybrid:
		return true
	}
	return false
}
