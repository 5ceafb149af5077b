package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEmptyTextReturnsDefaults(t *testing.T) {
	d := Parse("")

	assert.Equal(t, ModeHybrid, d.ResponseMode)
	assert.Equal(t, FallbackHybrid, d.FallbackStrategy)
	assert.InDelta(t, 0.7, d.MinConfidence, 1e-9)
	assert.False(t, d.MinConfidenceSet)
	assert.False(t, d.HasFilters())
}

func TestParsePlainTextWithoutKeysReturnsDefaults(t *testing.T) {
	d := Parse("You are a helpful assistant. Answer concisely.")

	assert.Equal(t, Default(), d)
}

func TestParseBracketedBlock(t *testing.T) {
	text := `You are a helpful assistant.
[RAG_DIRECTIVE]
RESPONSE_MODE: SMART_FALLBACK
DOCUMENT_CONTEXT: Technical, API_Docs
CONTENT_DOMAINS: cloud, storage
DOCUMENT_CATEGORIES: guide
MIN_CONFIDENCE: 0.8
FALLBACK_STRATEGY: refuse
[/RAG_DIRECTIVE]
Answer concisely.`

	d := Parse(text)

	assert.Equal(t, ModeSmartFallback, d.ResponseMode)
	assert.Equal(t, []string{"technical", "api_docs"}, d.DocumentContexts)
	assert.Equal(t, []string{"cloud", "storage"}, d.ContentDomains)
	assert.Equal(t, []string{"guide"}, d.DocumentCategories)
	assert.InDelta(t, 0.8, d.MinConfidence, 1e-9)
	assert.True(t, d.MinConfidenceSet)
	assert.Equal(t, FallbackRefuse, d.FallbackStrategy)
}

func TestParseBlockIgnoresKeysOutsideBlock(t *testing.T) {
	text := `RESPONSE_MODE: LLM_ONLY
[RAG_DIRECTIVE]
RESPONSE_MODE: RAG_ONLY
[/RAG_DIRECTIVE]`

	d := Parse(text)

	assert.Equal(t, ModeRAGOnly, d.ResponseMode)
}

func TestParseBareKeysInline(t *testing.T) {
	d := Parse("RESPONSE_MODE: RAG_ONLY, FALLBACK_STRATEGY: refuse")

	assert.Equal(t, ModeRAGOnly, d.ResponseMode)
	assert.Equal(t, FallbackRefuse, d.FallbackStrategy)
}

func TestParseKeysAreCaseInsensitive(t *testing.T) {
	d := Parse("response_mode: Hybrid\nmin_confidence: 0.55")

	assert.Equal(t, ModeHybrid, d.ResponseMode)
	assert.InDelta(t, 0.55, d.MinConfidence, 1e-9)
}

func TestParseListValuesTrimLowercaseDropEmpty(t *testing.T) {
	d := Parse("DOCUMENT_CONTEXT:  Technical , , CREATIVE ,")

	assert.Equal(t, []string{"technical", "creative"}, d.DocumentContexts)
}

func TestParseUnrecognizedEnumFallsBack(t *testing.T) {
	d := Parse("RESPONSE_MODE: telepathy\nFALLBACK_STRATEGY: shrug")

	assert.Equal(t, ModeHybrid, d.ResponseMode)
	assert.Equal(t, FallbackHybrid, d.FallbackStrategy)
}

func TestParseInvalidConfidenceFallsBack(t *testing.T) {
	for _, value := range []string{"high", "1.5", "-0.1"} {
		d := Parse("MIN_CONFIDENCE: " + value)

		assert.InDelta(t, 0.7, d.MinConfidence, 1e-9, "value %q", value)
		assert.False(t, d.MinConfidenceSet, "value %q", value)
	}
}

func TestHasPrimaryFilters(t *testing.T) {
	assert.False(t, Directive{DocumentCategories: []string{"guide"}}.HasPrimaryFilters())
	assert.True(t, Directive{DocumentContexts: []string{"technical"}}.HasPrimaryFilters())
	assert.True(t, Directive{ContentDomains: []string{"cloud"}}.HasPrimaryFilters())
}
