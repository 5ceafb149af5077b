package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rag-agent/backend/internal/directive"
	"github.com/rag-agent/backend/internal/retrieval"
)

func doc(source string, ctx retrieval.DocumentContext) retrieval.Document {
	return retrieval.Document{Content: "content of " + source, Source: source, Score: 0.9, Context: ctx}
}

func TestRankNoFiltersIsIdentityPass(t *testing.T) {
	docs := []retrieval.Document{
		doc("b", retrieval.DocumentContext{ContextTypes: []string{"creative"}}),
		doc("a", retrieval.DocumentContext{ContextTypes: []string{"technical"}}),
	}

	ranked := Rank(docs, directive.Default())

	require.Len(t, ranked, 2)
	assert.Equal(t, "b", ranked[0].Source)
	assert.Equal(t, "a", ranked[1].Source)
	assert.Zero(t, ranked[0].MatchScore)
}

func TestRankPrimaryFilterIsHardGate(t *testing.T) {
	docs := []retrieval.Document{
		doc("tech", retrieval.DocumentContext{ContextTypes: []string{"technical"}}),
		doc("creative", retrieval.DocumentContext{ContextTypes: []string{"creative"}}),
		doc("tech-api", retrieval.DocumentContext{ContextTypes: []string{"technical", "api_docs"}}),
	}
	d := directive.Directive{DocumentContexts: []string{"technical"}}

	ranked := Rank(docs, d)

	require.Len(t, ranked, 2)
	assert.Equal(t, "tech", ranked[0].Source)
	assert.Equal(t, "tech-api", ranked[1].Source)
	assert.InDelta(t, 1.0, ranked[0].MatchScore, 1e-9)
	assert.InDelta(t, 1.0, ranked[1].MatchScore, 1e-9)
}

func TestRankDropsDocumentsWithoutContextMetadata(t *testing.T) {
	docs := []retrieval.Document{
		doc("bare", retrieval.DocumentContext{}),
		doc("tech", retrieval.DocumentContext{ContextTypes: []string{"technical"}}),
	}
	d := directive.Directive{DocumentContexts: []string{"technical"}}

	ranked := Rank(docs, d)

	require.Len(t, ranked, 1)
	assert.Equal(t, "tech", ranked[0].Source)
}

func TestRankScoring(t *testing.T) {
	d := directive.Directive{
		DocumentContexts:   []string{"technical"},
		ContentDomains:     []string{"cloud"},
		DocumentCategories: []string{"guide"},
	}

	full := doc("full", retrieval.DocumentContext{
		ContextTypes:       []string{"technical"},
		ContentDomains:     []string{"cloud"},
		DocumentCategories: []string{"guide"},
		RelevanceTags:      []string{"guide", "cloud"},
	})
	primaryOnly := doc("primary", retrieval.DocumentContext{
		ContextTypes: []string{"technical"},
	})

	ranked := Rank([]retrieval.Document{primaryOnly, full}, d)

	require.Len(t, ranked, 2)
	// primary 2.0 + 0.5*(1.0 + 0.25 + 0.25) = 2.75
	assert.Equal(t, "full", ranked[0].Source)
	assert.InDelta(t, 2.75, ranked[0].MatchScore, 1e-9)
	assert.Equal(t, "primary", ranked[1].Source)
	assert.InDelta(t, 1.0, ranked[1].MatchScore, 1e-9)
}

func TestRankSortIsStableOnTies(t *testing.T) {
	ctx := retrieval.DocumentContext{ContextTypes: []string{"technical"}}
	docs := []retrieval.Document{doc("first", ctx), doc("second", ctx), doc("third", ctx)}
	d := directive.Directive{DocumentContexts: []string{"technical"}}

	ranked := Rank(docs, d)

	require.Len(t, ranked, 3)
	assert.Equal(t, "first", ranked[0].Source)
	assert.Equal(t, "second", ranked[1].Source)
	assert.Equal(t, "third", ranked[2].Source)
}

func TestRankSecondaryOnlyFiltersDoNotDrop(t *testing.T) {
	docs := []retrieval.Document{
		doc("other", retrieval.DocumentContext{DocumentCategories: []string{"reference"}}),
		doc("guide", retrieval.DocumentContext{DocumentCategories: []string{"guide"}}),
	}
	d := directive.Directive{DocumentCategories: []string{"guide"}}

	ranked := Rank(docs, d)

	require.Len(t, ranked, 2)
	assert.Equal(t, "guide", ranked[0].Source)
	assert.InDelta(t, 0.5, ranked[0].MatchScore, 1e-9)
}
