package ranking

import (
	"sort"

	"go.uber.org/zap"

	"github.com/rag-agent/backend/internal/directive"
	"github.com/rag-agent/backend/internal/retrieval"
	"github.com/rag-agent/backend/pkg/logger"
)

// Rank filters and orders candidate documents against a directive's
// document-context filters.
//
// Context types and content domains are a hard gate: a document matching
// neither is dropped. Categories and relevance tags only influence ordering
// among documents that already pass the gate. With no filters set at all the
// input comes back untouched, preserving the provider's order.
func Rank(docs []retrieval.Document, d directive.Directive) []retrieval.Document {
	if !d.HasFilters() {
		return docs
	}

	kept := make([]retrieval.Document, 0, len(docs))
	for _, doc := range docs {
		primary := primaryScore(doc.Context, d)
		if d.HasPrimaryFilters() && primary == 0 {
			continue
		}
		doc.MatchScore = primary + 0.5*secondaryScore(doc.Context, d)
		kept = append(kept, doc)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].MatchScore > kept[j].MatchScore
	})

	logger.Debug("Documents ranked",
		zap.Int("input", len(docs)),
		zap.Int("kept", len(kept)),
	)

	return kept
}

func primaryScore(ctx retrieval.DocumentContext, d directive.Directive) float64 {
	score := 0.0
	if intersects(ctx.ContextTypes, d.DocumentContexts) {
		score += 1.0
	}
	if intersects(ctx.ContentDomains, d.ContentDomains) {
		score += 1.0
	}
	return score
}

func secondaryScore(ctx retrieval.DocumentContext, d directive.Directive) float64 {
	score := 0.0
	if intersects(ctx.DocumentCategories, d.DocumentCategories) {
		score += 1.0
	}
	if intersects(ctx.RelevanceTags, d.DocumentCategories) {
		score += 0.25
	}
	if intersects(ctx.RelevanceTags, d.ContentDomains) {
		score += 0.25
	}
	return score
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
