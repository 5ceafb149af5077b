package retrieval

import "context"

// Document is a retrieved chunk plus the producer-supplied context metadata
// the ranking layer filters on. Score is the provider's similarity score,
// MatchScore is assigned by the ranker and only meaningful after a ranking
// pass.
type Document struct {
	Content    string          `json:"content"`
	Source     string          `json:"source"`
	Score      float64         `json:"score"`
	Context    DocumentContext `json:"document_context,omitempty"`
	MatchScore float64         `json:"match_score,omitempty"`
}

type DocumentContext struct {
	ContextTypes       []string `json:"context_types,omitempty"`
	ContentDomains     []string `json:"content_domains,omitempty"`
	DocumentCategories []string `json:"document_categories,omitempty"`
	RelevanceTags      []string `json:"relevance_tags,omitempty"`
}

// Retriever is the search provider contract. A nil error with an empty
// slice means the provider answered and found nothing; a non-nil error
// means the provider itself failed.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}

// Func adapts a plain function to the Retriever interface.
type Func func(ctx context.Context, query string, topK int) ([]Document, error)

func (f Func) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	return f(ctx, query, topK)
}
