package retrieval

import (
	"context"
	"errors"
)

// Composite fans one query out to several providers and concatenates their
// results in provider order. It fails only when every provider fails, so a
// web outage never hides vector results.
type Composite struct {
	providers []Retriever
}

func NewComposite(providers ...Retriever) *Composite {
	return &Composite{providers: providers}
}

func (c *Composite) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	var merged []Document
	var errs []error

	for _, p := range c.providers {
		docs, err := p.Retrieve(ctx, query, topK)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		merged = append(merged, docs...)
	}

	if len(errs) == len(c.providers) && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return merged, nil
}
