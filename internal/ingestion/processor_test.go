package ingestion

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rag-agent/backend/internal/retrieval"
)

type fakeIndex struct {
	docs       []retrieval.Document
	embeddings [][]float32
}

func (f *fakeIndex) Insert(_ context.Context, docs []retrieval.Document, embeddings [][]float32) error {
	f.docs = append(f.docs, docs...)
	f.embeddings = append(f.embeddings, embeddings...)
	return nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func TestProcessHTMLStripsChromeAndIndexes(t *testing.T) {
	index := &fakeIndex{}
	p := NewProcessor(index, fakeEmbedder{})

	html := `<html><head><title>Index Tuning</title><script>evil()</script></head>
		<body><nav>menu</nav><p>Adjust nlist for recall.</p><footer>foot</footer></body></html>`

	count, err := p.ProcessHTML(context.Background(), "docs/guide/tuning.html", html, retrieval.DocumentContext{
		ContextTypes: []string{"technical_docs"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	doc := index.docs[0]
	assert.Contains(t, doc.Content, "Adjust nlist")
	assert.NotContains(t, doc.Content, "menu")
	assert.NotContains(t, doc.Content, "evil")
	assert.Equal(t, "docs/guide/tuning.html", doc.Source)
	assert.Equal(t, []string{"technical_docs"}, doc.Context.ContextTypes)
}

func TestProcessHTMLInfersCategoryFromSource(t *testing.T) {
	index := &fakeIndex{}
	p := NewProcessor(index, fakeEmbedder{})

	_, err := p.ProcessHTML(context.Background(), "docs/troubleshoot/errors.html",
		"<html><body><p>Fixing common errors.</p></body></html>", retrieval.DocumentContext{})
	require.NoError(t, err)
	assert.Equal(t, []string{"troubleshooting"}, index.docs[0].Context.DocumentCategories)
}

func TestProcessHTMLEmptyBody(t *testing.T) {
	p := NewProcessor(&fakeIndex{}, fakeEmbedder{})

	_, err := p.ProcessHTML(context.Background(), "docs/x.html", "<html><body></body></html>", retrieval.DocumentContext{})
	assert.Error(t, err)
}

func TestChunkTextOverlaps(t *testing.T) {
	p := NewProcessor(&fakeIndex{}, fakeEmbedder{})

	text := strings.Repeat("word ", 600)
	chunks := p.chunkText(text)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), p.chunkSize+10)
	}
}

func TestExtractTitle(t *testing.T) {
	assert.Equal(t, "Hello", ExtractTitle("<html><head><title>Hello</title></head><body></body></html>"))
	assert.Equal(t, "Heading", ExtractTitle("<html><body><h1>Heading</h1></body></html>"))
	assert.Equal(t, "Untitled", ExtractTitle("<html><body></body></html>"))
}
