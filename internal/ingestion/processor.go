package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/rag-agent/backend/internal/retrieval"
	"github.com/rag-agent/backend/pkg/logger"
)

// VectorIndex is the write side of the document store.
type VectorIndex interface {
	Insert(ctx context.Context, docs []retrieval.Document, embeddings [][]float32) error
}

// BatchEmbedder produces embeddings for a batch of texts in input order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Processor turns raw HTML pages into indexed, metadata-tagged chunks.
type Processor struct {
	index        VectorIndex
	embedder     BatchEmbedder
	chunkSize    int
	chunkOverlap int
}

func NewProcessor(index VectorIndex, embedder BatchEmbedder) *Processor {
	return &Processor{
		index:        index,
		embedder:     embedder,
		chunkSize:    1000,
		chunkOverlap: 100,
	}
}

// ProcessHTML cleans the page, chunks it with overlap, embeds the chunks and
// indexes them under the given metadata. Category metadata left empty is
// inferred from the source path. Returns the number of chunks indexed.
func (p *Processor) ProcessHTML(ctx context.Context, source, htmlContent string, docCtx retrieval.DocumentContext) (int, error) {
	logger.Info("Processing document", zap.String("source", source))

	cleanedText := cleanHTML(htmlContent)
	if cleanedText == "" {
		return 0, fmt.Errorf("no content extracted from HTML")
	}

	if len(docCtx.DocumentCategories) == 0 {
		docCtx.DocumentCategories = inferCategories(source)
	}

	chunks := p.chunkText(cleanedText)
	logger.Info("Document chunked", zap.Int("chunks", len(chunks)))

	embeddings, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}

	docs := make([]retrieval.Document, 0, len(chunks))
	for _, chunkText := range chunks {
		docs = append(docs, retrieval.Document{
			Content: chunkText,
			Source:  source,
			Context: docCtx,
		})
	}

	if err := p.index.Insert(ctx, docs, embeddings); err != nil {
		return 0, fmt.Errorf("failed to insert into vector index: %w", err)
	}

	logger.Info("Document indexed",
		zap.String("source", source),
		zap.Int("chunks", len(docs)),
	)

	return len(docs), nil
}

var whitespacePattern = regexp.MustCompile(`\s+`)

func cleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// ExtractTitle pulls a display title from the page, preferring <title> over
// the first heading.
func ExtractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "Untitled"
	}

	title := doc.Find("title").First().Text()
	if title == "" {
		title = doc.Find("h1").First().Text()
	}
	if title == "" {
		title = "Untitled"
	}

	return strings.TrimSpace(title)
}

func inferCategories(source string) []string {
	lower := strings.ToLower(source)

	for _, category := range []string{"troubleshooting", "guide", "reference", "tutorial"} {
		if strings.Contains(lower, strings.TrimSuffix(category, "ing")) {
			return []string{category}
		}
	}
	return []string{"documentation"}
}

func (p *Processor) chunkText(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var currentChunk strings.Builder
	currentSize := 0

	for _, word := range words {
		wordLen := len(word) + 1

		if currentSize+wordLen > p.chunkSize && currentChunk.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(currentChunk.String()))

			overlapWords := strings.Fields(currentChunk.String())
			overlapStart := max(0, len(overlapWords)-p.chunkOverlap/10)
			currentChunk.Reset()
			currentChunk.WriteString(strings.Join(overlapWords[overlapStart:], " ") + " ")
			currentSize = currentChunk.Len()
		}

		currentChunk.WriteString(word + " ")
		currentSize += wordLen
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
	}

	return chunks
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
