package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/rag-agent/backend/pkg/logger"
)

// Embedder turns query text into the vector the collection is indexed by.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// MilvusRetriever is the production Retriever: queries are embedded and
// searched against a Milvus collection whose rows carry the document
// context metadata the ranking layer filters on.
type MilvusRetriever struct {
	client         client.Client
	embedder       Embedder
	collectionName string
	vectorDim      int
}

func NewMilvusRetriever(ctx context.Context, endpoint, collectionName string, vectorDim int, embedder Embedder) (*MilvusRetriever, error) {
	c, err := client.NewGrpcClient(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus retriever initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &MilvusRetriever{
		client:         c,
		embedder:       embedder,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *MilvusRetriever) Close() error {
	return m.client.Close()
}

func (m *MilvusRetriever) Collection() string {
	return m.collectionName
}

// EnsureCollection creates and loads the document collection if it does not
// exist yet.
func (m *MilvusRetriever) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		return nil
	}

	varchar := func(name, maxLength string) *entity.Field {
		return &entity.Field{
			Name:       name,
			DataType:   entity.FieldTypeVarChar,
			TypeParams: map[string]string{"max_length": maxLength},
		}
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Document chunks with context metadata",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "embedding",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.vectorDim)},
			},
			varchar("content", "4096"),
			varchar("source", "512"),
			varchar("context_types", "512"),
			varchar("content_domains", "512"),
			varchar("document_categories", "512"),
			varchar("relevance_tags", "512"),
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

// Insert stores document chunks with their context metadata.
func (m *MilvusRetriever) Insert(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) == 0 {
		return nil
	}
	if len(docs) != len(embeddings) {
		return fmt.Errorf("documents and embeddings length mismatch: %d vs %d", len(docs), len(embeddings))
	}

	ids := make([]string, len(docs))
	contents := make([]string, len(docs))
	sources := make([]string, len(docs))
	contextTypes := make([]string, len(docs))
	domains := make([]string, len(docs))
	categories := make([]string, len(docs))
	tags := make([]string, len(docs))

	for i, doc := range docs {
		ids[i] = fmt.Sprintf("%s-%d", doc.Source, i)
		contents[i] = doc.Content
		sources[i] = doc.Source
		contextTypes[i] = strings.Join(doc.Context.ContextTypes, ",")
		domains[i] = strings.Join(doc.Context.ContentDomains, ",")
		categories[i] = strings.Join(doc.Context.DocumentCategories, ",")
		tags[i] = strings.Join(doc.Context.RelevanceTags, ",")
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", ids),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnVarChar("context_types", contextTypes),
		entity.NewColumnVarChar("content_domains", domains),
		entity.NewColumnVarChar("document_categories", categories),
		entity.NewColumnVarChar("relevance_tags", tags),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunks inserted", zap.Int("count", len(docs)))

	return nil
}

func (m *MilvusRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	embedding, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		[]string{"content", "source", "context_types", "content_domains", "document_categories", "relevance_tags"},
		[]entity.Vector{entity.FloatVector(embedding)},
		"embedding",
		entity.IP,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	docs := make([]Document, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			docs = append(docs, Document{
				Content: columnString(sr.Fields.GetColumn("content"), i),
				Source:  columnString(sr.Fields.GetColumn("source"), i),
				Score:   float64(sr.Scores[i]),
				Context: DocumentContext{
					ContextTypes:       splitMeta(columnString(sr.Fields.GetColumn("context_types"), i)),
					ContentDomains:     splitMeta(columnString(sr.Fields.GetColumn("content_domains"), i)),
					DocumentCategories: splitMeta(columnString(sr.Fields.GetColumn("document_categories"), i)),
					RelevanceTags:      splitMeta(columnString(sr.Fields.GetColumn("relevance_tags"), i)),
				},
			})
		}
	}

	logger.Debug("Vector search completed",
		zap.String("query", query),
		zap.Int("top_k", topK),
		zap.Int("results", len(docs)),
	)

	return docs, nil
}

func columnString(col entity.Column, i int) string {
	if col == nil {
		return ""
	}
	value, err := col.Get(i)
	if err != nil {
		return ""
	}
	s, _ := value.(string)
	return s
}

func splitMeta(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
