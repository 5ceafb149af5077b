package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rag-agent/backend/internal/ingestion"
	"github.com/rag-agent/backend/internal/retrieval"
	"github.com/rag-agent/backend/pkg/logger"
)

// BatchEmbedder produces embeddings for a batch of texts in input order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type DocumentHandler struct {
	milvus    *retrieval.MilvusRetriever
	embedder  BatchEmbedder
	processor *ingestion.Processor
}

func NewDocumentHandler(milvus *retrieval.MilvusRetriever, embedder BatchEmbedder, processor *ingestion.Processor) *DocumentHandler {
	return &DocumentHandler{
		milvus:    milvus,
		embedder:  embedder,
		processor: processor,
	}
}

// UploadDocuments embeds and indexes a batch of documents with their
// metadata so later retrieval can filter and rank on it.
func (h *DocumentHandler) UploadDocuments(c *fiber.Ctx) error {
	var req struct {
		Documents []struct {
			Content            string   `json:"content"`
			Source             string   `json:"source"`
			ContextTypes       []string `json:"context_types"`
			ContentDomains     []string `json:"content_domains"`
			DocumentCategories []string `json:"document_categories"`
			RelevanceTags      []string `json:"relevance_tags"`
		} `json:"documents"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.Documents) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one document is required",
		})
	}

	docs := make([]retrieval.Document, 0, len(req.Documents))
	texts := make([]string, 0, len(req.Documents))
	for _, d := range req.Documents {
		if d.Content == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Document content is required",
			})
		}
		docs = append(docs, retrieval.Document{
			Content: d.Content,
			Source:  d.Source,
			Context: retrieval.DocumentContext{
				ContextTypes:       d.ContextTypes,
				ContentDomains:     d.ContentDomains,
				DocumentCategories: d.DocumentCategories,
				RelevanceTags:      d.RelevanceTags,
			},
		})
		texts = append(texts, d.Content)
	}

	embeddings, err := h.embedder.EmbedBatch(c.Context(), texts)
	if err != nil {
		logger.Error("Failed to embed documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to embed documents",
		})
	}

	if err := h.milvus.Insert(c.Context(), docs, embeddings); err != nil {
		logger.Error("Failed to index documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to index documents",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Documents indexed successfully",
		"indexed":  len(docs),
		"rejected": 0,
	})
}

// UploadHTML ingests a raw HTML page: the processor strips page chrome,
// chunks the text and indexes the chunks under the supplied metadata.
func (h *DocumentHandler) UploadHTML(c *fiber.Ctx) error {
	var req struct {
		Source             string   `json:"source"`
		HTMLContent        string   `json:"html_content"`
		ContextTypes       []string `json:"context_types"`
		ContentDomains     []string `json:"content_domains"`
		DocumentCategories []string `json:"document_categories"`
		RelevanceTags      []string `json:"relevance_tags"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Source == "" || req.HTMLContent == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Source and HTML content are required",
		})
	}

	count, err := h.processor.ProcessHTML(c.Context(), req.Source, req.HTMLContent, retrieval.DocumentContext{
		ContextTypes:       req.ContextTypes,
		ContentDomains:     req.ContentDomains,
		DocumentCategories: req.DocumentCategories,
		RelevanceTags:      req.RelevanceTags,
	})
	if err != nil {
		logger.Error("Failed to process document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process document",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Document processed successfully",
		"source":  req.Source,
		"title":   ingestion.ExtractTitle(req.HTMLContent),
		"chunks":  count,
	})
}
