package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rag-agent/backend/internal/orchestrator"
	"github.com/rag-agent/backend/internal/session"
	"github.com/rag-agent/backend/internal/storage/models"
	"github.com/rag-agent/backend/internal/storage/sqlite"
	"github.com/rag-agent/backend/pkg/logger"
)

type ChatHandler struct {
	orch  *orchestrator.Orchestrator
	audit *sqlite.Client
}

// NewChatHandler wires the turn pipeline behind HTTP. audit may be nil to
// disable persistence.
func NewChatHandler(orch *orchestrator.Orchestrator, audit *sqlite.Client) *ChatHandler {
	return &ChatHandler{orch: orch, audit: audit}
}

func (h *ChatHandler) HandleAsk(c *fiber.Ctx) error {
	var req struct {
		SessionID     string `json:"session_id"`
		Question      string `json:"question"`
		SystemMessage string `json:"system_message"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}

	resp, err := h.orch.Process(c.Context(), orchestrator.Request{
		SessionID:     req.SessionID,
		Question:      req.Question,
		SystemMessage: req.SystemMessage,
	})
	if err != nil {
		logger.Error("Failed to process question", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process question",
		})
	}

	h.recordAudit(req.Question, resp)

	return c.JSON(resp)
}

func (h *ChatHandler) GetSessionHistory(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Session id is required",
		})
	}

	history := h.orch.History(sessionID)
	if history == nil {
		history = []session.TurnRecord{}
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"turns":      history,
	})
}

func (h *ChatHandler) HandleFeedback(c *fiber.Ctx) error {
	var req struct {
		SessionID     string  `json:"session_id"`
		TurnID        string  `json:"turn_id"`
		Helpful       bool    `json:"helpful"`
		Confidence    float64 `json:"confidence"`
		IssueCategory string  `json:"issue_category"`
		Comment       string  `json:"comment"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	h.orch.RecordFeedback(req.SessionID, req.Confidence, req.Helpful)

	if h.audit != nil && req.TurnID != "" {
		err := h.audit.StoreFeedback(&models.Feedback{
			TurnID:        req.TurnID,
			Helpful:       req.Helpful,
			IssueCategory: req.IssueCategory,
			Comment:       req.Comment,
		})
		if err != nil {
			logger.Error("Failed to store feedback", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"message": "Feedback recorded",
	})
}

// GetStages exposes the relaxation stage table for diagnostics.
func (h *ChatHandler) GetStages(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"stages": session.Stages(),
	})
}

func (h *ChatHandler) recordAudit(question string, resp *orchestrator.Response) {
	if h.audit == nil {
		return
	}

	err := h.audit.InsertTurnAudit(&models.TurnAudit{
		ID:             resp.RequestID,
		SessionID:      resp.SessionID,
		TurnNumber:     resp.TurnNumber,
		Question:       question,
		Answer:         resp.Answer,
		FinalDecision:  resp.Transparency.FinalDecision,
		ResponseMode:   resp.ResponseMode,
		Confidence:     resp.Confidence,
		Threshold:      resp.Threshold,
		DocumentsFound: resp.Transparency.RAGDocumentsFound,
		Success:        resp.Success,
		LatencyMS:      resp.LatencyMS,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		logger.Error("Failed to record turn audit", zap.Error(err))
	}
}
