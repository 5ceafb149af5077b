package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/rag-agent/backend/internal/api/handlers"
	"github.com/rag-agent/backend/internal/cache"
	"github.com/rag-agent/backend/internal/decision"
	"github.com/rag-agent/backend/internal/ingestion"
	"github.com/rag-agent/backend/internal/llm"
	"github.com/rag-agent/backend/internal/metrics"
	"github.com/rag-agent/backend/internal/middleware/ratelimit"
	"github.com/rag-agent/backend/internal/middleware/security"
	"github.com/rag-agent/backend/internal/middleware/validation"
	"github.com/rag-agent/backend/internal/orchestrator"
	"github.com/rag-agent/backend/internal/retrieval"
	"github.com/rag-agent/backend/internal/session"
	"github.com/rag-agent/backend/internal/storage/sqlite"
	"github.com/rag-agent/backend/pkg/config"
	appLogger "github.com/rag-agent/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting RAG Agent API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	llmClient := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		TimeoutSec:     cfg.LLM.TimeoutSec,
	})

	milvusRetriever, err := retrieval.NewMilvusRetriever(
		context.Background(),
		cfg.Milvus.Endpoint,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
		llmClient,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus retriever", zap.Error(err))
	}
	defer milvusRetriever.Close()

	if err := milvusRetriever.EnsureCollection(context.Background()); err != nil {
		appLogger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	var retriever retrieval.Retriever = milvusRetriever

	if cfg.Cache.Enabled {
		ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
		var retrievalCache cache.Cache
		if cfg.Cache.Backend == "redis" && cfg.Redis.Enabled {
			redisCache, err := cache.NewRedis(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
			}
			defer redisCache.Close()
			retrievalCache = redisCache
		} else {
			retrievalCache = cache.NewMemory(ttl)
		}
		retriever = retrieval.NewCachedRetriever(retriever, retrievalCache, cfg.Milvus.CollectionName, ttl)
	}

	if cfg.WebSearch.Enabled {
		web := retrieval.NewWebRetriever(cfg.WebSearch.MaxResults, time.Duration(cfg.WebSearch.TimeoutSec)*time.Second)
		retriever = retrieval.NewComposite(retriever, web)
	}

	sessionStore, err := session.NewStore(cfg.Sessions.MaxSessions)
	if err != nil {
		appLogger.Fatal("Failed to create session store", zap.Error(err))
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Store:   sessionStore,
		Tracker: session.NewTurnTracker(cfg.Sessions.MaxTurns),
		Stages: session.NewStageMachine(session.StageConfig{
			InitialBoostTurns:   cfg.Relaxation.InitialBoostTurns,
			TransitionThreshold: cfg.Relaxation.TransitionThreshold,
		}),
		Thresholds: session.NewThresholdManager(session.ThresholdConfig{
			Base:    cfg.Decision.BaseThreshold,
			Min:     cfg.Decision.MinThreshold,
			Max:     cfg.Decision.MaxThreshold,
			MaxSkew: cfg.Decision.MaxSessionSkew,
		}),
		Engine:    decision.NewEngine(llmClient),
		Retriever: retriever,
	})
	if err != nil {
		appLogger.Fatal("Failed to create orchestrator", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Session-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()

	processor := ingestion.NewProcessor(milvusRetriever, llmClient)

	chatHandler := handlers.NewChatHandler(orch, sqliteClient)
	documentHandler := handlers.NewDocumentHandler(milvusRetriever, llmClient, processor)
	wsHandler := handlers.NewWebSocketHandler(orch)

	api := app.Group("/api/v1")
	api.Use(limiter.Middleware())
	api.Use(validation.Middleware(validation.Config{Logger: appLogger.GetLogger()}))

	api.Post("/ask", chatHandler.HandleAsk)
	api.Get("/sessions/:id/history", chatHandler.GetSessionHistory)
	api.Post("/feedback", chatHandler.HandleFeedback)
	api.Get("/relaxation/stages", chatHandler.GetStages)
	api.Post("/documents", documentHandler.UploadDocuments)
	api.Post("/documents/html", documentHandler.UploadHTML)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ready",
			"sessions": sessionStore.Len(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
