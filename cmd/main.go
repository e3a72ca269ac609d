package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docai-platform/internal/ai"
	"docai-platform/internal/config"
	"docai-platform/internal/logger"
	"docai-platform/internal/telemetry"
	"docai-platform/middleware"
	"docai-platform/routes"
	"docai-platform/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	// Tracing is opt-in; metrics always initialize.
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("docai-platform", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err.Error())
		} else {
			defer shutdown()
		}
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	ctx := context.Background()
	llm, err := ai.NewGeminiClient(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to init Gemini client:", err)
	}
	defer llm.Close()
	embedder, err := ai.NewEmbeddingService(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to init embedding service:", err)
	}
	defer embedder.Close()

	queueOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal("Failed to resolve queue Redis options:", err)
	}
	queueClient := asynq.NewClient(queueOpt)
	defer queueClient.Close()

	// Service graph.
	docStore := services.NewDocumentStore(db)
	searchStore := services.NewSearchStore(db, cfg)
	cache := services.NewChunkCacheService(rdb)
	retriever := services.NewRetrieverService(embedder, searchStore, searchStore)
	answerer := services.NewAnswererService(
		services.NewReformulatorService(llm),
		retriever,
		services.NewRerankerService(),
		llm,
	)
	summarizer := services.NewSummarizerService(llm, searchStore, cache)
	indexer := services.NewIndexerService(services.NewChunkerService(), embedder, searchStore)
	processor := services.NewProcessorService(services.NewPDFExtractor(), indexer, docStore, cache, metrics)

	cron := services.NewCronService(docStore)
	if err := cron.Start(); err != nil {
		logger.Warn("Maintenance scheduler failed to start", "error", err.Error())
	}
	defer cron.Stop()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := mongoClient.Ping(ctx, nil); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	authMW := middleware.NewAuthMiddleware(cfg)
	rateLimit := middleware.RateLimitMiddleware(rdb, cfg)

	routes.SetupDocumentRoutes(router, authMW, routes.DocumentDeps{
		Cfg:       cfg,
		Store:     docStore,
		Search:    searchStore,
		Processor: processor,
		Queue:     queueClient,
		Cache:     cache,
	})
	routes.SetupChatRoutes(router, authMW, rateLimit, routes.ChatDeps{
		Cfg:      cfg,
		Store:    docStore,
		Answerer: answerer,
		Cache:    cache,
		Metrics:  metrics,
	})
	routes.SetupSummarizeRoutes(router, authMW, rateLimit, routes.SummarizeDeps{
		Cfg:        cfg,
		Store:      docStore,
		Summarizer: summarizer,
		LLM:        llm,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
	logger.Info("Server exited")
}
