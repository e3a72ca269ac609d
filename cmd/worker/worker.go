package main

import (
	"context"
	"log"
	"time"

	"docai-platform/internal/ai"
	"docai-platform/internal/config"
	"docai-platform/internal/logger"
	"docai-platform/internal/queue"
	"docai-platform/internal/telemetry"
	"docai-platform/services"

	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

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
	embedder, err := ai.NewEmbeddingService(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to init embedding service:", err)
	}
	defer embedder.Close()

	docStore := services.NewDocumentStore(db)
	searchStore := services.NewSearchStore(db, cfg)
	cache := services.NewChunkCacheService(rdb)
	indexer := services.NewIndexerService(services.NewChunkerService(), embedder, searchStore)
	processor := services.NewProcessorService(services.NewPDFExtractor(), indexer, docStore, cache, metrics)

	queueOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal("Failed to resolve queue Redis options:", err)
	}

	server := asynq.NewServer(
		queueOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err.Error())
			}),
		},
	)

	mux := asynq.NewServeMux()
	queue.NewTaskProcessor(processor).Register(mux)

	logger.Info("Starting worker",
		"concurrency", 10,
		"redis", cfg.RedisURL)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
