package services

import (
	"context"
	"fmt"
	"os"

	"docai-platform/internal/logger"
	"docai-platform/internal/telemetry"
	"docai-platform/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ProcessorService drives a document through its processing lifecycle:
// extract text, chunk and embed, store chunks, then mark the document
// ready. Any failure marks the document failed with a detail message.
type ProcessorService struct {
	extractor *PDFExtractor
	indexer   *IndexerService
	store     *DocumentStore
	cache     *ChunkCacheService
	metrics   *telemetry.Metrics
}

func NewProcessorService(extractor *PDFExtractor, indexer *IndexerService, store *DocumentStore, cache *ChunkCacheService, metrics *telemetry.Metrics) *ProcessorService {
	return &ProcessorService{
		extractor: extractor,
		indexer:   indexer,
		store:     store,
		cache:     cache,
		metrics:   metrics,
	}
}

// Process runs the full pipeline for one document. Reprocessing a
// document supersedes its previous chunks and invalidates caches.
func (ps *ProcessorService) Process(ctx context.Context, documentID, userID string) error {
	ctx, span := otel.Tracer("docai-platform").Start(ctx, "document.process")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))

	doc, err := ps.store.GetOwned(ctx, documentID, userID)
	if err != nil {
		return err
	}

	if err := ps.store.SetStatus(ctx, doc.ID, models.StatusProcessing, ""); err != nil {
		return fmt.Errorf("failed to mark processing: %w", err)
	}

	if err := ps.process(ctx, doc, userID); err != nil {
		logger.Error("Document processing failed",
			"document_id", documentID,
			"error", err.Error())
		if setErr := ps.store.SetStatus(context.WithoutCancel(ctx), doc.ID, models.StatusFailed, err.Error()); setErr != nil {
			logger.Error("Failed to mark document failed", "document_id", documentID, "error", setErr.Error())
		}
		return err
	}
	return nil
}

func (ps *ProcessorService) process(ctx context.Context, doc *models.Document, userID string) error {
	extraction, err := ps.extractor.ExtractText(ctx, doc.FilePath)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	// Extraction is roughly the first tenth of the work; embedding
	// batches fill the rest.
	ps.store.SetProgress(ctx, doc.ID, 10)

	documentID := doc.ID.Hex()
	count, err := ps.indexer.IndexDocument(ctx, documentID, userID, extraction.Text, extraction.Pages, func(pct int) {
		ps.store.SetProgress(ctx, doc.ID, 10+pct*85/100)
	})
	if err != nil {
		return err
	}

	if ps.cache != nil {
		ps.cache.InvalidateDocument(ctx, documentID)
	}

	meta := models.DocumentMetadata{
		Size:           fileSize(doc.FilePath),
		Pages:          extraction.PageCount,
		WordCount:      extraction.WordCount,
		CharacterCount: extraction.CharacterCount,
		ProcessingTime: extraction.ProcessingTime,
	}
	if err := ps.store.SetProcessed(ctx, doc.ID, count, meta); err != nil {
		return fmt.Errorf("failed to mark ready: %w", err)
	}

	if ps.metrics != nil {
		ps.metrics.ProcessingDuration.Record(ctx, extraction.ProcessingTime.Seconds())
	}
	logger.Info("Document processed",
		"document_id", documentID,
		"chunks", count,
		"pages", extraction.PageCount)
	return nil
}

func fileSize(path string) int64 {
	stat, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return stat.Size()
}
