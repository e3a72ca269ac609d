package services

import (
	"context"
	"fmt"

	"docai-platform/internal/logger"
	"docai-platform/models"
)

// ChunkEmbedder produces one embedding per input text, order preserved.
type ChunkEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string, onProgress func(completed, total int)) ([][]float32, error)
}

// ChunkReplacer supersedes a document's stored chunks wholesale.
type ChunkReplacer interface {
	ReplaceDocumentChunks(ctx context.Context, documentID, userID string, chunks []models.Chunk, vectors [][]float32) (int, error)
}

// IndexerService turns extracted document text into searchable chunks:
// chunk, embed in batches, then replace the stored set atomically from
// the reader's point of view (old chunks are never mixed with new).
type IndexerService struct {
	chunker  *ChunkerService
	embedder ChunkEmbedder
	store    ChunkReplacer
}

func NewIndexerService(chunker *ChunkerService, embedder ChunkEmbedder, store ChunkReplacer) *IndexerService {
	return &IndexerService{chunker: chunker, embedder: embedder, store: store}
}

// IndexDocument chunks and embeds text, then stores the result. onProgress
// receives a 0-100 percentage as embedding batches complete; it may be nil.
// Returns the number of chunks indexed. A document with no extractable
// content indexes to zero chunks without error.
func (is *IndexerService) IndexDocument(ctx context.Context, documentID, userID, text string, pages []models.PageText, onProgress func(percent int)) (int, error) {
	chunks := is.chunker.Chunk(text, pages)
	if len(chunks) == 0 {
		logger.Warn("Document produced no chunks", "document_id", documentID)
		if _, err := is.store.ReplaceDocumentChunks(ctx, documentID, userID, nil, nil); err != nil {
			return 0, fmt.Errorf("failed to clear chunks: %w", err)
		}
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}

	vectors, err := is.embedder.EmbedBatch(ctx, texts, func(completed, total int) {
		if onProgress != nil && total > 0 {
			onProgress(completed * 100 / total)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("embedding failed: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	count, err := is.store.ReplaceDocumentChunks(ctx, documentID, userID, chunks, vectors)
	if err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}

	logger.Info("Document indexed",
		"document_id", documentID,
		"chunks", count)
	return count, nil
}
