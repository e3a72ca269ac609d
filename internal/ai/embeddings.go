package ai

import (
	"context"
	"fmt"
	"strings"

	"docai-platform/internal/config"
	"docai-platform/internal/logger"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// EmbeddingService produces fixed-dimension vectors via the Gemini
// embeddings API. Every returned vector is validated against the
// configured dimensionality.
type EmbeddingService struct {
	client     *genai.Client
	model      string
	dimensions int
	batchSize  int
}

func NewEmbeddingService(ctx context.Context, cfg *config.Config) (*EmbeddingService, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	batchSize := cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	return &EmbeddingService{
		client:     client,
		model:      cfg.EmbeddingModel,
		dimensions: cfg.VectorDimensions,
		batchSize:  batchSize,
	}, nil
}

// Dimensions returns the configured embedding dimensionality.
func (es *EmbeddingService) Dimensions() int {
	return es.dimensions
}

func (es *EmbeddingService) validate(vec []float32, pos int) error {
	if len(vec) == 0 {
		return fmt.Errorf("no embedding returned at index %d", pos)
	}
	if es.dimensions > 0 && len(vec) != es.dimensions {
		return fmt.Errorf("invalid embedding at index %d: expected %d dims, got %d", pos, es.dimensions, len(vec))
	}
	return nil
}

// EmbedQuery embeds a single text, retrying transient provider errors.
func (es *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	input := strings.TrimSpace(text)
	if input == "" {
		input = " "
	}

	model := es.client.EmbeddingModel(es.model)
	resp, err := withRetry(ctx, func() (*genai.EmbedContentResponse, error) {
		return model.EmbedContent(ctx, genai.Text(input))
	}, RetryOptions{})
	if err != nil {
		return nil, err
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("no embedding returned")
	}
	if err := es.validate(resp.Embedding.Values, 0); err != nil {
		return nil, err
	}
	return resp.Embedding.Values, nil
}

// EmbedBatch embeds texts in fixed-size sequential batches (provider batch
// limits), retrying each batch independently, and reports progress after
// every batch. Results are in input order.
func (es *EmbeddingService) EmbedBatch(ctx context.Context, texts []string, onProgress func(completed, total int)) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := es.client.EmbeddingModel(es.model)
	vectors := make([][]float32, len(texts))
	completed := 0
	totalBatches := (len(texts) + es.batchSize - 1) / es.batchSize

	for i := 0; i < len(texts); i += es.batchSize {
		end := i + es.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := model.NewBatch()
		for _, t := range texts[i:end] {
			input := strings.TrimSpace(t)
			if input == "" {
				input = " "
			}
			batch.AddContent(genai.Text(input))
		}

		resp, err := withRetry(ctx, func() (*genai.BatchEmbedContentsResponse, error) {
			return model.BatchEmbedContents(ctx, batch)
		}, RetryOptions{BaseDelay: defaultBaseDelay * 2})
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d/%d failed: %w", i/es.batchSize+1, totalBatches, err)
		}
		if len(resp.Embeddings) != end-i {
			return nil, fmt.Errorf("embedding batch returned %d vectors, expected %d", len(resp.Embeddings), end-i)
		}

		for j, emb := range resp.Embeddings {
			if emb == nil {
				return nil, fmt.Errorf("no embedding returned at index %d", i+j)
			}
			if err := es.validate(emb.Values, i+j); err != nil {
				return nil, err
			}
			vectors[i+j] = emb.Values
		}

		completed += end - i
		if onProgress != nil {
			onProgress(completed, len(texts))
		}

		logger.Info("embedding batch complete",
			"batch", i/es.batchSize+1, "total_batches", totalBatches,
			"completed", completed, "total", len(texts))
	}

	return vectors, nil
}

// Close the underlying API client.
func (es *EmbeddingService) Close() error {
	if es.client != nil {
		return es.client.Close()
	}
	return nil
}
