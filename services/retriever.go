package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"docai-platform/internal/logger"
	"docai-platform/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultTopK is the standard result count for answer-time retrieval.
	// Retrieve itself clamps topK to [1, maxTopK].
	DefaultTopK = 8
	maxTopK     = 30

	// rrfK is the standard Reciprocal Rank Fusion damping constant: rank
	// differences near the top of a list matter more than near the bottom.
	rrfK = 60

	// Dynamic threshold parameters. Pinned constants under test; changing
	// them changes the retrieval recall/precision tradeoff.
	thresholdStdDevFactor = 0.5
	thresholdTopFraction  = 0.4
	thresholdFloor        = 0.15
)

// QueryEmbedder converts query text to a fixed-dimension vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher returns candidates by vector similarity, scoped to one
// document and its owning user, ordered by descending similarity.
type VectorSearcher interface {
	VectorSearch(ctx context.Context, documentID, userID string, embedding []float32, limit int) ([]models.RetrievedChunk, error)
}

// LexicalSearcher returns candidates by full-text term match, scoped
// identically. It may legitimately return no results.
type LexicalSearcher interface {
	LexicalSearch(ctx context.Context, documentID, userID, query string, limit int) ([]models.RetrievedChunk, error)
}

// RetrieverService combines vector and lexical search for one document.
// Neither signal alone is reliable: vector search misses exact
// terminology, lexical search misses paraphrases.
type RetrieverService struct {
	embedder QueryEmbedder
	vector   VectorSearcher
	lexical  LexicalSearcher
}

// NewRetrieverService creates a hybrid retriever over the given backends.
func NewRetrieverService(embedder QueryEmbedder, vector VectorSearcher, lexical LexicalSearcher) *RetrieverService {
	return &RetrieverService{embedder: embedder, vector: vector, lexical: lexical}
}

// dynamicThreshold computes a per-query similarity cutoff from the vector
// candidate set: max(mean - 0.5*stddev, topScore*0.4, 0.15). Keeps results
// that are not far below the pack leader, scaled by how tight the score
// distribution is, with an absolute floor.
func dynamicThreshold(chunks []models.RetrievedChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}

	topScore := chunks[0].Similarity
	mean := 0.0
	for _, c := range chunks {
		mean += c.Similarity
	}
	mean /= float64(len(chunks))

	variance := 0.0
	for _, c := range chunks {
		d := c.Similarity - mean
		variance += d * d
	}
	stdDev := math.Sqrt(variance / float64(len(chunks)))

	threshold := mean - stdDev*thresholdStdDevFactor
	if t := topScore * thresholdTopFraction; t > threshold {
		threshold = t
	}
	if thresholdFloor > threshold {
		threshold = thresholdFloor
	}
	return threshold
}

// fuseResults merges the two ranked lists with Reciprocal Rank Fusion:
// each list contributes 1/(rrfK+rank) per chunk, summed by chunk id.
func fuseResults(vectorResults, textResults []models.RetrievedChunk, maxResults int) []models.RetrievedChunk {
	type fused struct {
		chunk    models.RetrievedChunk
		rrfScore float64
	}
	scores := make(map[string]*fused)
	order := make([]string, 0, len(vectorResults)+len(textResults))

	accumulate := func(results []models.RetrievedChunk) {
		for rank, chunk := range results {
			score := 1.0 / float64(rrfK+rank)
			if f, ok := scores[chunk.ID]; ok {
				f.rrfScore += score
			} else {
				scores[chunk.ID] = &fused{chunk: chunk, rrfScore: score}
				order = append(order, chunk.ID)
			}
		}
	}
	accumulate(vectorResults)
	accumulate(textResults)

	// Equal RRF scores are structural (a vector hit and a lexical hit at
	// the same rank tie exactly), so build the slice in first-seen order
	// and let the stable sort keep ties deterministic.
	out := make([]*fused, 0, len(order))
	for _, id := range order {
		out = append(out, scores[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].rrfScore > out[j].rrfScore })

	if len(out) > maxResults {
		out = out[:maxResults]
	}
	result := make([]models.RetrievedChunk, 0, len(out))
	for _, f := range out {
		result = append(result, f.chunk)
	}
	return result
}

// Retrieve returns the best candidate chunks for a query. topK is clamped
// to [1,30]. Vector and lexical search run concurrently; a lexical failure
// degrades to vector-only, a vector failure is fatal (there is no fallback
// signal source for semantic search). An empty result is a valid outcome.
func (rs *RetrieverService) Retrieve(ctx context.Context, documentID, userID, query string, topK int) ([]models.RetrievedChunk, error) {
	tracer := otel.Tracer("rag-retriever")
	ctx, span := tracer.Start(ctx, "rag.retrieve")
	defer span.End()

	k := topK
	if k < 1 {
		k = 1
	}
	if k > maxTopK {
		k = maxTopK
	}
	fetchCount := k * 2
	if fetchCount > maxTopK {
		fetchCount = maxTopK
	}

	embedding, err := rs.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	var (
		vectorResults []models.RetrievedChunk
		textResults   []models.RetrievedChunk
		vectorErr     error
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		results, lexErr := rs.lexical.LexicalSearch(ctx, documentID, userID, query, fetchCount)
		if lexErr != nil {
			// Recoverable: hybrid degrades gracefully to vector-only.
			logger.Warn("lexical search failed, falling back to vector-only",
				"document_id", documentID, "error", lexErr.Error())
			return
		}
		textResults = results
	}()

	vectorResults, vectorErr = rs.vector.VectorSearch(ctx, documentID, userID, embedding, fetchCount)
	<-done
	if vectorErr != nil {
		return nil, fmt.Errorf("vector search failed: %w", vectorErr)
	}

	span.SetAttributes(
		attribute.Int("rag.vector_count", len(vectorResults)),
		attribute.Int("rag.text_count", len(textResults)),
		attribute.Int("rag.top_k", k),
	)
	logger.Debug("hybrid search results",
		"vector_count", len(vectorResults), "text_count", len(textResults), "document_id", documentID)

	if len(vectorResults) == 0 && len(textResults) == 0 {
		return []models.RetrievedChunk{}, nil
	}

	if len(textResults) == 0 {
		threshold := dynamicThreshold(vectorResults)
		filtered := make([]models.RetrievedChunk, 0, len(vectorResults))
		for _, c := range vectorResults {
			if c.Similarity >= threshold {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > k {
			filtered = filtered[:k]
		}
		return filtered, nil
	}

	fused := fuseResults(vectorResults, textResults, k)

	// Post-filter: fused chunks that also appeared in vector search must
	// meet the vector similarity threshold. Lexical-only hits already
	// proved relevance via exact term match and are kept regardless.
	if len(fused) > 0 && len(vectorResults) > 0 {
		threshold := dynamicThreshold(vectorResults)
		bySimilarity := make(map[string]float64, len(vectorResults))
		for _, v := range vectorResults {
			bySimilarity[v.ID] = v.Similarity
		}
		filtered := make([]models.RetrievedChunk, 0, len(fused))
		for _, c := range fused {
			if sim, inVector := bySimilarity[c.ID]; inVector && sim < threshold {
				continue
			}
			filtered = append(filtered, c)
		}
		return filtered, nil
	}

	return fused, nil
}
