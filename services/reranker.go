package services

import (
	"regexp"
	"sort"
	"strings"

	"docai-platform/models"
)

// Rerank weights. A hand-tuned linear blend, not a learned model; the
// weights are fixed constants on purpose.
const (
	weightSimilarity = 0.65
	weightKeyword    = 0.25
	weightPosition   = 0.10

	minKeywordTokenLen = 2 // tokens must be longer than this
)

var nonWordChars = regexp.MustCompile(`[^\w\s]`)

// RerankerService rescoring: the retriever optimizes recall, the reranker
// optimizes precision for the limited LLM context budget. Pure and
// synchronous, no I/O.
type RerankerService struct{}

// NewRerankerService creates a reranker.
func NewRerankerService() *RerankerService {
	return &RerankerService{}
}

// tokenizeQuery lowercases, strips punctuation, and keeps deduplicated
// tokens longer than two characters.
func tokenizeQuery(query string) map[string]struct{} {
	cleaned := nonWordChars.ReplaceAllString(strings.ToLower(query), " ")
	tokens := make(map[string]struct{})
	for _, w := range strings.Fields(cleaned) {
		if len(w) > minKeywordTokenLen {
			tokens[w] = struct{}{}
		}
	}
	return tokens
}

// keywordOverlap is the fraction of query tokens literally present in the
// chunk's lowercased content. Zero when the query has no qualifying tokens.
func keywordOverlap(queryTokens map[string]struct{}, content string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	contentLower := strings.ToLower(content)
	matches := 0
	for token := range queryTokens {
		if strings.Contains(contentLower, token) {
			matches++
		}
	}
	return float64(matches) / float64(len(queryTokens))
}

// Rerank orders chunks by a weighted blend of retrieval similarity,
// keyword overlap with the query, and position bias (earlier chunks score
// higher), returning the first topK.
func (rr *RerankerService) Rerank(query string, chunks []models.RetrievedChunk, topK int) []models.RetrievedChunk {
	if len(chunks) == 0 {
		return []models.RetrievedChunk{}
	}
	if topK < 1 {
		topK = 1
	}

	queryTokens := tokenizeQuery(query)

	maxIndex := 1
	for _, c := range chunks {
		if c.ChunkIndex > maxIndex {
			maxIndex = c.ChunkIndex
		}
	}

	type scored struct {
		chunk models.RetrievedChunk
		score float64
	}
	ranked := make([]scored, 0, len(chunks))
	for _, chunk := range chunks {
		keywordScore := keywordOverlap(queryTokens, chunk.Content)
		positionScore := 1 - float64(chunk.ChunkIndex)/float64(maxIndex+1)
		combined := weightSimilarity*chunk.Similarity +
			weightKeyword*keywordScore +
			weightPosition*positionScore
		ranked = append(ranked, scored{chunk: chunk, score: combined})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	out := make([]models.RetrievedChunk, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.chunk)
	}
	return out
}
