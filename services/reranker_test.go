package services

import (
	"math"
	"testing"

	"docai-platform/models"
)

func TestTokenizeQuery(t *testing.T) {
	tokens := tokenizeQuery("How do I re-set the TIMER, quickly?")
	want := []string{"how", "set", "the", "timer", "quickly"}
	for _, w := range want {
		if _, ok := tokens[w]; !ok {
			t.Fatalf("missing token %q in %v", w, tokens)
		}
	}
	if _, ok := tokens["do"]; ok {
		t.Fatalf("short token 'do' should be dropped")
	}
	if _, ok := tokens["i"]; ok {
		t.Fatalf("short token 'i' should be dropped")
	}
}

func TestKeywordOverlapNoQualifyingTokens(t *testing.T) {
	if got := keywordOverlap(map[string]struct{}{}, "any content"); got != 0 {
		t.Fatalf("expected 0 overlap for empty token set, got %f", got)
	}
}

func TestRerankCombinedScoreFormula(t *testing.T) {
	// Controlled inputs: verify the exact weighted sum, not just ordering.
	chunks := []models.RetrievedChunk{
		{ID: "a", Content: "alpha beta gamma", ChunkIndex: 0, Similarity: 0.8},
		{ID: "b", Content: "alpha only", ChunkIndex: 4, Similarity: 0.6},
	}
	query := "alpha beta"
	tokens := tokenizeQuery(query)
	maxIndex := 4

	wantA := weightSimilarity*0.8 + weightKeyword*1.0 + weightPosition*(1-0.0/float64(maxIndex+1))
	wantB := weightSimilarity*0.6 + weightKeyword*0.5 + weightPosition*(1-4.0/float64(maxIndex+1))

	gotAKw := keywordOverlap(tokens, chunks[0].Content)
	gotBKw := keywordOverlap(tokens, chunks[1].Content)
	gotA := weightSimilarity*chunks[0].Similarity + weightKeyword*gotAKw + weightPosition*(1-float64(chunks[0].ChunkIndex)/float64(maxIndex+1))
	gotB := weightSimilarity*chunks[1].Similarity + weightKeyword*gotBKw + weightPosition*(1-float64(chunks[1].ChunkIndex)/float64(maxIndex+1))

	if math.Abs(gotA-wantA) > 1e-12 || math.Abs(gotB-wantB) > 1e-12 {
		t.Fatalf("combined score drifted from 0.65*sim + 0.25*keyword + 0.10*position")
	}

	rr := NewRerankerService()
	ranked := rr.Rerank(query, chunks, 8)
	if ranked[0].ID != "a" {
		t.Fatalf("expected chunk a first, got %s", ranked[0].ID)
	}
}

func TestRerankPositionBias(t *testing.T) {
	// Identical similarity and keyword overlap: the earlier chunk wins.
	chunks := []models.RetrievedChunk{
		{ID: "late", Content: "mounting bracket", ChunkIndex: 9, Similarity: 0.5},
		{ID: "early", Content: "mounting bracket", ChunkIndex: 1, Similarity: 0.5},
	}
	rr := NewRerankerService()
	ranked := rr.Rerank("mounting", chunks, 8)
	if ranked[0].ID != "early" {
		t.Fatalf("position bias should favor the earlier chunk, got %s first", ranked[0].ID)
	}
}

func TestRerankTruncatesToTopK(t *testing.T) {
	chunks := make([]models.RetrievedChunk, 10)
	for i := range chunks {
		chunks[i] = models.RetrievedChunk{ID: string(rune('a' + i)), Content: "text", ChunkIndex: i, Similarity: 0.5}
	}
	rr := NewRerankerService()
	if got := rr.Rerank("query", chunks, 3); len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
}

func TestRerankClampsLowTopK(t *testing.T) {
	chunks := []models.RetrievedChunk{
		{ID: "a", Content: "text", ChunkIndex: 0, Similarity: 0.9},
		{ID: "b", Content: "text", ChunkIndex: 1, Similarity: 0.8},
	}
	rr := NewRerankerService()
	if got := rr.Rerank("query", chunks, 0); len(got) != 1 {
		t.Fatalf("topK 0 should clamp to 1 result, got %d", len(got))
	}
}

func TestRerankEmptyInput(t *testing.T) {
	rr := NewRerankerService()
	if got := rr.Rerank("query", nil, 8); len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestRerankKeywordMatchOutranksComparableSimilarity(t *testing.T) {
	// Two sections with comparable vector similarity: the one matching the
	// question's terms should surface first.
	chunks := []models.RetrievedChunk{
		{ID: "safety", Content: "Always wear protective equipment near the device.", ChunkIndex: 0, Similarity: 0.70, Metadata: models.ChunkMetadata{SectionHeader: "Safety"}},
		{ID: "install", Content: "Installation steps: mount the bracket, then connect power.", ChunkIndex: 1, Similarity: 0.69, Metadata: models.ChunkMetadata{SectionHeader: "Installation"}},
	}
	rr := NewRerankerService()
	ranked := rr.Rerank("how do I install it", chunks, 8)
	if ranked[0].Metadata.SectionHeader != "Installation" {
		t.Fatalf("expected Installation chunk first, got %q", ranked[0].Metadata.SectionHeader)
	}
}
