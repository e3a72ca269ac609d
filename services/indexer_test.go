package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"docai-platform/models"
)

type fakeBatchEmbedder struct {
	fail     bool
	batches  [][]string
	progress []int
}

func (f *fakeBatchEmbedder) EmbedBatch(ctx context.Context, texts []string, onProgress func(completed, total int)) ([][]float32, error) {
	if f.fail {
		return nil, errors.New("embedding quota exceeded")
	}
	f.batches = append(f.batches, texts)
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i)}
		if onProgress != nil {
			onProgress(i+1, len(texts))
		}
	}
	return vectors, nil
}

type fakeChunkReplacer struct {
	fail      bool
	calls     int
	gotChunks []models.Chunk
	gotVecs   [][]float32
}

func (f *fakeChunkReplacer) ReplaceDocumentChunks(ctx context.Context, documentID, userID string, chunks []models.Chunk, vectors [][]float32) (int, error) {
	if f.fail {
		return 0, errors.New("insert failed")
	}
	f.calls++
	f.gotChunks = chunks
	f.gotVecs = vectors
	return len(chunks), nil
}

func indexerFixtureText() string {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "Paragraph %d covers operating procedures in enough detail to fill a chunk with realistic prose about the system.\n\n", i)
	}
	return sb.String()
}

func TestIndexDocumentPairsChunksWithVectors(t *testing.T) {
	embedder := &fakeBatchEmbedder{}
	store := &fakeChunkReplacer{}
	idx := NewIndexerService(NewChunkerService(), embedder, store)

	count, err := idx.IndexDocument(context.Background(), "d1", "u1", indexerFixtureText(), nil, nil)
	if err != nil {
		t.Fatalf("IndexDocument returned error: %v", err)
	}
	if count == 0 {
		t.Fatal("expected at least one chunk indexed")
	}
	if len(store.gotChunks) != len(store.gotVecs) {
		t.Fatalf("chunks and vectors not paired: %d vs %d", len(store.gotChunks), len(store.gotVecs))
	}
	for i, ch := range store.gotChunks {
		if len(embedder.batches) == 0 {
			t.Fatal("embedder never called")
		}
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, ch.ChunkIndex)
		}
	}
}

func TestIndexDocumentEmptyTextClearsChunks(t *testing.T) {
	store := &fakeChunkReplacer{}
	idx := NewIndexerService(NewChunkerService(), &fakeBatchEmbedder{}, store)

	count, err := idx.IndexDocument(context.Background(), "d1", "u1", "   \n\n  ", nil, nil)
	if err != nil {
		t.Fatalf("IndexDocument returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero chunks, got %d", count)
	}
	if store.calls != 1 {
		t.Fatal("expected store to be called to clear existing chunks")
	}
	if len(store.gotChunks) != 0 {
		t.Fatalf("expected empty replacement set, got %d chunks", len(store.gotChunks))
	}
}

func TestIndexDocumentEmbeddingFailureDoesNotStore(t *testing.T) {
	store := &fakeChunkReplacer{}
	idx := NewIndexerService(NewChunkerService(), &fakeBatchEmbedder{fail: true}, store)

	_, err := idx.IndexDocument(context.Background(), "d1", "u1", indexerFixtureText(), nil, nil)
	if err == nil {
		t.Fatal("expected error when embedding fails")
	}
	if store.calls != 0 {
		t.Fatal("store must not be touched when embedding fails")
	}
}

func TestIndexDocumentReportsProgress(t *testing.T) {
	var reports []int
	idx := NewIndexerService(NewChunkerService(), &fakeBatchEmbedder{}, &fakeChunkReplacer{})

	_, err := idx.IndexDocument(context.Background(), "d1", "u1", indexerFixtureText(), nil, func(pct int) {
		reports = append(reports, pct)
	})
	if err != nil {
		t.Fatalf("IndexDocument returned error: %v", err)
	}
	if len(reports) == 0 {
		t.Fatal("expected progress reports")
	}
	last := reports[len(reports)-1]
	if last != 100 {
		t.Fatalf("expected final progress 100, got %d", last)
	}
	for i := 1; i < len(reports); i++ {
		if reports[i] < reports[i-1] {
			t.Fatalf("progress went backwards: %v", reports)
		}
	}
}
