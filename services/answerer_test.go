package services

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"docai-platform/internal/ai"
	"docai-platform/models"
)

type fakeStreamer struct {
	gotSystem string
	gotUser   string
	deltas    []string
}

func (f *fakeStreamer) CompleteStream(ctx context.Context, systemPrompt, userPrompt string, temperature float32, onDelta func(string)) (ai.TokenUsage, error) {
	f.gotSystem = systemPrompt
	f.gotUser = userPrompt
	for _, d := range f.deltas {
		onDelta(d)
	}
	return ai.TokenUsage{PromptTokens: 10, CompletionTokens: 5}, nil
}

type fixedCompleter struct{ reply string }

func (f fixedCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32, maxTokens int) (string, error) {
	return f.reply, nil
}

func newTestAnswerer(vector *fakeVectorSearch, lexical *fakeLexicalSearch, streamer *fakeStreamer) *AnswererService {
	retriever := NewRetrieverService(&fakeEmbedder{}, vector, lexical)
	return NewAnswererService(
		NewReformulatorService(fixedCompleter{reply: "installation torque specification"}),
		retriever,
		NewRerankerService(),
		streamer,
	)
}

func TestRetrieveForQueryUsesReformulatedQuery(t *testing.T) {
	// Equal similarities keep both chunks above the dynamic threshold.
	vector := &fakeVectorSearch{out: []models.RetrievedChunk{
		rc("c1", 0, 0.9),
		rc("c2", 1, 0.9),
	}}
	lexical := &fakeLexicalSearch{}
	as := newTestAnswerer(vector, lexical, &fakeStreamer{})

	chunks, err := as.RetrieveForQuery(context.Background(), "d1", "u1", "instal torque?")
	if err != nil {
		t.Fatalf("RetrieveForQuery returned error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if lexical.gotQuery != "installation torque specification" {
		t.Errorf("lexical search saw query %q, want reformulated", lexical.gotQuery)
	}
}

func TestRetrieveForQueryEmptyDocument(t *testing.T) {
	as := newTestAnswerer(&fakeVectorSearch{}, &fakeLexicalSearch{}, &fakeStreamer{})

	chunks, err := as.RetrieveForQuery(context.Background(), "d1", "u1", "anything")
	if err != nil {
		t.Fatalf("RetrieveForQuery returned error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestStreamAnswerBuildsNumberedContext(t *testing.T) {
	streamer := &fakeStreamer{deltas: []string{"The ", "answer."}}
	as := newTestAnswerer(&fakeVectorSearch{}, &fakeLexicalSearch{}, streamer)

	chunks := []models.RetrievedChunk{
		{ID: "c1", Content: "Torque bolts to 25 Nm.", ChunkIndex: 3, Metadata: models.ChunkMetadata{Page: 7, SectionHeader: "Installation"}, Similarity: 0.9},
		{ID: "c2", Content: "Wear gloves.", ChunkIndex: 1, Metadata: models.ChunkMetadata{}, Similarity: 0.8},
	}

	var answer strings.Builder
	usage, err := as.StreamAnswer(context.Background(), "what torque?", chunks, func(d string) {
		answer.WriteString(d)
	})
	if err != nil {
		t.Fatalf("StreamAnswer returned error: %v", err)
	}
	if answer.String() != "The answer." {
		t.Errorf("assembled answer = %q", answer.String())
	}
	if usage.PromptTokens != 10 {
		t.Errorf("usage not propagated: %+v", usage)
	}

	if !strings.Contains(streamer.gotUser, "[1] | Section: Installation | Page 7") {
		t.Errorf("context missing annotated header:\n%s", streamer.gotUser)
	}
	if !strings.Contains(streamer.gotUser, "[2]\nWear gloves.") {
		t.Errorf("chunk without metadata should get bare number:\n%s", streamer.gotUser)
	}
	if !strings.Contains(streamer.gotUser, "\n\n---\n\n") {
		t.Error("excerpts should be separated by --- dividers")
	}
	if !strings.Contains(streamer.gotUser, "### Question\n\nwhat torque?") {
		t.Error("user prompt missing original question")
	}
}

func TestBuildSourcesTruncatesContent(t *testing.T) {
	long := strings.Repeat("a", 500)
	sources := BuildSources([]models.RetrievedChunk{
		{ID: "c1", Content: long, ChunkIndex: 2, Metadata: models.ChunkMetadata{Page: 4, SectionHeader: "Overview"}},
		{ID: "c2", Content: "short", ChunkIndex: 5},
	})

	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if !strings.HasSuffix(sources[0].Content, "…") {
		t.Error("long content should end with ellipsis")
	}
	if len(sources[0].Content) > sourcePreviewLen+len("…") {
		t.Errorf("preview too long: %d bytes", len(sources[0].Content))
	}
	if sources[1].Content != "short" {
		t.Errorf("short content should pass through, got %q", sources[1].Content)
	}
	if sources[0].Page != 4 || sources[0].Section != "Overview" || sources[0].ChunkIndex != 2 {
		t.Errorf("metadata not carried: %+v", sources[0])
	}
}

func TestBuildSourcesPreviewKeepsRunesIntact(t *testing.T) {
	// One leading ASCII byte pushes the preview cut off the 3-byte rune
	// grid, so a byte-index truncation would split a character.
	long := "a" + strings.Repeat("日", 200)
	sources := BuildSources([]models.RetrievedChunk{
		{ID: "c1", Content: long, ChunkIndex: 0},
	})

	preview := sources[0].Content
	if !utf8.ValidString(preview) {
		t.Fatalf("preview is not valid UTF-8: %q", preview)
	}
	if strings.ContainsRune(preview, utf8.RuneError) {
		t.Fatalf("preview contains a replacement character: %q", preview)
	}
	if !strings.HasSuffix(preview, "…") {
		t.Error("truncated preview should end with ellipsis")
	}
	if len(preview) > sourcePreviewLen+len("…") {
		t.Errorf("preview too long: %d bytes", len(preview))
	}
}
