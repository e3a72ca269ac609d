package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docai-platform/models"
)

type fakeChunkLoader struct {
	chunks []models.Chunk
	err    error
}

func (f *fakeChunkLoader) ChunksInOrder(ctx context.Context, documentID, userID string, charLimit int) ([]models.Chunk, error) {
	return f.chunks, f.err
}

type recordingCompleter struct {
	reply     string
	err       error
	gotSystem string
	gotUser   string
}

func (r *recordingCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32, maxTokens int) (string, error) {
	r.gotSystem = systemPrompt
	r.gotUser = userPrompt
	return r.reply, r.err
}

func loaderWith(contents ...string) *fakeChunkLoader {
	chunks := make([]models.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = models.Chunk{Content: c, ChunkIndex: i}
	}
	return &fakeChunkLoader{chunks: chunks}
}

func TestSummarizeJoinsChunksInOrder(t *testing.T) {
	llm := &recordingCompleter{reply: "## Summary of the PDF File\n\nDone."}
	s := NewSummarizerService(llm, loaderWith("first part", "second part"), nil)

	res, err := s.Summarize(context.Background(), "d1", "u1", "summary", false)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if res.Cached {
		t.Error("fresh generation should not be marked cached")
	}
	if !strings.Contains(llm.gotUser, "first part\n\nsecond part") {
		t.Errorf("chunks not joined in order:\n%s", llm.gotUser)
	}
	if !strings.Contains(llm.gotSystem, `"## Summary of the PDF File"`) {
		t.Error("system prompt missing mandatory heading")
	}
}

func TestSummarizeUnknownStyleFallsBack(t *testing.T) {
	llm := &recordingCompleter{reply: "text"}
	s := NewSummarizerService(llm, loaderWith("content"), nil)

	res, err := s.Summarize(context.Background(), "d1", "u1", "haiku", false)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if res.Style != DefaultSummaryStyle {
		t.Fatalf("expected fallback to %q, got %q", DefaultSummaryStyle, res.Style)
	}
}

func TestSummarizeStylePrompts(t *testing.T) {
	wantHeaders := map[string]string{
		"summary":  "Summary of the PDF File",
		"smart":    "Smart Summary of the PDF File",
		"chapters": "Chapter Summary of the PDF File",
		"core":     "Core Points of the PDF File",
		"insights": "Key Insights of the PDF File",
		"meeting":  "Meeting Minutes of the PDF File",
		"legal":    "Legal Summary of the PDF File",
	}
	for style, header := range wantHeaders {
		llm := &recordingCompleter{reply: "text"}
		s := NewSummarizerService(llm, loaderWith("content"), nil)
		if _, err := s.Summarize(context.Background(), "d1", "u1", style, false); err != nil {
			t.Fatalf("style %s: %v", style, err)
		}
		if !strings.Contains(llm.gotSystem, "## "+header) {
			t.Errorf("style %s: system prompt missing header %q", style, header)
		}
	}
}

func TestSummarizeTruncatesLongDocuments(t *testing.T) {
	llm := &recordingCompleter{reply: "text"}
	s := NewSummarizerService(llm, loaderWith(strings.Repeat("x", summaryMaxContextChars+1000)), nil)

	if _, err := s.Summarize(context.Background(), "d1", "u1", "summary", false); err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if !strings.Contains(llm.gotUser, "[... document truncated for length ...]") {
		t.Error("expected truncation marker in prompt")
	}
	if !strings.Contains(llm.gotUser, "Note: The document was truncated") {
		t.Error("expected truncation note in instruction")
	}
}

func TestSummarizeEmptyDocumentErrors(t *testing.T) {
	s := NewSummarizerService(&recordingCompleter{reply: "text"}, &fakeChunkLoader{}, nil)
	if _, err := s.Summarize(context.Background(), "d1", "u1", "summary", false); err == nil {
		t.Fatal("expected error for document with no chunks")
	}
}

func TestSummarizeModelFailurePropagates(t *testing.T) {
	s := NewSummarizerService(&recordingCompleter{err: errors.New("quota")}, loaderWith("content"), nil)
	if _, err := s.Summarize(context.Background(), "d1", "u1", "summary", false); err == nil {
		t.Fatal("expected error when model fails")
	}
}

func TestValidSummaryStyle(t *testing.T) {
	for _, style := range []string{"summary", "smart", "chapters", "core", "insights", "meeting", "legal"} {
		if !ValidSummaryStyle(style) {
			t.Errorf("style %q should be valid", style)
		}
	}
	if ValidSummaryStyle("bullet") {
		t.Error("unknown style reported valid")
	}
}
