package services

import (
	"strings"
	"testing"

	"docai-platform/models"
)

func TestChunkEmptyInput(t *testing.T) {
	cs := NewChunkerService()
	if got := cs.Chunk("", nil); len(got) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(got))
	}
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	cs := NewChunkerService()
	text := "A short paragraph that fits well inside one chunk."
	chunks := cs.Chunk(text, nil)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != text {
		t.Fatalf("chunk content mismatch: %q", chunks[0].Content)
	}
	if chunks[0].ChunkIndex != 0 {
		t.Fatalf("expected chunk index 0, got %d", chunks[0].ChunkIndex)
	}
	if chunks[0].Metadata.Page != 0 {
		t.Fatalf("expected no page metadata without page data, got %d", chunks[0].Metadata.Page)
	}
}

func TestChunkOrderingAndCoverage(t *testing.T) {
	cs := NewChunkerService()
	var b strings.Builder
	for i := 0; i < 400; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog. ")
	}
	text := b.String()

	chunks := cs.Chunk(text, nil)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Fatalf("chunk index not gapless: pos %d has index %d", i, c.ChunkIndex)
		}
		if !strings.Contains(text, c.Content) {
			t.Fatalf("chunk %d content not found in source text", i)
		}
	}
}

func TestChunkSizeBoundWithoutBreaks(t *testing.T) {
	cs := NewChunkerService()
	// No whitespace, no sentence ends: every split falls back to the raw
	// target offset.
	text := strings.Repeat("abcdefghij", 1000)
	chunks := cs.Chunk(text, nil)
	for i, c := range chunks {
		if i == len(chunks)-1 {
			continue
		}
		if len(c.Content) > targetChunkChars+breakWindowAhead {
			t.Fatalf("chunk %d exceeds size bound: %d", i, len(c.Content))
		}
	}
}

func TestChunkOverlapWithoutBreaks(t *testing.T) {
	cs := NewChunkerService()
	text := strings.Repeat("abcdefghij", 1000)
	chunks := cs.Chunk(text, nil)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	tail := chunks[0].Content[len(chunks[0].Content)-chunkOverlapChars:]
	if !strings.HasPrefix(chunks[1].Content, tail) {
		t.Fatalf("second chunk does not begin with the first chunk's overlap tail")
	}
}

func TestChunkHeadingCarryOver(t *testing.T) {
	cs := NewChunkerService()
	var b strings.Builder
	b.WriteString("# Safety\n")
	for i := 0; i < 120; i++ {
		b.WriteString("Always wear protective equipment when operating the device. ")
	}
	b.WriteString("\n# Installation\n")
	for i := 0; i < 120; i++ {
		b.WriteString("Mount the bracket before connecting the power supply. ")
	}
	chunks := cs.Chunk(b.String(), nil)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	sawSafety, sawInstallation := false, false
	for _, c := range chunks {
		switch c.Metadata.SectionHeader {
		case "Safety":
			sawSafety = true
			if sawInstallation {
				t.Fatalf("Safety section tagged after Installation began")
			}
		case "Installation":
			sawInstallation = true
		default:
			t.Fatalf("unexpected section header %q", c.Metadata.SectionHeader)
		}
	}
	if !sawSafety || !sawInstallation {
		t.Fatalf("expected chunks from both sections (safety=%v installation=%v)", sawSafety, sawInstallation)
	}
}

func TestChunkPageTagging(t *testing.T) {
	cs := NewChunkerService()
	page1 := strings.Repeat("first page content here. ", 140)
	page2 := strings.Repeat("second page content here. ", 140)
	pages := []models.PageText{{Num: 1, Text: page1}, {Num: 2, Text: page2}}
	chunks := cs.Chunk(page1+page2, pages)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if chunks[0].Metadata.Page != 1 {
		t.Fatalf("first chunk should be on page 1, got %d", chunks[0].Metadata.Page)
	}
	last := chunks[len(chunks)-1]
	if last.Metadata.Page != 2 {
		t.Fatalf("last chunk should be on page 2, got %d", last.Metadata.Page)
	}
}

func TestPageForOffsetBeyondTotalLength(t *testing.T) {
	pages := []models.PageText{{Num: 1, Text: "aaaa"}, {Num: 2, Text: "bbbb"}}
	if got := pageForOffset(pages, 100); got != 2 {
		t.Fatalf("offset beyond total length should map to last page, got %d", got)
	}
}

func TestIsHeadingRules(t *testing.T) {
	cs := NewChunkerService()
	cases := []struct {
		line string
		want bool
	}{
		{"# Overview", true},
		{"#### Deep heading", true},
		{"##### Too deep", false},
		{"CHAPTER 12", true},
		{"Section one", true},
		{"1.2 Overview", true},
		{"12.3.4 Safety Requirements", true},
		{"WARNING NOTES", true},
		{"Introduction", true},
		{"Table of Contents", true},
		{"References", true},
		{"just a plain sentence in the body.", false},
		{"ok", false}, // below minimum length
		{strings.Repeat("A", 121), false},
		{"", false},
	}
	for _, tc := range cases {
		if got := cs.isHeading(tc.line); got != tc.want {
			t.Fatalf("isHeading(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
}

func TestExtractHeadingStripsAndCaps(t *testing.T) {
	cs := NewChunkerService()
	if got := cs.extractHeading("## Getting Started"); got != "Getting Started" {
		t.Fatalf("markdown hashes not stripped: %q", got)
	}
	long := "SECTION " + strings.Repeat("x", 150)
	if got := cs.extractHeading(long); len(got) != maxHeadingChars {
		t.Fatalf("heading not capped at %d chars: %d", maxHeadingChars, len(got))
	}
}

func TestChunkPrefersParagraphBreak(t *testing.T) {
	cs := NewChunkerService()
	// A paragraph break sits just before the target offset; the split
	// should land on it rather than mid-sentence.
	first := strings.Repeat("x", targetChunkChars-100)
	text := first + "\n\n" + strings.Repeat("y", 2000)
	chunks := cs.Chunk(text, nil)
	if len(chunks) < 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Content != first {
		t.Fatalf("first chunk should end at the paragraph break, got len %d", len(chunks[0].Content))
	}
}
