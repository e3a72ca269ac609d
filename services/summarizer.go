package services

import (
	"context"
	"fmt"
	"strings"

	"docai-platform/internal/logger"
	"docai-platform/models"
)

const (
	summaryMaxContextChars = 400_000
	summaryTemperature     = 0.3
	summaryMaxTokens       = 4096

	DefaultSummaryStyle = "summary"
)

// summaryStyle describes one summarization mode: the mandatory first
// heading, the section layout the model should follow, and the user
// instruction.
type summaryStyle struct {
	Header      string
	Role        string
	Sections    string
	Instruction string
}

var summaryStyles = map[string]summaryStyle{
	"summary": {
		Header: "Summary of the PDF File",
		Role:   "You are an expert document summarizer. Your summaries are detailed, well-structured, and easy to navigate.",
		Sections: `- "### 1. Document Type and Purpose"
- "### 2. Key Sections and Their Functions" with #### a., b., c. subsections and substantive bullet points
- "### 3. Overall Summary" with bullet points on purpose and takeaways`,
		Instruction: "Summarize the following document comprehensively. Cover all major topics with highlights and key insights.",
	},
	"smart": {
		Header: "Smart Summary of the PDF File",
		Role:   "You are an expert document summarizer. You present key points in the most effective format available.",
		Sections: `- "###" sections for key point groups, with #### a., b., c. subsections where needed
- Markdown tables whenever the content involves options, comparisons, or tabular data`,
		Instruction: "Summarize the key points in the best way. Use tables and structured formatting where helpful.",
	},
	"chapters": {
		Header: "Chapter Summary of the PDF File",
		Role:   "You are an expert document summarizer. You summarize by following the document's own structure.",
		Sections: `- One "###" section per chapter or major division, in document order (e.g. "### 1. Introduction")
- "####" for subsections within a chapter
- A markdown table comparing chapters (Chapter | Key Topics | Main Points) when useful`,
		Instruction: "Summarize by chapters and sections. Follow the document's table of contents structure.",
	},
	"core": {
		Header: "Core Points of the PDF File",
		Role:   "You are an expert document summarizer. You extract executive-level takeaways for decision-making.",
		Sections: `- "###" sections: Key Conclusions, Critical Details, Recommendations, Important Dates/Requirements
- Markdown tables for key data (Metric | Value, Deadline | Details, Requirement | Status)`,
		Instruction: "Extract core points, key conclusions, and important details for executive review.",
	},
	"insights": {
		Header: "Key Insights of the PDF File",
		Role:   "You are an expert document summarizer. You extract highlights for quick review.",
		Sections: `- "###" sections grouping themes when there are multiple categories
- Bullet points with 1-2 sentences each; a table (Topic | Insight | Importance) when insights compare items`,
		Instruction: "Extract key insights and highlights for quick review.",
	},
	"meeting": {
		Header: "Meeting Minutes of the PDF File",
		Role:   "You are an expert at summarizing meeting content so non-attendees understand outcomes.",
		Sections: `- "###" sections: Key Decisions, Main Topics Discussed, Action Items
- Always a markdown table for action items (Owner | Task | Deadline | Status) when tasks are mentioned`,
		Instruction: "Summarize these meeting minutes briefly so non-attendees can understand.",
	},
	"legal": {
		Header: "Legal Summary of the PDF File",
		Role:   "You are an expert at summarizing legal documents and contracts. You summarize only; you never provide legal advice.",
		Sections: `- "###" sections: Key Terms, Parties & Obligations, Risks, Important Dates, Termination
- Markdown tables: Party | Role | Obligation; Term | Details | Risk Level; Date | Event`,
		Instruction: "Summarize this document. Highlight key terms, obligations, potential risks, and important clauses.",
	},
}

// SummaryStyles returns the valid style identifiers.
func SummaryStyles() []string {
	out := make([]string, 0, len(summaryStyles))
	for id := range summaryStyles {
		out = append(out, id)
	}
	return out
}

// ValidSummaryStyle reports whether style is a known identifier.
func ValidSummaryStyle(style string) bool {
	_, ok := summaryStyles[style]
	return ok
}

const summaryConstraints = `### Constraints
- Only include information that appears in the document.
- Do not invent, infer, or assume beyond the source text.
- Use the same language as the document.
- If the document contains OCR noise or placeholders, omit those.`

func summarySystemPrompt(style summaryStyle) string {
	return fmt.Sprintf(`### Role
%s

### Format
- Start with a brief courteous opener followed by ---
- The FIRST ## heading in your output MUST be exactly: "## %s"
- Structure the body as:
%s
- Use **bold** for key terms and bullet points with 1-2 sentences of substance, not bare labels.
- End with "## Conclusion" and a closing paragraph.

%s`, style.Role, style.Header, style.Sections, summaryConstraints)
}

// ChunkLoader loads a document's chunks in index order.
type ChunkLoader interface {
	ChunksInOrder(ctx context.Context, documentID, userID string, charLimit int) ([]models.Chunk, error)
}

// SummarizerService generates styled document summaries from the stored
// chunk set, with a Redis cache in front of generation.
type SummarizerService struct {
	llm    ChatCompleter
	loader ChunkLoader
	cache  *ChunkCacheService
}

func NewSummarizerService(llm ChatCompleter, loader ChunkLoader, cache *ChunkCacheService) *SummarizerService {
	return &SummarizerService{llm: llm, loader: loader, cache: cache}
}

// SummaryResult carries the generated text and whether it was served
// from cache.
type SummaryResult struct {
	Text   string
	Style  string
	Cached bool
}

// Summarize produces a summary in the given style. Unknown styles fall
// back to the default. regenerate bypasses the cache.
func (s *SummarizerService) Summarize(ctx context.Context, documentID, userID, styleID string, regenerate bool) (*SummaryResult, error) {
	style, ok := summaryStyles[styleID]
	if !ok {
		styleID = DefaultSummaryStyle
		style = summaryStyles[styleID]
	}

	if !regenerate && s.cache != nil {
		if text, hit := s.cache.GetCachedSummary(ctx, documentID, styleID); hit {
			return &SummaryResult{Text: text, Style: styleID, Cached: true}, nil
		}
	}

	chunks, err := s.loader.ChunksInOrder(ctx, documentID, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no content found for document %s", documentID)
	}

	parts := make([]string, len(chunks))
	for i, ch := range chunks {
		parts[i] = ch.Content
	}
	fullText := strings.Join(parts, "\n\n")
	truncated := len(fullText) > summaryMaxContextChars
	if truncated {
		fullText = fullText[:summaryMaxContextChars] + "\n\n[... document truncated for length ...]"
	}

	instruction := style.Instruction
	if truncated {
		instruction += "\n\nNote: The document was truncated; the summary covers the portion provided."
	}

	logger.Info("Generating summary",
		"document_id", documentID,
		"style", styleID,
		"chars", len(fullText),
		"truncated", truncated)

	userPrompt := fmt.Sprintf("### Document to Summarize\n\n%s\n\n%s", instruction, fullText)
	text, err := s.llm.Complete(ctx, summarySystemPrompt(style), userPrompt, summaryTemperature, summaryMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("summary generation failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("model returned empty summary")
	}

	if s.cache != nil {
		s.cache.CacheSummary(ctx, documentID, styleID, text)
	}
	return &SummaryResult{Text: text, Style: styleID}, nil
}
