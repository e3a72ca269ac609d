package services

import (
	"regexp"
	"strings"

	"docai-platform/models"
)

// Chunk sizing: token budget approximated at 4 characters per token.
const (
	charsPerToken     = 4
	targetChunkChars  = 800 * charsPerToken // ~800 tokens
	chunkOverlapChars = 120 * charsPerToken // ~120 token overlap
	breakWindowBehind = 400
	breakWindowAhead  = 200
	maxHeadingChars   = 100
	minHeadingChars   = 3
	maxHeadingLine    = 120
)

// headingRule is a single independent heading predicate. Rules are kept
// separate rather than folded into one regex so each can be tested alone.
type headingRule struct {
	name    string
	matches func(trimmed string) bool
}

// ChunkerService splits extracted document text into overlapping,
// structure-aware segments tagged with page number and nearest section
// heading. It is a pure, CPU-bound component with no I/O.
type ChunkerService struct {
	headingRules   []headingRule
	markdownPrefix *regexp.Regexp
	paragraphBreak *regexp.Regexp
	sentenceBreak  *regexp.Regexp
}

// NewChunkerService creates a chunker with the standard heading rules.
func NewChunkerService() *ChunkerService {
	markdown := regexp.MustCompile(`^#{1,4}\s+.+`)
	formalLabel := regexp.MustCompile(`(?i)^(?:CHAPTER|SECTION|PART|ARTICLE)\s+\w+`)
	numbered := regexp.MustCompile(`^\d+(?:\.\d+)*\s+[A-Z].+`)
	allCaps := regexp.MustCompile(`^[A-Z][A-Z\s]{4,}$`)
	structureWord := regexp.MustCompile(`(?i)^(?:Introduction|Conclusion|Summary|Abstract|Appendix|References|Table of Contents)`)

	rules := []headingRule{
		{name: "markdown", matches: markdown.MatchString},
		{name: "formal-label", matches: formalLabel.MatchString},
		{name: "numbered", matches: numbered.MatchString},
		{name: "all-caps", matches: allCaps.MatchString},
		{name: "structure-word", matches: structureWord.MatchString},
	}

	return &ChunkerService{
		headingRules:   rules,
		markdownPrefix: regexp.MustCompile(`^#{1,4}\s+`),
		paragraphBreak: regexp.MustCompile(`\n\s*\n`),
		sentenceBreak:  regexp.MustCompile(`[.!?]\s+`),
	}
}

// isHeading reports whether a raw line is a section heading.
func (cs *ChunkerService) isHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < minHeadingChars || len(trimmed) > maxHeadingLine {
		return false
	}
	for _, rule := range cs.headingRules {
		if rule.matches(trimmed) {
			return true
		}
	}
	return false
}

// extractHeading normalizes a heading line: markdown hashes stripped,
// capped at 100 characters.
func (cs *ChunkerService) extractHeading(line string) string {
	heading := cs.markdownPrefix.ReplaceAllString(strings.TrimSpace(line), "")
	if len(heading) > maxHeadingChars {
		heading = heading[:maxHeadingChars]
	}
	return heading
}

// lineOffset records where each source line starts, for section lookups.
type lineOffset struct {
	offset int
	text   string
}

func (cs *ChunkerService) lineOffsets(text string) []lineOffset {
	lines := strings.Split(text, "\n")
	offsets := make([]lineOffset, 0, len(lines))
	offset := 0
	for _, line := range lines {
		offsets = append(offsets, lineOffset{offset: offset, text: line})
		offset += len(line) + 1 // +1 for \n
	}
	return offsets
}

// sectionForOffset returns the most recent heading at or before the given
// offset, or "" when no heading precedes it.
func (cs *ChunkerService) sectionForOffset(lines []lineOffset, off int) string {
	section := ""
	for _, lo := range lines {
		if lo.offset > off {
			break
		}
		if cs.isHeading(lo.text) {
			section = cs.extractHeading(lo.text)
		}
	}
	return section
}

// pageForOffset maps a character offset to a page number by walking
// cumulative per-page text lengths. Returns 0 when no page data exists;
// offsets beyond the total length fall on the last page.
func pageForOffset(pages []models.PageText, off int) int {
	if len(pages) == 0 {
		return 0
	}
	charCount := 0
	for _, p := range pages {
		charCount += len(p.Text)
		if off < charCount {
			return p.Num
		}
	}
	return pages[len(pages)-1].Num
}

// findBreakPoint locates the best split near target: the last paragraph
// break in the search window, else the last sentence break, else the raw
// target offset (accepted mid-word split).
func (cs *ChunkerService) findBreakPoint(text string, start, target int) int {
	searchStart := target - breakWindowBehind
	if searchStart < start {
		searchStart = start
	}
	searchEnd := target + breakWindowAhead
	if searchEnd > len(text) {
		searchEnd = len(text)
	}
	window := text[searchStart:searchEnd]

	bestBreak := -1
	for _, m := range cs.paragraphBreak.FindAllStringIndex(window, -1) {
		pos := searchStart + m[1]
		if pos > start && pos <= target+breakWindowAhead {
			bestBreak = pos
		}
	}
	if bestBreak > start {
		return bestBreak
	}

	for _, m := range cs.sentenceBreak.FindAllStringIndex(window, -1) {
		pos := searchStart + m[1]
		if pos > start && pos <= target+breakWindowAhead {
			bestBreak = pos
		}
	}
	if bestBreak > start {
		return bestBreak
	}

	return target
}

// Chunk splits text into overlapping segments with adaptive boundaries,
// tagging each with its source page and the nearest preceding heading.
// The section heading carries forward to later chunks until a new heading
// appears. Empty input yields an empty slice.
func (cs *ChunkerService) Chunk(text string, pages []models.PageText) []models.Chunk {
	var chunks []models.Chunk
	if text == "" {
		return chunks
	}

	lines := cs.lineOffsets(text)
	chunkIndex := 0
	start := 0
	currentSection := ""

	for start < len(text) {
		target := start + targetChunkChars

		var end int
		if target >= len(text) {
			end = len(text)
		} else {
			end = cs.findBreakPoint(text, start, target)
		}

		content := strings.TrimSpace(text[start:end])
		if content != "" {
			section := cs.sectionForOffset(lines, start)
			if section == "" {
				section = currentSection
			}
			if section != "" {
				currentSection = section
			}

			chunks = append(chunks, models.Chunk{
				Content:    content,
				ChunkIndex: chunkIndex,
				Metadata: models.ChunkMetadata{
					Page:          pageForOffset(pages, start),
					SectionHeader: section,
				},
			})
			chunkIndex++
		}

		if end >= len(text) {
			break
		}

		// Overlap into the next chunk, guarding against zero progress on
		// short trailing text.
		start = end - chunkOverlapChars
		floor := 0
		if chunkIndex > 0 {
			floor = end - targetChunkChars
		}
		if start <= floor {
			start = end
		}
	}

	return chunks
}
