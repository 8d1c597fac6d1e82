// Package chunker splits raw document text into bounded, overlapping
// passages suitable for embedding.
//
// Splitting strategies are tried in priority order:
//  1. structural units (numbered problems/exercises), when enabled
//  2. paragraph packing on blank-line boundaries, when enabled
//  3. sentence accumulation under a token budget, with a trailing
//     overlap window carried between adjacent chunks
//
// The token limit is advisory, never destructive: a single sentence or
// structural unit larger than MaxTokens is kept whole rather than split
// mid-token.
package chunker

import (
	"regexp"
	"strings"

	"github.com/pensieve-ai/pensieve/internal/token"
)

// Default chunking parameters.
const (
	DefaultMaxTokens     = 500
	DefaultOverlapTokens = 50
)

// Config controls how a document is split.
type Config struct {
	// MaxTokens is the estimated token budget per chunk. Default 500.
	MaxTokens int

	// OverlapTokens bounds the estimated size of the overlap window
	// carried from the end of one chunk into the next. Zero disables
	// overlap.
	OverlapTokens int

	// PreserveParagraphs packs whole paragraphs (blank-line separated)
	// into chunks instead of splitting mid-paragraph where possible.
	PreserveParagraphs bool

	// SplitByStructuralUnits splits on problem/exercise markers first.
	// When the document contains more than one such unit, paragraph
	// splitting is skipped entirely.
	SplitByStructuralUnits bool
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.OverlapTokens < 0 {
		c.OverlapTokens = 0
	}
	return c
}

// structuralUnitRe matches problem-style markers at the start of a line:
// "문제 3", "문항 1", "Problem 2", "Question 4", "Q5.", or bare "3." / "3)".
var structuralUnitRe = regexp.MustCompile(`(?mi)^[ \t]*(?:(?:problem|question|exercise|문제|문항)[ \t]*\d+|q\d+|\d+[.)])`)

// paragraphRe splits on one or more blank lines.
var paragraphRe = regexp.MustCompile(`\n[ \t]*\n+`)

// Split divides text into an ordered list of non-empty chunk texts.
// Empty or whitespace-only input yields zero chunks.
func Split(text string, cfg Config) []string {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if cfg.SplitByStructuralUnits {
		if units := splitStructuralUnits(text); len(units) > 1 {
			var chunks []string
			for _, unit := range units {
				chunks = append(chunks, splitByTokenLimit(unit, cfg)...)
			}
			return chunks
		}
	}

	if cfg.PreserveParagraphs {
		return packParagraphs(text, cfg)
	}

	return splitByTokenLimit(text, cfg)
}

// splitStructuralUnits cuts text at problem-marker positions. Content
// before the first marker becomes its own unit so no text is lost.
func splitStructuralUnits(text string) []string {
	locs := structuralUnitRe.FindAllStringIndex(text, -1)
	if len(locs) < 2 {
		return nil
	}

	var units []string
	appendUnit := func(s string) {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			units = append(units, trimmed)
		}
	}

	appendUnit(text[:locs[0][0]])
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		appendUnit(text[loc[0]:end])
	}
	return units
}

// packParagraphs greedily packs consecutive paragraphs into one chunk while
// the running estimate stays within budget. A paragraph that alone exceeds
// the budget falls through to the sentence splitter.
func packParagraphs(text string, cfg Config) []string {
	paragraphs := paragraphRe.Split(text, -1)

	var chunks []string
	var current string

	flush := func() {
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if token.Estimate(p) > cfg.MaxTokens {
			flush()
			chunks = append(chunks, splitByTokenLimit(p, cfg)...)
			continue
		}

		switch {
		case current == "":
			current = p
		case token.Estimate(current+"\n\n"+p) <= cfg.MaxTokens:
			current += "\n\n" + p
		default:
			flush()
			current = p
		}
	}
	flush()
	return chunks
}

// splitByTokenLimit accumulates sentences into chunks under the token
// budget, seeding each new chunk with an overlap window from the tail of
// the previous one. A single sentence over the budget becomes its own chunk.
func splitByTokenLimit(text string, cfg Config) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current string

	for _, s := range sentences {
		if current == "" {
			current = s
			continue
		}

		if token.Estimate(current+" "+s) <= cfg.MaxTokens {
			current += " " + s
			continue
		}

		chunks = append(chunks, current)

		// Seed the next chunk with trailing context from the one just
		// closed, unless the seed would blow the budget by itself.
		seed := overlapTail(current, cfg.OverlapTokens)
		if seed != "" && token.Estimate(seed+" "+s) <= cfg.MaxTokens {
			current = seed + " " + s
		} else {
			current = s
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// splitSentences splits text at sentence-ending punctuation followed by
// whitespace. Trailing text without a terminator is kept as a sentence.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		// Consume runs of terminators ("?!", "...").
		j := i
		for j+1 < len(runes) && isSentenceEnd(runes[j+1]) {
			j++
		}
		if j+1 < len(runes) && !isSpace(runes[j+1]) {
			i = j
			continue // mid-token period (e.g. "3.14", "e.g.x")
		}
		if s := strings.TrimSpace(string(runes[start : j+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = j + 1
		i = j
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// overlapTail returns the longest trailing span of text whose estimated
// token count stays within budget, cut on word boundaries. Best-effort:
// returns less (possibly nothing) when little prior content exists.
func overlapTail(text string, budget int) string {
	if budget <= 0 {
		return ""
	}

	words := strings.Fields(text)
	start := len(words)
	for start > 0 {
		candidate := strings.Join(words[start-1:], " ")
		if token.Estimate(candidate) > budget {
			break
		}
		start--
	}
	if start == len(words) {
		return ""
	}
	return strings.Join(words[start:], " ")
}
