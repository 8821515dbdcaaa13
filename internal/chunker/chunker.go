// Package chunker splits normalized document text into spans sized for the
// synthesis service's input limit. Splitting prefers paragraph breaks, then
// sentence breaks, then hard character cuts as a last resort. Split is a pure
// function of its inputs: the same text and limit always produce the same
// chunk sequence.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Chunk is a bounded span of source text with its position in document order.
// Index is the only property merge ordering is ever decided by.
type Chunk struct {
	Index int
	Text  string
	Voice string
}

// LimitError reports text that cannot be chunked within the configured limit.
type LimitError struct {
	MaxChars int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("cannot chunk text with limit %d, limit must be positive", e.MaxChars)
}

// Split breaks text into ordered chunks of at most maxChars characters each.
// Chunk indices are contiguous from zero. Leading and trailing whitespace is
// trimmed per chunk and empty trailing chunks are dropped.
func Split(text string, maxChars int) ([]Chunk, error) {
	if maxChars <= 0 {
		return nil, &LimitError{MaxChars: maxChars}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return []Chunk{{Index: 0, Text: ""}}, nil
	}

	var pieces []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			pieces = append(pieces, s)
		}
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if runeLen(current.String())+runeLen(para)+2 > maxChars {
			flush()
			if runeLen(para) > maxChars {
				pieces = append(pieces, splitParagraph(para, maxChars)...)
				continue
			}
		}
		current.WriteString(para)
		current.WriteString("\n\n")
	}
	flush()

	chunks := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, Chunk{Index: i, Text: piece})
	}
	return chunks, nil
}

// Single wraps the whole text verbatim in one chunk. Used when chunking is
// disabled: if the synthesis service enforces its own input limit, the call
// fails visibly instead of the text being silently truncated here.
func Single(text string) []Chunk {
	return []Chunk{{Index: 0, Text: text}}
}

// splitParagraph breaks one oversized paragraph at sentence boundaries,
// falling back to hard cuts for sentences that alone exceed the limit.
func splitParagraph(para string, maxChars int) []string {
	var out []string
	var temp strings.Builder

	flush := func() {
		if s := strings.TrimSpace(temp.String()); s != "" {
			out = append(out, s)
		}
		temp.Reset()
	}

	for _, sentence := range splitSentences(para) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if runeLen(temp.String())+runeLen(sentence)+1 > maxChars {
			flush()
			if runeLen(sentence) > maxChars {
				out = append(out, hardCut(sentence, maxChars)...)
				continue
			}
		}
		temp.WriteString(sentence)
		temp.WriteString(" ")
	}
	flush()
	return out
}

// splitSentences cuts after terminal punctuation followed by whitespace.
func splitSentences(text string) []string {
	var sentences []string
	var sb strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		sb.WriteRune(runes[i])
		if isTerminal(runes[i]) && i+1 < len(runes) && isSpace(runes[i+1]) {
			sentences = append(sentences, sb.String())
			sb.Reset()
			for i+1 < len(runes) && isSpace(runes[i+1]) {
				i++
			}
		}
	}
	if sb.Len() > 0 {
		sentences = append(sentences, sb.String())
	}
	return sentences
}

func hardCut(text string, maxChars int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += maxChars {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

func isTerminal(r rune) bool { return r == '.' || r == '!' || r == '?' }

func isSpace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }

func runeLen(s string) int { return utf8.RuneCountInString(s) }
