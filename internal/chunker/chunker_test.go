package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitSmallTextSingleChunk(t *testing.T) {
	chunks, err := Split("Just one short paragraph.", 4500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Index != 0 || chunks[0].Text != "Just one short paragraph." {
		t.Fatalf("unexpected chunk: %+v", chunks[0])
	}
}

func TestSplitTwelveThousandCharsLimitFive(t *testing.T) {
	para := strings.Repeat("All work and no play makes for dull audio. ", 27)
	para = strings.TrimSpace(para)
	var sb strings.Builder
	for sb.Len() < 12000 {
		sb.WriteString(para)
		sb.WriteString("\n\n")
	}
	text := sb.String()[:12000]

	chunks, err := Split(text, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks for 12000 chars at limit 5000, got %d", len(chunks))
	}
}

func TestSplitInvariants(t *testing.T) {
	texts := []string{
		"Short.",
		strings.Repeat("A paragraph of modest size that repeats. ", 50),
		strings.Repeat("One two three four five six seven eight nine ten. ", 200),
		strings.Repeat("x", 900), // single giant unbroken word
		"First paragraph.\n\nSecond paragraph here.\n\n" + strings.Repeat("Third big paragraph sentence. ", 40),
	}
	limits := []int{80, 200, 1000}

	for _, text := range texts {
		for _, limit := range limits {
			chunks, err := Split(text, limit)
			if err != nil {
				t.Fatalf("split(limit=%d): %v", limit, err)
			}
			for i, c := range chunks {
				if c.Index != i {
					t.Fatalf("limit %d: index gap at %d: %+v", limit, i, c)
				}
				if utf8.RuneCountInString(c.Text) > limit {
					t.Fatalf("limit %d: chunk %d exceeds limit with %d chars", limit, i, utf8.RuneCountInString(c.Text))
				}
				if c.Text == "" {
					t.Fatalf("limit %d: empty chunk at %d", limit, i)
				}
			}

			var joined strings.Builder
			for _, c := range chunks {
				joined.WriteString(c.Text)
				joined.WriteString(" ")
			}
			if stripWS(joined.String()) != stripWS(text) {
				t.Fatalf("limit %d: concatenated chunks do not reproduce input", limit)
			}
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("Sentences that go on and on, testing determinism. ", 120)
	first, err := Split(text, 700)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Split(text, 700)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitEmptyInput(t *testing.T) {
	chunks, err := Split("   \n\n  ", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "" {
		t.Fatalf("expected degenerate single empty chunk, got %+v", chunks)
	}
}

func TestSplitRejectsNonPositiveLimit(t *testing.T) {
	_, err := Split("some text", 0)
	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitError, got %v", err)
	}
}

func TestSingle(t *testing.T) {
	text := strings.Repeat("far beyond any service limit ", 1000)
	chunks := Single(text)
	if len(chunks) != 1 || chunks[0].Text != text || chunks[0].Index != 0 {
		t.Fatal("expected verbatim single-chunk passthrough")
	}
}

// stripWS removes all whitespace so the comparison ignores both trimming and
// hard-cut boundaries.
func stripWS(s string) string {
	return strings.Join(strings.Fields(s), "")
}
