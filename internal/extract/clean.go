package extract

import (
	"regexp"
	"strings"
)

var (
	horizontalWS  = regexp.MustCompile(`[ \t]+`)
	multiNewline  = regexp.MustCompile(`(\r?\n[ \t]*){2,}`)
	singleNewline = regexp.MustCompile(`([^\n])\r?\n([^\n])`)
)

// CleanText normalizes extracted text: horizontal whitespace collapses to a
// single space, runs of blank lines collapse to one paragraph break, and lone
// newlines inside a paragraph become spaces.
func CleanText(text string) string {
	text = strings.TrimSpace(text)
	text = horizontalWS.ReplaceAllString(text, " ")
	text = multiNewline.ReplaceAllString(text, "\n\n")
	// Run twice: the pattern consumes the character after the newline, so
	// alternating single newlines need a second pass.
	text = singleNewline.ReplaceAllString(text, "$1 $2")
	text = singleNewline.ReplaceAllString(text, "$1 $2")
	text = horizontalWS.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
