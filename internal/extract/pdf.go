package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads page text from a PDF document.
type PDFExtractor struct{}

func (x *PDFExtractor) Extract(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", &ParseError{Path: path, Format: "pdf", Err: err}
	}
	defer f.Close()

	var sb strings.Builder
	totalPages := r.NumPage()
	for pageIndex := 1; pageIndex <= totalPages; pageIndex++ {
		p := r.Page(pageIndex)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", &ParseError{
				Path:   path,
				Format: "pdf",
				Err:    fmt.Errorf("page %d: %w", pageIndex, err),
			}
		}
		sb.WriteString(strings.TrimSpace(text))
		sb.WriteString("\n\n")
	}

	cleaned := CleanText(sb.String())
	if cleaned == "" {
		return "", &ParseError{
			Path:   path,
			Format: "pdf",
			Err:    fmt.Errorf("document contains no extractable text"),
		}
	}
	return cleaned, nil
}
