package extract

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ParseError reports malformed or unsupported document content. It is
// non-retryable: the same input will fail the same way.
type ParseError struct {
	Path   string
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s document %s: %v", e.Format, filepath.Base(e.Path), e.Err)
	}
	return fmt.Sprintf("parse %s document %s", e.Format, filepath.Base(e.Path))
}

func (e *ParseError) Unwrap() error { return e.Err }

// Extractor turns a document file into normalized plain text.
type Extractor interface {
	Extract(path string) (string, error)
}

// ForFile selects an extractor by file extension.
func ForFile(path string) (Extractor, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return &PDFExtractor{}, nil
	case ".epub":
		return &EPUBExtractor{}, nil
	default:
		return nil, &ParseError{
			Path:   path,
			Format: strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
			Err:    fmt.Errorf("unsupported file type, only .pdf and .epub are supported"),
		}
	}
}
