package extract

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestForFileSelection(t *testing.T) {
	if _, err := ForFile("book.epub"); err != nil {
		t.Fatalf("expected epub extractor: %v", err)
	}
	if _, err := ForFile("paper.PDF"); err != nil {
		t.Fatalf("expected pdf extractor: %v", err)
	}

	_, err := ForFile("notes.txt")
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError for unsupported extension, got %v", err)
	}
}

func TestCleanText(t *testing.T) {
	in := "First  line\nstill first.\n\n\n\nSecond\tparagraph.  "
	got := CleanText(in)
	want := "First line still first.\n\nSecond paragraph."
	if got != want {
		t.Fatalf("clean text mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestCleanTextEmpty(t *testing.T) {
	if got := CleanText("  \n \t "); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func writeEPUB(t *testing.T, chapters map[string]string, spine []string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "book.epub")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create epub: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	add := func(name, body string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	add("mimetype", "application/epub+zip")
	add("META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`)

	var manifest, spineRefs strings.Builder
	for i, name := range spine {
		manifest.WriteString(`<item id="ch` + string(rune('0'+i)) + `" href="` + name + `" media-type="application/xhtml+xml"/>`)
		spineRefs.WriteString(`<itemref idref="ch` + string(rune('0'+i)) + `"/>`)
	}
	add("OEBPS/content.opf", `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <manifest>`+manifest.String()+`</manifest>
  <spine>`+spineRefs.String()+`</spine>
</package>`)

	for name, body := range chapters {
		add("OEBPS/"+name, body)
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return path
}

func TestEPUBExtractSpineOrder(t *testing.T) {
	path := writeEPUB(t,
		map[string]string{
			"ch1.xhtml": `<html><head><title>One</title><style>p{}</style></head><body><p>Chapter one text.</p></body></html>`,
			"ch2.xhtml": `<html><body><h1>Two</h1><p>Chapter two text.</p><script>ignored()</script></body></html>`,
		},
		[]string{"ch1.xhtml", "ch2.xhtml"},
	)

	text, err := (&EPUBExtractor{}).Extract(path)
	if err != nil {
		t.Fatalf("extract epub: %v", err)
	}

	first := strings.Index(text, "Chapter one text.")
	second := strings.Index(text, "Chapter two text.")
	if first < 0 || second < 0 {
		t.Fatalf("missing chapter text in %q", text)
	}
	if first > second {
		t.Fatalf("chapters out of spine order in %q", text)
	}
	if strings.Contains(text, "ignored()") {
		t.Fatalf("script content leaked into %q", text)
	}
	if strings.Contains(text, "One") && strings.Index(text, "One") < first {
		t.Fatalf("title element leaked into %q", text)
	}
}

func TestEPUBExtractRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.epub")
	if err := os.WriteFile(path, []byte("not a zip archive"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := (&EPUBExtractor{}).Extract(path)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestPDFExtractRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(path, []byte("%PDF-not-really"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := (&PDFExtractor{}).Extract(path)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}
