package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// EPUBExtractor walks the OPF spine of an EPUB archive and extracts the
// visible text of each content document in reading order.
type EPUBExtractor struct{}

type containerXML struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type packageOPF struct {
	Manifest struct {
		Items []struct {
			ID        string `xml:"id,attr"`
			Href      string `xml:"href,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

func (x *EPUBExtractor) Extract(filePath string) (string, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return "", &ParseError{Path: filePath, Format: "epub", Err: err}
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	docs, err := spineDocuments(files)
	if err != nil {
		return "", &ParseError{Path: filePath, Format: "epub", Err: err}
	}

	var sb strings.Builder
	for _, name := range docs {
		f, ok := files[name]
		if !ok {
			continue
		}
		text, err := documentText(f)
		if err != nil {
			return "", &ParseError{
				Path:   filePath,
				Format: "epub",
				Err:    fmt.Errorf("content document %s: %w", name, err),
			}
		}
		if text = strings.TrimSpace(text); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
	}

	cleaned := CleanText(sb.String())
	if cleaned == "" {
		return "", &ParseError{
			Path:   filePath,
			Format: "epub",
			Err:    fmt.Errorf("archive contains no extractable text"),
		}
	}
	return cleaned, nil
}

// spineDocuments resolves the OPF spine into archive member names in reading
// order. When the container or package metadata is missing it falls back to
// every HTML document in the archive, sorted by name.
func spineDocuments(files map[string]*zip.File) ([]string, error) {
	opfName, err := rootfilePath(files)
	if err == nil {
		if docs, err := parseSpine(files, opfName); err == nil && len(docs) > 0 {
			return docs, nil
		}
	}

	var docs []string
	for name := range files {
		switch strings.ToLower(path.Ext(name)) {
		case ".xhtml", ".html", ".htm":
			docs = append(docs, name)
		}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no content documents found")
	}
	sort.Strings(docs)
	return docs, nil
}

func rootfilePath(files map[string]*zip.File) (string, error) {
	f, ok := files["META-INF/container.xml"]
	if !ok {
		return "", fmt.Errorf("missing META-INF/container.xml")
	}
	var container containerXML
	if err := decodeXML(f, &container); err != nil {
		return "", err
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return "", fmt.Errorf("container.xml declares no rootfile")
	}
	return container.Rootfiles[0].FullPath, nil
}

func parseSpine(files map[string]*zip.File, opfName string) ([]string, error) {
	f, ok := files[opfName]
	if !ok {
		return nil, fmt.Errorf("missing package document %s", opfName)
	}
	var pkg packageOPF
	if err := decodeXML(f, &pkg); err != nil {
		return nil, err
	}

	hrefByID := make(map[string]string, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		if strings.Contains(item.MediaType, "html") {
			hrefByID[item.ID] = item.Href
		}
	}

	base := path.Dir(opfName)
	var docs []string
	for _, ref := range pkg.Spine.ItemRefs {
		href, ok := hrefByID[ref.IDRef]
		if !ok {
			continue
		}
		if base != "." {
			href = path.Join(base, href)
		}
		docs = append(docs, href)
	}
	return docs, nil
}

func decodeXML(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(v)
}

var skippedTags = map[string]bool{
	"script": true, "style": true, "nav": true, "header": true,
	"footer": true, "aside": true, "figure": true, "title": true,
}

var blockTags = map[string]bool{
	"p": true, "div": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "li": true, "blockquote": true,
	"section": true, "article": true, "tr": true, "br": true,
}

// documentText strips markup from one XHTML content document, inserting
// paragraph breaks at block element boundaries.
func documentText(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	root, err := html.Parse(rc)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	collectText(root, &sb)
	return sb.String(), nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode && skippedTags[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		sb.WriteString("\n\n")
	}
}
