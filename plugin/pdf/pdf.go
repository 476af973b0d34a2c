package pdf

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

// MaxSize is the largest document accepted for extraction.
const MaxSize = 20 << 20

// Document is the text extracted from a PDF, one string per page.
type Document struct {
	Pages []string
}

// Text joins the pages as "Page i: <text>" paragraphs.
func (d *Document) Text() string {
	var sb strings.Builder
	for i, page := range d.Pages {
		fmt.Fprintf(&sb, "Page %d: %s\n\n", i+1, page)
	}
	return sb.String()
}

// Extract reads the text of every page in order.
func Extract(r io.ReaderAt, size int64) (doc *Document, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if p := recover(); p != nil {
			doc, err = nil, errors.Errorf("malformed PDF: %v", p)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open PDF")
	}

	doc = &Document{Pages: make([]string, 0, reader.NumPage())}
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			doc.Pages = append(doc.Pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read page %d", i)
		}
		doc.Pages = append(doc.Pages, strings.Join(strings.Fields(text), " "))
	}
	return doc, nil
}
