package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a minimal PDF with one text line per page.
func buildPDF(pages ...string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"", // page tree, filled in below
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	kids := []string{}
	for _, text := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
		contentID := len(objects)
		objects = append(objects, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", contentID))
		kids = append(kids, fmt.Sprintf("%d 0 R", len(objects)))
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, offset := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offset)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtract(t *testing.T) {
	data := buildPDF("Hello page one", "Second page here")
	doc, err := Extract(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, doc.Pages, 2)
	assert.Contains(t, doc.Pages[0], "Hello page one")
	assert.Contains(t, doc.Pages[1], "Second page here")

	text := doc.Text()
	assert.Contains(t, text, "Page 1: ")
	assert.Contains(t, text, "\n\nPage 2: ")
}

func TestExtractRejectsGarbage(t *testing.T) {
	data := []byte("this is not a pdf")
	_, err := Extract(bytes.NewReader(data), int64(len(data)))
	require.Error(t, err)
}

func TestDocumentText(t *testing.T) {
	doc := &Document{Pages: []string{"alpha", "beta"}}
	assert.Equal(t, "Page 1: alpha\n\nPage 2: beta\n\n", doc.Text())
}
