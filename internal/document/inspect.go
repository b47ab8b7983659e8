package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	pdf "github.com/ledongthuc/pdf"
)

// PDFContentType is the only content type produced by the renderer.
const PDFContentType = "application/pdf"

// Info summarizes a rendered document.
type Info struct {
	Pages       int
	ContentType string
	Size        int64
}

// Inspect checks that data is a readable PDF and reports its page count.
func Inspect(data []byte) (info Info, err error) {
	mt := mimetype.Detect(data)
	if !mt.Is(PDFContentType) {
		return Info{}, fmt.Errorf("unexpected content type %s", mt.String())
	}
	defer recoverPDF(&err)
	reader, err := openPDF(data)
	if err != nil {
		return Info{}, err
	}
	pages := reader.NumPage()
	if pages < 1 {
		return Info{}, errors.New("pdf has no pages")
	}
	return Info{Pages: pages, ContentType: PDFContentType, Size: int64(len(data))}, nil
}

// ExtractText returns the plain text of the document. Each page's text is
// followed by a newline; pages without content are skipped.
func ExtractText(data []byte) (text string, err error) {
	defer recoverPDF(&err)
	reader, err := openPDF(data)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for n := 1; n <= reader.NumPage(); n++ {
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", n, err)
		}
		b.WriteString(content)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func openPDF(data []byte) (*pdf.Reader, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("new pdf reader: %w", err)
	}
	return reader, nil
}

// recoverPDF turns a panic inside ledongthuc/pdf into an error. The reader
// panics on some malformed cross-reference tables and content streams.
func recoverPDF(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("read pdf: %v", r)
	}
}
