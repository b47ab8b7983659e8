// Package documenttest provides a Rasterizer stand-in that records the HTML it
// receives and answers with a small but well-formed PDF.
package documenttest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
)

// Rasterizer records every HTML document it is asked to print.
type Rasterizer struct {
	// Pages is the page count of the returned PDF; 1 when zero.
	Pages int
	// FailWhen, if set, makes Rasterize fail for HTML containing the string.
	FailWhen string

	mu   sync.Mutex
	html []string
}

// Rasterize implements document.Rasterizer.
func (r *Rasterizer) Rasterize(ctx context.Context, html string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.html = append(r.html, html)
	r.mu.Unlock()
	if r.FailWhen != "" && strings.Contains(html, r.FailWhen) {
		return nil, fmt.Errorf("fake rasterizer: refused document containing %q", r.FailWhen)
	}
	pages := r.Pages
	if pages <= 0 {
		pages = 1
	}
	return MinimalPDF(pages), nil
}

// HTML returns copies of the documents printed so far.
func (r *Rasterizer) HTML() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.html...)
}

// MinimalPDF builds a PDF with the requested number of blank pages and a
// correct cross-reference table.
func MinimalPDF(pages int) []byte {
	var buf bytes.Buffer
	var offsets []int
	object := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	object("<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	object(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		object("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 1191 842] >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
