// Package document renders auction payloads into printable PDFs: an HTML
// template is filled with one row per lot and printed by a Rasterizer.
package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/auctionlist/internal/model"
)

// RenderError wraps any failure producing the document for one auction.
type RenderError struct {
	AuctionID int64
	Err       error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render auction %d: %v", e.AuctionID, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Document is a rendered PDF written to the local output directory.
type Document struct {
	AuctionID int64
	Name      string
	Path      string
	Info      Info
}

// Options configures a Renderer.
type Options struct {
	TemplatePath string
	OutputDir    string
	Rows         RowOptions
	Timeout      time.Duration
}

// Renderer produces one PDF file per auction payload.
type Renderer struct {
	opts   Options
	raster Rasterizer
	log    *zap.SugaredLogger
	now    func() time.Time
}

// NewRenderer constructs a Renderer. An empty OutputDir means os.TempDir().
func NewRenderer(opts Options, raster Rasterizer, log *zap.SugaredLogger) *Renderer {
	if opts.OutputDir == "" {
		opts.OutputDir = os.TempDir()
	}
	return &Renderer{opts: opts, raster: raster, log: log, now: time.Now}
}

// HTML loads the template and renders the payload into it without printing.
func (r *Renderer) HTML(payload model.AuctionPayload) (string, error) {
	tmpl, err := LoadTemplate(r.opts.TemplatePath)
	if err != nil {
		return "", err
	}
	return Render(tmpl, payload, r.opts.Rows)
}

// Render writes the PDF for payload and returns where it is. Nothing is
// written when any step fails.
func (r *Renderer) Render(ctx context.Context, payload model.AuctionPayload) (Document, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	fail := func(err error) (Document, error) {
		return Document{}, &RenderError{AuctionID: payload.AuctionID, Err: err}
	}
	html, err := r.HTML(payload)
	if err != nil {
		return fail(err)
	}
	data, err := r.raster.Rasterize(ctx, html)
	if err != nil {
		return fail(err)
	}
	info, err := Inspect(data)
	if err != nil {
		return fail(err)
	}
	name := FileName(payload.AuctionID, r.now())
	path := filepath.Join(r.opts.OutputDir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fail(fmt.Errorf("write pdf: %w", err))
	}
	r.log.Infow("document rendered", "auctionId", payload.AuctionID, "lots", len(payload.Lots), "pages", info.Pages, "path", path)
	return Document{AuctionID: payload.AuctionID, Name: name, Path: path, Info: info}, nil
}

// FileName names the PDF for an auction; the auction id keeps concurrent
// renders from colliding.
func FileName(auctionID int64, at time.Time) string {
	return fmt.Sprintf("auction_list_%d_%s.pdf", auctionID, at.UTC().Format("2006-01-02T15-04-05.000Z"))
}
