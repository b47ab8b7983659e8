package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Rasterizer turns rendered HTML into PDF bytes.
type Rasterizer interface {
	Rasterize(ctx context.Context, html string) ([]byte, error)
}

// A3 in inches; Chrome rotates it when landscape is set.
const (
	a3Width  = 11.69
	a3Height = 16.54
)

const (
	headerTemplate = `<div style="font-size: 12px; text-align: center; width: 100%; color: #333; font-weight: bold;">SALVATO AUCTIONS - AUCTION LIST</div>`
	footerTemplate = `<div style="font-size: 10px; text-align: center; width: 100%; color: #666;">Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`
	imagesLoadedJS = `Array.from(document.images).every(function (img) { return img.complete; })`
)

// ChromeRasterizer prints HTML with a headless Chrome started per call.
type ChromeRasterizer struct {
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
	// ImageWait bounds how long to wait for images to finish loading.
	ImageWait time.Duration
}

// Rasterize loads html into a blank page, waits for images and prints an A3
// landscape PDF with a running header and page-numbered footer.
func (c *ChromeRasterizer) Rasterize(ctx context.Context, html string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.DisableGPU,
	)
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var out []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		setContent(html),
		chromedp.WaitReady("body", chromedp.ByQuery),
		waitForImages(c.ImageWait),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithLandscape(true).
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(headerTemplate).
				WithFooterTemplate(footerTemplate).
				WithPaperWidth(a3Width).
				WithPaperHeight(a3Height).
				WithMarginTop(1).
				WithMarginBottom(1).
				WithMarginLeft(0.5).
				WithMarginRight(0.5).
				Do(ctx)
			out = data
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome print: %w", err)
	}
	return out, nil
}

func setContent(html string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	})
}

// waitForImages polls until every image reports complete. Running out of time
// is not an error: the document prints with whatever has loaded.
func waitForImages(limit time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if limit <= 0 {
			return nil
		}
		err := chromedp.Poll(imagesLoadedJS, nil,
			chromedp.WithPollingTimeout(limit),
			chromedp.WithPollingInterval(100*time.Millisecond),
		).Do(ctx)
		if errors.Is(err, chromedp.ErrPollingTimeout) {
			return nil
		}
		return err
	})
}
