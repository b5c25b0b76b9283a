package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"salesboard/internal/sales"

	"github.com/chromedp/chromedp"
)

var (
	headlessOnce sync.Once
	headlessErr  error
)

// EnsureHeadlessAvailable checks once per process that a headless Chrome can start.
func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		parent, cancel := chromedp.NewContext(ctx)
		defer cancel()
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

// PNG renders the chart page in headless Chrome and returns a screenshot.
func (r *Renderer) PNG(ctx context.Context, spec sales.RenderSpec, labels sales.AxisLabels) ([]byte, error) {
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		return nil, fmt.Errorf("headless chrome unavailable: %w", err)
	}
	html, err := r.HTML(spec, labels)
	if err != nil {
		return nil, err
	}
	settle := time.Duration(r.opts.DurationMS)*time.Millisecond + 300*time.Millisecond
	return renderHTMLToPNG(ctx, html, r.opts.Width, r.opts.Height, settle)
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int, settle time.Duration) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settle),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
