package session

import (
	"context"

	"github.com/chromedp/chromedp"
)

// NewBrowserContext creates a dedicated headless browser context for one
// store task. Each store owns its own browser; contexts are never shared
// across stores. Requires Chrome/Chromium to be installed on the system.
func NewBrowserContext(ctx context.Context) (context.Context, context.CancelFunc) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)

	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	cancel := func() {
		cancelCtx()
		cancelAlloc()
	}
	return browserCtx, cancel
}
