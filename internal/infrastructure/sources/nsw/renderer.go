package nsw

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// PageRenderer loads apiURL inside a browser session that first visited homeURL.
type PageRenderer interface {
	Render(ctx context.Context, homeURL, apiURL string, challengeWait time.Duration) (string, error)
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// ChromeRenderer drives Chrome through the DevTools protocol, either a local
// headless process or a remote browser endpoint.
type ChromeRenderer struct {
	remoteURL string
}

func NewChromeRenderer(remoteURL string) *ChromeRenderer {
	return &ChromeRenderer{remoteURL: remoteURL}
}

// Render owns the browser for the duration of one call. Both contexts are
// cancelled on every return path, which closes the tab and stops a local process.
func (r *ChromeRenderer) Render(ctx context.Context, homeURL, apiURL string, challengeWait time.Duration) (string, error) {
	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if r.remoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, r.remoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.UserAgent(browserUserAgent),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
		)
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, opts...)
	}
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(homeURL),
		chromedp.Sleep(challengeWait),
		chromedp.Navigate(apiURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", apiURL, err)
	}
	return html, nil
}
