package render

import (
	"context"
	"net/url"
	"sync"

	"github.com/chromedp/chromedp"

	"sjsage522/jobscraper/helpers"
	"sjsage522/jobscraper/logger"
	crawlerrors "sjsage522/jobscraper/pkg/errors"
)

// ChromeRenderer drives one headless Chrome instance through the DevTools protocol
type ChromeRenderer struct {
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	closeOnce     sync.Once
	log           *logger.Logger
}

// NewChromeRenderer launches Chrome and opens a single tab used for every page.
// A non-nil proxy routes the whole browser through it.
func NewChromeRenderer(ctx context.Context, headless bool, proxy *url.URL) (*ChromeRenderer, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("log-level", "3"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(helpers.RandomUserAgent()),
	)
	log := logger.ForRenderer(KindChromedp)
	if proxy != nil {
		opts = append(opts, chromedp.ProxyServer(proxy.String()))
		log.Info().Str("proxy", proxy.Host).Msg("Browser uses proxy")
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser so launch failures surface here
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, crawlerrors.NewRender(KindChromedp, "failed to start browser", err)
	}

	return &ChromeRenderer{
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
		log:           log,
	}, nil
}

// Render navigates the tab to url and returns the document's outer HTML
func (r *ChromeRenderer) Render(ctx context.Context, url string, wait WaitOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", crawlerrors.NewRender(KindChromedp, "context done", err)
	}

	if err := chromedp.Run(r.browserCtx, chromedp.Navigate(url)); err != nil {
		return "", crawlerrors.NewRender(KindChromedp, "navigate "+url, err)
	}

	if wait.ReadySelector != "" && wait.ReadyTimeout > 0 {
		waitCtx, cancel := context.WithTimeout(r.browserCtx, wait.ReadyTimeout)
		err := chromedp.Run(waitCtx, chromedp.WaitVisible(wait.ReadySelector, chromedp.ByQuery))
		cancel()
		if err != nil {
			r.log.Warn().
				Str("url", url).
				Str("selector", wait.ReadySelector).
				Dur("timeout", wait.ReadyTimeout).
				Msg("Content did not become visible, proceeding anyway")
		}
	}

	var actions []chromedp.Action
	if wait.Settle > 0 {
		actions = append(actions, chromedp.Sleep(wait.Settle))
	}
	for _, step := range wait.Scroll {
		actions = append(actions, chromedp.Evaluate(step.Script, nil))
		if step.Pause > 0 {
			actions = append(actions, chromedp.Sleep(step.Pause))
		}
	}

	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err := chromedp.Run(r.browserCtx, actions...); err != nil {
		return "", crawlerrors.NewRender(KindChromedp, "read page "+url, err)
	}
	return html, nil
}

// Close shuts the tab and the browser process down
func (r *ChromeRenderer) Close() error {
	r.closeOnce.Do(func() {
		r.cancelBrowser()
		r.cancelAlloc()
		r.log.Debug().Msg("Browser closed")
	})
	return nil
}
