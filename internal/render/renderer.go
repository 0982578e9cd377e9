package render

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"sjsage522/jobscraper/logger"
)

// Renderer loads a URL in a browser-like session and returns the rendered HTML.
// A Renderer is owned by exactly one crawl and is not safe for concurrent use.
type Renderer interface {
	// Render navigates to url, applies the wait options and returns the page HTML
	Render(ctx context.Context, url string, wait WaitOptions) (string, error)

	// Close releases the session. It is safe to call more than once.
	Close() error
}

// Factory acquires a fresh Renderer for one crawl
type Factory func(ctx context.Context) (Renderer, error)

// ScrollStep runs a script in the page and then pauses
type ScrollStep struct {
	Script string
	Pause  time.Duration
}

// WaitOptions controls how long a page is given to render
type WaitOptions struct {
	// ReadySelector is waited for until visible; on timeout the page is used as is
	ReadySelector string
	ReadyTimeout  time.Duration
	// Settle is a fixed pause after the ready wait for late JS rendering
	Settle time.Duration
	Scroll []ScrollStep
}

// ScrollBottomAndBack scrolls to the bottom of the page and back to the top
var ScrollBottomAndBack = []ScrollStep{
	{Script: "window.scrollTo(0, document.body.scrollHeight);", Pause: time.Second},
	{Script: "window.scrollTo(0, 0);", Pause: time.Second},
}

// Kinds of renderer backends
const (
	KindChromedp    = "chromedp"
	KindBrowserless = "browserless"
	KindHTTP        = "http"
)

// ProxySource hands out egress proxies in rotation. Next returns nil when no
// proxy is usable and the connection should be direct.
type ProxySource interface {
	Refresh(ctx context.Context) error
	Next() *url.URL
}

// Options selects and configures a renderer backend
type Options struct {
	Kind            string
	Headless        bool
	BrowserlessAddr string

	// Proxies is optional. Browser backends take one proxy per renderer,
	// the HTTP backend rotates per request.
	Proxies ProxySource
}

// NewFactory returns a Factory for the configured backend
func NewFactory(opts Options) (Factory, error) {
	switch opts.Kind {
	case KindChromedp, "":
		return func(ctx context.Context) (Renderer, error) {
			return NewChromeRenderer(ctx, opts.Headless, nextProxy(ctx, opts.Proxies))
		}, nil
	case KindBrowserless:
		if opts.BrowserlessAddr == "" {
			return nil, fmt.Errorf("browserless renderer requires an address")
		}
		return func(ctx context.Context) (Renderer, error) {
			r := NewBrowserlessRenderer(opts.BrowserlessAddr)
			r.Proxy = nextProxy(ctx, opts.Proxies)
			return r, nil
		}, nil
	case KindHTTP:
		if opts.Proxies == nil {
			return func(ctx context.Context) (Renderer, error) {
				return NewHTTPRenderer(nil), nil
			}, nil
		}
		client := proxyClient(opts.Proxies)
		return func(ctx context.Context) (Renderer, error) {
			refreshProxies(ctx, opts.Proxies)
			return NewHTTPRenderer(client), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown renderer kind %q", opts.Kind)
	}
}

// refreshProxies brings the proxy list up to date; failures leave connections direct
func refreshProxies(ctx context.Context, src ProxySource) {
	if err := src.Refresh(ctx); err != nil {
		logger.LogError("renderer", err, "Proxy refresh failed")
	}
}

// nextProxy picks the proxy for one browser session, or nil without proxies
func nextProxy(ctx context.Context, src ProxySource) *url.URL {
	if src == nil {
		return nil
	}
	refreshProxies(ctx, src)
	return src.Next()
}

// proxyClient is an HTTP client that sends every request through the next proxy
func proxyClient(src ProxySource) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = func(*http.Request) (*url.URL, error) {
		return src.Next(), nil
	}
	return &http.Client{Timeout: 30 * time.Second, Transport: transport}
}
