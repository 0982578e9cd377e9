package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crawlerrors "sjsage522/jobscraper/pkg/errors"
)

const samplePage = `<html><body><a href="/job-detail/1">Python Developer</a></body></html>`

func TestHTTPRenderer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	r := NewHTTPRenderer(nil)
	defer r.Close()

	html, err := r.Render(context.Background(), server.URL, WaitOptions{ReadySelector: "a"})
	require.NoError(t, err)
	assert.Contains(t, html, "Python Developer")
}

func TestBrowserlessRendererJSONEnvelope(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/function", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"content": samplePage},
		})
	}))
	defer server.Close()

	r := NewBrowserlessRenderer(server.URL + "/")
	defer r.Close()

	html, err := r.Render(context.Background(), "https://www.timesjobs.com/job-search", WaitOptions{
		ReadySelector: "a[href*='/job-detail/']",
		ReadyTimeout:  20 * time.Second,
		Settle:        4 * time.Second,
		Scroll:        ScrollBottomAndBack,
	})
	require.NoError(t, err)
	assert.Equal(t, samplePage, html)

	ctxMap := received["context"].(map[string]interface{})
	assert.Equal(t, "https://www.timesjobs.com/job-search", ctxMap["url"])
	assert.Equal(t, float64(20000), ctxMap["readyTimeout"])
	assert.Equal(t, float64(4000), ctxMap["settle"])
	assert.Len(t, ctxMap["scroll"], 2)
}

func TestBrowserlessRendererErrors(t *testing.T) {
	status := http.StatusTooManyRequests
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte("busy"))
	}))
	defer server.Close()

	r := NewBrowserlessRenderer(server.URL)

	_, err := r.Render(context.Background(), "https://example.com", WaitOptions{})
	assert.True(t, crawlerrors.IsRateLimit(err))

	status = http.StatusBadGateway
	_, err = r.Render(context.Background(), "https://example.com", WaitOptions{})
	assert.Equal(t, crawlerrors.ErrorTypeRender, crawlerrors.TypeOf(err))
}

func TestExtractHTML(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"raw html", samplePage, samplePage, false},
		{"content field", `{"content":"<html><body>x</body></html>"}`, "<html><body>x</body></html>", false},
		{"result field", `{"result":"<body>y</body>"}`, "<body>y</body>", false},
		{"html field", `{"success":true,"html":"<html>z</html>"}`, "<html>z</html>", false},
		{"no html", `{"error":"timeout"}`, "", true},
		{"plain text", "Service Unavailable", "", true},
		{"broken json", `{"content":`, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractHTML([]byte(tc.body))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewFactory(t *testing.T) {
	f, err := NewFactory(Options{Kind: KindHTTP})
	require.NoError(t, err)
	r, err := f(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &HTTPRenderer{}, r)

	_, err = NewFactory(Options{Kind: KindBrowserless})
	assert.Error(t, err)

	f, err = NewFactory(Options{Kind: KindBrowserless, BrowserlessAddr: "http://localhost:3000"})
	require.NoError(t, err)
	r, err = f(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &BrowserlessRenderer{}, r)

	_, err = NewFactory(Options{Kind: "selenium"})
	assert.Error(t, err)
}

// rotatingProxies is a ProxySource over a fixed list
type rotatingProxies struct {
	mu         sync.Mutex
	urls       []*url.URL
	next       int
	refreshed  int
	refreshErr error
}

func (p *rotatingProxies) Refresh(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshed++
	return p.refreshErr
}

func (p *rotatingProxies) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.urls) == 0 {
		return nil
	}
	u := p.urls[p.next%len(p.urls)]
	p.next++
	return u
}

func TestHTTPFactoryRotatesProxies(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	forwardProxy := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			hits[name]++
			mu.Unlock()
			assert.Equal(t, "jobs.example", r.URL.Host, "proxied requests carry the absolute target URL")
			fmt.Fprintf(w, "<html><body>via %s</body></html>", name)
		}))
	}
	first, second := forwardProxy("first"), forwardProxy("second")
	defer first.Close()
	defer second.Close()

	src := &rotatingProxies{}
	for _, srv := range []*httptest.Server{first, second} {
		u, err := url.Parse(srv.URL)
		require.NoError(t, err)
		src.urls = append(src.urls, u)
	}

	f, err := NewFactory(Options{Kind: KindHTTP, Proxies: src})
	require.NoError(t, err)
	r, err := f(context.Background())
	require.NoError(t, err)
	defer r.Close()

	html, err := r.Render(context.Background(), "http://jobs.example/job-search", WaitOptions{})
	require.NoError(t, err)
	assert.Contains(t, html, "via first")

	html, err = r.Render(context.Background(), "http://jobs.example/job-search", WaitOptions{})
	require.NoError(t, err)
	assert.Contains(t, html, "via second")

	assert.Equal(t, map[string]int{"first": 1, "second": 1}, hits)
	assert.Equal(t, 1, src.refreshed, "proxies are refreshed once per acquired renderer")
}

func TestHTTPFactoryFallsBackToDirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	src := &rotatingProxies{refreshErr: errors.New("none of 3 proxies is reachable")}
	f, err := NewFactory(Options{Kind: KindHTTP, Proxies: src})
	require.NoError(t, err)
	r, err := f(context.Background())
	require.NoError(t, err)

	html, err := r.Render(context.Background(), server.URL, WaitOptions{})
	require.NoError(t, err)
	assert.Contains(t, html, "Python Developer")
}

func TestBrowserlessProxyFlag(t *testing.T) {
	var proxyFlag string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/function", r.URL.Path)
		proxyFlag = r.URL.Query().Get("--proxy-server")
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	proxyURL, err := url.Parse("socks5://10.0.0.7:1080")
	require.NoError(t, err)
	src := &rotatingProxies{urls: []*url.URL{proxyURL}}

	f, err := NewFactory(Options{Kind: KindBrowserless, BrowserlessAddr: server.URL, Proxies: src})
	require.NoError(t, err)
	r, err := f(context.Background())
	require.NoError(t, err)
	assert.Equal(t, proxyURL, r.(*BrowserlessRenderer).Proxy)

	_, err = r.Render(context.Background(), "https://in.talent.com/jobs", WaitOptions{})
	require.NoError(t, err)
	assert.Equal(t, "socks5://10.0.0.7:1080", proxyFlag)
}

// TestChromeRenderer requires a local Chrome/Chromium binary
func TestChromeRenderer(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}
	found := false
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			found = true
			break
		}
	}
	if !found {
		t.Skip("Chrome is not available, skipping test")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	r, err := NewChromeRenderer(ctx, true, nil)
	require.NoError(t, err)
	defer r.Close()

	html, err := r.Render(ctx, server.URL, WaitOptions{
		ReadySelector: "a",
		ReadyTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	assert.Contains(t, html, "Python Developer")

	// Close twice must not panic
	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}
