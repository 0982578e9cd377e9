package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"slices"
	"strings"
	"time"

	"sjsage522/jobscraper/helpers"
	"sjsage522/jobscraper/logger"
	crawlerrors "sjsage522/jobscraper/pkg/errors"
)

// browserlessFunction runs inside the remote Chrome service for every page
const browserlessFunction = `module.exports = async ({ page, context }) => {
	await page.setViewport({ width: 1920, height: 1080 });
	await page.setUserAgent(context.userAgent);
	await page.goto(context.url, { waitUntil: 'domcontentloaded', timeout: 45000 });
	if (context.readySelector) {
		try {
			await page.waitForSelector(context.readySelector, { visible: true, timeout: context.readyTimeout });
		} catch (e) {
			console.log('ready selector not visible, proceeding');
		}
	}
	const pause = (ms) => new Promise((r) => setTimeout(r, ms));
	if (context.settle > 0) await pause(context.settle);
	for (const step of context.scroll) {
		await page.evaluate(step.script);
		if (step.pause > 0) await pause(step.pause);
	}
	return { content: await page.content(), url: page.url() };
}`

// BrowserlessRenderer renders pages on a remote Chrome service exposing a /function endpoint
type BrowserlessRenderer struct {
	Addr string

	// Proxy is passed to the service as the browser's --proxy-server launch flag
	Proxy *neturl.URL

	client *http.Client
	log    *logger.Logger
}

// NewBrowserlessRenderer creates a renderer for the service at addr
func NewBrowserlessRenderer(addr string) *BrowserlessRenderer {
	return &BrowserlessRenderer{
		Addr:   strings.TrimRight(addr, "/"),
		client: &http.Client{Timeout: 90 * time.Second},
		log:    logger.ForRenderer(KindBrowserless),
	}
}

// Render posts the page function for url and unwraps the returned HTML
func (r *BrowserlessRenderer) Render(ctx context.Context, url string, wait WaitOptions) (string, error) {
	scroll := make([]map[string]interface{}, 0, len(wait.Scroll))
	for _, step := range wait.Scroll {
		scroll = append(scroll, map[string]interface{}{
			"script": step.Script,
			"pause":  step.Pause.Milliseconds(),
		})
	}

	payload := map[string]interface{}{
		"code": browserlessFunction,
		"context": map[string]interface{}{
			"url":           url,
			"userAgent":     helpers.RandomUserAgent(),
			"readySelector": wait.ReadySelector,
			"readyTimeout":  wait.ReadyTimeout.Milliseconds(),
			"settle":        wait.Settle.Milliseconds(),
			"scroll":        scroll,
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal function payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint(), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create function request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", crawlerrors.NewRender(KindBrowserless, "function request failed", err)
	}
	defer resp.Body.Close()

	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		return "", crawlerrors.NewRateLimit(KindBrowserless, resp.Header.Get("Retry-After"))
	}
	if resp.StatusCode != http.StatusOK {
		return "", crawlerrors.NewRender(KindBrowserless,
			fmt.Sprintf("function endpoint returned non-OK status: %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read function response: %w", err)
	}

	r.log.Debug().Str("url", url).Int("bytes", len(body)).Msg("Function response received")
	return extractHTML(body)
}

// endpoint is the /function URL, carrying the proxy launch flag when set
func (r *BrowserlessRenderer) endpoint() string {
	endpoint := r.Addr + "/function"
	if r.Proxy == nil {
		return endpoint
	}
	return endpoint + "?" + neturl.Values{"--proxy-server": {r.Proxy.String()}}.Encode()
}

// Close releases idle connections to the service
func (r *BrowserlessRenderer) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

// extractHTML accepts either raw HTML or a JSON envelope carrying the HTML
// in one of the fields the service versions are known to use.
func extractHTML(body []byte) (string, error) {
	content := string(body)

	if strings.HasPrefix(strings.TrimSpace(content), "{") {
		var result map[string]interface{}
		if err := json.Unmarshal(body, &result); err != nil {
			return "", crawlerrors.NewParsing(KindBrowserless, "invalid JSON response", err)
		}
		content = ""
		if data, ok := result["data"].(map[string]interface{}); ok {
			if html, ok := data["content"].(string); ok {
				content = html
			}
		}
		for _, key := range []string{"content", "data", "result", "html"} {
			if content != "" {
				break
			}
			if html, ok := result[key].(string); ok {
				content = html
			}
		}
	}

	lower := strings.ToLower(content)
	if !strings.Contains(lower, "<html") && !strings.Contains(lower, "<body") {
		return "", crawlerrors.NewParsing(KindBrowserless,
			fmt.Sprintf("invalid or empty HTML response (received %d bytes)", len(content)), nil)
	}
	return content, nil
}
