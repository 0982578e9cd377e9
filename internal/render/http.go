package render

import (
	"context"
	"io"
	"net/http"

	"sjsage522/jobscraper/helpers"
)

// HTTPRenderer fetches server-rendered HTML without a browser. Wait options are ignored.
type HTTPRenderer struct {
	client *http.Client
}

// NewHTTPRenderer creates a renderer on client, or on helpers.DefaultClient when nil
func NewHTTPRenderer(client *http.Client) *HTTPRenderer {
	if client == nil {
		client = helpers.DefaultClient
	}
	return &HTTPRenderer{client: client}
}

// Render fetches url with browser-like headers and returns the UTF-8 body
func (r *HTTPRenderer) Render(ctx context.Context, url string, _ WaitOptions) (string, error) {
	body, err := helpers.FetchWithRandomHeaders(ctx, r.client, url)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Close is a no-op; the HTTP client is shared
func (r *HTTPRenderer) Close() error {
	return nil
}
