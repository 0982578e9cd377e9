package crawler

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/jobscraper/internal/render"
	crawlerrors "sjsage522/jobscraper/pkg/errors"
)

// detailPass visits every stub in order. A failing job is logged and dropped.
func (c *SourceCrawler) detailPass(ctx context.Context, r render.Renderer, stubs []JobStub) []JobRecord {
	outcomes := make([]Outcome[JobRecord], 0, len(stubs))
	for i, stub := range stubs {
		if ctx.Err() != nil {
			break
		}
		c.logger().Debug().
			Int("index", i+1).
			Int("total", len(stubs)).
			Str("title", stub.Title).
			Msg("Scraping job")

		rec, err := c.extractDetail(ctx, r, stub)
		outcomes = append(outcomes, Outcome[JobRecord]{Value: rec, Err: err})
	}

	return collect(outcomes, func(i int, err error) {
		c.logger().Warn().
			Int("index", i+1).
			Str("url", stubs[i].URL).
			Bool("retryable", crawlerrors.Retryable(err)).
			Err(err).
			Msg("Skipping job")
	})
}

// extractDetail renders the stub's page and builds its record
func (c *SourceCrawler) extractDetail(ctx context.Context, r render.Renderer, stub JobStub) (rec JobRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = crawlerrors.NewDetail(c.Name, stub.URL, fmt.Errorf("panic: %v", p))
		}
	}()

	content, err := r.Render(ctx, stub.URL, c.DetailWait)
	if err != nil {
		c.markBlocked(err)
		return JobRecord{}, crawlerrors.NewDetail(c.Name, stub.URL, err)
	}
	c.pause(ctx, c.DetailDelayMin, c.DetailDelayMax)

	doc, err := c.createDocument(content)
	if err != nil {
		return JobRecord{}, crawlerrors.NewDetail(c.Name, stub.URL, err)
	}
	return c.buildRecord(stub, doc), nil
}

// buildRecord applies the source's field extractors to a detail page
func (c *SourceCrawler) buildRecord(stub JobStub, doc *goquery.Document) JobRecord {
	rec := NewJobRecord(c.Source, stub)
	for _, f := range c.Fields {
		if !rec.Set(f.Field, f.Extract(doc)) {
			c.logger().Warn().Str("field", f.Field).Msg("Unknown field extractor")
		}
	}
	return rec
}
