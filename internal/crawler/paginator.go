package crawler

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/jobscraper/internal/render"
	crawlerrors "sjsage522/jobscraper/pkg/errors"
)

// collectStubs walks the search pages for q and returns the deduplicated job links.
// Only a failure on the first page is returned as an error.
func (c *SourceCrawler) collectStubs(ctx context.Context, r render.Renderer, q Query) ([]JobStub, error) {
	log := c.logger()

	firstURL := c.BuildURL(q, 1)
	log.Info().Str("url", firstURL).Msg("Loading first search page")

	first, err := c.fetchDocument(ctx, r, firstURL, c.ListingWait)
	if err != nil {
		return nil, crawlerrors.NewPage(c.Name, 1, err)
	}
	if c.hasNoResults(first) {
		log.Info().Msg("No jobs found for this search")
		return nil, nil
	}

	total := c.totalPages(first)
	if limit := q.pageCap(); limit > 0 && limit < total {
		total = limit
	}
	log.Info().Int("pages", total).Msg("Pages to crawl")

	pages := []Outcome[[]JobStub]{c.extractPage(first, 1)}
	for page := 2; page <= total; page++ {
		if ctx.Err() != nil {
			break
		}
		c.pause(ctx, c.PageDelayMin, c.PageDelayMax)

		doc, err := c.fetchDocument(ctx, r, c.BuildURL(q, page), c.ListingWait)
		if err != nil {
			pages = append(pages, Outcome[[]JobStub]{Err: crawlerrors.NewPage(c.Name, page, err)})
			continue
		}
		if c.hasNoResults(doc) {
			log.Info().Int("page", page).Msg("Reached end of results")
			break
		}
		pages = append(pages, c.extractPage(doc, page))
	}

	found := collect(pages, func(_ int, err error) {
		log.Warn().Err(err).Bool("retryable", crawlerrors.Retryable(err)).Msg("Skipping search page")
	})
	var stubs []JobStub
	for _, pageStubs := range found {
		stubs = append(stubs, pageStubs...)
	}
	return dedupStubs(stubs), nil
}

// extractPage lists the stubs of one search page; a panic fails only that page
func (c *SourceCrawler) extractPage(doc *goquery.Document, page int) (out Outcome[[]JobStub]) {
	defer func() {
		if p := recover(); p != nil {
			out = Outcome[[]JobStub]{Err: crawlerrors.NewPage(c.Name, page, fmt.Errorf("panic: %v", p))}
		}
	}()
	return Outcome[[]JobStub]{Value: c.ExtractStubs(doc, c.BaseURL)}
}

func (c *SourceCrawler) hasNoResults(doc *goquery.Document) bool {
	return containsAny(pageText(doc), c.NoResultsPhrases)
}

func (c *SourceCrawler) totalPages(doc *goquery.Document) int {
	if c.TotalPages == nil {
		return 1
	}
	if n := c.TotalPages(doc); n > 1 {
		return n
	}
	return 1
}

// dedupStubs drops stubs without a URL or a usable title and keeps the first
// stub of every URL.
func dedupStubs(stubs []JobStub) []JobStub {
	seen := make(map[string]struct{}, len(stubs))
	out := make([]JobStub, 0, len(stubs))
	for _, s := range stubs {
		if s.URL == "" || s.Title == "" || s.Title == NotAvailable {
			continue
		}
		if _, ok := seen[s.URL]; ok {
			continue
		}
		seen[s.URL] = struct{}{}
		out = append(out, s)
	}
	return out
}
