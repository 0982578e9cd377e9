package crawler

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/jobscraper/helpers"
	"sjsage522/jobscraper/internal/render"
	"sjsage522/jobscraper/logger"
	crawlerrors "sjsage522/jobscraper/pkg/errors"
	"sjsage522/jobscraper/services/cache"
)

// Sleeper pauses for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration)

// sleepContext is the default Sleeper
func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// BaseCrawler provides rendering, rate-limit bookkeeping and pacing shared by all sources
type BaseCrawler struct {
	Name        string
	CacheKey    string
	CacheSvc    cache.CacheService
	BlockTime   time.Duration
	NewRenderer render.Factory
	Sleep       Sleeper
	log         *logger.Logger
}

// checkBlocked fails while the source's rate-limit marker is present
func (c *BaseCrawler) checkBlocked() error {
	if c.CacheSvc == nil || c.CacheKey == "" {
		return nil
	}
	if cache.IsBlocked(c.CacheSvc, c.CacheKey) {
		return crawlerrors.NewRateLimit(c.Name, c.BlockTime.String())
	}
	return nil
}

// markBlocked sets the rate-limit marker when err reports rate limiting
func (c *BaseCrawler) markBlocked(err error) {
	if c.CacheSvc == nil || c.CacheKey == "" || !crawlerrors.IsRateLimit(err) {
		return
	}
	if c.BlockTime <= 0 {
		c.logger().Warn().Msg("Rate limited, no block time configured")
		return
	}
	if cerr := cache.MarkBlocked(c.CacheSvc, c.CacheKey, c.BlockTime); cerr != nil {
		c.logger().Warn().Err(cerr).Msg("Failed to store rate-limit marker")
		return
	}
	c.logger().Warn().Dur("block_time", c.BlockTime).Msg("Rate limited, source blocked")
}

// createDocument parses rendered HTML
func (c *BaseCrawler) createDocument(content string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, crawlerrors.NewParsing(c.Name, "HTML parse error", err)
	}
	return doc, nil
}

// fetchDocument renders url with r and parses the result
func (c *BaseCrawler) fetchDocument(ctx context.Context, r render.Renderer, url string, wait render.WaitOptions) (*goquery.Document, error) {
	content, err := r.Render(ctx, url, wait)
	if err != nil {
		c.markBlocked(err)
		return nil, err
	}
	return c.createDocument(content)
}

// pause sleeps for a random duration in [min, max)
func (c *BaseCrawler) pause(ctx context.Context, min, max time.Duration) {
	d := helpers.RandomDuration(min, max)
	if d <= 0 {
		return
	}
	c.logger().Debug().Dur("delay", d).Msg("Pacing")
	if c.Sleep != nil {
		c.Sleep(ctx, d)
		return
	}
	sleepContext(ctx, d)
}

func (c *BaseCrawler) logger() *logger.Logger {
	if c.log == nil {
		c.log = logger.ForSource(c.Name)
	}
	return c.log
}

// GetName returns the crawler's name for logging
func (c *BaseCrawler) GetName() string {
	return c.Name
}
