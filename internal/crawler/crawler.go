package crawler

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/jobscraper/internal/render"
	"sjsage522/jobscraper/logger"
	crawlerrors "sjsage522/jobscraper/pkg/errors"
	"sjsage522/jobscraper/services/cache"
)

// SourceConfig describes how one site is searched and parsed
type SourceConfig struct {
	Source  Source
	BaseURL string

	// Key names the source in logs, config and the rate-limit marker
	Key string

	// BuildURL returns the search URL of page (1-based) for q
	BuildURL func(q Query, page int) string

	ListingWait render.WaitOptions
	DetailWait  render.WaitOptions

	// NoResultsPhrases are lowercase fragments of the site's empty-search message
	NoResultsPhrases []string

	// TotalPages reads the pagination widget of the first page; values below 1 mean 1
	TotalPages func(doc *goquery.Document) int

	// ExtractStubs lists the job links of one search page in document order
	ExtractStubs func(doc *goquery.Document, baseURL string) []JobStub

	Fields []FieldExtractor

	PageDelayMin, PageDelayMax     time.Duration
	DetailDelayMin, DetailDelayMax time.Duration
}

// SourceCrawler runs the search-then-detail pipeline for one SourceConfig
type SourceCrawler struct {
	BaseCrawler
	SourceConfig
}

// NewSourceCrawler creates a crawler for cfg. cacheSvc may be nil.
func NewSourceCrawler(cfg SourceConfig, factory render.Factory, cacheSvc cache.CacheService, blockTime time.Duration) *SourceCrawler {
	name := cfg.Key
	if name == "" {
		name = string(cfg.Source)
	}
	return &SourceCrawler{
		BaseCrawler: BaseCrawler{
			Name:        name,
			CacheKey:    cache.BlockKey(name),
			CacheSvc:    cacheSvc,
			BlockTime:   blockTime,
			NewRenderer: factory,
			log:         logger.ForSource(name),
		},
		SourceConfig: cfg,
	}
}

// GetSource returns the source tag written on every record
func (c *SourceCrawler) GetSource() Source {
	return c.Source
}

// Run crawls the source for q. Any whole-crawl failure is logged and yields an
// empty list; the renderer is always released.
func (c *SourceCrawler) Run(ctx context.Context, q Query) (records []JobRecord) {
	log := c.logger()
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("Crawl aborted")
			records = []JobRecord{}
		}
	}()

	log.Info().
		Str("keyword", q.Keyword).
		Str("location", q.Location).
		Str("experience", q.experienceParam()).
		Int("page_limit", q.pageCap()).
		Msg("Crawl started")

	start := time.Now()
	records, err := c.crawl(ctx, q)
	if err != nil {
		log.Error().Err(err).Bool("retryable", crawlerrors.Retryable(err)).Msg("Crawl aborted")
		return []JobRecord{}
	}

	log.Info().
		Int("records", len(records)).
		Dur("elapsed", time.Since(start)).
		Msg("Crawl finished")
	return records
}

func (c *SourceCrawler) crawl(ctx context.Context, q Query) ([]JobRecord, error) {
	if err := c.checkBlocked(); err != nil {
		return nil, err
	}
	if c.NewRenderer == nil {
		return nil, crawlerrors.NewConfiguration(c.Name+": no renderer factory", nil)
	}

	r, err := c.NewRenderer(ctx)
	if err != nil {
		return nil, crawlerrors.NewRender(c.Name, "failed to acquire renderer", err)
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			c.logger().Warn().Err(cerr).Msg("Failed to release renderer")
		}
	}()

	stubs, err := c.collectStubs(ctx, r, q)
	if err != nil {
		return nil, err
	}
	if len(stubs) == 0 {
		return []JobRecord{}, nil
	}
	c.logger().Info().Int("stubs", len(stubs)).Msg("Links collected")

	records := c.detailPass(ctx, r, stubs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
