package worker

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"sjsage522/jobscraper/internal/crawler"
	"sjsage522/jobscraper/logger"
	"sjsage522/jobscraper/services/export"
	"sjsage522/jobscraper/services/publisher"
)

// Worker runs the source crawlers and hands the merged result to the
// publisher and exporters.
type Worker struct {
	crawlers      []crawler.Crawler
	publisher     publisher.Publisher
	exporters     []export.Exporter
	query         crawler.Query
	crawlInterval time.Duration
	log           *logger.Logger
}

// NewWorker creates a new worker. pub may be nil when publishing is disabled.
func NewWorker(
	crawlers []crawler.Crawler,
	pub publisher.Publisher,
	exporters []export.Exporter,
	query crawler.Query,
	crawlInterval time.Duration,
) *Worker {
	return &Worker{
		crawlers:      crawlers,
		publisher:     pub,
		exporters:     exporters,
		query:         query,
		crawlInterval: crawlInterval,
		log:           logger.ForWorker(),
	}
}

// Start runs RunOnce immediately and then every crawl interval until ctx is
// done. A zero interval runs once.
func (w *Worker) Start(ctx context.Context) {
	for {
		start := time.Now()
		records := w.RunOnce(ctx, w.query)
		w.log.Info().
			Int("records", len(records)).
			Dur("elapsed", time.Since(start)).
			Msg("Crawl cycle finished")

		if w.crawlInterval <= 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.crawlInterval):
		}
	}
}

// RunOnce runs every crawler one after another and returns their records
// concatenated in crawler order.
func (w *Worker) RunOnce(ctx context.Context, q crawler.Query) []crawler.JobRecord {
	merged := []crawler.JobRecord{}
	for _, c := range w.crawlers {
		if ctx.Err() != nil {
			w.log.Warn().Msg("Context done, skipping remaining crawlers")
			break
		}
		records := c.Run(ctx, q)
		w.log.Info().
			Str("crawler", c.GetName()).
			Int("records", len(records)).
			Msg("Crawler finished")
		merged = append(merged, records...)
	}

	w.publish(ctx, merged)
	w.export(merged)
	return merged
}

// publish sends every record under its source and trims the streams afterwards
func (w *Worker) publish(ctx context.Context, records []crawler.JobRecord) {
	if w.publisher == nil || len(records) == 0 {
		return
	}

	logged := make(map[crawler.Source]bool)
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			w.log.Error().Err(err).Str("url", rec.URL).Msg("Failed to encode record")
			continue
		}
		if err := w.publisher.Publish(ctx, string(rec.Source), data); err != nil {
			w.log.Error().Err(err).Str("url", rec.URL).Msg("Failed to publish record")
			continue
		}

		// Log only the first record for each source
		if !logged[rec.Source] && logger.IsDebugEnabled() && os.Getenv("JOBSCRAPER_ENVIRONMENT") != "production" {
			logged[rec.Source] = true
			w.log.Debug().RawJSON("record", data).Msg("Published record")
		}
	}

	if err := w.publisher.TrimStreams(ctx); err != nil {
		w.log.Error().Err(err).Msg("Failed to trim streams")
	}
}

func (w *Worker) export(records []crawler.JobRecord) {
	for _, e := range w.exporters {
		if _, err := e.Export(records); err != nil {
			w.log.Error().Err(err).Msg("Export failed")
		}
	}
}
