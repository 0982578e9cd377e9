package crawler

import (
	"sjsage522/jobscraper/config"
	"sjsage522/jobscraper/internal/render"
	"sjsage522/jobscraper/logger"
	"sjsage522/jobscraper/services/cache"
)

// CreateCrawlers creates one crawler per configured source, in configuration order
func CreateCrawlers(cfg *config.Config, cacheSvc cache.CacheService, factory render.Factory) []Crawler {
	var crawlers []Crawler
	for _, name := range cfg.Sources {
		var sc SourceConfig
		switch name {
		case config.SourceTimesJobs:
			sc = TimesJobsConfig(cfg.TimesJobsURL)
		case config.SourceTalent:
			sc = TalentConfig(cfg.TalentURL)
		default:
			logger.Warn("Unknown source %q ignored", name)
			continue
		}
		c := NewSourceCrawler(sc, factory, cacheSvc, cfg.BlockTime)
		crawlers = append(crawlers, c)
		logger.Debug("Crawler %d: %s with base URL %s", len(crawlers), c.GetName(), sc.BaseURL)
	}

	logger.Info("Created %d crawlers", len(crawlers))
	return crawlers
}

// QueryFromConfig builds the search query held in cfg
func QueryFromConfig(cfg *config.Config) Query {
	return Query{
		Keyword:    cfg.Keyword,
		Location:   cfg.Location,
		Experience: cfg.ExperienceFilter(),
		PageLimit:  cfg.PageCap(),
	}
}
