package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/jobscraper/config"
	"sjsage522/jobscraper/internal/crawler"
	"sjsage522/jobscraper/internal/jobfile"
	"sjsage522/jobscraper/internal/render"
	"sjsage522/jobscraper/logger"
	"sjsage522/jobscraper/services/cache"
	"sjsage522/jobscraper/services/export"
	"sjsage522/jobscraper/services/proxy"
	"sjsage522/jobscraper/services/publisher"
	"sjsage522/jobscraper/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	mergeOnly := parseFlags(cfg)
	if mergeOnly {
		if err := mergeTextFiles(cfg.OutputDir, flag.Args()); err != nil {
			log.Fatal().Err(err).Msg("Failed to merge job files")
		}
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("renderer", cfg.Renderer).
		Strs("sources", cfg.Sources).
		Dur("crawl_interval", cfg.CrawlInterval).
		Msg("Starting application")

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	factory, err := render.NewFactory(render.Options{
		Kind:            cfg.Renderer,
		Headless:        cfg.ChromeHeadless,
		BrowserlessAddr: cfg.BrowserlessAddr,
		Proxies:         services.Proxies,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure renderer")
	}

	crawlers := crawler.CreateCrawlers(cfg, services.Cache, factory)
	if len(crawlers) == 0 {
		log.Fatal().Msg("No crawlers were created")
	}

	w := worker.NewWorker(
		crawlers,
		services.Publisher,
		[]export.Exporter{
			export.NewJSONExporter(cfg.OutputDir),
			export.NewTextExporter(cfg.OutputDir),
		},
		crawler.QueryFromConfig(cfg),
		cfg.CrawlInterval,
	)

	log.Info().Msg("Starting job worker")
	w.Start(ctx)

	if ctx.Err() != nil {
		log.Info().Msg("Received shutdown signal")
	}
	log.Info().Msg("Shutting down gracefully...")
}

// parseFlags lets the command line override the configured search. It reports
// whether the -parse mode was requested.
func parseFlags(cfg *config.Config) bool {
	flag.StringVar(&cfg.Keyword, "keyword", cfg.Keyword, "Job title or keyword. Env: KEYWORD")
	flag.StringVar(&cfg.Location, "location", cfg.Location, "City to search in. Env: LOCATION")
	flag.IntVar(&cfg.Experience, "experience", cfg.Experience, "Years of experience (-1 = any). Env: EXPERIENCE")
	flag.IntVar(&cfg.PageLimit, "pages", cfg.PageLimit, "Maximum search pages per source (0 = all). Env: PAGE_LIMIT")
	once := flag.Bool("once", false, "Run a single crawl and exit")
	parse := flag.Bool("parse", false, "Merge the given text job files into one JSON file and exit")
	flag.Parse()

	if *once {
		cfg.CrawlInterval = 0
	}
	return *parse
}

// mergeTextFiles reads text listings back and writes them as one merged JSON file
func mergeTextFiles(outputDir string, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no job files given")
	}

	merged := []crawler.JobRecord{}
	for _, path := range paths {
		records, err := jobfile.ParseFile(path)
		if err != nil {
			return err
		}
		logger.Info("Parsed %d records from %s", len(records), path)
		merged = append(merged, records...)
	}

	_, err := export.NewJSONExporter(outputDir).Export(merged)
	return err
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Proxies   render.ProxySource
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}

// initializeServices connects the optional backing services. Without memcached
// the rate-limit markers live in process memory; without Redis nothing is published.
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}
	log := logger.ForCache()

	services.Cache = cache.NewMemoryCache()
	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, using in-memory cache")
		} else {
			services.Cache = mc
			log.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
		}
	}

	if pm := proxy.NewManager(cfg.ProxyList, cfg.ProxySourceURL); pm.Enabled() {
		if err := pm.Refresh(ctx); err != nil {
			logger.LogError("proxy", err, "No usable proxy yet, connecting directly")
		}
		services.Proxies = pm
	}

	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(ctx); err != nil {
			redisPublisher.Close()
			return nil, err
		}
		services.Publisher = redisPublisher
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	return services, nil
}
