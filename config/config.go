package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	crawlerrors "sjsage522/jobscraper/pkg/errors"
)

// Renderer backends
const (
	RendererChromedp    = "chromedp"
	RendererBrowserless = "browserless"
	RendererHTTP        = "http"
)

// Source names accepted in SOURCES
const (
	SourceTimesJobs = "timesjobs"
	SourceTalent    = "talent"
)

// Config represents the application configuration
type Config struct {
	// Search query
	Keyword    string `yaml:"keyword"`
	Location   string `yaml:"location"`
	Experience int    `yaml:"experience"` // < 0 means unfiltered
	PageLimit  int    `yaml:"page_limit"` // 0 means every discoverable page

	// Crawler configuration
	Sources       []string      `yaml:"sources"`
	TimesJobsURL  string        `yaml:"timesjobs_url"`
	TalentURL     string        `yaml:"talent_url"`
	BlockTime     time.Duration `yaml:"-"`
	CrawlInterval time.Duration `yaml:"-"`

	// Renderer configuration
	Renderer        string `yaml:"renderer"`
	ChromeHeadless  bool   `yaml:"chrome_headless"`
	BrowserlessAddr string `yaml:"browserless_addr"`

	// Egress proxies: "scheme://host:port" or bare "host:port" (SOCKS5)
	ProxyList      []string `yaml:"proxy_list"`
	ProxySourceURL string   `yaml:"proxy_source_url"`

	// Output
	OutputDir string `yaml:"output_dir"`

	// Redis configuration
	RedisAddr            string `yaml:"redis_addr"`
	RedisDB              int    `yaml:"redis_db"`
	RedisStream          string `yaml:"redis_stream"`
	RedisStreamCount     int    `yaml:"redis_stream_count"`
	RedisStreamMaxLength int    `yaml:"redis_stream_max_length"`

	// Memcache configuration
	MemcacheAddr string `yaml:"memcache_addr"`

	// Environment
	Environment string `yaml:"environment"`
}

// LoadConfig loads the configuration from an optional YAML file and
// environment variables. Environment variables take precedence.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("JOBSCRAPER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Keyword = getEnv("KEYWORD", cfg.Keyword)
	cfg.Location = getEnv("LOCATION", cfg.Location)
	cfg.Experience = getEnvInt("EXPERIENCE", cfg.Experience)
	cfg.PageLimit = getEnvInt("PAGE_LIMIT", cfg.PageLimit)
	if v := os.Getenv("SOURCES"); v != "" {
		cfg.Sources = splitList(v)
	}
	cfg.TimesJobsURL = getEnv("TIMESJOBS_URL", cfg.TimesJobsURL)
	cfg.TalentURL = getEnv("TALENT_URL", cfg.TalentURL)
	cfg.BlockTime = time.Duration(getEnvInt("BLOCK_TIME_SECONDS", int(cfg.BlockTime/time.Second))) * time.Second
	cfg.CrawlInterval = time.Duration(getEnvInt("CRAWL_INTERVAL_SECONDS", int(cfg.CrawlInterval/time.Second))) * time.Second
	cfg.Renderer = strings.ToLower(getEnv("RENDERER", cfg.Renderer))
	cfg.ChromeHeadless = getEnvBool("CHROME_HEADLESS", cfg.ChromeHeadless)
	cfg.BrowserlessAddr = getEnv("BROWSERLESS_ADDR", cfg.BrowserlessAddr)
	if v := os.Getenv("PROXY_LIST"); v != "" {
		cfg.ProxyList = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	}
	cfg.ProxySourceURL = getEnv("PROXY_SOURCE_URL", cfg.ProxySourceURL)
	cfg.OutputDir = getEnv("OUTPUT_DIR", cfg.OutputDir)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)
	cfg.RedisStream = getEnv("REDIS_STREAM", cfg.RedisStream)
	cfg.RedisStreamCount = getEnvInt("REDIS_STREAM_COUNT", cfg.RedisStreamCount)
	cfg.RedisStreamMaxLength = getEnvInt("REDIS_STREAM_MAX_LENGTH", cfg.RedisStreamMaxLength)
	cfg.MemcacheAddr = getEnv("MEMCACHE_ADDR", cfg.MemcacheAddr)
	cfg.Environment = getEnv("JOBSCRAPER_ENVIRONMENT", cfg.Environment)

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Experience:           -1,
		Sources:              []string{SourceTalent, SourceTimesJobs},
		TimesJobsURL:         "https://www.timesjobs.com",
		TalentURL:            "https://in.talent.com",
		BlockTime:            500 * time.Second,
		Renderer:             RendererChromedp,
		ChromeHeadless:       true,
		OutputDir:            "output",
		RedisStream:          "jobs",
		RedisStreamCount:     1,
		RedisStreamMaxLength: 1000,
		Environment:          "development",
	}
}

// Validate checks the configuration for values the crawlers cannot work with
func (c *Config) Validate() error {
	switch c.Renderer {
	case RendererChromedp, RendererHTTP:
	case RendererBrowserless:
		if c.BrowserlessAddr == "" {
			return invalid("renderer %q requires BROWSERLESS_ADDR", c.Renderer)
		}
	default:
		return invalid("unknown renderer %q", c.Renderer)
	}

	if len(c.Sources) == 0 {
		return invalid("no sources configured")
	}
	for _, s := range c.Sources {
		if s != SourceTimesJobs && s != SourceTalent {
			return invalid("unknown source %q", s)
		}
	}

	if c.PageLimit < 0 {
		return invalid("page limit must not be negative, got %d", c.PageLimit)
	}
	if c.CrawlInterval < 0 || c.BlockTime < 0 {
		return invalid("durations must not be negative")
	}
	if c.RedisAddr != "" && c.RedisStreamCount <= 0 {
		return invalid("redis stream count must be positive, got %d", c.RedisStreamCount)
	}
	return nil
}

func invalid(format string, v ...interface{}) error {
	return crawlerrors.NewValidation("config", fmt.Sprintf(format, v...))
}

// ExperienceFilter returns the experience filter or nil when unfiltered
func (c *Config) ExperienceFilter() *int {
	if c.Experience < 0 {
		return nil
	}
	v := c.Experience
	return &v
}

// PageCap returns the page cap or nil when every page should be crawled
func (c *Config) PageCap() *int {
	if c.PageLimit <= 0 {
		return nil
	}
	v := c.PageLimit
	return &v
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
