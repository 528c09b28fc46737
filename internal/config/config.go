package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "ASSESSMENT_CONFIG"
	genAIAPIKeyEnv    = "GENAI_API_KEY"
	genAIEndpointEnv  = "GENAI_ENDPOINT"
	genAIModelEnv     = "GENAI_MODEL"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	renderWebhookEnv  = "RENDER_WEBHOOK_URL"
	logLevelEnv       = "LOG_LEVEL"
	httpAddrEnv       = "HTTP_ADDR"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging     LoggingConfig  `yaml:"logging"`
	GenAI       GenAIConfig    `yaml:"genai"`
	Poller      PollerConfig   `yaml:"poller"`
	Cache       CacheConfig    `yaml:"cache"`
	Pipeline    PipelineConfig `yaml:"pipeline"`
	Database    DatabaseConfig `yaml:"database"`
	Render      RenderConfig   `yaml:"render"`
	HTTP        HTTPConfig     `yaml:"http"`
	CatalogPath string         `yaml:"catalogPath"`
}

// LoggingConfig selects the zap level and encoding.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// GenAIConfig defines how to contact the generative-text job service.
type GenAIConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	APIKey       string        `yaml:"apiKey"`
	Model        string        `yaml:"model"`
	Temperature  float64       `yaml:"temperature"`
	MaxTokens    int           `yaml:"maxTokens"`
	Timeout      time.Duration `yaml:"timeout"`
	SystemPrompt string        `yaml:"systemPrompt"`
}

// PollerConfig bounds how long a single job may be awaited.
type PollerConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"`
	MaxWait      time.Duration `yaml:"maxWait"`
	MaxRetries   int           `yaml:"maxRetries"`
	BaseDelay    time.Duration `yaml:"baseDelay"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
}

// CacheConfig sizes the generated-artifact cache.
type CacheConfig struct {
	Capacity      int           `yaml:"capacity"`
	TTL           time.Duration `yaml:"ttl"`
	PruneInterval time.Duration `yaml:"pruneInterval"`
}

// PipelineConfig tunes phase execution. ChapterWeights overrides the
// catalog's chapter weights when set.
type PipelineConfig struct {
	MaxParallel    int                `yaml:"maxParallel"`
	ChapterWeights map[string]float64 `yaml:"chapterWeights"`
}

// DatabaseConfig selects the phase output store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RenderConfig points at the report renderer webhook. Empty disables it.
type RenderConfig struct {
	WebhookURL string        `yaml:"webhookUrl"`
	Timeout    time.Duration `yaml:"timeout"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// ValidationError lists every configuration problem found at startup.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Load reads .env (if present), the YAML file named by ASSESSMENT_CONFIG (if
// set), applies environment overrides and validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, eris.Wrap(err, "load .env")
	}
	return LoadFile(os.Getenv(configPathEnv))
}

// LoadFile is Load without the .env step. An empty path means defaults only.
// The file is decoded over the defaults, so only keys it sets change,
// including explicit zero values.
func LoadFile(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, eris.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, eris.Wrapf(err, "parse config %s", path)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(genAIAPIKeyEnv); v != "" {
		c.GenAI.APIKey = v
	}
	if v := os.Getenv(genAIEndpointEnv); v != "" {
		c.GenAI.Endpoint = v
	}
	if v := os.Getenv(genAIModelEnv); v != "" {
		c.GenAI.Model = v
	}
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(renderWebhookEnv); v != "" {
		c.Render.WebhookURL = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Encoding {
	case "json", "console":
	default:
		add("logging.encoding %q is not json or console", c.Logging.Encoding)
	}

	if c.GenAI.Endpoint != "" && !validURL(c.GenAI.Endpoint) {
		add("genai.endpoint %q is not an absolute http(s) URL", c.GenAI.Endpoint)
	}
	if c.GenAI.Model == "" {
		add("genai.model must be set")
	}
	if c.GenAI.Temperature < 0 || c.GenAI.Temperature > 2 {
		add("genai.temperature must be within [0, 2]")
	}
	if c.GenAI.Timeout <= 0 {
		add("genai.timeout must be positive")
	}

	if c.Poller.PollInterval <= 0 {
		add("poller.pollInterval must be positive")
	}
	if c.Poller.MaxWait < c.Poller.PollInterval {
		add("poller.maxWait must be at least poller.pollInterval")
	}
	if c.Poller.MaxRetries < 0 {
		add("poller.maxRetries must not be negative")
	}
	if c.Poller.BaseDelay <= 0 || c.Poller.MaxDelay < c.Poller.BaseDelay {
		add("poller.baseDelay must be positive and not exceed poller.maxDelay")
	}

	if c.Cache.Capacity <= 0 {
		add("cache.capacity must be positive")
	}
	if c.Cache.TTL < 0 {
		add("cache.ttl must not be negative")
	}
	if c.Cache.PruneInterval < 0 {
		add("cache.pruneInterval must not be negative")
	}

	if c.Pipeline.MaxParallel <= 0 {
		add("pipeline.maxParallel must be positive")
	}
	var weightSum float64
	for code, w := range c.Pipeline.ChapterWeights {
		if w < 0 {
			add("pipeline.chapterWeights[%s] must not be negative", code)
		}
		weightSum += w
	}
	if len(c.Pipeline.ChapterWeights) > 0 && weightSum <= 0 {
		add("pipeline.chapterWeights must not all be zero")
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
		if c.Database.DSN == "" {
			add("database.dsn must be set for driver %s", c.Database.Driver)
		}
	case DriverNone:
	default:
		add("database.driver %q is not one of sqlite, postgres, none", c.Database.Driver)
	}

	if c.Render.WebhookURL != "" && !validURL(c.Render.WebhookURL) {
		add("render.webhookUrl %q is not an absolute http(s) URL", c.Render.WebhookURL)
	}
	if c.HTTP.Addr == "" {
		add("http.addr must be set")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Encoding: "json"},
		GenAI: GenAIConfig{
			Endpoint:     "http://localhost:8088/v1",
			Model:        "assessment-analyst-1",
			Temperature:  0.2,
			MaxTokens:    1200,
			Timeout:      20 * time.Second,
			SystemPrompt: "You are a business analyst. Answer with a single JSON object.",
		},
		Poller: PollerConfig{
			PollInterval: 2 * time.Second,
			MaxWait:      2 * time.Minute,
			MaxRetries:   3,
			BaseDelay:    200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
		Cache: CacheConfig{
			Capacity:      512,
			TTL:           24 * time.Hour,
			PruneInterval: 10 * time.Minute,
		},
		Pipeline: PipelineConfig{MaxParallel: 6},
		Database: DatabaseConfig{Driver: DriverSQLite, DSN: "file:assessment.db"},
		Render:   RenderConfig{Timeout: 10 * time.Second},
		HTTP:     HTTPConfig{Addr: ":8080"},
	}
}
