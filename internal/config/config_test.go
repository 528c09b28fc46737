package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		genAIAPIKeyEnv, genAIEndpointEnv, genAIModelEnv, databaseDriverEnv,
		databaseDSNEnv, renderWebhookEnv, logLevelEnv, httpAddrEnv,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFileDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("expected sqlite driver, got %q", cfg.Database.Driver)
	}
	if cfg.Poller.PollInterval != 2*time.Second || cfg.Poller.MaxWait != 2*time.Minute {
		t.Errorf("unexpected poller defaults: %+v", cfg.Poller)
	}
	if cfg.Pipeline.MaxParallel != 6 {
		t.Errorf("expected maxParallel 6, got %d", cfg.Pipeline.MaxParallel)
	}
}

func TestLoadFileMergesYAMLAndEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
logging:
  level: debug
genai:
  endpoint: https://genai.internal/v1
  model: analyst-2
poller:
  pollInterval: 500ms
  maxWait: 30s
cache:
  capacity: 64
pipeline:
  maxParallel: 3
  chapterWeights:
    GE: 0.5
    PH: 0.5
catalogPath: /etc/assessment/catalog.yaml
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(genAIModelEnv, "analyst-3")
	t.Setenv(databaseDriverEnv, DriverPostgres)
	t.Setenv(databaseDSNEnv, "postgres://u:p@db:5432/assess?sslmode=disable")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
	if cfg.GenAI.Endpoint != "https://genai.internal/v1" {
		t.Errorf("unexpected endpoint %q", cfg.GenAI.Endpoint)
	}
	if cfg.GenAI.Model != "analyst-3" {
		t.Errorf("env should override model, got %q", cfg.GenAI.Model)
	}
	if cfg.Poller.PollInterval != 500*time.Millisecond || cfg.Poller.MaxWait != 30*time.Second {
		t.Errorf("unexpected poller config %+v", cfg.Poller)
	}
	if cfg.Poller.MaxRetries != 3 {
		t.Errorf("unset fields keep defaults, got maxRetries %d", cfg.Poller.MaxRetries)
	}
	if cfg.Cache.Capacity != 64 || cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("unexpected cache config %+v", cfg.Cache)
	}
	if cfg.Pipeline.ChapterWeights["GE"] != 0.5 {
		t.Errorf("unexpected chapter weights %v", cfg.Pipeline.ChapterWeights)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("expected postgres driver, got %q", cfg.Database.Driver)
	}
	if cfg.CatalogPath != "/etc/assessment/catalog.yaml" {
		t.Errorf("unexpected catalog path %q", cfg.CatalogPath)
	}
}

func TestLoadFileKeepsExplicitZeroValues(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
genai:
  temperature: 0
poller:
  maxRetries: 0
cache:
  pruneInterval: 0s
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GenAI.Temperature != 0 {
		t.Errorf("expected temperature 0, got %v", cfg.GenAI.Temperature)
	}
	if cfg.Poller.MaxRetries != 0 {
		t.Errorf("expected maxRetries 0, got %d", cfg.Poller.MaxRetries)
	}
	if cfg.Cache.PruneInterval != 0 {
		t.Errorf("expected pruning disabled, got %v", cfg.Cache.PruneInterval)
	}
	if cfg.GenAI.Model != "assessment-analyst-1" || cfg.Poller.MaxWait != 2*time.Minute {
		t.Errorf("unset keys should keep defaults: %+v %+v", cfg.GenAI, cfg.Poller)
	}
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)

	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("poller: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := defaultConfig()
	cfg.Logging.Level = "verbose"
	cfg.GenAI.Endpoint = "not a url"
	cfg.Poller.MaxWait = time.Second
	cfg.Poller.PollInterval = 5 * time.Second
	cfg.Cache.Capacity = 0
	cfg.Pipeline.MaxParallel = 0
	cfg.Pipeline.ChapterWeights = map[string]float64{"GE": -1}
	cfg.Database.Driver = "mysql"

	err := cfg.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Problems) != 8 {
		t.Fatalf("expected 8 problems, got %d: %v", len(verr.Problems), verr.Problems)
	}
	for _, want := range []string{"logging.level", "genai.endpoint", "poller.maxWait", "cache.capacity", "pipeline.maxParallel", "chapterWeights[GE]", "all be zero", "database.driver"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestValidateRequiresDSNForDatabase(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.DSN = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "database.dsn") {
		t.Fatalf("expected dsn problem, got %v", err)
	}

	cfg.Database.Driver = DriverNone
	if err := cfg.Validate(); err != nil {
		t.Fatalf("driver none needs no dsn: %v", err)
	}
}
