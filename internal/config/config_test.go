package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(databaseDSNEnv, "")

	cfg := Load()
	if cfg.Database.Driver != "sqlite" || cfg.Pipeline.PublishThreshold != 80 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Places.OptionName != "hpl_google_places_api_key" {
		t.Fatalf("unexpected option name %q", cfg.Places.OptionName)
	}
}

func TestLoadMergesFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hpl.yaml")
	raw := `
database:
  driver: postgres
  dsn: postgres://file
pipeline:
  publishThreshold: 70
  stageTimeout: 30s
redis:
  addr: localhost:6379
openai:
  model: gpt-4o
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(configPathEnv, path)
	t.Setenv(databaseDSNEnv, "postgres://env")
	t.Setenv(thresholdEnv, "85")

	cfg := Load()
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://env" {
		t.Fatalf("unexpected database %+v", cfg.Database)
	}
	if cfg.Pipeline.PublishThreshold != 85 {
		t.Fatalf("env should win over file, got %d", cfg.Pipeline.PublishThreshold)
	}
	if cfg.Pipeline.StageTimeout != 30*time.Second || cfg.Pipeline.Workers != 4 {
		t.Fatalf("unexpected pipeline %+v", cfg.Pipeline)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.LockTTL != 2*time.Minute {
		t.Fatalf("unexpected redis %+v", cfg.Redis)
	}
	if cfg.OpenAI.Model != "gpt-4o" || cfg.OpenAI.Endpoint == "" {
		t.Fatalf("unexpected openai %+v", cfg.OpenAI)
	}
}

func TestLoadIgnoresBadThreshold(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(thresholdEnv, "lots")

	if got := Load().Pipeline.PublishThreshold; got != 80 {
		t.Fatalf("expected default threshold, got %d", got)
	}
}
