package config

import (
	"errors"
	"testing"
)

const validURL = "https://discord.com/api/webhooks/123456789/abcDEF-123"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.MongoURI != "mongodb://localhost:27017" {
		t.Errorf("MongoURI = %q", cfg.MongoURI)
	}
	if cfg.MaxFileMB != 8 {
		t.Errorf("MaxFileMB = %d, want 8", cfg.MaxFileMB)
	}
	if cfg.IntervalHours != 4 {
		t.Errorf("IntervalHours = %d, want 4", cfg.IntervalHours)
	}
	if cfg.OutDir != "./mongodb-cli" {
		t.Errorf("OutDir = %q, want ./mongodb-cli", cfg.OutDir)
	}
	if cfg.IncludeSystemDBs || cfg.IncludeSystemCollections {
		t.Error("system flags should default to false")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MONGOCLI_WEBHOOK_URL", validURL)
	t.Setenv("MONGOCLI_MAX_FILE_MB", "25")
	t.Setenv("MONGOCLI_DB_NAME", "appdb")
	t.Setenv("MONGOCLI_INCLUDE_SYSTEM_DBS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.WebhookURL != validURL {
		t.Errorf("WebhookURL = %q", cfg.WebhookURL)
	}
	if cfg.MaxFileMB != 25 {
		t.Errorf("MaxFileMB = %d, want 25", cfg.MaxFileMB)
	}
	if cfg.DBName != "appdb" {
		t.Errorf("DBName = %q, want appdb", cfg.DBName)
	}
	if !cfg.IncludeSystemDBs {
		t.Error("IncludeSystemDBs = false, want true")
	}
}

func TestLoadOptionBeatsEnv(t *testing.T) {
	t.Setenv("MONGOCLI_DB_NAME", "fromenv")
	cfg, err := Load(WithDBName("fromflag"), WithMaxFileMB(2))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DBName != "fromflag" {
		t.Errorf("DBName = %q, want fromflag", cfg.DBName)
	}
	if cfg.MaxFileMB != 2 {
		t.Errorf("MaxFileMB = %d, want 2", cfg.MaxFileMB)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(WithWebhookURL(validURL))
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		return cfg
	}

	if err := base().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cfg := base()
	cfg.WebhookURL = "http://discord.com/api/webhooks/123/abc"
	if err := cfg.Validate(); !errors.Is(err, ErrValidateConfig) {
		t.Errorf("bad webhook URL: got %v, want ErrValidateConfig", err)
	}

	cfg = base()
	cfg.MaxFileMB = 0
	if err := cfg.Validate(); !errors.Is(err, ErrValidateConfig) {
		t.Errorf("zero max_file_mb: got %v, want ErrValidateConfig", err)
	}

	cfg = base()
	cfg.MongoURI = ""
	if err := cfg.Validate(); !errors.Is(err, ErrValidateConfig) {
		t.Errorf("empty mongo_uri: got %v, want ErrValidateConfig", err)
	}
}

func TestMaxFileBytesAndScope(t *testing.T) {
	cfg := &Config{MaxFileMB: 8}
	if got := cfg.MaxFileBytes(); got != 8*1024*1024 {
		t.Errorf("MaxFileBytes = %d, want %d", got, 8*1024*1024)
	}
	if got := cfg.Scope(); got != "all-databases" {
		t.Errorf("Scope = %q, want all-databases", got)
	}
	cfg.DBName = "appdb"
	if got := cfg.Scope(); got != "db:appdb" {
		t.Errorf("Scope = %q, want db:appdb", got)
	}
}
