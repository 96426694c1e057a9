package config

import (
	"errors"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MONGO_URI", "mongodb+srv://example.mongodb.net")
	t.Setenv("MONGO_DB", "signaturedb")
}

func TestLoadRequiresMongoURI(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("MONGO_DB", "signaturedb")

	_, err := Load()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Key != "MONGO_URI" {
		t.Fatalf("expected MONGO_URI error, got %s", cfgErr.Key)
	}
}

func TestLoadRequiresMongoDatabase(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb+srv://example.mongodb.net")
	t.Setenv("MONGO_DB", "")

	_, err := Load()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Key != "MONGO_DB" {
		t.Fatalf("expected MONGO_DB error, got %s", cfgErr.Key)
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("MATCH_THRESHOLD", "")
	t.Setenv("FETCH_TIMEOUT", "")
	t.Setenv("MONGO_COLLECTION", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MatchThreshold != DefaultThreshold {
		t.Fatalf("expected default threshold %v, got %v", DefaultThreshold, cfg.MatchThreshold)
	}
	if cfg.MongoCollection != DefaultCollection {
		t.Fatalf("expected default collection, got %s", cfg.MongoCollection)
	}
	if cfg.FetchTimeout != DefaultFetchTimeout {
		t.Fatalf("expected default fetch timeout, got %v", cfg.FetchTimeout)
	}
	if cfg.TempDir != DefaultTempDir {
		t.Fatalf("expected default temp dir, got %s", cfg.TempDir)
	}
}

func TestLoadParsesThreshold(t *testing.T) {
	setRequired(t)
	t.Setenv("MATCH_THRESHOLD", "82.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MatchThreshold != 82.5 {
		t.Fatalf("expected threshold 82.5, got %v", cfg.MatchThreshold)
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	setRequired(t)

	for _, raw := range []string{"not-a-number", "150", "-120"} {
		t.Setenv("MATCH_THRESHOLD", raw)
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for threshold %q", raw)
		}
	}
}

func TestLoadParsesFetchTimeout(t *testing.T) {
	setRequired(t)
	t.Setenv("MATCH_THRESHOLD", "")
	t.Setenv("FETCH_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FetchTimeout != 5*time.Second {
		t.Fatalf("expected 5s fetch timeout, got %v", cfg.FetchTimeout)
	}
}
