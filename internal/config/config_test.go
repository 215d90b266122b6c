package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Embedding: EmbeddingConfig{
			APIKey: "test-key",
			Model:  "text-embedding-004",
		},
		LLM: LLMConfig{
			Primary: CompleterConfig{APIKey: "test-key", Model: "gemini-2.0-flash"},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_MissingEmbeddingKey(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.APIKey = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding api key")
	}
}

func TestValidate_MissingPrimaryLLM(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.Primary = CompleterConfig{}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing primary llm")
	}
}

func TestValidate_DefaultLimitAboveMax(t *testing.T) {
	cfg := validConfig()
	cfg.Search.DefaultLimit = 50
	cfg.Search.MaxLimit = 20

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for default_limit > max_limit")
	}

	expected := "search.default_limit 50 exceeds search.max_limit 20"
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("expected Dimensions=768, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.Cache.TTLSec != 600 {
		t.Errorf("expected cache TTLSec=600, got %d", cfg.Embedding.Cache.TTLSec)
	}
	if cfg.Embedding.Cache.Capacity != 500 {
		t.Errorf("expected cache Capacity=500, got %d", cfg.Embedding.Cache.Capacity)
	}
	if cfg.Search.DefaultLimit != 5 {
		t.Errorf("expected DefaultLimit=5, got %d", cfg.Search.DefaultLimit)
	}
	if cfg.Search.MaxLimit != 20 {
		t.Errorf("expected MaxLimit=20, got %d", cfg.Search.MaxLimit)
	}
	if cfg.Storage.KeyPrefix != "discovery:" {
		t.Errorf("expected KeyPrefix='discovery:', got %q", cfg.Storage.KeyPrefix)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{ReadinessTimeout: 15},
		Search:   SearchConfig{DefaultLimit: 8, MaxLimit: 50, HNSWM: 16, HNSWEFConst: 200},
		Storage:  StorageConfig{KeyPrefix: "custom:"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Search.DefaultLimit != 8 {
		t.Errorf("expected DefaultLimit=8, got %d", cfg.Search.DefaultLimit)
	}
	if cfg.Search.HNSWM != 16 {
		t.Errorf("expected HNSWM=16, got %d", cfg.Search.HNSWM)
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Storage.KeyPrefix)
	}
}
