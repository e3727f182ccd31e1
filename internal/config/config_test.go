package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func loadTestConfig(t *testing.T) *Config {
	t.Helper()

	configFile, err := os.Open("testdata/config.yaml")
	if err != nil {
		t.Fatalf("Failed to open config file: %v", err)
	}
	defer configFile.Close()

	cfg := &Config{ValidatorType: "jwk", Timezone: "Europe/Paris"}
	if err := LoadConfigFile(configFile, cfg); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	return cfg
}

func TestLoadConfigFileMergesDefaults(t *testing.T) {
	cfg := loadTestConfig(t)
	ApplyDefaults(cfg)

	if cfg.Chat.DefaultModel != "mistralai/mistral-7b-instruct:free" {
		t.Errorf("expected default model from file, got %q", cfg.Chat.DefaultModel)
	}
	if cfg.Chat.FreeModelSuffix != DefaultFreeModelSuffix {
		t.Errorf("expected suffix %q, got %q", DefaultFreeModelSuffix, cfg.Chat.FreeModelSuffix)
	}
	if cfg.Chat.Temperature != DefaultTemperature {
		t.Errorf("expected temperature %v, got %v", DefaultTemperature, cfg.Chat.Temperature)
	}

	tg := cfg.TitleGeneration
	if tg.MaxAttempts != 2 {
		t.Errorf("expected max attempts 2 from file, got %d", tg.MaxAttempts)
	}
	if strings.HasSuffix(tg.Prompt, "\n") {
		t.Errorf("expected trimmed prompt, got %q", tg.Prompt)
	}
	if tg.InsistPrompt == "" || tg.FallbackPrefix != "Conversation of" {
		t.Errorf("expected defaults for unset title fields, got %+v", tg)
	}
	if tg.MinLength != 3 || tg.MaxLength != 50 {
		t.Errorf("expected length bounds 3..50, got %d..%d", tg.MinLength, tg.MaxLength)
	}
	if cfg.CatalogTTL != time.Hour {
		t.Errorf("expected catalog TTL 1h, got %v", cfg.CatalogTTL)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if cfg.Location().String() != "Europe/Paris" {
		t.Errorf("expected Europe/Paris location, got %s", cfg.Location())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero attempts", mutate: func(c *Config) { c.TitleGeneration.MaxAttempts = -1 }, wantErr: true},
		{name: "inverted bounds", mutate: func(c *Config) { c.TitleGeneration.MinLength = 60 }, wantErr: true},
		{name: "bad timezone", mutate: func(c *Config) { c.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "bad validator", mutate: func(c *Config) { c.ValidatorType = "basic" }, wantErr: true},
		{name: "firebase validator", mutate: func(c *Config) { c.ValidatorType = "firebase" }},
		{name: "unsigned tokens in release", mutate: func(c *Config) { c.GinMode = "release" }, wantErr: true},
		{name: "unsigned tokens in debug", mutate: func(c *Config) { c.GinMode = "debug" }},
		{name: "jwks in release", mutate: func(c *Config) {
			c.GinMode = "release"
			c.JWTJWKSURL = "https://auth.example.com/.well-known/jwks.json"
		}},
		{name: "firebase in release", mutate: func(c *Config) {
			c.GinMode = "release"
			c.ValidatorType = "firebase"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{ValidatorType: "jwk"}
			ApplyDefaults(cfg)
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty-two")
	t.Setenv("TEST_DURATION", "90s")

	if got := getEnvAsInt("TEST_INT", 1); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	if got := getEnvAsInt("TEST_BAD_INT", 7); got != 7 {
		t.Errorf("expected fallback 7, got %d", got)
	}
	if got := getEnvAsDuration("TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("expected 90s, got %v", got)
	}
	if got := getEnvOrDefault("TEST_UNSET_VALUE", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
}
