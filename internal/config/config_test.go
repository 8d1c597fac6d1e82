package config

import (
	"encoding/json"
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		GeminiAPIKey:       "test-api-key-for-validation",
		EmbeddingModel:     DefaultEmbeddingModel,
		GenerationModel:    DefaultGenerationModel,
		Dimension:          DefaultDimension,
		BatchSize:          100,
		Concurrency:        2,
		ChunkMaxTokens:     500,
		ChunkOverlapTokens: 50,
		TopK:               10,
		Threshold:          0.7,
		VectorWeight:       0.7,
		CacheCapacity:      100,
		CacheTTLSeconds:    300,
		PostgresHost:       "localhost",
		PostgresPort:       5432,
		PostgresUser:       "pensieve",
		PostgresPassword:   "not-the-default-password",
		PostgresDBName:     "pensieve",
		PostgresSSLMode:    "disable",
		ListenAddr:         ":8080",
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   string
	}{
		{"empty", "", ""},
		{"short fully masked", "pass", maskedValue},
		{"exactly 8 fully masked", "12345678", maskedValue},
		{"long keeps edges", "my_long_secret_key_123", "my<" + maskedValue + ">23"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.secret); got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.secret, got, tt.want)
			}
		})
	}
}

func TestMarshalJSONMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "super-secret-db-password"
	cfg.GeminiAPIKey = "AIza-very-secret-key-value"

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "super-secret-db-password") {
		t.Errorf("postgres password leaked: %s", out)
	}
	if strings.Contains(out, "AIza-very-secret-key-value") {
		t.Errorf("API key leaked: %s", out)
	}
	if !strings.Contains(out, maskedValue) {
		t.Errorf("no masking marker in output: %s", out)
	}
}

func TestStringMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "another-secret-password"
	if s := cfg.String(); strings.Contains(s, "another-secret-password") {
		t.Errorf("String leaked password: %s", s)
	}
}
