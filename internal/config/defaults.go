package config

import (
	"os"
	"strconv"
	"strings"
)

// DefaultConfig returns the configuration used when no .ragserve.yml exists.
// Postgres parameters fall back to the conventional POSTGRES_* environment
// variables so the pgvector backend works without a config file.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderGoogle,
		Model:             "gemini-2.5-flash",
		EmbeddingProvider: ProviderGoogle,
		EmbeddingModel:    "text-embedding-004",
		VectorBackend:     BackendChromem,
		DataDir:           "./rag_storage",
		ReportLanguage:    "Spanish",
		AllowedOrigins:    originsFromEnv(),
		Postgres: PostgresConfig{
			Host:     envOr("POSTGRES_HOST", "localhost"),
			Port:     envIntOr("POSTGRES_PORT", 5432),
			User:     envOr("POSTGRES_USER", "rag_user"),
			Password: envOr("POSTGRES_PASSWORD", "rag_password"),
			Database: envOr("POSTGRES_DATABASE", "rag_db"),
		},
	}
}

// originsFromEnv parses the ALLOWED_ORIGINS environment variable as a
// comma-separated list. An empty result means "allow all origins".
func originsFromEnv() []string {
	raw := os.Getenv("ALLOWED_ORIGINS")
	if raw == "" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
