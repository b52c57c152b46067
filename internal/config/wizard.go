package config

import (
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. The caller decides where to save it.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to ragserve! Let's configure your service.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"google", "openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)
	cfg.EmbeddingProvider = cfg.Provider
	switch cfg.Provider {
	case ProviderOpenAI:
		cfg.Model = "gpt-4o-mini"
		cfg.EmbeddingModel = "text-embedding-3-small"
	case ProviderOllama:
		cfg.Model = "llama3.1"
		cfg.EmbeddingModel = "nomic-embed-text"
	}

	// 2. Vector backend.
	backendPrompt := promptui.Select{
		Label: "Select vector store backend",
		Items: []string{
			"chromem   — embedded, persisted under data_dir (no external services)",
			"pgvector  — PostgreSQL with the pgvector extension",
		},
	}
	backendIdx, _, err := backendPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("backend selection: %w", err)
	}
	backends := []VectorBackend{BackendChromem, BackendPGVector}
	cfg.VectorBackend = backends[backendIdx]

	// 3. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory (vector index, memory database, uploads)",
		Default: cfg.DataDir,
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	cfg.DataDir = dataDir

	// 4. Report language for /finalize.
	langPrompt := promptui.Prompt{
		Label:   "Language for finalize reports",
		Default: cfg.ReportLanguage,
	}
	lang, err := langPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("report language: %w", err)
	}
	cfg.ReportLanguage = lang

	// Check for API key.
	if envVar := APIKeyEnvVar(cfg.Provider); envVar != "" {
		if os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment before starting the server.\n", envVar)
		}
	}

	return cfg, nil
}
