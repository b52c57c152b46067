package config

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderGoogle ProviderType = "google"
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// VectorBackend identifies the vector store implementation.
type VectorBackend string

const (
	BackendChromem  VectorBackend = "chromem"
	BackendPGVector VectorBackend = "pgvector"
)

// PostgresConfig holds connection parameters for the pgvector backend.
type PostgresConfig struct {
	Host     string `yaml:"host" koanf:"host"`
	Port     int    `yaml:"port" koanf:"port"`
	User     string `yaml:"user" koanf:"user"`
	Password string `yaml:"password" koanf:"password"`
	Database string `yaml:"database" koanf:"database"`
}

// Config is the top-level ragserve configuration, corresponding to .ragserve.yml.
type Config struct {
	Provider          ProviderType   `yaml:"provider" koanf:"provider"`
	Model             string         `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType   `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string         `yaml:"embedding_model" koanf:"embedding_model"`
	VectorBackend     VectorBackend  `yaml:"vector_backend" koanf:"vector_backend"`
	DataDir           string         `yaml:"data_dir" koanf:"data_dir"`
	ReportLanguage    string         `yaml:"report_language" koanf:"report_language"`
	AllowedOrigins    []string       `yaml:"allowed_origins" koanf:"allowed_origins"`
	Postgres          PostgresConfig `yaml:"postgres" koanf:"postgres"`
}
