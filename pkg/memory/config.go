package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Default values for operational tunables. The similarity threshold and the
// quota are configuration, not policy; these are the observed production
// defaults.
const (
	// DefaultQuota is the default maximum number of non-archived memories
	// per owner.
	DefaultQuota = 150

	// DefaultSimilarityThreshold is the default minimum cosine similarity
	// for a record to count as relevant.
	DefaultSimilarityThreshold = 0.5

	// DefaultRelevantLimit is the default result size for relevance
	// retrieval when the caller passes a non-positive limit.
	DefaultRelevantLimit = 5
)

// Config contains the complete configuration for a memory Service.
//
// Example:
//
//	config := &memory.Config{
//	    Store: memory.StoreConfig{
//	        Provider: "sqlite",
//	        Config: map[string]interface{}{
//	            "db_path": "./memories.db",
//	        },
//	    },
//	    Embedder: memory.EmbedderConfig{
//	        Provider: "openai",
//	        APIKey:   "sk-...",
//	    },
//	    Quota: 150,
//	}
type Config struct {
	// Store contains storage backend configuration.
	Store StoreConfig `json:"store"`

	// Embedder contains embedding provider configuration (optional).
	// When Provider is empty the engine runs without similarity search
	// and relies on the keyword and recency tiers.
	Embedder EmbedderConfig `json:"embedder,omitempty"`

	// Summarizer contains summarization provider configuration.
	Summarizer SummarizerConfig `json:"summarizer,omitempty"`

	// Quota is the maximum number of non-archived memories per owner
	// (default 150).
	Quota int `json:"quota,omitempty"`

	// SimilarityThreshold is the minimum cosine similarity for relevance
	// retrieval (default 0.5).
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"`

	// SummaryBatchSize is the number of records the maintenance worker
	// summarizes concurrently (default 5).
	SummaryBatchSize int `json:"summary_batch_size,omitempty"`

	// SummaryBatchDelayMS is the pause between maintenance batches in
	// milliseconds (default 1000).
	SummaryBatchDelayMS int `json:"summary_batch_delay_ms,omitempty"`
}

// StoreConfig contains configuration for the storage backend.
//
// Supported providers: sqlite, postgres, mysql
type StoreConfig struct {
	// Provider is the storage backend name (sqlite, postgres, mysql).
	Provider string `json:"provider"`

	// Config contains provider-specific configuration.
	// For SQLite: db_path, table_name
	// For PostgreSQL: host, port, user, password, db_name, table_name,
	// embedding_model_dims, ssl_mode
	// For MySQL: host, port, user, password, db_name, table_name
	Config map[string]interface{} `json:"config"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: openai
type EmbedderConfig struct {
	// Provider is the embedding provider name (openai), or empty to run
	// without an embedding provider.
	Provider string `json:"provider,omitempty"`

	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key,omitempty"`

	// Model is the embedding model name (e.g., "text-embedding-3-small").
	Model string `json:"model,omitempty"`

	// BaseURL is the base URL for the API (optional).
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors (e.g., 1536).
	Dimensions int `json:"dimensions,omitempty"`
}

// SummarizerConfig contains configuration for the summarization provider.
//
// Supported providers: openai
type SummarizerConfig struct {
	// Provider is the summarization provider name (openai).
	Provider string `json:"provider,omitempty"`

	// APIKey is the API key for the summarization provider.
	APIKey string `json:"api_key,omitempty"`

	// Model is the chat model name (e.g., "gpt-4o-mini").
	Model string `json:"model,omitempty"`

	// BaseURL is the base URL for the API (optional).
	BaseURL string `json:"base_url,omitempty"`
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, postgres, mysql)
//   - SQLITE_PATH, SQLITE_TABLE
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, etc.
//   - MYSQL_HOST, MYSQL_PORT, MYSQL_USER, MYSQL_PASSWORD, etc.
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL, EMBEDDING_BASE_URL
//   - SUMMARY_PROVIDER, SUMMARY_API_KEY, SUMMARY_MODEL, SUMMARY_BASE_URL
//   - MEMORY_QUOTA, SIMILARITY_THRESHOLD
//   - SUMMARY_BATCH_SIZE, SUMMARY_BATCH_DELAY_MS
func LoadConfigFromEnv() (*Config, error) {
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	provider := getEnvOrDefault("DATABASE_PROVIDER", "sqlite")

	storeConfig := make(map[string]interface{})
	switch provider {
	case "sqlite":
		storeConfig = map[string]interface{}{
			"db_path":    getEnvOrDefault("SQLITE_PATH", "./coachmem.db"),
			"table_name": getEnvOrDefault("SQLITE_TABLE", "memories"),
		}
	case "postgres":
		port, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
		dims, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_EMBEDDING_MODEL_DIMS", "1536"))

		storeConfig = map[string]interface{}{
			"host":                 getEnvOrDefault("POSTGRES_HOST", "localhost"),
			"port":                 port,
			"user":                 getEnvOrDefault("POSTGRES_USER", "postgres"),
			"password":             os.Getenv("POSTGRES_PASSWORD"),
			"db_name":              getEnvOrDefault("POSTGRES_DATABASE", "coachmem"),
			"table_name":           getEnvOrDefault("POSTGRES_TABLE", "memories"),
			"embedding_model_dims": dims,
			"ssl_mode":             getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	case "mysql":
		port, _ := strconv.Atoi(getEnvOrDefault("MYSQL_PORT", "3306"))

		storeConfig = map[string]interface{}{
			"host":       getEnvOrDefault("MYSQL_HOST", "localhost"),
			"port":       port,
			"user":       getEnvOrDefault("MYSQL_USER", "root"),
			"password":   os.Getenv("MYSQL_PASSWORD"),
			"db_name":    getEnvOrDefault("MYSQL_DATABASE", "coachmem"),
			"table_name": getEnvOrDefault("MYSQL_TABLE", "memories"),
		}
	}

	dims, _ := strconv.Atoi(getEnvOrDefault("EMBEDDING_MODEL_DIMS", "1536"))
	quota, _ := strconv.Atoi(getEnvOrDefault("MEMORY_QUOTA", strconv.Itoa(DefaultQuota)))
	threshold, _ := strconv.ParseFloat(getEnvOrDefault("SIMILARITY_THRESHOLD", "0.5"), 64)
	batchSize, _ := strconv.Atoi(getEnvOrDefault("SUMMARY_BATCH_SIZE", "5"))
	batchDelay, _ := strconv.Atoi(getEnvOrDefault("SUMMARY_BATCH_DELAY_MS", "1000"))

	config := &Config{
		Store: StoreConfig{
			Provider: provider,
			Config:   storeConfig,
		},
		Embedder: EmbedderConfig{
			Provider:   os.Getenv("EMBEDDING_PROVIDER"),
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
			BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
			Dimensions: dims,
		},
		Summarizer: SummarizerConfig{
			Provider: os.Getenv("SUMMARY_PROVIDER"),
			APIKey:   os.Getenv("SUMMARY_API_KEY"),
			Model:    getEnvOrDefault("SUMMARY_MODEL", "gpt-4o-mini"),
			BaseURL:  os.Getenv("SUMMARY_BASE_URL"),
		},
		Quota:               quota,
		SimilarityThreshold: threshold,
		SummaryBatchSize:    batchSize,
		SummaryBatchDelayMS: batchDelay,
	}

	return config, nil
}

// LoadConfigFromJSON loads configuration from a JSON file.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	return &config, nil
}

// Validate validates the configuration.
//
// The embedder and summarizer sections are optional. A missing store
// provider is acceptable only when a pre-built store is injected with
// WithStore; otherwise initialization fails.
func (c *Config) Validate() error {
	if c.Quota < 0 {
		return NewMemoryError("Validate", ErrInvalidConfig)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return NewMemoryError("Validate", ErrInvalidConfig)
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
