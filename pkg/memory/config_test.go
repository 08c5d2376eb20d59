package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innermaps/coachmem-go/pkg/memory"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("DATABASE_PROVIDER", "")
	t.Setenv("MEMORY_QUOTA", "")
	t.Setenv("SIMILARITY_THRESHOLD", "")

	config, err := memory.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", config.Store.Provider)
	assert.Equal(t, memory.DefaultQuota, config.Quota)
	assert.Equal(t, memory.DefaultSimilarityThreshold, config.SimilarityThreshold)
}

func TestLoadConfigFromEnv_Sqlite(t *testing.T) {
	t.Setenv("DATABASE_PROVIDER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/test.db")
	t.Setenv("SQLITE_TABLE", "coach_memories")

	config, err := memory.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", config.Store.Provider)
	assert.Equal(t, "/tmp/test.db", config.Store.Config["db_path"])
	assert.Equal(t, "coach_memories", config.Store.Config["table_name"])
}

func TestLoadConfigFromEnv_Postgres(t *testing.T) {
	t.Setenv("DATABASE_PROVIDER", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PORT", "5433")
	t.Setenv("POSTGRES_USER", "coach")
	t.Setenv("POSTGRES_DATABASE", "memories")

	config, err := memory.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres", config.Store.Provider)
	assert.Equal(t, "db.internal", config.Store.Config["host"])
	assert.Equal(t, 5433, config.Store.Config["port"])
	assert.Equal(t, "coach", config.Store.Config["user"])
	assert.Equal(t, "memories", config.Store.Config["db_name"])
}

func TestLoadConfigFromEnv_Tunables(t *testing.T) {
	t.Setenv("MEMORY_QUOTA", "25")
	t.Setenv("SIMILARITY_THRESHOLD", "0.7")
	t.Setenv("SUMMARY_BATCH_SIZE", "10")
	t.Setenv("SUMMARY_BATCH_DELAY_MS", "250")
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("EMBEDDING_API_KEY", "sk-test")

	config, err := memory.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 25, config.Quota)
	assert.Equal(t, 0.7, config.SimilarityThreshold)
	assert.Equal(t, 10, config.SummaryBatchSize)
	assert.Equal(t, 250, config.SummaryBatchDelayMS)
	assert.Equal(t, "openai", config.Embedder.Provider)
	assert.Equal(t, "sk-test", config.Embedder.APIKey)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *memory.Config
		wantErr bool
	}{
		{
			name:    "valid defaults",
			config:  &memory.Config{},
			wantErr: false,
		},
		{
			name:    "valid explicit",
			config:  &memory.Config{Quota: 150, SimilarityThreshold: 0.5},
			wantErr: false,
		},
		{
			name:    "negative quota",
			config:  &memory.Config{Quota: -1},
			wantErr: true,
		},
		{
			name:    "threshold above one",
			config:  &memory.Config{SimilarityThreshold: 1.5},
			wantErr: true,
		},
		{
			name:    "negative threshold",
			config:  &memory.Config{SimilarityThreshold: -0.1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, memory.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
