package memory

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/innermaps/coachmem-go/pkg/embedder"
	openaiEmbedder "github.com/innermaps/coachmem-go/pkg/embedder/openai"
	"github.com/innermaps/coachmem-go/pkg/storage"
	mysqlStore "github.com/innermaps/coachmem-go/pkg/storage/mysql"
	postgresStore "github.com/innermaps/coachmem-go/pkg/storage/postgres"
	sqliteStore "github.com/innermaps/coachmem-go/pkg/storage/sqlite"
	"github.com/innermaps/coachmem-go/pkg/summarizer"
	openaiSummarizer "github.com/innermaps/coachmem-go/pkg/summarizer/openai"
)

// Service is the main entry point for per-user memory management.
//
// It provides a complete interface for storing, retrieving, and managing
// memories with support for:
//   - Per-owner quota enforcement
//   - Vector similarity retrieval with keyword and recency fallbacks
//   - Pin and archive lifecycle operations
//
// The service is thread-safe and can be used concurrently from multiple
// goroutines.
//
// Example usage:
//
//	config, _ := memory.LoadConfigFromEnv()
//	service, _ := memory.NewService(config)
//	defer service.Close()
//
//	record, _ := service.Create(ctx, "user_001", "Ran 5k before work",
//	    memory.WithSource("entry_42", memory.SourceJournalEntry),
//	    memory.WithImportance(memory.ImportanceHigh),
//	)
type Service struct {
	// config contains the service configuration.
	config *Config

	// store is the relational store for memory persistence.
	store storage.Store

	// embedder is the embedding provider for vector generation (nil when
	// no embedding provider is configured).
	embedder embedder.Provider

	// snowflakeNode generates unique IDs for memories.
	snowflakeNode *snowflake.Node

	// logger records structured diagnostics.
	logger *slog.Logger

	// mu serializes quota checks against inserts.
	mu sync.Mutex
}

// NewService creates a new memory service.
//
// The service is initialized with:
//   - Relational store (SQLite, PostgreSQL, or MySQL)
//   - Embedding provider (OpenAI, optional)
//
// Pre-built providers can be injected with WithStore and WithEmbedder,
// which is the expected path in tests.
//
// Parameters:
//   - cfg: Configuration containing storage and embedding settings
//   - opts: Optional injected providers and logger
//
// Returns a new Service instance, or an error if initialization fails.
func NewService(cfg *Config, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := applyServiceOptions(opts)

	store := options.store
	if store == nil {
		var err error
		store, err = initStorage(cfg.Store)
		if err != nil {
			return nil, err
		}
	}

	embedderProvider := options.embedder
	if embedderProvider == nil && cfg.Embedder.Provider != "" {
		var err error
		embedderProvider, err = initEmbedder(cfg.Embedder)
		if err != nil {
			return nil, err
		}
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, NewMemoryError("NewService", err)
	}

	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Quota == 0 {
		cfg.Quota = DefaultQuota
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}

	return &Service{
		config:        cfg,
		store:         store,
		embedder:      embedderProvider,
		snowflakeNode: node,
		logger:        logger,
	}, nil
}

// Create adds a new memory for the given owner.
//
// The method:
//  1. Takes the supplied embedding, or generates one from the summary,
//     or the content when no summary is available (best effort)
//  2. Checks the owner's quota (non-archived memories only)
//  3. Stores the memory
//
// Archived memories do not count against the quota, so archiving frees
// room for new memories without deleting anything.
//
// Parameters:
//   - ctx: Context for cancellation
//   - ownerID: Owner of the memory
//   - content: Memory content (text string)
//   - opts: Optional parameters (source, importance, notes, summary, embedding)
//
// Returns the created Record, or an error if the operation fails. When
// the owner is at quota the error unwraps to ErrQuotaExceeded and carries
// the configured limit.
func (s *Service) Create(ctx context.Context, ownerID, content string, opts ...CreateOption) (*Record, error) {
	if ownerID == "" || strings.TrimSpace(content) == "" {
		return nil, NewMemoryError("Create", ErrInvalidInput)
	}

	options := applyCreateOptions(opts)

	record := &Record{
		ID:         s.snowflakeNode.Generate().Int64(),
		OwnerID:    ownerID,
		Content:    content,
		SourceID:   options.SourceID,
		SourceType: options.SourceType,
		Importance: options.Importance,
		IsPinned:   options.IsPinned,
		UserNotes:  options.UserNotes,
		Embedding:  options.Embedding,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if options.Summary != "" {
		summary := options.Summary
		record.Summary = &summary
	}

	// Embed before taking the lock: a slow provider call must not
	// serialize unrelated creates.
	if record.Embedding == nil {
		record.Embedding = s.embedText(ctx, embeddingSource(record))
	}

	// The count and the insert must not interleave with another Create
	// for the same store, or two callers could both pass the check.
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.store.CountActive(ctx, ownerID)
	if err != nil {
		return nil, wrapStoreErr("Create", err)
	}
	if count >= s.config.Quota {
		return nil, NewMemoryError("Create", &QuotaExceededError{Limit: s.config.Quota})
	}

	if err := s.store.Insert(ctx, toStorageRecord(record)); err != nil {
		return nil, wrapStoreErr("Create", err)
	}

	return record, nil
}

// Get retrieves a single memory by ID, scoped to the owner.
//
// Returns ErrNotFound (wrapped) when no memory with that ID belongs to
// the owner.
func (s *Service) Get(ctx context.Context, ownerID string, id int64) (*Record, error) {
	rec, err := s.store.Get(ctx, ownerID, id)
	if err != nil {
		return nil, wrapStoreErr("Get", err)
	}
	return fromStorageRecord(rec), nil
}

// List retrieves all memories for the owner, ordered by pinned status,
// then importance, then recency. Archived memories are excluded unless
// WithArchived is passed.
func (s *Service) List(ctx context.Context, ownerID string, opts ...ListOption) ([]*Record, error) {
	options := applyListOptions(opts)

	records, err := s.store.List(ctx, ownerID, &storage.ListOptions{
		IncludeArchived: options.IncludeArchived,
		Limit:           options.Limit,
		Offset:          options.Offset,
	})
	if err != nil {
		return nil, wrapStoreErr("List", err)
	}

	return fromStorageRecords(records), nil
}

// Update modifies a memory's content, notes, summary, or importance,
// scoped to the owner.
//
// When the content changes the embedding is regenerated (best effort)
// unless the record carries a summary, which remains the embedding
// source.
func (s *Service) Update(ctx context.Context, ownerID string, id int64, fields *UpdateFields) (*Record, error) {
	if fields == nil {
		return nil, NewMemoryError("Update", ErrInvalidInput)
	}
	if fields.Content != nil && strings.TrimSpace(*fields.Content) == "" {
		return nil, NewMemoryError("Update", ErrInvalidInput)
	}
	if fields.Summary != nil && strings.TrimSpace(*fields.Summary) == "" {
		return nil, NewMemoryError("Update", ErrInvalidInput)
	}

	current, err := s.store.Get(ctx, ownerID, id)
	if err != nil {
		return nil, wrapStoreErr("Update", err)
	}

	storageFields := toStorageUpdateFields(fields)

	if fields.Summary != nil {
		storageFields.Embedding = s.embedText(ctx, *fields.Summary)
	} else if fields.Content != nil && current.Summary == nil {
		storageFields.Embedding = s.embedText(ctx, *fields.Content)
	}

	updated, err := s.store.Update(ctx, ownerID, id, storageFields)
	if err != nil {
		return nil, wrapStoreErr("Update", err)
	}
	return fromStorageRecord(updated), nil
}

// Delete permanently removes a memory, scoped to the owner.
func (s *Service) Delete(ctx context.Context, ownerID string, id int64) error {
	if err := s.store.Delete(ctx, ownerID, id); err != nil {
		return wrapStoreErr("Delete", err)
	}
	return nil
}

// SetPinned pins or unpins a memory, scoped to the owner. Pinned
// memories always surface first during retrieval.
func (s *Service) SetPinned(ctx context.Context, ownerID string, id int64, pinned bool) error {
	if _, err := s.store.Update(ctx, ownerID, id, &storage.UpdateFields{IsPinned: &pinned}); err != nil {
		return wrapStoreErr("SetPinned", err)
	}
	return nil
}

// SetArchived archives or restores a memory, scoped to the owner.
// Archived memories are excluded from listings, retrieval, and the
// quota count.
func (s *Service) SetArchived(ctx context.Context, ownerID string, id int64, archived bool) error {
	if _, err := s.store.Update(ctx, ownerID, id, &storage.UpdateFields{IsArchived: &archived}); err != nil {
		return wrapStoreErr("SetArchived", err)
	}
	return nil
}

// Store returns the underlying storage backend, for wiring supporting
// components such as the maintenance worker.
func (s *Service) Store() storage.Store {
	return s.store
}

// Close releases all resources held by the service.
func (s *Service) Close() error {
	if s.embedder != nil {
		if err := s.embedder.Close(); err != nil {
			return NewMemoryError("Close", err)
		}
	}
	if err := s.store.Close(); err != nil {
		return NewMemoryError("Close", err)
	}
	return nil
}

// embedText generates an embedding for the given text. Embedding is best
// effort: failures are logged and a nil vector is returned, since a
// memory without an embedding is still retrievable through the keyword
// and recency tiers.
func (s *Service) embedText(ctx context.Context, text string) []float64 {
	if s.embedder == nil || text == "" {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("embedding generation failed, storing without vector",
			"error", err)
		return nil
	}
	return vec
}

// embeddingSource returns the text to embed for a record: the summary
// when present, otherwise the raw content.
func embeddingSource(record *Record) string {
	if record.Summary != nil {
		return *record.Summary
	}
	return record.Content
}

// wrapStoreErr maps storage errors onto the service error taxonomy.
// Missing rows become ErrNotFound; everything else keeps the backend error
// and also matches ErrStoreOperation.
func wrapStoreErr(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewMemoryError(op, ErrNotFound)
	}
	return NewMemoryError(op, errors.Join(ErrStoreOperation, err))
}

// initStorage initializes the storage backend.
func initStorage(cfg StoreConfig) (storage.Store, error) {
	switch cfg.Provider {
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{
			DBPath:    cfg.Config["db_path"].(string),
			TableName: cfg.Config["table_name"].(string),
		})
	case "postgres":
		sslMode := "disable"
		if s, ok := cfg.Config["ssl_mode"].(string); ok {
			sslMode = s
		}
		return postgresStore.NewClient(&postgresStore.Config{
			Host:               cfg.Config["host"].(string),
			Port:               cfg.Config["port"].(int),
			User:               cfg.Config["user"].(string),
			Password:           cfg.Config["password"].(string),
			DBName:             cfg.Config["db_name"].(string),
			TableName:          cfg.Config["table_name"].(string),
			EmbeddingModelDims: cfg.Config["embedding_model_dims"].(int),
			SSLMode:            sslMode,
		})
	case "mysql":
		return mysqlStore.NewClient(&mysqlStore.Config{
			Host:      cfg.Config["host"].(string),
			Port:      cfg.Config["port"].(int),
			User:      cfg.Config["user"].(string),
			Password:  cfg.Config["password"].(string),
			DBName:    cfg.Config["db_name"].(string),
			TableName: cfg.Config["table_name"].(string),
		})
	default:
		return nil, NewMemoryError("initStorage", ErrInvalidConfig)
	}
}

// initEmbedder initializes the embedding provider.
func initEmbedder(cfg EmbedderConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	default:
		return nil, NewMemoryError("initEmbedder", ErrInvalidConfig)
	}
}

// NewSummarizer initializes a summarization provider from configuration,
// for wiring the maintenance worker.
func NewSummarizer(cfg SummarizerConfig) (summarizer.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openaiSummarizer.NewClient(&openaiSummarizer.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	default:
		return nil, NewMemoryError("NewSummarizer", ErrInvalidConfig)
	}
}
