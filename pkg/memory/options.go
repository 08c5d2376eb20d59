package memory

import (
	"log/slog"

	"github.com/innermaps/coachmem-go/pkg/embedder"
	"github.com/innermaps/coachmem-go/pkg/storage"
)

// ServiceOption is a function type for configuring a Service at construction.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	store    storage.Store
	embedder embedder.Provider
	logger   *slog.Logger
}

// WithStore injects a pre-built storage backend, bypassing provider
// initialization from the configuration.
//
// Example:
//
//	store, _ := sqlite.NewClient(&sqlite.Config{DBPath: ":memory:"})
//	service, _ := memory.NewService(config, memory.WithStore(store))
func WithStore(store storage.Store) ServiceOption {
	return func(opts *serviceOptions) {
		opts.store = store
	}
}

// WithEmbedder injects a pre-built embedding provider.
func WithEmbedder(provider embedder.Provider) ServiceOption {
	return func(opts *serviceOptions) {
		opts.embedder = provider
	}
}

// WithLogger sets the structured logger used by the Service.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(opts *serviceOptions) {
		opts.logger = logger
	}
}

// CreateOption is a function type for configuring Create operations.
//
// Options are applied using the functional options pattern, allowing
// flexible configuration without requiring all parameters.
type CreateOption func(*CreateOptions)

// CreateOptions contains configuration options for Create operations.
type CreateOptions struct {
	// SourceID identifies the originating artifact (journal entry or
	// chat message).
	SourceID string

	// SourceType is the kind of originating artifact.
	SourceType SourceType

	// Importance is the importance tier of the memory.
	Importance Importance

	// IsPinned marks the memory as always surfaced during retrieval.
	IsPinned bool

	// UserNotes contains free-form annotations from the owner.
	UserNotes string

	// Summary is an optional pre-computed summary. When empty the
	// summary stays unset until the maintenance worker fills it.
	Summary string

	// Embedding is an optional pre-computed vector. When set the
	// embedding provider is not consulted at create time.
	Embedding []float64
}

// WithSource sets the originating artifact for Create operations.
//
// Example:
//
//	record, _ := service.Create(ctx, ownerID, content,
//	    memory.WithSource("entry_42", memory.SourceJournalEntry))
func WithSource(sourceID string, sourceType SourceType) CreateOption {
	return func(opts *CreateOptions) {
		opts.SourceID = sourceID
		opts.SourceType = sourceType
	}
}

// WithImportance sets the importance tier for Create operations.
func WithImportance(importance Importance) CreateOption {
	return func(opts *CreateOptions) {
		opts.Importance = importance
	}
}

// WithPinned marks the new memory as pinned.
func WithPinned() CreateOption {
	return func(opts *CreateOptions) {
		opts.IsPinned = true
	}
}

// WithUserNotes sets the owner's annotations for Create operations.
func WithUserNotes(notes string) CreateOption {
	return func(opts *CreateOptions) {
		opts.UserNotes = notes
	}
}

// WithSummary sets a pre-computed summary for Create operations.
func WithSummary(summary string) CreateOption {
	return func(opts *CreateOptions) {
		opts.Summary = summary
	}
}

// WithEmbedding supplies a pre-computed embedding vector for Create
// operations, bypassing the embedding provider.
func WithEmbedding(embedding []float64) CreateOption {
	return func(opts *CreateOptions) {
		opts.Embedding = embedding
	}
}

// ListOption is a function type for configuring List operations.
type ListOption func(*ListOptions)

// ListOptions contains configuration options for List operations.
type ListOptions struct {
	// IncludeArchived includes archived memories in the listing.
	IncludeArchived bool

	// Limit restricts the number of returned records (0 means no limit).
	Limit int

	// Offset skips the first N records.
	Offset int
}

// WithArchived includes archived memories in List operations.
//
// Example:
//
//	records, _ := service.List(ctx, ownerID, memory.WithArchived())
func WithArchived() ListOption {
	return func(opts *ListOptions) {
		opts.IncludeArchived = true
	}
}

// WithLimit restricts the number of records returned by List operations.
func WithLimit(limit int) ListOption {
	return func(opts *ListOptions) {
		opts.Limit = limit
	}
}

// WithOffset skips the first N records in List operations.
func WithOffset(offset int) ListOption {
	return func(opts *ListOptions) {
		opts.Offset = offset
	}
}

// applyServiceOptions applies Service options to create serviceOptions.
func applyServiceOptions(opts []ServiceOption) *serviceOptions {
	options := &serviceOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// applyCreateOptions applies Create options to create CreateOptions.
func applyCreateOptions(opts []CreateOption) *CreateOptions {
	options := &CreateOptions{
		Importance: ImportanceNormal,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// applyListOptions applies List options to create ListOptions.
func applyListOptions(opts []ListOption) *ListOptions {
	options := &ListOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
