// Package storage provides interfaces and types for memory record storage backends.
//
// It defines the Store interface that all storage implementations must satisfy,
// along with the Record row type and query option structs. Every query is scoped
// by owner; the interface has no way to express an unscoped read or write.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates that a record does not exist for the given owner.
// Backends return it for reads, updates, and deletes that match zero rows,
// which covers both missing ids and ids owned by someone else.
var ErrNotFound = errors.New("record not found")

// Record represents a memory row as persisted by a backend.
//
// This type is defined in the storage package to avoid circular dependencies
// with the memory package. It mirrors the memory.Record structure.
type Record struct {
	// ID is the unique identifier of the record.
	ID int64

	// OwnerID identifies the user who owns this record. Never empty.
	OwnerID string

	// Content is the raw source text of the memory.
	Content string

	// SourceID references the originating artifact (journal entry or chat message).
	SourceID string

	// SourceType is the kind of originating artifact ("journal_entry" or "chat_message").
	SourceType string

	// Importance is the ordinal importance rank (0 = low .. 3 = high).
	// Used as a sort tiebreaker, not a filter.
	Importance int

	// IsPinned marks the record as unconditionally relevant.
	IsPinned bool

	// IsArchived excludes the record from quota counting and relevance retrieval.
	IsArchived bool

	// UserNotes is an optional human-authored annotation.
	UserNotes string

	// Summary is the machine-authored short summary. Nil until the maintenance
	// worker fills it; never an empty string.
	Summary *string

	// Embedding is the vector representation of the record, or nil when the
	// embedding provider was unavailable at creation time.
	Embedding []float64

	// Score is the similarity score attached by SearchSimilar (0.0-1.0).
	Score float64

	// CreatedAt is when the record was created.
	CreatedAt time.Time

	// UpdatedAt is when the record was last mutated.
	UpdatedAt time.Time
}

// UpdateFields is the partial field set accepted by Update.
//
// Nil fields are left untouched. UpdatedAt is always bumped by the backend
// when at least one field is set.
type UpdateFields struct {
	// Content replaces the raw source text.
	Content *string

	// UserNotes replaces the human-authored annotation.
	UserNotes *string

	// Summary replaces the machine-authored summary.
	// Must be non-empty when set; backends reject empty summaries.
	Summary *string

	// Importance replaces the importance rank.
	Importance *int

	// IsPinned toggles the pinned flag.
	IsPinned *bool

	// IsArchived toggles the archived flag.
	IsArchived *bool

	// Embedding replaces the vector representation.
	Embedding []float64
}

// ListOptions contains options for List operations.
type ListOptions struct {
	// IncludeArchived includes archived records in the listing.
	// Management views set this; retrieval paths never do.
	IncludeArchived bool

	// Limit sets the maximum number of results to return (0 = no limit).
	Limit int

	// Offset sets the number of results to skip (for pagination).
	Offset int
}

// SimilarOptions contains options for SearchSimilar operations.
type SimilarOptions struct {
	// Limit sets the maximum number of results to return.
	Limit int

	// MinScore sets the minimum cosine similarity for results (0.0-1.0).
	MinScore float64
}

// Store defines the interface for memory storage backends.
//
// All storage implementations (SQLite, PostgreSQL, MySQL) must implement this
// interface. Archived records are excluded everywhere except Get and List
// with IncludeArchived.
type Store interface {
	// Insert inserts a record.
	Insert(ctx context.Context, record *Record) error

	// Get retrieves a record by id, scoped to the owner.
	// Returns an error if the record does not exist or belongs to a
	// different owner.
	Get(ctx context.Context, ownerID string, id int64) (*Record, error)

	// Update applies a partial field set to a record scoped by (ownerID, id)
	// and returns the updated record.
	Update(ctx context.Context, ownerID string, id int64, fields *UpdateFields) (*Record, error)

	// Delete permanently removes a record scoped by (ownerID, id).
	Delete(ctx context.Context, ownerID string, id int64) error

	// List returns the owner's records ordered by is_pinned desc,
	// importance desc, created_at desc.
	List(ctx context.Context, ownerID string, opts *ListOptions) ([]*Record, error)

	// CountActive returns the number of non-archived records for the owner.
	CountActive(ctx context.Context, ownerID string) (int, error)

	// ListPinned returns up to limit non-archived pinned records for the
	// owner, ordered by importance desc, created_at desc.
	ListPinned(ctx context.Context, ownerID string, limit int) ([]*Record, error)

	// SearchSimilar returns up to opts.Limit non-archived records whose
	// embedding similarity to the query vector is at least opts.MinScore,
	// highest first. Records without an embedding are skipped.
	SearchSimilar(ctx context.Context, ownerID string, embedding []float64, opts *SimilarOptions) ([]*Record, error)

	// SearchKeyword returns up to limit non-archived records whose content or
	// summary contains any of the tokens (case-insensitive substring,
	// OR-combined), ordered by is_pinned desc, importance desc, created_at desc.
	SearchKeyword(ctx context.Context, ownerID string, tokens []string, limit int) ([]*Record, error)

	// ListRecent returns up to limit non-archived records ordered by
	// created_at desc.
	ListRecent(ctx context.Context, ownerID string, limit int) ([]*Record, error)

	// ListMissingSummaries returns the owner's non-archived records with a
	// NULL summary.
	ListMissingSummaries(ctx context.Context, ownerID string) ([]*Record, error)

	// ListSummarized returns the owner's non-archived records with a
	// non-NULL summary.
	ListSummarized(ctx context.Context, ownerID string) ([]*Record, error)

	// SetSummary updates only the summary (and updated_at) of a record
	// scoped by (ownerID, id). The summary must be non-empty.
	SetSummary(ctx context.Context, ownerID string, id int64, summary string) error

	// Close closes the store and releases resources.
	Close() error
}
