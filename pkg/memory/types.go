// Package memory provides the coaching-assistant memory engine: quota-guarded
// admission of memory records, owner-scoped mutations, and tiered relevance
// retrieval for conversational context.
package memory

import "time"

// SourceType identifies the kind of artifact a memory was extracted from.
type SourceType string

const (
	// SourceJournalEntry marks memories extracted from journal entries.
	SourceJournalEntry SourceType = "journal_entry"

	// SourceChatMessage marks memories extracted from chat messages.
	SourceChatMessage SourceType = "chat_message"
)

// Importance is the ordinal importance level of a memory.
//
// It is used as a sort tiebreaker in listings and keyword retrieval,
// never as a hard filter.
type Importance int

const (
	// ImportanceLow is the lowest importance level.
	ImportanceLow Importance = iota

	// ImportanceNormal is the default importance level.
	ImportanceNormal

	// ImportanceMedium is above-normal importance.
	ImportanceMedium

	// ImportanceHigh is the highest importance level.
	ImportanceHigh
)

// String returns the lowercase name of the importance level.
func (i Importance) String() string {
	switch i {
	case ImportanceLow:
		return "low"
	case ImportanceNormal:
		return "normal"
	case ImportanceMedium:
		return "medium"
	case ImportanceHigh:
		return "high"
	default:
		return "normal"
	}
}

// ParseImportance converts a level name into an Importance.
// Unknown names map to ImportanceNormal.
func ParseImportance(s string) Importance {
	switch s {
	case "low":
		return ImportanceLow
	case "medium":
		return ImportanceMedium
	case "high":
		return ImportanceHigh
	default:
		return ImportanceNormal
	}
}

// Record represents a single durable memory owned by a user.
//
// Example:
//
//	record := &memory.Record{
//	    ID:         1234567890,
//	    OwnerID:    "user_001",
//	    Content:    "Started a new role as a team lead in March",
//	    SourceType: memory.SourceJournalEntry,
//	}
type Record struct {
	// ID is the unique identifier of the record, assigned at creation.
	ID int64 `json:"id"`

	// OwnerID identifies the user who owns this record. All queries are
	// scoped by this field.
	OwnerID string `json:"owner_id"`

	// Content is the raw source text of the memory.
	Content string `json:"content"`

	// SourceID references the originating artifact.
	SourceID string `json:"source_id,omitempty"`

	// SourceType is the kind of originating artifact.
	SourceType SourceType `json:"source_type,omitempty"`

	// Importance is the ordinal importance level.
	Importance Importance `json:"importance"`

	// IsPinned marks the record as unconditionally relevant: pinned records
	// are always included first in relevance retrieval.
	IsPinned bool `json:"is_pinned"`

	// IsArchived excludes the record from quota counting and relevance
	// retrieval while keeping it visible in full management listings.
	IsArchived bool `json:"is_archived"`

	// UserNotes is an optional human-authored annotation.
	UserNotes string `json:"user_notes,omitempty"`

	// Summary is the machine-authored short summary, filled asynchronously
	// by the maintenance worker. Nil until then; never an empty string.
	Summary *string `json:"summary,omitempty"`

	// Embedding is the vector representation for similarity search.
	// Nil when the embedding provider was unavailable at creation time.
	// Omitted from JSON to reduce payload size.
	Embedding []float64 `json:"-"`

	// Score is the similarity score from relevance retrieval (0.0-1.0).
	Score float64 `json:"score,omitempty"`

	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the record was last mutated.
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateFields is the partial field set accepted by Update.
//
// Nil fields are left untouched. Pin and archive state have their own
// operations (SetPinned, SetArchived) and are not part of this set.
type UpdateFields struct {
	// Content replaces the raw source text. When the service has an
	// embedding provider, the embedding is recomputed best-effort.
	Content *string

	// UserNotes replaces the human-authored annotation.
	UserNotes *string

	// Summary replaces the machine-authored summary (must be non-empty).
	Summary *string

	// Importance replaces the importance level.
	Importance *Importance
}
