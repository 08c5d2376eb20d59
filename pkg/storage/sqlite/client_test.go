package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innermaps/coachmem-go/pkg/storage"
	sqliteStore "github.com/innermaps/coachmem-go/pkg/storage/sqlite"
)

func setupSQLiteTest(t *testing.T) storage.Store {
	config := &sqliteStore.Config{
		DBPath:    filepath.Join(t.TempDir(), "test_coachmem.db"),
		TableName: "memories",
	}

	store, err := sqliteStore.NewClient(config)
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func strPtr(s string) *string { return &s }

func TestSQLiteClient_InsertAndGet(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	record := &storage.Record{
		ID:         100,
		OwnerID:    "user_001",
		Content:    "Started training for a half marathon",
		SourceID:   "entry_42",
		SourceType: "journal_entry",
		Importance: 2,
		UserNotes:  "big goal",
		Embedding:  []float64{0.1, 0.2, 0.3},
	}

	err := store.Insert(ctx, record)
	require.NoError(t, err)

	retrieved, err := store.Get(ctx, "user_001", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), retrieved.ID)
	assert.Equal(t, "user_001", retrieved.OwnerID)
	assert.Equal(t, "Started training for a half marathon", retrieved.Content)
	assert.Equal(t, "entry_42", retrieved.SourceID)
	assert.Equal(t, "journal_entry", retrieved.SourceType)
	assert.Equal(t, 2, retrieved.Importance)
	assert.Equal(t, "big goal", retrieved.UserNotes)
	assert.Nil(t, retrieved.Summary)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, retrieved.Embedding)
}

func TestSQLiteClient_GetScopedToOwner(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	err := store.Insert(ctx, &storage.Record{
		ID:      1,
		OwnerID: "user_001",
		Content: "private note",
	})
	require.NoError(t, err)

	_, err = store.Get(ctx, "user_002", 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLiteClient_Update(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID:      1,
		OwnerID: "user_001",
		Content: "original content",
	}))

	importance := 3
	updated, err := store.Update(ctx, "user_001", 1, &storage.UpdateFields{
		Content:    strPtr("revised content"),
		Importance: &importance,
	})
	require.NoError(t, err)
	assert.Equal(t, "revised content", updated.Content)
	assert.Equal(t, 3, updated.Importance)
	// Untouched fields survive
	assert.False(t, updated.IsPinned)
}

func TestSQLiteClient_UpdateNotFound(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	_, err := store.Update(ctx, "user_001", 999, &storage.UpdateFields{
		Content: strPtr("anything"),
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLiteClient_UpdateRejectsEmptySummary(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID:      1,
		OwnerID: "user_001",
		Content: "content",
	}))

	_, err := store.Update(ctx, "user_001", 1, &storage.UpdateFields{
		Summary: strPtr(""),
	})
	assert.Error(t, err)
}

func TestSQLiteClient_Delete(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID:      1,
		OwnerID: "user_001",
		Content: "to be deleted",
	}))

	require.NoError(t, store.Delete(ctx, "user_001", 1))

	_, err := store.Get(ctx, "user_001", 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Delete(ctx, "user_001", 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLiteClient_ListOrdering(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	// Inserted oldest to newest.
	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 1, OwnerID: "user_001", Content: "old high importance", Importance: 3,
	}))
	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 2, OwnerID: "user_001", Content: "newer normal", Importance: 1,
	}))
	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 3, OwnerID: "user_001", Content: "pinned low", Importance: 0, IsPinned: true,
	}))
	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 4, OwnerID: "user_001", Content: "archived high", Importance: 3, IsArchived: true,
	}))

	records, err := store.List(ctx, "user_001", nil)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Pinned first, then by importance, then recency. Archived excluded.
	assert.Equal(t, int64(3), records[0].ID)
	assert.Equal(t, int64(1), records[1].ID)
	assert.Equal(t, int64(2), records[2].ID)

	all, err := store.List(ctx, "user_001", &storage.ListOptions{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSQLiteClient_CountActive(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 1, OwnerID: "user_001", Content: "active",
	}))
	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 2, OwnerID: "user_001", Content: "archived", IsArchived: true,
	}))
	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 3, OwnerID: "user_002", Content: "someone else",
	}))

	count, err := store.CountActive(ctx, "user_001")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteClient_ListPinned(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 1, OwnerID: "user_001", Content: "pinned normal", Importance: 1, IsPinned: true,
	}))
	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 2, OwnerID: "user_001", Content: "pinned high", Importance: 3, IsPinned: true,
	}))
	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 3, OwnerID: "user_001", Content: "unpinned",
	}))
	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 4, OwnerID: "user_001", Content: "pinned archived", IsPinned: true, IsArchived: true,
	}))

	records, err := store.ListPinned(ctx, "user_001", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[0].ID)
	assert.Equal(t, int64(1), records[1].ID)
}

func TestSQLiteClient_SearchSimilar(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 1, OwnerID: "user_001", Content: "exact match", Embedding: []float64{1, 0, 0},
	}))
	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 2, OwnerID: "user_001", Content: "close match", Embedding: []float64{0.9, 0.1, 0},
	}))
	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 3, OwnerID: "user_001", Content: "orthogonal", Embedding: []float64{0, 1, 0},
	}))
	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 4, OwnerID: "user_001", Content: "no embedding",
	}))

	records, err := store.SearchSimilar(ctx, "user_001", []float64{1, 0, 0}, &storage.SimilarOptions{
		Limit:    10,
		MinScore: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Highest similarity first, below-threshold and unembedded rows skipped.
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, int64(2), records[1].ID)
	assert.Greater(t, records[0].Score, records[1].Score)
}

func TestSQLiteClient_SearchKeyword(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 1, OwnerID: "user_001", Content: "Training for a Marathon next spring",
	}))
	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 2, OwnerID: "user_001", Content: "Weekly meal prep",
		Summary: strPtr("Plans healthy meals around running schedule"),
	}))
	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 3, OwnerID: "user_001", Content: "Unrelated note about work",
	}))

	// Case-insensitive, matches content or summary, tokens OR-combined.
	records, err := store.SearchKeyword(ctx, "user_001", []string{"marathon", "running"}, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	ids := []int64{records[0].ID, records[1].ID}
	assert.Contains(t, ids, int64(1))
	assert.Contains(t, ids, int64(2))
}

func TestSQLiteClient_ListRecent(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 1, OwnerID: "user_001", Content: "first",
	}))
	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 2, OwnerID: "user_001", Content: "second",
	}))
	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 3, OwnerID: "user_001", Content: "third",
	}))

	records, err := store.ListRecent(ctx, "user_001", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(3), records[0].ID)
	assert.Equal(t, int64(2), records[1].ID)
}

func TestSQLiteClient_SummaryLifecycle(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 1, OwnerID: "user_001", Content: "needs summary",
	}))
	require.NoError(t, store.Insert(ctx, &storage.Record{
		ID: 2, OwnerID: "user_001", Content: "already summarized",
		Summary: strPtr("Has a summary"),
	}))

	missing, err := store.ListMissingSummaries(ctx, "user_001")
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, int64(1), missing[0].ID)

	require.NoError(t, store.SetSummary(ctx, "user_001", 1, "A fresh summary"))

	missing, err = store.ListMissingSummaries(ctx, "user_001")
	require.NoError(t, err)
	assert.Empty(t, missing)

	summarized, err := store.ListSummarized(ctx, "user_001")
	require.NoError(t, err)
	assert.Len(t, summarized, 2)

	assert.Error(t, store.SetSummary(ctx, "user_001", 1, ""))
	assert.ErrorIs(t, store.SetSummary(ctx, "user_001", 999, "summary"), storage.ErrNotFound)
}
