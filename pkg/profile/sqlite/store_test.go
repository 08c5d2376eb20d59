package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innermaps/coachmem-go/pkg/profile"
	sqliteProfile "github.com/innermaps/coachmem-go/pkg/profile/sqlite"
)

func setupProfileStore(t *testing.T) *sqliteProfile.Store {
	store, err := sqliteProfile.NewStore(&sqliteProfile.Config{
		DBPath: filepath.Join(t.TempDir(), "test_profiles.db"),
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestProfileStore_SaveAndGet(t *testing.T) {
	store := setupProfileStore(t)
	ctx := context.Background()

	id, err := store.Save(ctx, &profile.Profile{
		OwnerID:   "user_001",
		FirstName: "Maya",
		Email:     "maya@example.com",
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	p, err := store.GetByOwnerID(ctx, "user_001")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Maya", p.FirstName)
	assert.Equal(t, "maya@example.com", p.Email)
}

func TestProfileStore_Upsert(t *testing.T) {
	store := setupProfileStore(t)
	ctx := context.Background()

	first, err := store.Save(ctx, &profile.Profile{OwnerID: "user_001", FirstName: "Maya"})
	require.NoError(t, err)

	second, err := store.Save(ctx, &profile.Profile{OwnerID: "user_001", FirstName: "Mia"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	p, err := store.GetByOwnerID(ctx, "user_001")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Mia", p.FirstName)
}

func TestProfileStore_GetMissing(t *testing.T) {
	store := setupProfileStore(t)

	p, err := store.GetByOwnerID(context.Background(), "user_unknown")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestProfileStore_Delete(t *testing.T) {
	store := setupProfileStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, &profile.Profile{OwnerID: "user_001", FirstName: "Maya"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "user_001"))

	p, err := store.GetByOwnerID(ctx, "user_001")
	require.NoError(t, err)
	assert.Nil(t, p)

	// Deleting again is not an error.
	assert.NoError(t, store.Delete(ctx, "user_001"))
}
