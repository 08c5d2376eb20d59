package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innermaps/coachmem-go/pkg/memory"
	"github.com/innermaps/coachmem-go/pkg/storage"
)

// stubStore drives the retrieval chain from canned responses. Unset
// behaviors return empty results.
type stubStore struct {
	pinned    []*storage.Record
	pinnedErr error

	similar     []*storage.Record
	similarErr  error
	similarSeen bool

	keyword     []*storage.Record
	keywordErr  error
	keywordSeen bool
	lastTokens  []string

	recent     []*storage.Record
	recentErr  error
	recentSeen bool
}

func (s *stubStore) Insert(ctx context.Context, record *storage.Record) error { return nil }

func (s *stubStore) Get(ctx context.Context, ownerID string, id int64) (*storage.Record, error) {
	return nil, storage.ErrNotFound
}

func (s *stubStore) Update(ctx context.Context, ownerID string, id int64, fields *storage.UpdateFields) (*storage.Record, error) {
	return nil, storage.ErrNotFound
}

func (s *stubStore) Delete(ctx context.Context, ownerID string, id int64) error {
	return storage.ErrNotFound
}

func (s *stubStore) List(ctx context.Context, ownerID string, opts *storage.ListOptions) ([]*storage.Record, error) {
	return nil, nil
}

func (s *stubStore) CountActive(ctx context.Context, ownerID string) (int, error) { return 0, nil }

func (s *stubStore) ListPinned(ctx context.Context, ownerID string, limit int) ([]*storage.Record, error) {
	if s.pinnedErr != nil {
		return nil, s.pinnedErr
	}
	if len(s.pinned) > limit {
		return s.pinned[:limit], nil
	}
	return s.pinned, nil
}

func (s *stubStore) SearchSimilar(ctx context.Context, ownerID string, embedding []float64, opts *storage.SimilarOptions) ([]*storage.Record, error) {
	s.similarSeen = true
	return s.similar, s.similarErr
}

func (s *stubStore) SearchKeyword(ctx context.Context, ownerID string, tokens []string, limit int) ([]*storage.Record, error) {
	s.keywordSeen = true
	s.lastTokens = tokens
	return s.keyword, s.keywordErr
}

func (s *stubStore) ListRecent(ctx context.Context, ownerID string, limit int) ([]*storage.Record, error) {
	s.recentSeen = true
	return s.recent, s.recentErr
}

func (s *stubStore) ListMissingSummaries(ctx context.Context, ownerID string) ([]*storage.Record, error) {
	return nil, nil
}

func (s *stubStore) ListSummarized(ctx context.Context, ownerID string) ([]*storage.Record, error) {
	return nil, nil
}

func (s *stubStore) SetSummary(ctx context.Context, ownerID string, id int64, summary string) error {
	return nil
}

func (s *stubStore) Close() error { return nil }

// stubEmbedder returns a fixed vector, or fails.
type stubEmbedder struct {
	vector []float64
	err    error
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return e.vector, e.err
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	result := make([][]float64, len(texts))
	for i := range texts {
		result[i] = e.vector
	}
	return result, e.err
}

func (e *stubEmbedder) Dimensions() int { return len(e.vector) }

func (e *stubEmbedder) Close() error { return nil }

func rec(id int64) *storage.Record {
	return &storage.Record{ID: id, OwnerID: "user_001", Content: "content"}
}

func retrievalService(t *testing.T, store *stubStore, opts ...memory.ServiceOption) *memory.Service {
	opts = append([]memory.ServiceOption{memory.WithStore(store)}, opts...)
	service, err := memory.NewService(&memory.Config{}, opts...)
	require.NoError(t, err)
	return service
}

func TestGetRelevantMemories_PinnedTruncation(t *testing.T) {
	store := &stubStore{
		pinned: []*storage.Record{rec(1), rec(2), rec(3), rec(4), rec(5), rec(6)},
	}
	service := retrievalService(t, store)

	results := service.GetRelevantMemories(context.Background(), "user_001", "anything goes here", 5)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, int64(i+1), r.ID)
	}

	// Pinned alone filled the limit; no search strategy runs.
	assert.False(t, store.similarSeen)
	assert.False(t, store.keywordSeen)
	assert.False(t, store.recentSeen)
}

func TestGetRelevantMemories_SimilarityWithDedup(t *testing.T) {
	store := &stubStore{
		pinned:  []*storage.Record{rec(1)},
		similar: []*storage.Record{rec(1), rec(2), rec(3)},
	}
	service := retrievalService(t, store,
		memory.WithEmbedder(&stubEmbedder{vector: []float64{0.1, 0.2}}))

	results := service.GetRelevantMemories(context.Background(), "user_001", "relevant context", 5)

	// Pinned first, then search results with the duplicate dropped.
	require.Len(t, results, 3)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, int64(2), results[1].ID)
	assert.Equal(t, int64(3), results[2].ID)

	assert.True(t, store.similarSeen)
	assert.False(t, store.keywordSeen)
}

func TestGetRelevantMemories_NoEmbedderFallsToKeyword(t *testing.T) {
	store := &stubStore{
		keyword: []*storage.Record{rec(10), rec(11)},
	}
	service := retrievalService(t, store)

	results := service.GetRelevantMemories(context.Background(), "user_001", "marathon training plans", 5)
	require.Len(t, results, 2)
	assert.Equal(t, int64(10), results[0].ID)

	assert.False(t, store.similarSeen)
	assert.True(t, store.keywordSeen)
	// Tokens longer than three characters only.
	assert.Equal(t, []string{"marathon", "training", "plans"}, store.lastTokens)
}

func TestGetRelevantMemories_KeywordTokenCap(t *testing.T) {
	store := &stubStore{
		keyword: []*storage.Record{rec(10)},
	}
	service := retrievalService(t, store)

	// Seven usable tokens in the context; only the first five reach the
	// keyword search.
	service.GetRelevantMemories(context.Background(), "user_001",
		"training schedule marathon nutrition recovery stretching hydration", 5)

	require.True(t, store.keywordSeen)
	assert.Equal(t, []string{"training", "schedule", "marathon", "nutrition", "recovery"}, store.lastTokens)
}

func TestGetRelevantMemories_EmbedderFailureFallsToKeyword(t *testing.T) {
	store := &stubStore{
		keyword: []*storage.Record{rec(20)},
	}
	service := retrievalService(t, store,
		memory.WithEmbedder(&stubEmbedder{err: errors.New("provider down")}))

	results := service.GetRelevantMemories(context.Background(), "user_001", "marathon training", 5)
	require.Len(t, results, 1)
	assert.Equal(t, int64(20), results[0].ID)
	assert.True(t, store.keywordSeen)
}

func TestGetRelevantMemories_ShortTokensFallToRecency(t *testing.T) {
	store := &stubStore{
		recent: []*storage.Record{rec(30), rec(31)},
	}
	service := retrievalService(t, store)

	// Every token is three characters or fewer, so keyword search has
	// nothing to match on and recency answers instead.
	results := service.GetRelevantMemories(context.Background(), "user_001", "how are you now", 5)
	require.Len(t, results, 2)
	assert.Equal(t, int64(30), results[0].ID)
	assert.False(t, store.keywordSeen)
	assert.True(t, store.recentSeen)
}

func TestGetRelevantMemories_EmptySearchResultIsFinal(t *testing.T) {
	store := &stubStore{
		keyword: nil,
		recent:  []*storage.Record{rec(40)},
	}
	service := retrievalService(t, store)

	// Keyword search works and finds nothing. That is the answer; the
	// chain must not continue to recency.
	results := service.GetRelevantMemories(context.Background(), "user_001", "unmatched keywords here", 5)
	assert.Empty(t, results)
	assert.True(t, store.keywordSeen)
	assert.False(t, store.recentSeen)
}

func TestGetRelevantMemories_NeverErrors(t *testing.T) {
	boom := errors.New("store down")
	store := &stubStore{
		pinned:     []*storage.Record{rec(1)},
		keywordErr: boom,
		recentErr:  boom,
	}
	service := retrievalService(t, store,
		memory.WithEmbedder(&stubEmbedder{err: boom}))

	// Every strategy fails; the pinned memories still come back.
	results := service.GetRelevantMemories(context.Background(), "user_001", "marathon training", 5)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
}

func TestGetRelevantMemories_TotalFailureReturnsEmpty(t *testing.T) {
	boom := errors.New("store down")
	store := &stubStore{
		pinnedErr:  boom,
		keywordErr: boom,
		recentErr:  boom,
	}
	service := retrievalService(t, store)

	results := service.GetRelevantMemories(context.Background(), "user_001", "marathon training", 5)
	assert.Empty(t, results)
}

func TestGetRelevantMemories_DefaultLimit(t *testing.T) {
	store := &stubStore{
		recent: []*storage.Record{rec(1), rec(2), rec(3), rec(4), rec(5), rec(6), rec(7)},
	}
	service := retrievalService(t, store)

	results := service.GetRelevantMemories(context.Background(), "user_001", "now", 0)
	assert.Len(t, results, 5)
}

func TestGetRelevantMemories_PinnedPlusSearchScenario(t *testing.T) {
	store := &stubStore{
		pinned:  []*storage.Record{rec(1), rec(2), rec(3)},
		keyword: []*storage.Record{rec(2), rec(100), rec(101), rec(102), rec(103)},
	}
	service := retrievalService(t, store)

	results := service.GetRelevantMemories(context.Background(), "user_001", "quarterly goals review", 5)
	require.Len(t, results, 5)

	// Three pinned, then search results minus the duplicate, cut at the limit.
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, int64(2), results[1].ID)
	assert.Equal(t, int64(3), results[2].ID)
	assert.Equal(t, int64(100), results[3].ID)
	assert.Equal(t, int64(101), results[4].ID)
}
