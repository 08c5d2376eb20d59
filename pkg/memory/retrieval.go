package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/innermaps/coachmem-go/pkg/storage"
)

// keyword extraction limits for the keyword retrieval tier.
const (
	minKeywordLength = 3
	maxKeywords      = 5
)

// retrievalTier produces candidate records for a retrieval context. A
// tier that returns an error is skipped in favor of the next one.
type retrievalTier struct {
	name string
	run  func(ctx context.Context, ownerID, contextText string, limit int) ([]*storage.Record, error)
}

// GetRelevantMemories retrieves the memories most relevant to the given
// context text, for injection into a conversation prompt.
//
// The method:
//  1. Collects the owner's pinned memories, which always surface first
//  2. Fills the remaining slots from an ordered chain of strategies:
//     vector similarity, keyword match, recency
//  3. Merges the results, dropping duplicates of pinned memories
//
// Each strategy hands over to the next only when it fails; an empty
// result from a working strategy is a final answer. Retrieval never
// returns an error: when everything fails the owner's pinned memories
// (possibly none) are returned so the caller can always build a prompt.
//
// A non-positive limit defaults to DefaultRelevantLimit.
func (s *Service) GetRelevantMemories(ctx context.Context, ownerID, contextText string, limit int) []*Record {
	if limit <= 0 {
		limit = DefaultRelevantLimit
	}

	pinned, err := s.store.ListPinned(ctx, ownerID, limit)
	if err != nil {
		s.logger.Warn("pinned memory lookup failed",
			"owner_id", ownerID, "error", err)
		pinned = nil
	}

	if len(pinned) >= limit {
		return fromStorageRecords(pinned[:limit])
	}

	remaining := limit - len(pinned)

	tiers := []retrievalTier{
		{name: "similarity", run: s.searchSimilarity},
		{name: "keyword", run: s.searchKeyword},
		{name: "recency", run: s.searchRecency},
	}

	var candidates []*storage.Record
	for _, tier := range tiers {
		results, err := tier.run(ctx, ownerID, contextText, remaining)
		if err != nil {
			s.logger.Debug("retrieval strategy failed, trying next",
				"strategy", tier.name, "owner_id", ownerID, "error", err)
			continue
		}
		candidates = results
		break
	}

	merged := make([]*storage.Record, 0, limit)
	seen := make(map[int64]bool, limit)
	for _, rec := range pinned {
		merged = append(merged, rec)
		seen[rec.ID] = true
	}
	for _, rec := range candidates {
		if seen[rec.ID] {
			continue
		}
		merged = append(merged, rec)
		seen[rec.ID] = true
		if len(merged) == limit {
			break
		}
	}

	return fromStorageRecords(merged)
}

// searchSimilarity runs the vector similarity tier. It fails when no
// embedding provider is configured, so the chain moves on to keyword
// matching.
func (s *Service) searchSimilarity(ctx context.Context, ownerID, contextText string, limit int) ([]*storage.Record, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("searchSimilarity: %w", ErrProviderUnavailable)
	}
	if strings.TrimSpace(contextText) == "" {
		return nil, fmt.Errorf("searchSimilarity: empty context: %w", ErrInvalidInput)
	}

	vec, err := s.embedder.Embed(ctx, contextText)
	if err != nil {
		return nil, fmt.Errorf("searchSimilarity: %w", err)
	}

	return s.store.SearchSimilar(ctx, ownerID, vec, &storage.SimilarOptions{
		Limit:    limit,
		MinScore: s.config.SimilarityThreshold,
	})
}

// searchKeyword runs the keyword matching tier. When the context text
// yields no usable keywords the tier degrades to recency directly, so a
// short context still produces a useful result rather than an error.
func (s *Service) searchKeyword(ctx context.Context, ownerID, contextText string, limit int) ([]*storage.Record, error) {
	keywords := extractKeywords(contextText)
	if len(keywords) == 0 {
		return s.store.ListRecent(ctx, ownerID, limit)
	}
	return s.store.SearchKeyword(ctx, ownerID, keywords, limit)
}

// searchRecency runs the final tier, returning the most recent
// non-archived memories.
func (s *Service) searchRecency(ctx context.Context, ownerID, _ string, limit int) ([]*storage.Record, error) {
	return s.store.ListRecent(ctx, ownerID, limit)
}

// extractKeywords splits the context text on whitespace and keeps the
// first maxKeywords tokens longer than minKeywordLength characters.
func extractKeywords(contextText string) []string {
	var keywords []string
	for _, token := range strings.Fields(contextText) {
		if len(token) <= minKeywordLength {
			continue
		}
		keywords = append(keywords, token)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}
