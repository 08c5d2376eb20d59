package postgres

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/innermaps/coachmem-go/pkg/storage"
)

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// vectorToString converts a vector to pgvector's text format: "[0.1,0.2,...]".
func vectorToString(vector []float64) string {
	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// vectorParam converts a vector to a query parameter, mapping nil to SQL NULL.
func vectorParam(vector []float64) interface{} {
	if vector == nil {
		return nil
	}
	return vectorToString(vector)
}

// parseVector parses pgvector's text format back into a slice.
func parseVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	vector := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector: %w", err)
		}
		vector[i] = v
	}

	return vector, nil
}

// scanRecord scans a record from a row without a similarity column.
func scanRecord(scanner rowScanner) (*storage.Record, error) {
	return scan(scanner, false)
}

// scanRecordWithScore scans a record from a row with a trailing similarity column.
func scanRecordWithScore(scanner rowScanner) (*storage.Record, error) {
	return scan(scanner, true)
}

func scan(scanner rowScanner, withScore bool) (*storage.Record, error) {
	var record storage.Record
	var sourceID, sourceType, userNotes, summary, embeddingStr sql.NullString

	dest := []interface{}{
		&record.ID,
		&record.OwnerID,
		&record.Content,
		&sourceID,
		&sourceType,
		&record.Importance,
		&record.IsPinned,
		&record.IsArchived,
		&userNotes,
		&summary,
		&embeddingStr,
		&record.CreatedAt,
		&record.UpdatedAt,
	}
	if withScore {
		dest = append(dest, &record.Score)
	}

	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	record.SourceID = sourceID.String
	record.SourceType = sourceType.String
	record.UserNotes = userNotes.String
	if summary.Valid {
		s := summary.String
		record.Summary = &s
	}
	if embeddingStr.Valid && embeddingStr.String != "" {
		embedding, err := parseVector(embeddingStr.String)
		if err != nil {
			return nil, err
		}
		record.Embedding = embedding
	}

	return &record, nil
}
