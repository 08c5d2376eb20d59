// Package sqlite provides the SQLite implementation of the memory store.
//
// SQLite is a lightweight, file-based database suitable for local development
// and small-scale deployments. Vectors are stored as JSON strings in TEXT
// fields, and similarity search uses in-memory cosine similarity calculation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/innermaps/coachmem-go/pkg/storage"
)

// Client implements storage.Store using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// tableName is the name of the table storing records.
	tableName string
}

// Config contains configuration for creating a SQLite store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TableName is the name of the table to use (default: "memories").
	TableName string
}

// NewClient creates a new SQLite store.
//
// Parameters:
//   - cfg: Configuration containing the database path and table name
//
// Returns:
//   - *Client: The SQLite store instance
//   - error: Error if database connection or table creation fails
func NewClient(cfg *Config) (*Client, error) {
	if cfg.TableName == "" {
		cfg.TableName = "memories"
	}

	// Create parent directory if it doesn't exist
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	client := &Client{
		db:        db,
		tableName: cfg.TableName,
	}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table structure.
//
// SQLite stores vectors as JSON strings in TEXT fields.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			owner_id TEXT NOT NULL,
			content TEXT NOT NULL,
			source_id TEXT,
			source_type TEXT,
			importance INTEGER DEFAULT 1,
			is_pinned INTEGER DEFAULT 0,
			is_archived INTEGER DEFAULT 0,
			user_notes TEXT,
			summary TEXT,
			embedding TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`, c.tableName)

	_, err := c.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_owner_archived ON %s(owner_id, is_archived)
	`, c.tableName, c.tableName)
	_, err = c.db.ExecContext(ctx, indexQuery)
	if err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

const recordColumns = `id, owner_id, content, source_id, source_type, importance,
	is_pinned, is_archived, user_notes, summary, embedding, created_at, updated_at`

// Insert inserts a record into the SQLite database.
func (c *Client) Insert(ctx context.Context, record *storage.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, owner_id, content, source_id, source_type, importance,
		 is_pinned, is_archived, user_notes, summary, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.tableName)

	embeddingJSON, err := marshalEmbedding(record.Embedding)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	now := time.Now().UTC()
	_, err = c.db.ExecContext(ctx, query,
		record.ID,
		record.OwnerID,
		record.Content,
		record.SourceID,
		record.SourceType,
		record.Importance,
		record.IsPinned,
		record.IsArchived,
		record.UserNotes,
		record.Summary,
		embeddingJSON,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	return nil
}

// Get retrieves a record by id, scoped to the owner.
func (c *Client) Get(ctx context.Context, ownerID string, id int64) (*storage.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE id = ? AND owner_id = ?
	`, recordColumns, c.tableName)

	row := c.db.QueryRowContext(ctx, query, id, ownerID)

	record, err := c.scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("Get: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	return record, nil
}

// Update applies a partial field set to a record scoped by (ownerID, id).
func (c *Client) Update(ctx context.Context, ownerID string, id int64, fields *storage.UpdateFields) (*storage.Record, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}

	if fields.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *fields.Content)
	}
	if fields.UserNotes != nil {
		sets = append(sets, "user_notes = ?")
		args = append(args, *fields.UserNotes)
	}
	if fields.Summary != nil {
		if *fields.Summary == "" {
			return nil, fmt.Errorf("Update: summary must not be empty")
		}
		sets = append(sets, "summary = ?")
		args = append(args, *fields.Summary)
	}
	if fields.Importance != nil {
		sets = append(sets, "importance = ?")
		args = append(args, *fields.Importance)
	}
	if fields.IsPinned != nil {
		sets = append(sets, "is_pinned = ?")
		args = append(args, *fields.IsPinned)
	}
	if fields.IsArchived != nil {
		sets = append(sets, "is_archived = ?")
		args = append(args, *fields.IsArchived)
	}
	if fields.Embedding != nil {
		embeddingJSON, err := marshalEmbedding(fields.Embedding)
		if err != nil {
			return nil, fmt.Errorf("Update: %w", err)
		}
		sets = append(sets, "embedding = ?")
		args = append(args, embeddingJSON)
	}

	query := fmt.Sprintf(`
		UPDATE %s SET %s WHERE id = ? AND owner_id = ?
	`, c.tableName, strings.Join(sets, ", "))
	args = append(args, id, ownerID)

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("Update: %w", storage.ErrNotFound)
	}

	return c.Get(ctx, ownerID, id)
}

// Delete permanently removes a record scoped by (ownerID, id).
func (c *Client) Delete(ctx context.Context, ownerID string, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND owner_id = ?", c.tableName)

	result, err := c.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("Delete: %w", storage.ErrNotFound)
	}

	return nil
}

// List returns the owner's records ordered by pinned, importance, recency.
func (c *Client) List(ctx context.Context, ownerID string, opts *storage.ListOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.ListOptions{}
	}

	where := "WHERE owner_id = ?"
	args := []interface{}{ownerID}
	if !opts.IncludeArchived {
		where += " AND is_archived = 0"
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		%s
		ORDER BY is_pinned DESC, importance DESC, created_at DESC
	`, recordColumns, c.tableName, where)

	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	return c.queryRecords(ctx, "List", query, args...)
}

// CountActive returns the number of non-archived records for the owner.
func (c *Client) CountActive(ctx context.Context, ownerID string) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s WHERE owner_id = ? AND is_archived = 0
	`, c.tableName)

	var count int
	if err := c.db.QueryRowContext(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("CountActive: %w", err)
	}

	return count, nil
}

// ListPinned returns up to limit non-archived pinned records for the owner.
func (c *Client) ListPinned(ctx context.Context, ownerID string, limit int) ([]*storage.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = ? AND is_archived = 0 AND is_pinned = 1
		ORDER BY importance DESC, created_at DESC
		LIMIT ?
	`, recordColumns, c.tableName)

	return c.queryRecords(ctx, "ListPinned", query, ownerID, limit)
}

// SearchSimilar performs vector similarity search using cosine similarity.
//
// SQLite does not have native vector operations, so similarity is calculated
// in memory after loading the owner's embedded records.
func (c *Client) SearchSimilar(ctx context.Context, ownerID string, embedding []float64, opts *storage.SimilarOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.SimilarOptions{}
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = ? AND is_archived = 0 AND embedding IS NOT NULL
		ORDER BY id
	`, recordColumns, c.tableName)

	candidates, err := c.queryRecords(ctx, "SearchSimilar", query, ownerID)
	if err != nil {
		return nil, err
	}

	var records []*storage.Record
	for _, record := range candidates {
		score := cosineSimilarity(embedding, record.Embedding)
		record.Score = score
		if score >= opts.MinScore {
			records = append(records, record)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Score > records[j].Score
	})
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}

	return records, nil
}

// SearchKeyword returns non-archived records whose content or summary contains
// any of the tokens, case-insensitively.
func (c *Client) SearchKeyword(ctx context.Context, ownerID string, tokens []string, limit int) ([]*storage.Record, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	conditions := make([]string, 0, len(tokens))
	args := []interface{}{ownerID}
	for _, token := range tokens {
		conditions = append(conditions, "(LOWER(content) LIKE ? OR LOWER(summary) LIKE ?)")
		pattern := "%" + strings.ToLower(token) + "%"
		args = append(args, pattern, pattern)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = ? AND is_archived = 0 AND (%s)
		ORDER BY is_pinned DESC, importance DESC, created_at DESC
		LIMIT ?
	`, recordColumns, c.tableName, strings.Join(conditions, " OR "))
	args = append(args, limit)

	return c.queryRecords(ctx, "SearchKeyword", query, args...)
}

// ListRecent returns up to limit non-archived records, newest first.
func (c *Client) ListRecent(ctx context.Context, ownerID string, limit int) ([]*storage.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = ? AND is_archived = 0
		ORDER BY created_at DESC
		LIMIT ?
	`, recordColumns, c.tableName)

	return c.queryRecords(ctx, "ListRecent", query, ownerID, limit)
}

// ListMissingSummaries returns the owner's non-archived records with a NULL summary.
func (c *Client) ListMissingSummaries(ctx context.Context, ownerID string) ([]*storage.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = ? AND is_archived = 0 AND summary IS NULL
		ORDER BY created_at DESC
	`, recordColumns, c.tableName)

	return c.queryRecords(ctx, "ListMissingSummaries", query, ownerID)
}

// ListSummarized returns the owner's non-archived records with a summary.
func (c *Client) ListSummarized(ctx context.Context, ownerID string) ([]*storage.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = ? AND is_archived = 0 AND summary IS NOT NULL
		ORDER BY created_at DESC
	`, recordColumns, c.tableName)

	return c.queryRecords(ctx, "ListSummarized", query, ownerID)
}

// SetSummary updates only the summary and updated_at of a record.
func (c *Client) SetSummary(ctx context.Context, ownerID string, id int64, summary string) error {
	if summary == "" {
		return fmt.Errorf("SetSummary: summary must not be empty")
	}

	query := fmt.Sprintf(`
		UPDATE %s SET summary = ?, updated_at = ? WHERE id = ? AND owner_id = ?
	`, c.tableName)

	result, err := c.db.ExecContext(ctx, query, summary, time.Now().UTC(), id, ownerID)
	if err != nil {
		return fmt.Errorf("SetSummary: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetSummary: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("SetSummary: %w", storage.ErrNotFound)
	}

	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// queryRecords runs a SELECT over the record columns and scans all rows.
func (c *Client) queryRecords(ctx context.Context, op, query string, args ...interface{}) ([]*storage.Record, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var records []*storage.Record
	for rows.Next() {
		record, err := c.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return records, nil
}

// scanRecord scans a record from a database row or rows.
func (c *Client) scanRecord(scanner interface{}) (*storage.Record, error) {
	var record storage.Record
	var sourceID, sourceType, userNotes, summary, embeddingStr sql.NullString

	var err error
	switch s := scanner.(type) {
	case *sql.Row:
		err = s.Scan(
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
		)
	case *sql.Rows:
		err = s.Scan(
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
		)
	default:
		return nil, fmt.Errorf("unsupported scanner type")
	}

	if err != nil {
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
		if err := json.Unmarshal([]byte(embeddingStr.String), &record.Embedding); err != nil {
			return nil, fmt.Errorf("parse embedding: %w", err)
		}
	}

	return &record, nil
}

// marshalEmbedding encodes a vector as JSON, mapping nil to SQL NULL.
func marshalEmbedding(embedding []float64) (interface{}, error) {
	if embedding == nil {
		return nil, nil
	}
	data, err := json.Marshal(embedding)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
