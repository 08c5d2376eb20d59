// Package mysql provides the MySQL implementation of the memory store.
//
// MySQL has no native vector type, so embeddings are stored as JSON strings
// and similarity search uses in-memory cosine similarity calculation, the
// same strategy as the SQLite backend.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/innermaps/coachmem-go/pkg/storage"
)

// Client implements storage.Store using MySQL as the backend.
type Client struct {
	db        *sql.DB
	tableName string
}

// Config contains MySQL configuration.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	TableName string
}

// NewClient creates a new MySQL store.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.TableName == "" {
		cfg.TableName = "memories"
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
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

// initTables initializes the database table.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			owner_id VARCHAR(255) NOT NULL,
			content LONGTEXT NOT NULL,
			source_id VARCHAR(255),
			source_type VARCHAR(64),
			importance INT DEFAULT 1,
			is_pinned BOOLEAN DEFAULT FALSE,
			is_archived BOOLEAN DEFAULT FALSE,
			user_notes TEXT,
			summary TEXT,
			embedding LONGTEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_owner_archived (owner_id, is_archived)
		)
	`, c.tableName)

	_, err := c.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

const recordColumns = `id, owner_id, content, source_id, source_type, importance,
	is_pinned, is_archived, user_notes, summary, embedding, created_at, updated_at`

// Insert inserts a record.
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

	record, err := scanRecord(row)
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
		where += " AND is_archived = FALSE"
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
		SELECT COUNT(*) FROM %s WHERE owner_id = ? AND is_archived = FALSE
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
		WHERE owner_id = ? AND is_archived = FALSE AND is_pinned = TRUE
		ORDER BY importance DESC, created_at DESC
		LIMIT ?
	`, recordColumns, c.tableName)

	return c.queryRecords(ctx, "ListPinned", query, ownerID, limit)
}

// SearchSimilar performs vector similarity search using cosine similarity.
//
// MySQL does not have native vector operations, so similarity is calculated
// in memory after loading the owner's embedded records.
func (c *Client) SearchSimilar(ctx context.Context, ownerID string, embedding []float64, opts *storage.SimilarOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.SimilarOptions{}
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = ? AND is_archived = FALSE AND embedding IS NOT NULL
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
		WHERE owner_id = ? AND is_archived = FALSE AND (%s)
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
		WHERE owner_id = ? AND is_archived = FALSE
		ORDER BY created_at DESC
		LIMIT ?
	`, recordColumns, c.tableName)

	return c.queryRecords(ctx, "ListRecent", query, ownerID, limit)
}

// ListMissingSummaries returns the owner's non-archived records with a NULL summary.
func (c *Client) ListMissingSummaries(ctx context.Context, ownerID string) ([]*storage.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = ? AND is_archived = FALSE AND summary IS NULL
		ORDER BY created_at DESC
	`, recordColumns, c.tableName)

	return c.queryRecords(ctx, "ListMissingSummaries", query, ownerID)
}

// ListSummarized returns the owner's non-archived records with a summary.
func (c *Client) ListSummarized(ctx context.Context, ownerID string) ([]*storage.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = ? AND is_archived = FALSE AND summary IS NOT NULL
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
		record, err := scanRecord(rows)
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

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a record from a database row or rows.
func scanRecord(scanner rowScanner) (*storage.Record, error) {
	var record storage.Record
	var sourceID, sourceType, userNotes, summary, embeddingStr sql.NullString

	err := scanner.Scan(
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
