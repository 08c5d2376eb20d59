// Package postgres provides the PostgreSQL + pgvector implementation of the
// memory store.
//
// Embeddings are stored in a pgvector column and similarity search runs in
// the database using the cosine distance operator.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/innermaps/coachmem-go/pkg/storage"
)

// Client implements storage.Store using PostgreSQL as the backend.
type Client struct {
	db         *sql.DB
	tableName  string
	dimensions int
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	TableName          string
	EmbeddingModelDims int
	SSLMode            string
}

// NewClient creates a new PostgreSQL store.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.TableName == "" {
		cfg.TableName = "memories"
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	client := &Client{
		db:         db,
		tableName:  cfg.TableName,
		dimensions: cfg.EmbeddingModelDims,
	}

	// Initialize pgvector extension and table structure
	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table.
func (c *Client) initTables(ctx context.Context) error {
	// Enable pgvector extension
	_, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("initTables: create extension: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			owner_id VARCHAR(255) NOT NULL,
			content TEXT NOT NULL,
			source_id VARCHAR(255),
			source_type VARCHAR(64),
			importance INT DEFAULT 1,
			is_pinned BOOLEAN DEFAULT FALSE,
			is_archived BOOLEAN DEFAULT FALSE,
			user_notes TEXT,
			summary TEXT,
			embedding vector(%d),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, c.tableName, c.dimensions)

	_, err = c.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("initTables: create table: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_owner_archived ON %s(owner_id, is_archived)
	`, c.tableName, c.tableName)
	_, err = c.db.ExecContext(ctx, indexQuery)
	if err != nil {
		return fmt.Errorf("initTables: create index: %w", err)
	}

	return nil
}

const recordColumns = `id, owner_id, content, source_id, source_type, importance,
	is_pinned, is_archived, user_notes, summary, embedding::text, created_at, updated_at`

// Insert inserts a record.
func (c *Client) Insert(ctx context.Context, record *storage.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, owner_id, content, source_id, source_type, importance,
		 is_pinned, is_archived, user_notes, summary, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, c.tableName)

	now := time.Now().UTC()
	_, err := c.db.ExecContext(ctx, query,
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
		vectorParam(record.Embedding),
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
		SELECT %s FROM %s WHERE id = $1 AND owner_id = $2
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
	sets := []string{"updated_at = $1"}
	args := []interface{}{time.Now().UTC()}
	next := 2

	appendSet := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, next))
		args = append(args, value)
		next++
	}

	if fields.Content != nil {
		appendSet("content", *fields.Content)
	}
	if fields.UserNotes != nil {
		appendSet("user_notes", *fields.UserNotes)
	}
	if fields.Summary != nil {
		if *fields.Summary == "" {
			return nil, fmt.Errorf("Update: summary must not be empty")
		}
		appendSet("summary", *fields.Summary)
	}
	if fields.Importance != nil {
		appendSet("importance", *fields.Importance)
	}
	if fields.IsPinned != nil {
		appendSet("is_pinned", *fields.IsPinned)
	}
	if fields.IsArchived != nil {
		appendSet("is_archived", *fields.IsArchived)
	}
	if fields.Embedding != nil {
		appendSet("embedding", vectorParam(fields.Embedding))
	}

	query := fmt.Sprintf(`
		UPDATE %s SET %s WHERE id = $%d AND owner_id = $%d
	`, c.tableName, strings.Join(sets, ", "), next, next+1)
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
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND owner_id = $2", c.tableName)

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

	where := "WHERE owner_id = $1"
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
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, opts.Limit, opts.Offset)
	}

	return c.queryRecords(ctx, "List", query, args...)
}

// CountActive returns the number of non-archived records for the owner.
func (c *Client) CountActive(ctx context.Context, ownerID string) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s WHERE owner_id = $1 AND is_archived = FALSE
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
		WHERE owner_id = $1 AND is_archived = FALSE AND is_pinned = TRUE
		ORDER BY importance DESC, created_at DESC
		LIMIT $2
	`, recordColumns, c.tableName)

	return c.queryRecords(ctx, "ListPinned", query, ownerID, limit)
}

// SearchSimilar performs vector search using pgvector's cosine distance.
func (c *Client) SearchSimilar(ctx context.Context, ownerID string, embedding []float64, opts *storage.SimilarOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.SimilarOptions{}
	}

	queryVector := vectorToString(embedding)

	// pgvector's <=> operator is cosine distance; similarity = 1 - distance.
	query := fmt.Sprintf(`
		SELECT %s, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE owner_id = $2 AND is_archived = FALSE AND embedding IS NOT NULL
		  AND 1 - (embedding <=> $1) >= $3
		ORDER BY embedding <=> $1
		LIMIT $4
	`, recordColumns, c.tableName)

	rows, err := c.db.QueryContext(ctx, query, queryVector, ownerID, opts.MinScore, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("SearchSimilar: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*storage.Record
	for rows.Next() {
		record, err := scanRecordWithScore(rows)
		if err != nil {
			return nil, fmt.Errorf("SearchSimilar: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SearchSimilar: %w", err)
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
	next := 2
	for _, token := range tokens {
		conditions = append(conditions, fmt.Sprintf("(content ILIKE $%d OR summary ILIKE $%d)", next, next))
		args = append(args, "%"+token+"%")
		next++
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = $1 AND is_archived = FALSE AND (%s)
		ORDER BY is_pinned DESC, importance DESC, created_at DESC
		LIMIT $%d
	`, recordColumns, c.tableName, strings.Join(conditions, " OR "), next)
	args = append(args, limit)

	return c.queryRecords(ctx, "SearchKeyword", query, args...)
}

// ListRecent returns up to limit non-archived records, newest first.
func (c *Client) ListRecent(ctx context.Context, ownerID string, limit int) ([]*storage.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = $1 AND is_archived = FALSE
		ORDER BY created_at DESC
		LIMIT $2
	`, recordColumns, c.tableName)

	return c.queryRecords(ctx, "ListRecent", query, ownerID, limit)
}

// ListMissingSummaries returns the owner's non-archived records with a NULL summary.
func (c *Client) ListMissingSummaries(ctx context.Context, ownerID string) ([]*storage.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = $1 AND is_archived = FALSE AND summary IS NULL
		ORDER BY created_at DESC
	`, recordColumns, c.tableName)

	return c.queryRecords(ctx, "ListMissingSummaries", query, ownerID)
}

// ListSummarized returns the owner's non-archived records with a summary.
func (c *Client) ListSummarized(ctx context.Context, ownerID string) ([]*storage.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = $1 AND is_archived = FALSE AND summary IS NOT NULL
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
		UPDATE %s SET summary = $1, updated_at = $2 WHERE id = $3 AND owner_id = $4
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
