// Package sqlite provides SQLite implementation for profile storage.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/innermaps/coachmem-go/pkg/profile"
)

// Store implements profile.Store using SQLite as the backend.
type Store struct {
	// db is the SQLite database connection.
	db *sql.DB

	// tableName is the name of the table storing profiles.
	tableName string
}

// Config contains configuration for creating a SQLite profile store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TableName is the name of the table to use (default: "user_profiles").
	TableName string
}

// NewStore creates a new SQLite profile store.
func NewStore(cfg *Config) (*Store, error) {
	if cfg.TableName == "" {
		cfg.TableName = "user_profiles"
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:        db,
		tableName: cfg.TableName,
	}

	if err := store.initTable(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// initTable initializes the database table structure.
func (s *Store) initTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			owner_id TEXT NOT NULL UNIQUE,
			first_name TEXT,
			email TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, s.tableName)

	_, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return nil
}

// Save upserts the profile keyed by OwnerID and returns the profile id.
func (s *Store) Save(ctx context.Context, p *profile.Profile) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (owner_id, first_name, email, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			first_name = excluded.first_name,
			email = excluded.email,
			updated_at = excluded.updated_at
	`, s.tableName)

	_, err := s.db.ExecContext(ctx, query, p.OwnerID, p.FirstName, p.Email, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("Save: %w", err)
	}

	saved, err := s.GetByOwnerID(ctx, p.OwnerID)
	if err != nil {
		return 0, err
	}
	if saved == nil {
		return 0, fmt.Errorf("Save: profile for owner %q missing after upsert", p.OwnerID)
	}

	return saved.ID, nil
}

// GetByOwnerID retrieves a profile by owner, or nil if none exists.
func (s *Store) GetByOwnerID(ctx context.Context, ownerID string) (*profile.Profile, error) {
	query := fmt.Sprintf(`
		SELECT id, owner_id, first_name, email, created_at, updated_at
		FROM %s WHERE owner_id = ?
	`, s.tableName)

	var p profile.Profile
	var firstName, email sql.NullString

	err := s.db.QueryRowContext(ctx, query, ownerID).Scan(
		&p.ID,
		&p.OwnerID,
		&firstName,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByOwnerID: %w", err)
	}

	p.FirstName = firstName.String
	p.Email = email.String

	return &p, nil
}

// Delete removes the profile for an owner.
func (s *Store) Delete(ctx context.Context, ownerID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE owner_id = ?", s.tableName)

	if _, err := s.db.ExecContext(ctx, query, ownerID); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
