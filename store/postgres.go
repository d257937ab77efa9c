// Package store persists per-document mapping artifacts to PostgreSQL. The
// anonymization core never touches it; only the CLI wires it in when the
// database is enabled.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

// Config holds the connection settings.
type Config struct {
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	MaxLifetime      time.Duration
}

// MappingStore defines the persistence operations for mapping artifacts.
type MappingStore interface {
	// SaveMapping stores one document's mapping artifact under its name.
	SaveMapping(ctx context.Context, document string, mapping model.MappingFile) error

	// GetMapping retrieves a stored mapping artifact by document name.
	GetMapping(ctx context.Context, document string) (*model.MappingFile, error)

	// DeleteOldMappings removes artifacts older than the given duration and
	// returns the number removed.
	DeleteOldMappings(ctx context.Context, olderThan time.Duration) (int64, error)

	// Close closes the database connection.
	Close() error
}

// PostgresStore implements MappingStore for PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the connection, configures the pool and ensures the
// schema exists.
func NewPostgresStore(cfg Config) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := createTableIfNotExists(db); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func createTableIfNotExists(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS mapping_artifacts (
		id SERIAL PRIMARY KEY,
		document VARCHAR(500) NOT NULL UNIQUE,
		schema_version VARCHAR(10) NOT NULL,
		document_type VARCHAR(50) NOT NULL,
		artifact JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_mapping_artifacts_document ON mapping_artifacts(document);
	CREATE INDEX IF NOT EXISTS idx_mapping_artifacts_created_at ON mapping_artifacts(created_at);
	`
	_, err := db.Exec(query)
	return err
}

// SaveMapping stores one document's mapping artifact, replacing any previous
// artifact for the same document.
func (s *PostgresStore) SaveMapping(ctx context.Context, document string, mapping model.MappingFile) error {
	artifact, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping artifact: %w", err)
	}

	query := `
	INSERT INTO mapping_artifacts (document, schema_version, document_type, artifact, created_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (document)
	DO UPDATE SET
		schema_version = EXCLUDED.schema_version,
		document_type = EXCLUDED.document_type,
		artifact = EXCLUDED.artifact,
		created_at = NOW()
	`
	_, err = s.db.ExecContext(ctx, query, document, mapping.SchemaVersion, mapping.DocumentType, artifact)
	return err
}

// GetMapping retrieves a stored mapping artifact. A missing document returns
// (nil, nil).
func (s *PostgresStore) GetMapping(ctx context.Context, document string) (*model.MappingFile, error) {
	var artifact []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT artifact FROM mapping_artifacts WHERE document = $1`, document).Scan(&artifact)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	var mapping model.MappingFile
	if err := json.Unmarshal(artifact, &mapping); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mapping artifact: %w", err)
	}
	return &mapping, nil
}

// DeleteOldMappings removes artifacts older than olderThan.
func (s *PostgresStore) DeleteOldMappings(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM mapping_artifacts WHERE created_at < NOW() - $1::interval`,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
