package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/liamcoop/csvetl/rules"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store backed by PostgreSQL. Rules are kept as
// the same YAML document the CLI loads.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed Store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add inserts a new document
func (s *PostgresStore) Add(doc *Document) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM rule_sets WHERE name = $1)
	`, doc.Name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check rule set existence: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrExists, doc.Name)
	}

	body, err := rules.MarshalDefinitions(doc.Rules)
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}

	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO rule_sets (id, name, document, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, doc.ID, doc.Name, string(body), doc.Active, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rule set: %w", err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var (
		doc  Document
		body string
	)
	if err := row.Scan(&doc.ID, &doc.Name, &body, &doc.Active, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}

	defs, err := rules.ParseDefinitions([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("stored rule set %s: %w", doc.Name, err)
	}
	doc.Rules = defs
	return &doc, nil
}

// Get retrieves a document by name
func (s *PostgresStore) Get(name string) (*Document, error) {
	doc, err := scanDocument(s.db.QueryRow(`
		SELECT id, name, document, active, created_at, updated_at
		FROM rule_sets
		WHERE name = $1
	`, name))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule set: %w", err)
	}

	return doc, nil
}

// ListActive returns all active documents, oldest first
func (s *PostgresStore) ListActive() ([]*Document, error) {
	rows, err := s.db.Query(`
		SELECT id, name, document, active, created_at, updated_at
		FROM rule_sets
		WHERE active = true
		ORDER BY created_at ASC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rule sets: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule set: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule sets: %w", err)
	}

	return docs, nil
}

// Update modifies an existing document, keeping its ID and CreatedAt
func (s *PostgresStore) Update(doc *Document) error {
	existing, err := s.Get(doc.Name)
	if err != nil {
		return err
	}

	body, err := rules.MarshalDefinitions(doc.Rules)
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}

	doc.ID = existing.ID
	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = time.Now().UTC()

	result, err := s.db.Exec(`
		UPDATE rule_sets
		SET document = $1, active = $2, updated_at = $3
		WHERE name = $4
	`, string(body), doc.Active, doc.UpdatedAt, doc.Name)
	if err != nil {
		return fmt.Errorf("failed to update rule set: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, doc.Name)
	}

	return nil
}

// Delete removes a document
func (s *PostgresStore) Delete(name string) error {
	result, err := s.db.Exec(`
		DELETE FROM rule_sets
		WHERE name = $1
	`, name)
	if err != nil {
		return fmt.Errorf("failed to delete rule set: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return nil
}
