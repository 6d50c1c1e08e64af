package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore is a Store backed by a relational database.
//
// Supported dialects: sqlite3, postgres, mysql. Document keyword lists and
// guideline condition lists are stored as JSON text columns so the schema
// stays identical across dialects.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// SQLStoreConfig configures the SQL knowledge store.
type SQLStoreConfig struct {
	// Driver name: sqlite3, postgres or mysql.
	Driver string `yaml:"driver"`

	// DSN is the driver-specific data source name.
	DSN string `yaml:"dsn"`
}

const (
	createDocumentsTableSQL = `
CREATE TABLE IF NOT EXISTS knowledge_documents (
    id VARCHAR(255) PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    source VARCHAR(255),
    doc_type VARCHAR(64),
    keywords TEXT,
    updated_at TIMESTAMP NOT NULL
);
`

	createGuidelinesTableSQL = `
CREATE TABLE IF NOT EXISTS guidelines (
    id VARCHAR(255) PRIMARY KEY,
    title TEXT NOT NULL,
    source VARCHAR(255),
    key_recommendation TEXT NOT NULL,
    last_updated TIMESTAMP NOT NULL,
    conditions TEXT
);
`

	createSynonymsTableSQL = `
CREATE TABLE IF NOT EXISTS synonyms (
    term VARCHAR(255) NOT NULL,
    synonym VARCHAR(255) NOT NULL,
    PRIMARY KEY (term, synonym)
);
`
)

// NewSQLStore opens the database and ensures the schema exists.
func NewSQLStore(cfg SQLStoreConfig) (*SQLStore, error) {
	switch cfg.Driver {
	case "sqlite3", "postgres", "mysql":
	case "":
		return nil, fmt.Errorf("driver is required")
	default:
		return nil, fmt.Errorf("unsupported driver: %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	store := &SQLStore{db: db, dialect: cfg.Driver}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStoreWithDB wraps an existing connection (used by tests and hosts
// that manage pooling themselves).
func NewSQLStoreWithDB(db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	store := &SQLStore{db: db, dialect: dialect}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, ddl := range []string{createDocumentsTableSQL, createGuidelinesTableSQL, createSynonymsTableSQL} {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) StoreDocument(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return NewValidationError("document", "id is required")
	}

	keywords, err := json.Marshal(doc.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	query := `
INSERT INTO knowledge_documents (id, title, content, source, doc_type, keywords, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    content = excluded.content,
    source = excluded.source,
    doc_type = excluded.doc_type,
    keywords = excluded.keywords,
    updated_at = excluded.updated_at
`
	if s.dialect == "postgres" {
		query = `
INSERT INTO knowledge_documents (id, title, content, source, doc_type, keywords, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title,
    content = EXCLUDED.content,
    source = EXCLUDED.source,
    doc_type = EXCLUDED.doc_type,
    keywords = EXCLUDED.keywords,
    updated_at = EXCLUDED.updated_at
`
	} else if s.dialect == "mysql" {
		query = `
INSERT INTO knowledge_documents (id, title, content, source, doc_type, keywords, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    title = VALUES(title),
    content = VALUES(content),
    source = VALUES(source),
    doc_type = VALUES(doc_type),
    keywords = VALUES(keywords),
    updated_at = VALUES(updated_at)
`
	}

	_, err = s.db.ExecContext(ctx, query,
		doc.ID, doc.Title, doc.Content, doc.Source, string(doc.Type), string(keywords), time.Now())
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	return nil
}

// StoreGuideline upserts a guideline record.
func (s *SQLStore) StoreGuideline(ctx context.Context, g Guideline) error {
	if g.ID == "" {
		return NewValidationError("guideline", "id is required")
	}

	conditions, err := json.Marshal(g.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}

	query := `
INSERT INTO guidelines (id, title, source, key_recommendation, last_updated, conditions)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    source = excluded.source,
    key_recommendation = excluded.key_recommendation,
    last_updated = excluded.last_updated,
    conditions = excluded.conditions
`
	if s.dialect == "postgres" {
		query = `
INSERT INTO guidelines (id, title, source, key_recommendation, last_updated, conditions)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title,
    source = EXCLUDED.source,
    key_recommendation = EXCLUDED.key_recommendation,
    last_updated = EXCLUDED.last_updated,
    conditions = EXCLUDED.conditions
`
	} else if s.dialect == "mysql" {
		query = `
INSERT INTO guidelines (id, title, source, key_recommendation, last_updated, conditions)
VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    title = VALUES(title),
    source = VALUES(source),
    key_recommendation = VALUES(key_recommendation),
    last_updated = VALUES(last_updated),
    conditions = VALUES(conditions)
`
	}

	_, err = s.db.ExecContext(ctx, query,
		g.ID, g.Title, g.Source, g.KeyRecommendation, g.LastUpdated, string(conditions))
	if err != nil {
		return fmt.Errorf("failed to store guideline: %w", err)
	}
	return nil
}

func (s *SQLStore) GetGuidelines(ctx context.Context, condition string) ([]Guideline, error) {
	condition = strings.ToLower(strings.TrimSpace(condition))

	// Condition lists are small JSON arrays; filtering happens in process
	// so the query stays dialect-portable.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, source, key_recommendation, last_updated, conditions FROM guidelines`)
	if err != nil {
		return nil, fmt.Errorf("failed to query guidelines: %w", err)
	}
	defer rows.Close()

	matched := make([]Guideline, 0)
	for rows.Next() {
		var g Guideline
		var conditions sql.NullString
		if err := rows.Scan(&g.ID, &g.Title, &g.Source, &g.KeyRecommendation, &g.LastUpdated, &conditions); err != nil {
			return nil, fmt.Errorf("failed to scan guideline: %w", err)
		}
		if conditions.Valid && conditions.String != "" {
			if err := json.Unmarshal([]byte(conditions.String), &g.Conditions); err != nil {
				return nil, fmt.Errorf("failed to unmarshal conditions for %s: %w", g.ID, err)
			}
		}

		for _, c := range g.Conditions {
			if strings.ToLower(c) == condition {
				matched = append(matched, g)
				break
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate guidelines: %w", err)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].LastUpdated.After(matched[j].LastUpdated)
	})
	return matched, nil
}

// StoreSynonym registers one thesaurus expansion for a term.
func (s *SQLStore) StoreSynonym(ctx context.Context, term, synonym string) error {
	term = strings.ToLower(strings.TrimSpace(term))

	query := `INSERT INTO synonyms (term, synonym) VALUES (?, ?) ON CONFLICT(term, synonym) DO NOTHING`
	if s.dialect == "postgres" {
		query = `INSERT INTO synonyms (term, synonym) VALUES ($1, $2) ON CONFLICT (term, synonym) DO NOTHING`
	} else if s.dialect == "mysql" {
		query = `INSERT IGNORE INTO synonyms (term, synonym) VALUES (?, ?)`
	}

	if _, err := s.db.ExecContext(ctx, query, term, synonym); err != nil {
		return fmt.Errorf("failed to store synonym: %w", err)
	}
	return nil
}

func (s *SQLStore) GetSynonyms(ctx context.Context, query string) ([]string, error) {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var expansions []string

	stmt := `SELECT synonym FROM synonyms WHERE term = ?`
	if s.dialect == "postgres" {
		stmt = `SELECT synonym FROM synonyms WHERE term = $1`
	}

	for _, token := range tokens {
		token = strings.Trim(token, ".,;:!?")
		rows, err := s.db.QueryContext(ctx, stmt, token)
		if err != nil {
			return nil, fmt.Errorf("failed to query synonyms: %w", err)
		}
		for rows.Next() {
			var syn string
			if err := rows.Scan(&syn); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan synonym: %w", err)
			}
			if _, dup := seen[syn]; dup {
				continue
			}
			seen[syn] = struct{}{}
			expansions = append(expansions, syn)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to iterate synonyms: %w", err)
		}
		rows.Close()
	}

	return expansions, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ensure SQLStore implements Store.
var _ Store = (*SQLStore)(nil)
