// Package docstore implements a path-addressable, schemaless document tree
// on top of Postgres. Documents live under "collection/key" paths; one
// secondary index per collection (the programme field) supports the
// dashboard's filtered reads. A multi-path update commits every path in one
// transaction, which is what the import engine's chunk writes rely on.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/livestock-import-api/internal/database"
)

// Document is one stored value with its addressing metadata.
type Document struct {
	Path       string                 `json:"path"`
	Collection string                 `json:"collection"`
	Key        string                 `json:"key"`
	Body       map[string]interface{} `json:"body"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Store is the document-tree contract the rest of the system consumes.
type Store interface {
	// GenerateKey returns a fresh globally unique key under a collection.
	GenerateKey(collection string) string

	// MultiPathUpdate writes every path->value pair in one transaction.
	// A nil value removes the path.
	MultiPathUpdate(ctx context.Context, updates map[string]interface{}) error

	// ReadCollectionByEquality reads a collection filtered by one equality
	// predicate on the indexed field. An empty value reads the whole
	// collection.
	ReadCollectionByEquality(ctx context.Context, collection, field, value string) ([]Document, error)

	// Remove deletes one path.
	Remove(ctx context.Context, path string) error

	// Subscribe registers a change listener for a path prefix. The
	// returned function cancels the subscription.
	Subscribe(pathPrefix string, fn func(path string)) func()
}

// indexedField is the one field per collection extracted into a queryable
// column.
const indexedField = "programme"

// store is the Postgres-backed implementation of Store.
type store struct {
	db  *database.DB
	log zerolog.Logger

	mu   sync.Mutex
	subs map[int]subscription
	next int
}

type subscription struct {
	prefix string
	fn     func(path string)
}

// New creates a document store over the given database.
func New(db *database.DB, log zerolog.Logger) Store {
	return &store{
		db:   db,
		log:  log.With().Str("component", "docstore").Logger(),
		subs: make(map[int]subscription),
	}
}

// GenerateKey returns a fresh key. Keys are never reused, so two concurrent
// imports into the same collection can interleave but never collide on a
// record.
func (s *store) GenerateKey(collection string) string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// MultiPathUpdate upserts every path in one transaction. Values must be
// JSON-encodable; map values have the indexed field lifted into its column.
func (s *store) MultiPathUpdate(ctx context.Context, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin update: %w", err)
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO documents (path, collection, programme, body, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (path) DO UPDATE SET
			programme = EXCLUDED.programme,
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at
	`
	now := time.Now()

	for path, value := range updates {
		collection, _, err := splitPath(path)
		if err != nil {
			return err
		}

		if value == nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = $1`, path); err != nil {
				return fmt.Errorf("failed to remove %s: %w", path, err)
			}
			continue
		}

		body, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", path, err)
		}
		if _, err := tx.ExecContext(ctx, upsert, path, collection, indexValue(value), body, now); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}

	s.notify(updates)
	return nil
}

// ReadCollectionByEquality reads documents in a collection, optionally
// filtered on the indexed field.
func (s *store) ReadCollectionByEquality(ctx context.Context, collection, field, value string) ([]Document, error) {
	if field != "" && field != indexedField {
		return nil, fmt.Errorf("field %q is not indexed; only %q is queryable", field, indexedField)
	}

	query := `SELECT path, collection, body, updated_at FROM documents WHERE collection = $1`
	args := []interface{}{collection}
	if value != "" {
		query += ` AND programme = $2`
		args = append(args, value)
	}
	query += ` ORDER BY updated_at, path`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var raw []byte
		if err := rows.Scan(&doc.Path, &doc.Collection, &raw, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &doc.Body); err != nil {
			s.log.Warn().Str("path", doc.Path).Err(err).Msg("Skipping undecodable document")
			continue
		}
		if _, key, err := splitPath(doc.Path); err == nil {
			doc.Key = key
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Remove deletes one path.
func (s *store) Remove(ctx context.Context, path string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = $1`, path)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notify(map[string]interface{}{path: nil})
	}
	return nil
}

// Subscribe registers an in-process change listener. Listeners fire after a
// multi-path update commits, once per affected path.
func (s *store) Subscribe(pathPrefix string, fn func(path string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	s.subs[id] = subscription{prefix: pathPrefix, fn: fn}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *store) notify(updates map[string]interface{}) {
	s.mu.Lock()
	listeners := make([]subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		listeners = append(listeners, sub)
	}
	s.mu.Unlock()

	for path := range updates {
		for _, sub := range listeners {
			if strings.HasPrefix(path, sub.prefix) {
				sub.fn(path)
			}
		}
	}
}

// splitPath splits "collection/key" and rejects anything else.
func splitPath(path string) (collection, key string, err error) {
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid document path %q, want collection/key", path)
	}
	return parts[0], parts[1], nil
}

// Path joins a collection and key into a document path.
func Path(collection, key string) string {
	return collection + "/" + key
}

// indexValue extracts the indexed field from a value about to be written.
func indexValue(value interface{}) sql.NullString {
	m, ok := value.(map[string]interface{})
	if !ok {
		return sql.NullString{}
	}
	if v, ok := m[indexedField].(string); ok && v != "" {
		return sql.NullString{String: v, Valid: true}
	}
	return sql.NullString{}
}
