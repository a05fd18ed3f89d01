// Package store persists graph snapshots in SQLite so a CLI invocation can
// pick up where the last one left off.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jward/isg"
)

// Store is the SQLite data access layer for graph snapshots.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Fingerprints are stored in their hex text form: SQLite integers are
// signed and would mangle the upper half of the range.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS nodes (
  fingerprint     TEXT PRIMARY KEY,
  kind            TEXT NOT NULL,
  name            TEXT NOT NULL,
  signature       TEXT NOT NULL,
  file_path       TEXT NOT NULL,
  line            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS edges (
  from_fp         TEXT NOT NULL REFERENCES nodes(fingerprint) ON DELETE CASCADE,
  to_fp           TEXT NOT NULL REFERENCES nodes(fingerprint) ON DELETE CASCADE,
  kind            TEXT NOT NULL,
  PRIMARY KEY (from_fp, to_fp)
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name);
CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(file_path);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_fp);
`

// SaveSnapshot replaces the stored graph with snap in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap isg.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{"DELETE FROM edges", "DELETE FROM nodes"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
	}

	nodeStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO nodes (fingerprint, kind, name, signature, file_path, line) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare node insert: %w", err)
	}
	defer nodeStmt.Close()
	for _, n := range snap.Nodes {
		if _, err := nodeStmt.ExecContext(ctx,
			n.Fingerprint.String(), n.Kind.String(), n.Name, n.Signature, n.FilePath, n.Line); err != nil {
			return fmt.Errorf("insert node %s: %w", n.Fingerprint, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, "INSERT INTO edges (from_fp, to_fp, kind) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()
	for _, e := range snap.Edges {
		if _, err := edgeStmt.ExecContext(ctx, e.From.String(), e.To.String(), e.Kind.String()); err != nil {
			return fmt.Errorf("insert edge %s->%s: %w", e.From, e.To, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the stored graph. An empty database yields an empty
// snapshot. Nodes come back ordered by fingerprint and edges by (from, to),
// matching Graph.Export.
func (s *Store) LoadSnapshot(ctx context.Context) (isg.Snapshot, error) {
	snap := isg.Snapshot{Nodes: []isg.EntityRecord{}, Edges: []isg.Relation{}}

	rows, err := s.db.QueryContext(ctx,
		"SELECT fingerprint, kind, name, signature, file_path, line FROM nodes ORDER BY fingerprint")
	if err != nil {
		return isg.Snapshot{}, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rec      isg.EntityRecord
			fp, kind string
		)
		if err := rows.Scan(&fp, &kind, &rec.Name, &rec.Signature, &rec.FilePath, &rec.Line); err != nil {
			return isg.Snapshot{}, fmt.Errorf("scan node: %w", err)
		}
		if rec.Fingerprint, err = isg.ParseFingerprint(fp); err != nil {
			return isg.Snapshot{}, fmt.Errorf("node %q: %w", fp, err)
		}
		if rec.Kind, err = isg.ParseEntityKind(kind); err != nil {
			return isg.Snapshot{}, fmt.Errorf("node %s: %w", fp, err)
		}
		snap.Nodes = append(snap.Nodes, rec)
	}
	if err := rows.Err(); err != nil {
		return isg.Snapshot{}, fmt.Errorf("iterate nodes: %w", err)
	}

	edgeRows, err := s.db.QueryContext(ctx, "SELECT from_fp, to_fp, kind FROM edges ORDER BY from_fp, to_fp")
	if err != nil {
		return isg.Snapshot{}, fmt.Errorf("query edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var from, to, kind string
		if err := edgeRows.Scan(&from, &to, &kind); err != nil {
			return isg.Snapshot{}, fmt.Errorf("scan edge: %w", err)
		}
		var e isg.Relation
		if e.From, err = isg.ParseFingerprint(from); err != nil {
			return isg.Snapshot{}, fmt.Errorf("edge from %q: %w", from, err)
		}
		if e.To, err = isg.ParseFingerprint(to); err != nil {
			return isg.Snapshot{}, fmt.Errorf("edge to %q: %w", to, err)
		}
		if e.Kind, err = isg.ParseRelationKind(kind); err != nil {
			return isg.Snapshot{}, fmt.Errorf("edge %s->%s: %w", from, to, err)
		}
		snap.Edges = append(snap.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return isg.Snapshot{}, fmt.Errorf("iterate edges: %w", err)
	}
	return snap, nil
}

// GetMetadata returns the value stored under key, or "" when unset.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %q: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}
