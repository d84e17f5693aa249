package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/viant/sqlite-vec/vector"
	_ "modernc.org/sqlite"

	"qahub/internal/domain"
	"qahub/internal/vectorstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    name TEXT,
    content TEXT,
    embedding BLOB
);
`

// Storage keeps documents and their embeddings in a SQLite table of its own
// and scans them in insertion order on search. Several storages may share one
// database file; each is dropped on Close.
type Storage struct {
	db        *sql.DB
	table     string
	metric    vectorstore.Metric
	dimension int
}

// Config configures the SQLite store. An empty Path opens a private
// in-memory database.
type Config struct {
	Path   string
	Metric vectorstore.Metric
}

func NewStorage(cfg Config) (*Storage, error) {
	dsn := cfg.Path
	if dsn == "" || dsn == ":memory:" {
		dsn = ":memory:"
	} else if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)
	// another storage on the same file may be writing
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	table := "docs_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := db.Exec(fmt.Sprintf(schema, table)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	metric := cfg.Metric
	if metric == "" {
		metric = vectorstore.L2
	}
	return &Storage{db: db, table: table, metric: metric}, nil
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	return s.Clear(ctx)
}

func (s *Storage) Upsert(ctx context.Context, docs []domain.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO `+s.table+`(id, name, content, embedding) VALUES(?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, d := range docs {
		if len(vectors[i]) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
		blob, err := vector.EncodeEmbedding(vectors[i])
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, d.ID, d.Name, d.Text, blob); err != nil {
			return fmt.Errorf("insert %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Storage) Search(ctx context.Context, query []float32, topK int) ([]domain.Match, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, content, embedding FROM `+s.table+` ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var matches []domain.Match
	for rows.Next() {
		var d domain.Document
		var blob []byte
		if err := rows.Scan(&d.ID, &d.Name, &d.Text, &blob); err != nil {
			return nil, err
		}
		vec, err := vector.DecodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", d.ID, err)
		}
		dist, err := s.metric.Distance(vec, query)
		if err != nil {
			return nil, err
		}
		matches = append(matches, domain.Match{Document: d, Distance: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vectorstore.TopK(matches, topK), nil
}

func (s *Storage) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table)
	return err
}

// Close drops this storage's table and releases the database handle.
func (s *Storage) Close() error {
	_, dropErr := s.db.Exec(`DROP TABLE IF EXISTS ` + s.table)
	return errors.Join(dropErr, s.db.Close())
}
