package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

const (
	duckdbTypeQuery = `
		SELECT table_type
		FROM information_schema.tables
		WHERE table_schema = ? AND table_name = ?`

	duckdbColumnQuery = `
		SELECT column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`
)

// DuckDB introspects relations over a DuckDB connection.
type DuckDB struct {
	sqlAdapter
}

// NewDuckDB creates a duckdb adapter. A nil logger discards output.
func NewDuckDB(logger *slog.Logger) *DuckDB {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DuckDB{sqlAdapter{log: logger}}
}

func (a *DuckDB) Name() string { return "duckdb" }

// Connect opens and pings a DuckDB database. An empty path opens an
// in-memory database.
func (a *DuckDB) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping duckdb: %w", err)
	}

	a.db = db
	a.cfg = cfg
	return nil
}

// Relation looks up a relation in information_schema. The configured
// schema is used when schema is empty, falling back to "main".
func (a *DuckDB) Relation(ctx context.Context, schema, table string) (*Relation, error) {
	if schema == "" {
		schema = a.cfg.Schema
	}
	if schema == "" {
		schema = "main"
	}
	return a.relation(ctx, duckdbTypeQuery, duckdbColumnQuery, schema, table)
}

var _ Adapter = (*DuckDB)(nil)
