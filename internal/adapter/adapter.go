// Package adapter introspects warehouse relations through database/sql
// drivers so a live catalog can stand in for a missing catalog.json.
package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrNotFound is returned when a relation does not exist in the warehouse.
var ErrNotFound = errors.New("relation not found")

// Config holds warehouse connection settings.
type Config struct {
	// Type selects the adapter: "duckdb" or "postgres".
	Type string

	// Path is the database file for file-based warehouses. Use
	// ":memory:" for an in-memory duckdb database.
	Path string

	Host     string
	Port     int
	Database string
	Username string
	Password string

	// Schema is the default schema for relations that do not carry one.
	Schema string

	// Options contains additional driver-specific settings, such as
	// sslmode for postgres.
	Options map[string]string
}

// Column is one column of a warehouse relation.
type Column struct {
	Name     string
	Type     string
	Nullable bool

	// Position is the 1-based ordinal position within the relation.
	Position int
}

// Relation is a table or view observed in the warehouse. Type carries
// the information_schema table_type, for example "BASE TABLE" or "VIEW".
type Relation struct {
	Type    string
	Columns []Column
}

// Adapter is a warehouse connection capable of relation introspection.
type Adapter interface {
	Connect(ctx context.Context, cfg Config) error
	Close() error

	// Relation introspects one relation. It returns an error wrapping
	// ErrNotFound when the relation does not exist.
	Relation(ctx context.Context, schema, table string) (*Relation, error)

	// Name returns the adapter type, e.g. "duckdb".
	Name() string
}

// Open returns the adapter matching cfg.Type. No connection is
// established until Connect is called.
func Open(cfg Config, logger *slog.Logger) (Adapter, error) {
	switch strings.ToLower(cfg.Type) {
	case "duckdb":
		return NewDuckDB(logger), nil
	case "postgres", "postgresql":
		return NewPostgres(logger), nil
	default:
		return nil, fmt.Errorf("unsupported adapter type %q (supported: duckdb, postgres)", cfg.Type)
	}
}

// sqlAdapter carries the shared state of database/sql backed adapters.
type sqlAdapter struct {
	db  *sql.DB
	cfg Config
	log *slog.Logger
}

func (a *sqlAdapter) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// relation runs the adapter's introspection queries. typeQuery and
// columnQuery use the driver's placeholder style and take the schema
// and table name as their two arguments.
func (a *sqlAdapter) relation(ctx context.Context, typeQuery, columnQuery, schema, table string) (*Relation, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	rel := &Relation{}
	err := a.db.QueryRowContext(ctx, typeQuery, schema, table).Scan(&rel.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("relation %s.%s: %w", schema, table, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query relation type: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, columnQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.Nullable = nullable == "YES"
		rel.Columns = append(rel.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	a.log.Debug("introspected relation",
		"schema", schema, "table", table, "columns", len(rel.Columns))
	return rel, nil
}
