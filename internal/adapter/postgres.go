package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

const (
	postgresTypeQuery = `
		SELECT table_type
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_name = $2`

	postgresColumnQuery = `
		SELECT column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`
)

// Postgres introspects relations over a PostgreSQL connection.
type Postgres struct {
	sqlAdapter
}

// NewPostgres creates a postgres adapter. A nil logger discards output.
func NewPostgres(logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Postgres{sqlAdapter{log: logger}}
}

func (a *Postgres) Name() string { return "postgres" }

// Connect opens and pings a PostgreSQL connection.
func (a *Postgres) Connect(ctx context.Context, cfg Config) error {
	db, err := sql.Open("pgx", buildPostgresDSN(cfg))
	if err != nil {
		return fmt.Errorf("open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}

	a.db = db
	a.cfg = cfg
	return nil
}

// Relation looks up a relation in information_schema. The configured
// schema is used when schema is empty, falling back to "public".
func (a *Postgres) Relation(ctx context.Context, schema, table string) (*Relation, error) {
	if schema == "" {
		schema = a.cfg.Schema
	}
	if schema == "" {
		schema = "public"
	}
	return a.relation(ctx, postgresTypeQuery, postgresColumnQuery, schema, table)
}

// buildPostgresDSN constructs a key=value connection string.
func buildPostgresDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}

	return dsn
}

var _ Adapter = (*Postgres)(nil)
