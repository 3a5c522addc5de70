package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/lib/pq"

	"github.com/gcbaptista/package-search/config"
	"github.com/gcbaptista/package-search/internal/logger"
	"github.com/gcbaptista/package-search/model"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// OpenPostgres opens a connection pool and verifies it with a ping.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return db, nil
}

// PostgresSource reads packages from a table with the columns
// name, description, tags (text[]), popularity, health, maintenance,
// created, updated, versions (text[]) and is_discontinued.
// Rows are returned oldest first so store insertion order follows creation time.
type PostgresSource struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

// NewPostgresSource creates a source over table. The table name may be schema-qualified.
func NewPostgresSource(db *sql.DB, table string, log *slog.Logger) (*PostgresSource, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle cannot be nil")
	}
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &PostgresSource{db: db, table: table, logger: log.With("component", "postgres-source", "table", table)}, nil
}

func (s *PostgresSource) Name() string {
	return "postgres:" + s.table
}

// Load reads every row of the table.
func (s *PostgresSource) Load(ctx context.Context) ([]model.PackageDocument, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, selectPackagesQuery(s.table))
	if err != nil {
		return nil, fmt.Errorf("querying packages: %w", err)
	}
	defer rows.Close()

	var docs []model.PackageDocument
	for rows.Next() {
		var (
			doc         model.PackageDocument
			description sql.NullString
			created     sql.NullTime
			updated     sql.NullTime
			tags        []string
			versions    []string
		)
		if err := rows.Scan(
			&doc.Name,
			&description,
			pq.Array(&tags),
			&doc.Popularity,
			&doc.Health,
			&doc.Maintenance,
			&created,
			&updated,
			pq.Array(&versions),
			&doc.IsDiscontinued,
		); err != nil {
			return nil, fmt.Errorf("scanning package row: %w", err)
		}
		doc.Description = description.String
		doc.Tags = tags
		doc.Versions = versions
		if created.Valid {
			doc.Created = created.Time
		}
		if updated.Valid {
			doc.Updated = updated.Time
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating package rows: %w", err)
	}

	s.logger.Debug("packages loaded", "count", len(docs), "duration", time.Since(start))
	return docs, nil
}

func selectPackagesQuery(table string) string {
	return fmt.Sprintf(`SELECT name, description, tags,
	COALESCE(popularity, 0), COALESCE(health, 0), COALESCE(maintenance, 0),
	created, updated, versions, COALESCE(is_discontinued, false)
FROM %s
ORDER BY created ASC NULLS LAST, name ASC`, quoteQualified(table))
}

// quoteQualified quotes each part of a possibly schema-qualified identifier.
func quoteQualified(table string) string {
	for i := 0; i < len(table); i++ {
		if table[i] == '.' {
			return pq.QuoteIdentifier(table[:i]) + "." + pq.QuoteIdentifier(table[i+1:])
		}
	}
	return pq.QuoteIdentifier(table)
}
