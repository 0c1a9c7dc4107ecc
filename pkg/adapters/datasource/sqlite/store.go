// Package sqlite is the embedded analytic store: uploaded tables, their schema
// registry and the catalogue working tables all live in one SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ekaya-inc/ekaya-spend/migrations"
	"github.com/ekaya-inc/ekaya-spend/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-spend/pkg/database"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// Store owns the single *sql.DB of the process.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

var (
	_ datasource.SchemaProvider = (*Store)(nil)
	_ datasource.QueryExecutor  = (*Store)(nil)
	_ datasource.TableStore     = (*Store)(nil)
)

// Open opens (or creates) the store at path and applies migrations.
// An empty path is a private in-memory database that lives as long as the Store.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := ":memory:"
	if path != "" {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection serializes statements and keeps an in-memory
	// database alive for the lifetime of the pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, path: path, logger: logger.Named("store")}
	if err := database.RunMigrations(db, migrations.FS, s.logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.logger.Info("Embedded store ready", zap.String("path", s.Path()))
	return s, nil
}

// DB returns the underlying handle for repositories.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file, or ":memory:".
func (s *Store) Path() string {
	if s.path == "" {
		return ":memory:"
	}
	return s.path
}

// TestConnection verifies the store is reachable.
func (s *Store) TestConnection(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
