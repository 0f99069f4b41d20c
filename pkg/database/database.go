package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/pharmapsy/pharmapsy-backend/pkg/config"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

const (
	driverName      = "postgres"
	applicationName = "pharmapsy"

	// New retries while Postgres is still starting
	connectAttempts = 5
	connectBackoff  = time.Second

	healthTimeout = time.Second
)

// DB is the Postgres pool behind the record store. Transactions opened with
// WithTx travel in the context, see Q.
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// New opens the pool described by cfg and applies its limits
func New(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	dsn := cfg.DSN()
	if !strings.Contains(dsn, "application_name=") {
		dsn += " application_name=" + applicationName
	}

	db, err := open(dsn, log, connectAttempts, connectBackoff)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("connected to postgres")
	return db, nil
}

// NewWithDSN connects once, for containers that are already accepting connections
func NewWithDSN(dsn string, log *logger.Logger) (*DB, error) {
	return open(dsn, log, 1, 0)
}

// Wrap adopts an existing sqlx handle, used with sqlmock in tests
func Wrap(db *sqlx.DB, log *logger.Logger) *DB {
	return &DB{DB: db, logger: log}
}

func open(dsn string, log *logger.Logger, attempts int, backoff time.Duration) (*DB, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := sqlx.Connect(driverName, dsn)
		if err == nil {
			return Wrap(db, log), nil
		}
		lastErr = err
		if i < attempts {
			log.Warn().Err(err).Int("attempt", i).Msg("postgres not ready, retrying")
			time.Sleep(time.Duration(i) * backoff)
		}
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempt(s): %w", attempts, lastErr)
}

// Health pings the server and reports pool usage and the last applied migration
func (db *DB) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	stats := db.Stats()
	status := map[string]string{
		"status":           "up",
		"open_connections": strconv.Itoa(stats.OpenConnections),
		"in_use":           strconv.Itoa(stats.InUse),
	}
	if err := db.PingContext(ctx); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
		return status
	}

	var version string
	if err := db.GetContext(ctx, &version, "SELECT COALESCE(MAX(version), '') FROM schema_migrations"); err == nil && version != "" {
		status["schema"] = version
	}
	return status
}

// Transaction runs fn in a transaction, committing when it returns nil and
// rolling back on error or panic
func (db *DB) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			db.rollback(tx)
			panic(p)
		}
		if err != nil {
			db.rollback(tx)
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cerr)
		}
	}()

	return fn(tx)
}

func (db *DB) rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil {
		db.logger.Error().Err(err).Msg("failed to rollback transaction")
	}
}
