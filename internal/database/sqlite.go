package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"ticket-sync-service/internal/config"
	"ticket-sync-service/internal/logger"
)

type Database struct {
	DB     *sqlx.DB
	Config config.StorageConfig
}

// NewDatabase opens the on-device SQLite database. WAL mode keeps reads
// usable while a sync writes. SQLite supports a single writer, so the pool
// is capped at one connection. Foreign keys stay declarative (pragma off):
// a ticket whose trip row is gone must read as absent, not poison writes.
func NewDatabase(cfg config.StorageConfig) (*Database, error) {
	dsn := cfg.Path
	if !strings.Contains(dsn, ":memory:") {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dsn = filepath.Join(cfg.Path, "tickets.db")
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Log.Info("Opened local database", zap.String("path", dsn))

	return &Database{
		DB:     db,
		Config: cfg,
	}, nil
}

func (d *Database) Close() error {
	return d.DB.Close()
}

// ExecTx executes a function within a transaction
func (d *Database) ExecTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %v, rb err: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}
