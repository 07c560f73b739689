// Package relational keeps memory snapshots and recovery sessions in DuckDB.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb" // Register DuckDB driver
)

const (
	memoryDSN       = ":memory:"
	defaultMaxConns = 4
)

// StoreConfig tunes the embedded engine. Zero values keep DuckDB's defaults.
type StoreConfig struct {
	Threads       int
	MemoryLimitGB int
	MaxConns      int
	OpenTimeout   time.Duration
}

// Option configures a Store.
type Option func(*StoreConfig)

func WithThreads(n int) Option {
	return func(c *StoreConfig) {
		c.Threads = n
	}
}

// WithMemoryLimit caps DuckDB's own buffer memory.
func WithMemoryLimit(gb int) Option {
	return func(c *StoreConfig) {
		c.MemoryLimitGB = gb
	}
}

// WithMaxConns sets the connection pool size. The recovery engine may shrink
// it under pressure.
func WithMaxConns(n int) Option {
	return func(c *StoreConfig) {
		c.MaxConns = n
	}
}

func WithOpenTimeout(d time.Duration) Option {
	return func(c *StoreConfig) {
		c.OpenTimeout = d
	}
}

// Store owns the DuckDB handle behind the history repository.
type Store struct {
	db   *sql.DB
	path string
	cfg  StoreConfig
}

// Open opens the database at path. An empty path or ":memory:" opens an
// in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := StoreConfig{MaxConns: defaultMaxConns}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if path == "" {
		path = memoryDSN
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = defaultMaxConns
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	ctx := context.Background()
	if cfg.OpenTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.OpenTimeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)
	db.SetConnMaxLifetime(0)

	if err := applySettings(ctx, db, cfg); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, cfg: cfg}, nil
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory(opts ...Option) (*Store, error) {
	return Open(memoryDSN, opts...)
}

func applySettings(ctx context.Context, db *sql.DB, cfg StoreConfig) error {
	if cfg.Threads > 0 {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET threads = %d", cfg.Threads)); err != nil {
			return fmt.Errorf("setting threads: %w", err)
		}
	}
	if cfg.MemoryLimitGB > 0 {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET memory_limit = '%dGB'", cfg.MemoryLimitGB)); err != nil {
			return fmt.Errorf("setting memory limit: %w", err)
		}
	}
	return nil
}

// DB returns the pool. It is also the handle registered for pool reduction.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) InMemory() bool {
	return s.path == memoryDSN
}

// Repo returns a repository scoped to agentID.
func (s *Store) Repo(agentID string) *Repo {
	return NewRepo(s.db, agentID)
}

// Checkpoint flushes the write-ahead log into the database file.
func (s *Store) Checkpoint(ctx context.Context) error {
	if s.InMemory() {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint %s: %w", s.path, err)
	}
	return nil
}

// Close checkpoints file databases and releases the pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	cpErr := s.Checkpoint(context.Background())
	if err := s.db.Close(); err != nil {
		return err
	}
	return cpErr
}
