package sqlite

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/coaching-scheduler/internal/persistence"
	"github.com/example/coaching-scheduler/internal/persistence/sqlite/migration"
)

// timeLayout is fixed width so that stored instants sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Storage is the SQLite-backed scheduling store.
type Storage struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper *ErrorMapper
	logger *slog.Logger
	now    func() time.Time
}

var _ persistence.SchedulingRecordRepository = (*Storage)(nil)

// Option configures Storage.
type Option func(*Storage)

// WithLogger sets the logger used for migrations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRetryConfig overrides the busy-retry policy.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(s *Storage) {
		s.retry = NewRetryHelper(cfg)
	}
}

// Open opens (creating if necessary) the database at path with the default
// configuration. Use migration.MemoryPath for a private in-memory database.
func Open(path string, opts ...Option) (*Storage, error) {
	cfg := migration.DefaultSQLiteConfig(path)
	if path == migration.MemoryPath {
		cfg = migration.InMemorySQLiteConfig()
	}
	return OpenWithConfig(cfg, opts...)
}

// OpenWithConfig opens storage with an explicit connection configuration.
func OpenWithConfig(cfg migration.SQLiteConfig, opts ...Option) (*Storage, error) {
	pool, err := NewConnectionPool(cfg)
	if err != nil {
		return nil, err
	}
	s := &Storage{
		pool:   pool,
		retry:  NewRetryHelper(DefaultRetryConfig()),
		mapper: NewErrorMapper(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(migration.Embedded(), migration.NewSQLiteExecutor(s.pool.DB()), s.logger)
	return manager.Run(ctx)
}

// Ping reports whether the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(timeLayout, value)
}
