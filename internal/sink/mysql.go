package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// execer is the subset of *sql.DB used by MySQLSink.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// MySQLSink exports queue elements as rows of a MySQL table with columns
// (id, queue, payload, created_at).
type MySQLSink struct {
	db     execer
	closer func() error
	insert string
	closed bool
	mu     sync.RWMutex
}

// MySQLSinkConfig holds connection and pool settings for the MySQL sink.
type MySQLSinkConfig struct {
	Host              string
	Port              int
	Database          string
	Username          string
	Password          string
	Table             string
	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
	ConnectionTimeout time.Duration
}

// DSN builds the driver connection string.
func (c MySQLSinkConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Timeout = c.ConnectionTimeout
	return cfg.FormatDSN()
}

// NewMySQLSink opens and pings the database.
func NewMySQLSink(config MySQLSinkConfig) (*MySQLSink, error) {
	if !tableNamePattern.MatchString(config.Table) {
		return nil, fmt.Errorf("invalid table name %q", config.Table)
	}

	db, err := sql.Open("mysql", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	timeout := config.ConnectionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("[MYSQL] Sink ready on %s:%d/%s table %s", config.Host, config.Port, config.Database, config.Table)
	return newMySQLSink(db, db.Close, config.Table), nil
}

func newMySQLSink(db execer, closer func() error, table string) *MySQLSink {
	return &MySQLSink{
		db:     db,
		closer: closer,
		insert: fmt.Sprintf("INSERT INTO `%s` (id, queue, payload, created_at) VALUES (?, ?, ?, ?)", table),
	}
}

// Write inserts one element taken from queue.
func (m *MySQLSink) Write(ctx context.Context, queue string, payload []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrSinkClosed
	}

	id := uuid.NewString()
	if _, err := m.db.ExecContext(ctx, m.insert, id, queue, payload, time.Now().UTC()); err != nil {
		log.Printf("[MYSQL] ERROR: Insert of element %s from %s failed: %v", id, queue, err)
		return fmt.Errorf("failed to insert element: %w", err)
	}
	log.Printf("[MYSQL] Stored element %s from %s (%d bytes)", id, queue, len(payload))
	return nil
}

// Close closes the connection pool.
func (m *MySQLSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.closer == nil {
		return nil
	}
	return m.closer()
}
