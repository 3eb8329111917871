package gantry

import (
	"context"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// reconnectInterval throttles connection attempts while the store is down.
const reconnectInterval = 30 * time.Second

// Database provides access to the process-wide PostgreSQL handle. The handle
// is created on first use and reused thereafter. Unavailability is an
// explicit branch, not a fault: callers must handle the false return.
type Database interface {
	// Handle returns the live connection, or (nil, false) while the store
	// is unreachable.
	Handle() (*sqlx.DB, bool)

	// Ping verifies connectivity for health checks.
	Ping(ctx context.Context) error

	// Driver returns the database driver name.
	Driver() string
}

// gDatabase implements the Database interface for PostgreSQL via sqlx.
type gDatabase struct {
	dsn string
	log Logger

	mu          sync.Mutex
	db          *sqlx.DB
	lastAttempt time.Time
}

// NewDatabase creates a lazily-connecting PostgreSQL database handle.
func NewDatabase(c Config) Database {
	return &gDatabase{dsn: c.DSN(), log: Log()}
}

// Handle returns the connection, dialing on first use. A failed dial leaves
// the system in degraded mode; the next attempt happens after
// reconnectInterval.
func (d *gDatabase) Handle() (*sqlx.DB, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		return d.db, true
	}
	if time.Since(d.lastAttempt) < reconnectInterval {
		return nil, false
	}
	d.lastAttempt = time.Now()

	cx, err := sqlx.Connect("postgres", d.dsn)
	if err != nil {
		d.log.Warn("Database unreachable, continuing in degraded mode", zap.Error(err))
		return nil, false
	}

	d.log.Info("Database connection established")
	d.db = cx
	return d.db, true
}

// Ping verifies the connection is alive.
func (d *gDatabase) Ping(ctx context.Context) error {
	db, ok := d.Handle()
	if !ok {
		return NewError(KindServiceUnavailable, WithMessage("database is unreachable"))
	}
	if err := db.PingContext(ctx); err != nil {
		return NewError(KindDatabase, WithCause(err))
	}
	return nil
}

// Driver returns the database driver name.
func (d *gDatabase) Driver() string {
	return "postgres"
}
