// ABOUTME: SQLite storage engine on modernc.org/sqlite or mattn/go-sqlite3
// ABOUTME: Serializes mutations, notifies table observers after each commit

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/2389/inventory/internal/live"
)

// Supported database/sql driver names.
const (
	// DriverSQLite is the pure Go driver (modernc.org/sqlite).
	DriverSQLite = "sqlite"
	// DriverSQLite3 is the cgo driver (github.com/mattn/go-sqlite3).
	DriverSQLite3 = "sqlite3"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const defaultBusyTimeout = 5 * time.Second

// Options configures Open.
type Options struct {
	Driver      string // DriverSQLite (default) or DriverSQLite3
	Path        string // file path or MemoryPath
	Tables      []Table
	BusyTimeout time.Duration
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Driver == "" {
		o.Driver = DriverSQLite
	}
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = defaultBusyTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o Options) validate() error {
	switch o.Driver {
	case DriverSQLite, DriverSQLite3:
	default:
		return fmt.Errorf("unsupported sqlite driver %q", o.Driver)
	}
	if o.Path == "" {
		return fmt.Errorf("database path is required")
	}
	for _, t := range o.Tables {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// dsn builds the connection string. Both drivers strip the query from a
// non "file:" name and apply the parameters themselves, each in its own syntax.
func (o Options) dsn() string {
	ms := o.BusyTimeout.Milliseconds()
	memory := o.Path == MemoryPath

	switch o.Driver {
	case DriverSQLite3:
		if memory {
			return fmt.Sprintf("%s?_busy_timeout=%d", o.Path, ms)
		}
		return fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=%d", o.Path, ms)
	default:
		if memory {
			return fmt.Sprintf("%s?_pragma=busy_timeout(%d)", o.Path, ms)
		}
		return fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(%d)", o.Path, ms)
	}
}

// key identifies the backing location for OpenShared.
func (o Options) key() (string, error) {
	if o.Path == MemoryPath {
		return o.Driver + "|" + MemoryPath, nil
	}
	abs, err := filepath.Abs(o.Path)
	if err != nil {
		return "", fmt.Errorf("resolving database path: %w", err)
	}
	return o.Driver + "|" + abs, nil
}

// Querier is the read side of *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MutationFunc performs writes inside a transaction and reports how many rows
// it changed.
type MutationFunc func(ctx context.Context, tx *sql.Tx) (rows int64, err error)

// Engine is a SQLite database holding the tables it was opened with.
//
// Mutations are serialized by a single write lock. Observers registered with
// Watch are notified after every commit that changed rows, while the write
// lock is still held, so they see changes one commit at a time and in commit
// order.
type Engine struct {
	db      *sql.DB
	driver  string
	path    string
	hub     *live.Hub
	logger  *slog.Logger
	writeMu sync.RWMutex // writers Lock; Watch registration RLock

	mu     sync.Mutex
	tables map[string]Table
	refs   int
	closed bool
	key    string // set when the engine is in the shared registry
}

// Open creates a new engine at the given path. Parent directories are created
// if needed and the schema is created if it doesn't exist.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger.With("component", "store")

	if opts.Path != MemoryPath {
		dir := filepath.Dir(opts.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, Unavailable("creating database directory", err)
		}
	}

	db, err := sql.Open(opts.Driver, opts.dsn())
	if err != nil {
		return nil, Unavailable("opening database", err)
	}

	// Every connection to :memory: is a separate database
	if opts.Path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, Unavailable("opening database", err)
	}

	e := &Engine{
		db:     db,
		driver: opts.Driver,
		path:   opts.Path,
		hub:    live.NewHub(logger),
		logger: logger,
		tables: make(map[string]Table),
		refs:   1,
	}

	if err := e.ensureTables(ctx, opts.Tables); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite store initialized", "path", opts.Path, "driver", opts.Driver)
	return e, nil
}

var (
	registryMu sync.Mutex
	registry   = make(map[string]*Engine)
)

// OpenShared returns the engine already open for the same driver and path, or
// opens one. Each successful call must be paired with a Close; the database is
// closed when the last reference is released.
func OpenShared(ctx context.Context, opts Options) (*Engine, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	key, err := opts.key()
	if err != nil {
		return nil, err
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if e, ok := registry[key]; ok {
		if err := e.ensureTables(ctx, opts.Tables); err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.refs++
		e.mu.Unlock()
		return e, nil
	}

	e, err := Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	e.key = key
	registry[key] = e
	return e, nil
}

// ensureTables creates missing tables and records their definitions.
func (e *Engine) ensureTables(ctx context.Context, tables []Table) error {
	e.mu.Lock()
	var missing []Table
	for _, t := range tables {
		if _, ok := e.tables[t.Name]; !ok {
			missing = append(missing, t)
		}
	}
	e.mu.Unlock()

	if len(missing) == 0 {
		return nil
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return Unavailable("creating schema", err)
	}
	defer tx.Rollback()

	for _, t := range missing {
		for _, stmt := range t.CreateSQL() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return Unavailable(fmt.Sprintf("creating table %s", t.Name), err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return Unavailable("creating schema", err)
	}

	e.mu.Lock()
	for _, t := range missing {
		e.tables[t.Name] = t
	}
	e.mu.Unlock()
	return nil
}

// Driver returns the database/sql driver name.
func (e *Engine) Driver() string {
	return e.driver
}

// Path returns the database location.
func (e *Engine) Path() string {
	return e.path
}

// Table returns the definition of a table the engine was opened with.
func (e *Engine) Table(name string) (Table, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[name]
	return t, ok
}

func (e *Engine) checkTable(name string) error {
	if _, ok := e.Table(name); !ok {
		return fmt.Errorf("unknown table %q", name)
	}
	return nil
}

func (e *Engine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

// Mutate runs fn in a transaction under the write lock. Any error rolls the
// transaction back, leaving the table exactly as before. When the commit
// changed rows, observers of table are notified before Mutate returns.
func (e *Engine) Mutate(ctx context.Context, table string, fn MutationFunc) (int64, error) {
	if err := e.checkTable(table); err != nil {
		return 0, err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if err := e.checkOpen(); err != nil {
		return 0, err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, Unavailable("beginning transaction", err)
	}
	defer tx.Rollback()

	rows, err := fn(ctx, tx)
	if err != nil {
		return 0, Unavailable("mutating "+table, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, Unavailable("committing transaction", err)
	}

	if rows > 0 {
		change := e.hub.Notify(table, rows)
		e.logger.Debug("committed mutation", "table", table, "rows", rows, "seq", change.Seq)
	}
	return rows, nil
}

// Read runs fn against the database. Reads never observe a transaction that
// has not committed.
func (e *Engine) Read(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := fn(ctx, e.db); err != nil {
		return Unavailable("reading", err)
	}
	return nil
}

// Watch registers fn as an observer of committed changes to table and returns
// a function that removes it. init runs before registration while commits are
// held off, so no commit falls between what init reads and the first call to
// fn. If init fails nothing is registered.
func (e *Engine) Watch(table string, init func() error, fn live.Observer) (stop func(), err error) {
	if err := e.checkTable(table); err != nil {
		return nil, err
	}

	e.writeMu.RLock()
	defer e.writeMu.RUnlock()

	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if init != nil {
		if err := init(); err != nil {
			return nil, err
		}
	}

	id := e.hub.Watch(table, fn)
	return func() { e.hub.Unwatch(table, id) }, nil
}

// Observers returns the number of observers watching table.
func (e *Engine) Observers(table string) int {
	return e.hub.Count(table)
}

// Close releases one reference. The last reference waits for in-flight
// mutations, fails every live observer with ErrClosed, and closes the database.
func (e *Engine) Close() error {
	if e.key != "" {
		registryMu.Lock()
		defer registryMu.Unlock()
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.refs--
	if e.refs > 0 {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	tables := make([]string, 0, len(e.tables))
	for name := range e.tables {
		tables = append(tables, name)
	}
	e.mu.Unlock()

	if e.key != "" {
		delete(registry, e.key)
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	// Observers re-read on notification and see ErrClosed
	for _, name := range tables {
		e.hub.Notify(name, 0)
	}
	e.hub.Close()

	e.logger.Info("closing SQLite store", "path", e.path)
	return e.db.Close()
}
