package doctemplate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLite defaults
const (
	SQLiteTableName           = "doctemplate_templates"
	SQLiteDefaultBusyTimeout  = 5 * time.Second
	SQLiteDefaultQueryTimeout = 30 * time.Second
	SQLiteMemoryPath          = ":memory:"
)

// ErrMsgEmptySQLitePath is returned when no database path is configured.
const ErrMsgEmptySQLitePath = "sqlite database path is empty"

// SQLiteConfig configures the SQLite storage.
type SQLiteConfig struct {
	// Path is the database file, or ":memory:".
	Path string

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// QueryTimeout bounds every query.
	// Default: 30 seconds
	QueryTimeout time.Duration
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS %[1]s (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		source     TEXT NOT NULL,
		version    INTEGER NOT NULL,
		metadata   TEXT NOT NULL DEFAULT '{}',
		tags       TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		created_by TEXT,
		UNIQUE (name, version)
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_name_version ON %[1]s(name, version DESC);`

var sqliteDialect = sqlDialect{
	schema:      sqliteSchema,
	placeholder: func(int) string { return "?" },
	encodeTime:  func(t time.Time) any { return t.UnixNano() },
}

// SQLiteStorage stores templates in an embedded SQLite database.
type SQLiteStorage struct {
	*sqlStore
	path string
}

// SQLiteStorageDriver opens SQLiteStorage instances.
type SQLiteStorageDriver struct{}

func init() {
	RegisterStorageDriver(StorageDriverNameSQLite, &SQLiteStorageDriver{})
}

// Open creates a SQLiteStorage. The connection string is the database path.
func (d *SQLiteStorageDriver) Open(connectionString string) (TemplateStorage, error) {
	s, err := NewSQLiteStorage(SQLiteConfig{Path: connectionString})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewSQLiteStorage opens the database and creates the schema.
func NewSQLiteStorage(config SQLiteConfig) (*SQLiteStorage, error) {
	if config.Path == "" {
		return nil, &StorageError{Message: ErrMsgEmptySQLitePath}
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = SQLiteDefaultBusyTimeout
	}
	if config.QueryTimeout == 0 {
		config.QueryTimeout = SQLiteDefaultQueryTimeout
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		config.Path, config.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &StorageError{Message: ErrMsgSQLConnectionFailed, Name: config.Path, Cause: err}
	}
	// SQLite allows a single writer; one connection also keeps ":memory:" alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	storage := &SQLiteStorage{
		sqlStore: &sqlStore{
			db:      db,
			table:   SQLiteTableName,
			dialect: sqliteDialect,
			timeout: config.QueryTimeout,
		},
		path: config.Path,
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.QueryTimeout)
	defer cancel()

	if err := storage.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return storage, nil
}

// Path returns the database path.
func (s *SQLiteStorage) Path() string {
	return s.path
}
