package doctemplate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// SQL storage error messages
const (
	ErrMsgSQLConnectionFailed  = "database connection failed"
	ErrMsgSQLMigrationFailed   = "database migration failed"
	ErrMsgSQLQueryFailed       = "database query failed"
	ErrMsgSQLTransactionFailed = "database transaction failed"
	ErrMsgSQLScanFailed        = "scanning template row failed"
	ErrMsgEmptyConnString      = "connection string is empty"
)

// sqlDialect holds what differs between the SQL backends.
type sqlDialect struct {
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string
	// schema is the DDL; %[1]s is the table name.
	schema string
	// encodeTime converts a timestamp for insertion.
	encodeTime func(time.Time) any
}

// sqlStore implements TemplateStorage over database/sql.
type sqlStore struct {
	db      *sql.DB
	table   string
	dialect sqlDialect
	timeout time.Duration
	mu      sync.RWMutex
	closed  bool
}

const sqlColumns = "id, name, source, version, metadata, tags, created_at, updated_at, created_by"

func (s *sqlStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(s.dialect.schema, s.table)); err != nil {
		return &StorageError{Message: ErrMsgSQLMigrationFailed, Cause: err}
	}
	return nil
}

func (s *sqlStore) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if s.closed {
		return nil, nil, NewStorageClosedError()
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return ctx, cancel, nil
}

func (s *sqlStore) Get(ctx context.Context, name string) (*StoredTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE name = %s ORDER BY version DESC LIMIT 1`,
		sqlColumns, s.table, s.dialect.placeholder(1))
	tmpl, err := scanStoredTemplate(s.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewTemplateNotFoundError(name)
	}
	if err != nil {
		return nil, &StorageError{Message: ErrMsgSQLQueryFailed, Name: name, Cause: err}
	}
	return tmpl, nil
}

func (s *sqlStore) GetVersion(ctx context.Context, name string, version int) (*StoredTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE name = %s AND version = %s`,
		sqlColumns, s.table, s.dialect.placeholder(1), s.dialect.placeholder(2))
	tmpl, err := scanStoredTemplate(s.db.QueryRowContext(ctx, query, name, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewVersionNotFoundError(name, version)
	}
	if err != nil {
		return nil, &StorageError{Message: ErrMsgSQLQueryFailed, Name: name, Version: version, Cause: err}
	}
	return tmpl, nil
}

func (s *sqlStore) Save(ctx context.Context, tmpl *StoredTemplate) error {
	if err := validateTemplateName(tmpl.Name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	metadataJSON, err := json.Marshal(tmpl.Metadata)
	if err != nil {
		return newStorageOpError(tmpl.Name, err)
	}
	tagsJSON, err := json.Marshal(tmpl.Tags)
	if err != nil {
		return newStorageOpError(tmpl.Name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Message: ErrMsgSQLTransactionFailed, Name: tmpl.Name, Cause: err}
	}
	defer func() { _ = tx.Rollback() }()

	var maxVersion sql.NullInt64
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT MAX(version) FROM %s WHERE name = %s`, s.table, s.dialect.placeholder(1)),
		tmpl.Name).Scan(&maxVersion)
	if err != nil {
		return &StorageError{Message: ErrMsgSQLQueryFailed, Name: tmpl.Name, Cause: err}
	}

	draft := *tmpl
	stored := stampNewVersion(&draft, int(maxVersion.Int64)+1, time.Now().UTC())

	placeholders := make([]string, 9)
	for i := range placeholders {
		placeholders[i] = s.dialect.placeholder(i + 1)
	}
	insert := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		s.table, sqlColumns, strings.Join(placeholders, ", "))
	_, err = tx.ExecContext(ctx, insert,
		stored.ID, stored.Name, stored.Source, stored.Version,
		string(metadataJSON), string(tagsJSON),
		s.dialect.encodeTime(stored.CreatedAt), s.dialect.encodeTime(stored.UpdatedAt),
		nullString(stored.CreatedBy))
	if err != nil {
		return &StorageError{Message: ErrMsgSQLQueryFailed, Name: tmpl.Name, Cause: err}
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Message: ErrMsgSQLTransactionFailed, Name: tmpl.Name, Cause: err}
	}

	tmpl.ID, tmpl.Version = stored.ID, stored.Version
	tmpl.CreatedAt, tmpl.UpdatedAt = stored.CreatedAt, stored.UpdatedAt
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE name = %s`, s.table, s.dialect.placeholder(1)), name)
	if err != nil {
		return &StorageError{Message: ErrMsgSQLQueryFailed, Name: name, Cause: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NewTemplateNotFoundError(name)
	}
	return nil
}

// List filters by name prefix in SQL and by tags in Go, then pages the result.
func (s *sqlStore) List(ctx context.Context, query *TemplateQuery) ([]*StoredTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	if query == nil {
		query = &TemplateQuery{}
	}

	var conditions []string
	var args []any
	if query.NamePrefix != "" {
		args = append(args, query.NamePrefix+"%")
		conditions = append(conditions, "t.name LIKE "+s.dialect.placeholder(len(args)))
	}
	if !query.IncludeAllVersions {
		conditions = append(conditions,
			fmt.Sprintf("t.version = (SELECT MAX(v.version) FROM %s v WHERE v.name = t.name)", s.table))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s t %s ORDER BY t.name ASC, t.version DESC`,
			qualifiedColumns("t"), s.table, where), args...)
	if err != nil {
		return nil, &StorageError{Message: ErrMsgSQLQueryFailed, Cause: err}
	}
	defer rows.Close()

	var results []*StoredTemplate
	for rows.Next() {
		tmpl, err := scanStoredTemplate(rows)
		if err != nil {
			return nil, &StorageError{Message: ErrMsgSQLScanFailed, Cause: err}
		}
		if matchesTemplateQuery(tmpl, query) {
			results = append(results, tmpl)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Message: ErrMsgSQLQueryFailed, Cause: err}
	}
	return pageResults(results, query), nil
}

func (s *sqlStore) Exists(ctx context.Context, name string) (bool, error) {
	versions, err := s.ListVersions(ctx, name)
	return len(versions) > 0, err
}

func (s *sqlStore) ListVersions(ctx context.Context, name string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT version FROM %s WHERE name = %s ORDER BY version DESC`, s.table, s.dialect.placeholder(1)),
		name)
	if err != nil {
		return nil, &StorageError{Message: ErrMsgSQLQueryFailed, Name: name, Cause: err}
	}
	defer rows.Close()

	versions := []int{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, &StorageError{Message: ErrMsgSQLScanFailed, Name: name, Cause: err}
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *sqlStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func qualifiedColumns(alias string) string {
	cols := strings.Split(sqlColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStoredTemplate(row rowScanner) (*StoredTemplate, error) {
	var (
		tmpl         StoredTemplate
		metadataJSON []byte
		tagsJSON     []byte
		createdAt    sqlTime
		updatedAt    sqlTime
		createdBy    sql.NullString
	)
	err := row.Scan(&tmpl.ID, &tmpl.Name, &tmpl.Source, &tmpl.Version,
		&metadataJSON, &tagsJSON, &createdAt, &updatedAt, &createdBy)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 && string(metadataJSON) != "null" {
		if err := json.Unmarshal(metadataJSON, &tmpl.Metadata); err != nil {
			return nil, fmt.Errorf("metadata: %w", err)
		}
	}
	if len(tagsJSON) > 0 && string(tagsJSON) != "null" {
		if err := json.Unmarshal(tagsJSON, &tmpl.Tags); err != nil {
			return nil, fmt.Errorf("tags: %w", err)
		}
	}
	tmpl.CreatedAt = createdAt.Time
	tmpl.UpdatedAt = updatedAt.Time
	tmpl.CreatedBy = createdBy.String
	return &tmpl, nil
}

// sqlTime scans timestamps stored natively or as unix nanoseconds.
type sqlTime struct {
	time.Time
}

// Scan implements sql.Scanner.
func (t *sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
	case time.Time:
		t.Time = v
	case int64:
		t.Time = time.Unix(0, v).UTC()
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
	return nil
}

func (t *sqlTime) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// nullString converts an empty string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
