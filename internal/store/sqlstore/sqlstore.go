// Package sqlstore implements the store contracts on a relational database.
// PostgreSQL is reached through pgx's database/sql driver and MySQL through
// go-sql-driver; statements are built with squirrel so one code path serves
// both placeholder styles.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"utilisoft/backend/internal/store"
)

type Dialect string

const (
	Postgres Dialect = "pgx"
	MySQL    Dialect = "mysql"
)

func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "pgx", "postgres", "postgresql":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// runner is satisfied by both *sql.DB and *sql.Tx.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
	now     func() time.Time
}

func New(ctx context.Context, driver string, dsn string) (*Store, error) {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	if dialect == MySQL {
		if dsn, err = normalizeMySQLDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return NewWithDB(db, dialect), nil
}

// NewWithDB wraps an already opened handle.
func NewWithDB(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		sb:      builderFor(dialect),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func builderFor(dialect Dialect) sq.StatementBuilderType {
	if dialect == MySQL {
		return sq.StatementBuilder.PlaceholderFormat(sq.Question)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// normalizeMySQLDSN forces parseTime so DATETIME columns scan into
// time.Time, and pins the session to UTC.
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func (s *Store) exec(ctx context.Context, r runner, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return r.ExecContext(ctx, query, args...)
}

func (s *Store) query(ctx context.Context, r runner, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return r.QueryContext(ctx, query, args...)
}

func (s *Store) queryRow(ctx context.Context, r runner, b sq.Sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return r.QueryRowContext(ctx, query, args...), nil
}

// insertReturningID runs an INSERT and returns the generated key. Postgres
// reports it through RETURNING; MySQL through LastInsertId.
func (s *Store) insertReturningID(ctx context.Context, r runner, b sq.InsertBuilder, idColumn string) (int64, error) {
	if s.dialect == Postgres {
		row, err := s.queryRow(ctx, r, b.Suffix("RETURNING "+idColumn))
		if err != nil {
			return 0, err
		}
		var id int64
		if err := row.Scan(&id); err != nil {
			return 0, mapWriteError(err)
		}
		return id, nil
	}

	res, err := s.exec(ctx, r, b)
	if err != nil {
		return 0, mapWriteError(err)
	}
	return res.LastInsertId()
}

func (s *Store) deleteByID(ctx context.Context, table string, column string, id int64) error {
	res, err := s.exec(ctx, s.db, s.sb.Delete(table).Where(sq.Eq{column: id}))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// likePattern lower-cases text and escapes LIKE wildcards so user input is
// matched literally as a substring.
func likePattern(text string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(text))
	return "%" + escaped + "%"
}

func containsAny(pattern string, columns ...string) sq.Or {
	or := make(sq.Or, 0, len(columns))
	for _, col := range columns {
		or = append(or, sq.Like{"LOWER(" + col + ")": pattern})
	}
	return or
}

func mapWriteError(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}
