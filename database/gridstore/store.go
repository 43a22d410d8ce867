package gridstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Options tunes the underlying connection pool.
type Options struct {
	MaxConns    int
	IdleTimeout time.Duration
	MaxLifetime time.Duration
	PingTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxConns <= 0 {
		o.MaxConns = 10
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 5 * time.Minute
	}
	if o.MaxLifetime <= 0 {
		o.MaxLifetime = time.Hour
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 5 * time.Second
	}
	return o
}

// Open connects to PostgreSQL, tunes the pool and verifies the connection.
func Open(connStr string, opts Options) (*sql.DB, error) {
	opts = opts.withDefaults()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxConns)
	db.SetMaxIdleConns(max(opts.MaxConns/2, 1))
	db.SetConnMaxLifetime(opts.MaxLifetime)
	db.SetConnMaxIdleTime(opts.IdleTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), opts.PingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Store runs grid queries against one database.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Count returns the number of rows of table matching where.
func (s *Store) Count(ctx context.Context, table string, where *Where) (int, error) {
	clause, args := where.SQL()
	query := strings.TrimSpace(fmt.Sprintf("SELECT COUNT(*) FROM %s %s", QuoteTable(table), clause))
	zap.S().Debugw("Count", "query", query, "args", len(args))

	var total int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}

// Select runs q and returns each row keyed by column alias.
func (s *Store) Select(ctx context.Context, q SelectQuery) ([]map[string]interface{}, error) {
	query, args := q.SQL()
	zap.S().Debugw("Select", "query", query, "args", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Table, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// Distinct returns the distinct non-null text values of column among rows
// matching where, sorted, at most limit of them (0 means no limit).
func (s *Store) Distinct(ctx context.Context, table, column string, where *Where, limit int) ([]string, error) {
	w := where.Clone()
	w.NotNull(column)
	clause, args := w.SQL()

	query := fmt.Sprintf("SELECT DISTINCT %s::text FROM %s %s ORDER BY 1",
		pqIdent(column), QuoteTable(table), clause)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	zap.S().Debugw("Distinct", "query", query, "args", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("distinct %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		pointers := make([]interface{}, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
