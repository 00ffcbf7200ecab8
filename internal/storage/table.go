package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// table describes how one entity type maps onto a SQLite table. Columns
// holds every writable column; the id column is implicit and always first in
// SELECT lists. Immutable columns are written on insert only.
type table[T any] struct {
	name      string
	columns   []string
	immutable map[string]bool
	values    func(v T) []any
	scan      func(r rowScanner) (T, error)
}

func (t table[T]) selectList(alias string) string {
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}
	cols := make([]string, 0, len(t.columns)+1)
	cols = append(cols, prefix+"id")
	for _, c := range t.columns {
		cols = append(cols, prefix+c)
	}
	return strings.Join(cols, ", ")
}

func (t table[T]) insert(q querier, v T) (int64, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(t.columns, ", "), placeholders)
	res, err := q.ExecContext(context.Background(), query, t.values(v)...)
	if err != nil {
		return 0, fmt.Errorf("inserting into %s: %w", t.name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading %s id: %w", t.name, err)
	}
	return id, nil
}

// update replaces the mutable columns of row id. Returns ErrNotFound when no
// row matched.
func (t table[T]) update(q querier, id int64, v T) error {
	values := t.values(v)
	sets := make([]string, 0, len(t.columns))
	args := make([]any, 0, len(t.columns)+1)
	for i, c := range t.columns {
		if t.immutable[c] {
			continue
		}
		sets = append(sets, c+" = ?")
		args = append(args, values[i])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", t.name, strings.Join(sets, ", "))
	res, err := q.ExecContext(context.Background(), query, args...)
	if err != nil {
		return fmt.Errorf("updating %s %d: %w", t.name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", t.name, id, ErrNotFound)
	}
	return nil
}

// delete removes row id and reports whether a row existed.
func (t table[T]) delete(q querier, id int64) (bool, error) {
	res, err := q.ExecContext(context.Background(), "DELETE FROM "+t.name+" WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("deleting %s %d: %w", t.name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t table[T]) exists(q querier, id int64) (bool, error) {
	var n int
	err := q.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+t.name+" WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// get returns row id. The boolean is false when no such row exists.
func (t table[T]) get(q querier, id int64) (T, bool, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", t.selectList(""), t.name)
	v, err := t.scan(q.QueryRowContext(context.Background(), query, id))
	if err == sql.ErrNoRows {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		var zero T
		return zero, false, fmt.Errorf("reading %s %d: %w", t.name, id, err)
	}
	return v, true, nil
}

// list runs a SELECT over the table with an optional WHERE clause and a
// mandatory ORDER BY clause.
func (t table[T]) list(q querier, where, orderBy string, args ...any) ([]T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", t.selectList(""), t.name)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + orderBy
	return collect(q, t.scan, query, args...)
}

func collect[T any](q querier, scan func(rowScanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}
