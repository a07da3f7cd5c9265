// Package dbtest provides an in-memory db.Database for repository tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sync"

	"interviewoj/internal/common/db"
)

// Call records one statement sent to the fake.
type Call struct {
	Query string
	Args  []interface{}
}

// FakeDB answers queries through caller-supplied hooks.
// A nil hook, or a hook returning no rows, behaves like an empty result set.
type FakeDB struct {
	DialectName db.Dialect
	OnQuery     func(query string, args []interface{}) ([][]interface{}, error)
	OnExec      func(query string, args []interface{}) (int64, error)

	mu        sync.Mutex
	queries   []Call
	execs     []Call
	commits   int
	rollbacks int
}

var _ db.Database = (*FakeDB)(nil)

func (f *FakeDB) Queries() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.queries...)
}

func (f *FakeDB) Execs() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.execs...)
}

func (f *FakeDB) Commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commits
}

func (f *FakeDB) Rollbacks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rollbacks
}

func (f *FakeDB) Query(_ context.Context, query string, args ...interface{}) (db.Rows, error) {
	f.mu.Lock()
	f.queries = append(f.queries, Call{Query: query, Args: args})
	hook := f.OnQuery
	f.mu.Unlock()
	if hook == nil {
		return &rows{}, nil
	}
	data, err := hook(query, args)
	if err != nil {
		return nil, err
	}
	return &rows{data: data, pos: -1}, nil
}

func (f *FakeDB) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	r, err := f.Query(ctx, query, args...)
	if err != nil {
		return row{err: err}
	}
	rs := r.(*rows)
	if len(rs.data) == 0 {
		return row{err: sql.ErrNoRows}
	}
	return row{values: rs.data[0]}
}

func (f *FakeDB) Exec(_ context.Context, query string, args ...interface{}) (db.Result, error) {
	f.mu.Lock()
	f.execs = append(f.execs, Call{Query: query, Args: args})
	hook := f.OnExec
	f.mu.Unlock()
	if hook == nil {
		return result(1), nil
	}
	n, err := hook(query, args)
	if err != nil {
		return nil, err
	}
	return result(n), nil
}

func (f *FakeDB) Transaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	if err := fn(&tx{db: f}); err != nil {
		f.mu.Lock()
		f.rollbacks++
		f.mu.Unlock()
		return err
	}
	f.mu.Lock()
	f.commits++
	f.mu.Unlock()
	return nil
}

func (f *FakeDB) Dialect() db.Dialect {
	if f.DialectName == "" {
		return db.DialectMySQL
	}
	return f.DialectName
}

func (f *FakeDB) Ping(context.Context) error { return nil }
func (f *FakeDB) Close() error               { return nil }
func (f *FakeDB) Stats() db.Stats            { return db.Stats{} }

type tx struct {
	db *FakeDB
}

func (t *tx) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	return t.db.Query(ctx, query, args...)
}

func (t *tx) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	return t.db.QueryRow(ctx, query, args...)
}

func (t *tx) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	return t.db.Exec(ctx, query, args...)
}

func (t *tx) Commit() error   { return nil }
func (t *tx) Rollback() error { return nil }

type result int64

func (r result) LastInsertId() (int64, error) { return 0, nil }
func (r result) RowsAffected() (int64, error) { return int64(r), nil }

type rows struct {
	data [][]interface{}
	pos  int
}

func (r *rows) Next() bool {
	r.pos++
	return r.pos < len(r.data)
}

func (r *rows) Scan(dest ...interface{}) error {
	if r.pos < 0 || r.pos >= len(r.data) {
		return fmt.Errorf("scan called without a current row")
	}
	return assign(r.data[r.pos], dest)
}

func (r *rows) Close() error { return nil }
func (r *rows) Err() error   { return nil }

type row struct {
	values []interface{}
	err    error
}

func (r row) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

// assign copies values into dest pointers, converting between compatible kinds.
func assign(values []interface{}, dest []interface{}) error {
	if len(values) != len(dest) {
		return fmt.Errorf("expected %d destinations, got %d", len(values), len(dest))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i])
		if target.Kind() != reflect.Ptr || target.IsNil() {
			return fmt.Errorf("destination %d is not a pointer", i)
		}
		elem := target.Elem()
		if v == nil {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}
		src := reflect.ValueOf(v)
		switch {
		case src.Type().AssignableTo(elem.Type()):
			elem.Set(src)
		case src.Type().ConvertibleTo(elem.Type()):
			elem.Set(src.Convert(elem.Type()))
		default:
			return fmt.Errorf("column %d: cannot assign %T to %s", i, v, elem.Type())
		}
	}
	return nil
}
