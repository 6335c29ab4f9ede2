// Package pgtest provides in-process fakes of the small pgx surface the
// PostgreSQL stores depend on, for unit tests that check SQL and argument
// handling without a database.
package pgtest

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB fakes the QueryRow/Query/Exec trio. Nil funcs behave like an empty
// database: QueryRow scans [pgx.ErrNoRows], Query yields no rows and Exec
// affects nothing.
type DB struct {
	QueryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	QueryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	ExecFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if db.QueryRowFunc != nil {
		return db.QueryRowFunc(ctx, sql, args...)
	}
	return ErrRow(pgx.ErrNoRows)
}

func (db *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if db.QueryFunc != nil {
		return db.QueryFunc(ctx, sql, args...)
	}
	return &Rows{}, nil
}

func (db *DB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if db.ExecFunc != nil {
		return db.ExecFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

// Row is a [pgx.Row] scanning Values.
type Row struct {
	Values []any
	Err    error
}

// ValuesRow returns a row that scans values.
func ValuesRow(values ...any) *Row { return &Row{Values: values} }

// ErrRow returns a row whose Scan fails with err.
func ErrRow(err error) *Row { return &Row{Err: err} }

func (r *Row) Scan(dest ...any) error {
	if r.Err != nil {
		return r.Err
	}
	return Assign(r.Values, dest)
}

// Rows is a [pgx.Rows] over Data. IterErr is reported by Err.
type Rows struct {
	Data    [][]any
	IterErr error

	idx    int
	closed bool
}

func (r *Rows) Next() bool {
	if r.closed || r.idx >= len(r.Data) {
		r.closed = true
		return false
	}
	r.idx++
	return true
}

func (r *Rows) Scan(dest ...any) error { return Assign(r.Data[r.idx-1], dest) }

func (r *Rows) Close()                                       { r.closed = true }
func (r *Rows) Err() error                                   { return r.IterErr }
func (r *Rows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *Rows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *Rows) RawValues() [][]byte                          { return nil }
func (r *Rows) Conn() *pgx.Conn                              { return nil }
func (r *Rows) Values() ([]any, error)                       { return r.Data[r.idx-1], nil }

// Closed reports whether the rows were closed or fully read.
func (r *Rows) Closed() bool { return r.closed }

// Assign copies row into scan destinations. A nil value zeroes the
// destination, so pointer destinations read SQL NULL as nil. A non-nil value
// assigned to a pointer-to-pointer is boxed.
func Assign(row, dest []any) error {
	if len(dest) != len(row) {
		return fmt.Errorf("pgtest: %d columns scanned into %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		dv := reflect.ValueOf(dest[i])
		if dv.Kind() != reflect.Pointer || dv.IsNil() {
			return fmt.Errorf("pgtest: destination %d is %T, not a pointer", i, dest[i])
		}
		target := dv.Elem()
		if v == nil {
			target.SetZero()
			continue
		}
		val := reflect.ValueOf(v)
		switch {
		case val.Type().AssignableTo(target.Type()):
			target.Set(val)
		case target.Kind() == reflect.Pointer && val.Type().AssignableTo(target.Type().Elem()):
			boxed := reflect.New(target.Type().Elem())
			boxed.Elem().Set(val)
			target.Set(boxed)
		default:
			return fmt.Errorf("pgtest: column %d is %T, cannot scan into %T", i, v, dest[i])
		}
	}
	return nil
}
