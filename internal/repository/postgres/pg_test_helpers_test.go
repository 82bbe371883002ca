package postgres

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakePool: пул, отдающий заранее подготовленную транзакцию и ответы.
type fakePool struct {
	tx       *fakeTx
	beginErr error
	rows     pgx.Rows
	queryErr error
	row      pgx.Row
	execSQLs []string
	execErr  error
}

func (p *fakePool) Begin(context.Context) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	return p.tx, nil
}

func (p *fakePool) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	p.execSQLs = append(p.execSQLs, sql)
	return pgconn.CommandTag{}, p.execErr
}

func (p *fakePool) Query(context.Context, string, ...any) (pgx.Rows, error) {
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	if p.rows == nil {
		return &fakeRows{}, nil
	}
	return p.rows, nil
}

func (p *fakePool) QueryRow(context.Context, string, ...any) pgx.Row {
	if p.row == nil {
		return &stubRow{err: errors.New("unexpected QueryRow")}
	}
	return p.row
}

// fakeTx отвечает на QueryRow и Exec по очереди и запоминает запросы.
type fakeTx struct {
	rows      []pgx.Row
	tags      []pgconn.CommandTag
	execErr   error
	commitErr error

	sqls       []string
	args       [][]any
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}
func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}
func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *fakeTx) Conn() *pgx.Conn { return nil }

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.sqls = append(t.sqls, sql)
	t.args = append(t.args, args)
	if t.execErr != nil {
		return pgconn.CommandTag{}, t.execErr
	}
	if len(t.tags) == 0 {
		return pgconn.CommandTag{}, errors.New("unexpected Exec")
	}
	tag := t.tags[0]
	t.tags = t.tags[1:]
	return tag, nil
}

func (t *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected Query")
}

func (t *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	t.sqls = append(t.sqls, sql)
	t.args = append(t.args, args)
	if len(t.rows) == 0 {
		return &stubRow{err: errors.New("unexpected QueryRow")}
	}
	r := t.rows[0]
	t.rows = t.rows[1:]
	return r
}

type stubRow struct {
	vals []any
	err  error
}

func (r *stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.vals)
}

type fakeRows struct {
	data [][]any
	idx  int
	err  error
}

func (r *fakeRows) Close()                        {}
func (r *fakeRows) Err() error                    { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	return nil
}
func (r *fakeRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}
func (r *fakeRows) Scan(dest ...any) error { return assign(dest, r.data[r.idx-1]) }
func (r *fakeRows) Values() ([]any, error) { return nil, nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }

// assign раскладывает vals в dest через reflect: nil обнуляет приемник,
// значение в **T заворачивается в новый указатель.
func assign(dest []any, vals []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan: %d destinations, %d values", len(dest), len(vals))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d).Elem()
		if vals[i] == nil {
			dv.Set(reflect.Zero(dv.Type()))
			continue
		}
		v := reflect.ValueOf(vals[i])
		if dv.Kind() == reflect.Pointer {
			p := reflect.New(dv.Type().Elem())
			p.Elem().Set(v.Convert(dv.Type().Elem()))
			dv.Set(p)
			continue
		}
		dv.Set(v.Convert(dv.Type()))
	}
	return nil
}
