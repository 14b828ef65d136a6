package store

import (
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/hackgods/clinic-records/internal/schema"
)

var errTxDone = errors.New("transaction already finished")

type memTable struct {
	rows map[int64]schema.Row
	seq  int64
}

func (t *memTable) clone() *memTable {
	return &memTable{rows: maps.Clone(t.rows), seq: t.seq}
}

// MemoryBackend keeps every table in process memory. Transactions are fully
// serialized: Begin waits for the previous transaction to finish and works on
// a private copy that replaces the shared state on Commit.
type MemoryBackend struct {
	sem    chan struct{}
	tables map[string]*memTable
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		sem:    make(chan struct{}, 1),
		tables: make(map[string]*memTable),
	}
}

func (b *MemoryBackend) Begin(ctx context.Context) (Tx, error) {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tables := make(map[string]*memTable, len(b.tables))
	for name, t := range b.tables {
		tables[name] = t.clone()
	}
	return &memTx{b: b, tables: tables}, nil
}

type memTx struct {
	b      *MemoryBackend
	tables map[string]*memTable
	done   bool
}

func (tx *memTx) table(name string) *memTable {
	t, ok := tx.tables[name]
	if !ok {
		t = &memTable{rows: make(map[int64]schema.Row)}
		tx.tables[name] = t
	}
	return t
}

func (tx *memTx) Insert(_ context.Context, t *schema.Table, row schema.Row) (int64, error) {
	if tx.done {
		return 0, errTxDone
	}
	mt := tx.table(t.Name)
	mt.seq++
	stored := row.Clone()
	stored[t.PrimaryKey] = mt.seq
	mt.rows[mt.seq] = stored
	return mt.seq, nil
}

func (tx *memTx) Select(_ context.Context, t *schema.Table, q Query) ([]schema.Row, error) {
	if tx.done {
		return nil, errTxDone
	}
	mt := tx.table(t.Name)

	var out []schema.Row
	skipped := 0
	for _, id := range slices.Sorted(maps.Keys(mt.rows)) {
		row := mt.rows[id]
		if !matches(row, q.Where) || !within(row, q.Until) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		out = append(out, row.Clone())
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func matches(row, where schema.Row) bool {
	for col, want := range where {
		if !sameValue(row[col], want) {
			return false
		}
	}
	return true
}

func within(row, until schema.Row) bool {
	for col, bound := range until {
		c, ok := compareValues(row[col], bound)
		if !ok || c > 0 {
			return false
		}
	}
	return true
}

func (tx *memTx) Update(_ context.Context, t *schema.Table, id int64, set schema.Row) error {
	if tx.done {
		return errTxDone
	}
	mt := tx.table(t.Name)
	row, ok := mt.rows[id]
	if !ok {
		return notFound(t.Name, id)
	}
	updated := row.Clone()
	for k, v := range set {
		updated[k] = v
	}
	mt.rows[id] = updated
	return nil
}

func (tx *memTx) Delete(_ context.Context, t *schema.Table, ids []int64) error {
	if tx.done {
		return errTxDone
	}
	mt := tx.table(t.Name)
	for _, id := range ids {
		delete(mt.rows, id)
	}
	return nil
}

// Lock is a no-op: the whole transaction already holds the backend.
func (tx *memTx) Lock(context.Context, string) error {
	if tx.done {
		return errTxDone
	}
	return nil
}

func (tx *memTx) Commit(context.Context) error {
	if tx.done {
		return errTxDone
	}
	tx.done = true
	tx.b.tables = tx.tables
	<-tx.b.sem
	return nil
}

func (tx *memTx) Rollback(context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	<-tx.b.sem
	return nil
}
