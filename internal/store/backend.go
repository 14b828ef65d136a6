package store

import (
	"context"

	"github.com/hackgods/clinic-records/internal/schema"
)

// Backend persists rows. It is deliberately dumb: all constraint checking
// happens in the Store, so every backend enforces the same contract.
type Backend interface {
	Begin(ctx context.Context) (Tx, error)
}

// Query selects rows by column equality. A nil value in Where matches NULL.
// Until bounds columns from above (inclusive); NULLs never match it.
type Query struct {
	Where  schema.Row
	Until  schema.Row
	Limit  int
	Offset int
}

// Tx is one atomic unit of work against a backend.
type Tx interface {
	Insert(ctx context.Context, t *schema.Table, row schema.Row) (int64, error)
	Select(ctx context.Context, t *schema.Table, q Query) ([]schema.Row, error)
	Update(ctx context.Context, t *schema.Table, id int64, set schema.Row) error
	Delete(ctx context.Context, t *schema.Table, ids []int64) error

	// Lock serializes concurrent transactions on key until this one ends.
	Lock(ctx context.Context, key string) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
