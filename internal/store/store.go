package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-records/internal/schema"
)

// Writer is the set of row operations available to callers, either one call
// per transaction on Store or many calls inside Store.Atomic.
type Writer interface {
	Create(ctx context.Context, table string, row schema.Row) (schema.Row, error)
	Update(ctx context.Context, table string, id int64, changes schema.Row) (schema.Row, error)
	Delete(ctx context.Context, table string, id int64) (DeleteReport, error)
	Get(ctx context.Context, table string, id int64) (schema.Row, error)
	Find(ctx context.Context, table string, q Query) ([]schema.Row, error)

	// Lock serializes read-modify-write sequences on key until the
	// transaction ends. Only meaningful inside Store.Atomic.
	Lock(ctx context.Context, key string) error
}

// Store enforces the catalog constraints on top of a Backend. Each method
// runs in its own transaction; use Atomic to group several.
type Store struct {
	cat     *schema.Catalog
	backend Backend
	log     zerolog.Logger
	now     func() time.Time
}

func New(cat *schema.Catalog, backend Backend, log zerolog.Logger) *Store {
	return &Store{
		cat:     cat,
		backend: backend,
		log:     log.With().Str("component", "store").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Catalog() *schema.Catalog {
	return s.cat
}

// Atomic runs fn inside a single backend transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
func (s *Store) Atomic(ctx context.Context, fn func(w Writer) error) error {
	tx, err := s.backend.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&txWriter{s: s, tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.log.Error().Err(rbErr).Msg("rollback failed")
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, table string, row schema.Row) (schema.Row, error) {
	var out schema.Row
	err := s.Atomic(ctx, func(w Writer) error {
		var err error
		out, err = w.Create(ctx, table, row)
		return err
	})
	return out, err
}

func (s *Store) Update(ctx context.Context, table string, id int64, changes schema.Row) (schema.Row, error) {
	var out schema.Row
	err := s.Atomic(ctx, func(w Writer) error {
		var err error
		out, err = w.Update(ctx, table, id, changes)
		return err
	})
	return out, err
}

func (s *Store) Delete(ctx context.Context, table string, id int64) (DeleteReport, error) {
	var out DeleteReport
	err := s.Atomic(ctx, func(w Writer) error {
		var err error
		out, err = w.Delete(ctx, table, id)
		return err
	})
	return out, err
}

func (s *Store) Get(ctx context.Context, table string, id int64) (schema.Row, error) {
	var out schema.Row
	err := s.Atomic(ctx, func(w Writer) error {
		var err error
		out, err = w.Get(ctx, table, id)
		return err
	})
	return out, err
}

func (s *Store) Find(ctx context.Context, table string, q Query) ([]schema.Row, error) {
	var out []schema.Row
	err := s.Atomic(ctx, func(w Writer) error {
		var err error
		out, err = w.Find(ctx, table, q)
		return err
	})
	return out, err
}

type txWriter struct {
	s  *Store
	tx Tx
}

func (w *txWriter) Create(ctx context.Context, table string, input schema.Row) (schema.Row, error) {
	t, err := w.s.cat.Table(table)
	if err != nil {
		return nil, err
	}

	for name := range input {
		col, ok := t.Column(name)
		if !ok {
			return nil, domainErr(t.Name, name, "unknown column")
		}
		if col.Auto != schema.AutoNone {
			return nil, domainErr(t.Name, name, "assigned by the store")
		}
	}

	now := w.s.now()
	row := make(schema.Row, len(t.Columns))
	for _, col := range t.Columns {
		switch col.Auto {
		case schema.AutoSerial:
			continue
		case schema.AutoCreated, schema.AutoUpdated:
			row[col.Name] = now
			continue
		}

		v, present := input[col.Name]
		if !present {
			v = col.Default
		}
		norm, err := normalize(t, col, v)
		if err != nil {
			return nil, err
		}
		row[col.Name] = norm
	}

	if err := checkRow(t, row, input); err != nil {
		return nil, err
	}
	if err := w.checkUniques(ctx, t, row, 0, nil); err != nil {
		return nil, err
	}
	if err := w.checkReferences(ctx, t, row, nil); err != nil {
		return nil, err
	}

	id, err := w.tx.Insert(ctx, t, row)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", t.Name, err)
	}
	row[t.PrimaryKey] = id

	w.s.log.Debug().Str("table", t.Name).Int64("id", id).Msg("row created")
	return row, nil
}

func (w *txWriter) Update(ctx context.Context, table string, id int64, changes schema.Row) (schema.Row, error) {
	t, err := w.s.cat.Table(table)
	if err != nil {
		return nil, err
	}
	current, err := w.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}

	merged := current.Clone()
	changed := make(map[string]bool, len(changes))
	for name, v := range changes {
		col, ok := t.Column(name)
		if !ok {
			return nil, domainErr(t.Name, name, "unknown column")
		}
		norm, err := normalize(t, col, v)
		if err != nil {
			return nil, err
		}
		if sameValue(norm, current[name]) {
			continue
		}
		if col.Auto != schema.AutoNone {
			return nil, domainErr(t.Name, name, "immutable")
		}
		merged[name] = norm
		changed[name] = true
	}

	if err := checkRow(t, merged, changes); err != nil {
		return nil, err
	}
	for _, d := range t.Derived {
		if !sameValue(merged[d.Column], current[d.Column]) {
			changed[d.Column] = true
		}
	}
	if len(changed) == 0 {
		return current, nil
	}

	if err := w.checkUniques(ctx, t, merged, id, changed); err != nil {
		return nil, err
	}
	if err := w.checkReferences(ctx, t, merged, changed); err != nil {
		return nil, err
	}

	for _, col := range t.Columns {
		if col.Auto == schema.AutoUpdated {
			merged[col.Name] = w.s.now()
			changed[col.Name] = true
		}
	}

	set := make(schema.Row, len(changed))
	for name := range changed {
		set[name] = merged[name]
	}
	if err := w.tx.Update(ctx, t, id, set); err != nil {
		return nil, fmt.Errorf("update %s: %w", t.Name, err)
	}

	w.s.log.Debug().Str("table", t.Name).Int64("id", id).Int("columns", len(set)).Msg("row updated")
	return merged, nil
}

func (w *txWriter) Get(ctx context.Context, table string, id int64) (schema.Row, error) {
	t, err := w.s.cat.Table(table)
	if err != nil {
		return nil, err
	}
	rows, err := w.tx.Select(ctx, t, Query{Where: schema.Row{t.PrimaryKey: id}, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", t.Name, err)
	}
	if len(rows) == 0 {
		return nil, notFound(t.Name, id)
	}
	return rows[0], nil
}

func (w *txWriter) Find(ctx context.Context, table string, q Query) ([]schema.Row, error) {
	t, err := w.s.cat.Table(table)
	if err != nil {
		return nil, err
	}

	if q.Where, err = normalizeAll(t, q.Where); err != nil {
		return nil, err
	}
	if q.Until, err = normalizeAll(t, q.Until); err != nil {
		return nil, err
	}

	rows, err := w.tx.Select(ctx, t, q)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", t.Name, err)
	}
	return rows, nil
}

func (w *txWriter) Lock(ctx context.Context, key string) error {
	return w.tx.Lock(ctx, key)
}

func normalizeAll(t *schema.Table, in schema.Row) (schema.Row, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(schema.Row, len(in))
	for name, v := range in {
		col, ok := t.Column(name)
		if !ok {
			return nil, domainErr(t.Name, name, "unknown column")
		}
		norm, err := normalize(t, col, v)
		if err != nil {
			return nil, err
		}
		out[name] = norm
	}
	return out, nil
}

// checkRow derives computed columns and checks not-null and row checks.
// input is what the caller supplied, used to reject conflicting derived values.
func checkRow(t *schema.Table, row, input schema.Row) error {
	for _, col := range t.Columns {
		if col.Auto != schema.AutoNone || col.Nullable || isDerived(t, col.Name) {
			continue
		}
		if row[col.Name] == nil {
			return domainErr(t.Name, col.Name, "is required")
		}
	}

	for _, d := range t.Derived {
		col, _ := t.Column(d.Column)
		v, err := d.Fn(row)
		if err != nil {
			return domainErr(t.Name, d.Column, "%v", err)
		}
		norm, err := normalize(t, col, v)
		if err != nil {
			return err
		}
		if given, ok := input[d.Column]; ok && given != nil {
			g, err := normalize(t, col, given)
			if err != nil {
				return err
			}
			if !sameValue(g, norm) {
				return domainErr(t.Name, d.Column, "%v does not match the computed value %v", g, norm)
			}
		}
		row[d.Column] = norm
	}

	for _, ck := range t.Checks {
		if slices.ContainsFunc(ck.Columns, func(c string) bool { return row[c] == nil }) {
			continue
		}
		if err := ck.Fn(row); err != nil {
			return violation(ErrDomainViolation, t.Name, ck.Columns, "%s: %v", ck.Name, err)
		}
	}
	return nil
}

func isDerived(t *schema.Table, col string) bool {
	return slices.ContainsFunc(t.Derived, func(d schema.Derivation) bool { return d.Column == col })
}

// checkUniques rejects rows colliding with another row on a unique key. Keys
// with a NULL column never collide. When changed is non-nil only keys touching
// a changed column are checked.
func (w *txWriter) checkUniques(ctx context.Context, t *schema.Table, row schema.Row, self int64, changed map[string]bool) error {
	for _, u := range t.Uniques {
		if changed != nil && !slices.ContainsFunc(u.Columns, func(c string) bool { return changed[c] }) {
			continue
		}

		where := make(schema.Row, len(u.Columns))
		complete := true
		for _, c := range u.Columns {
			if row[c] == nil {
				complete = false
				break
			}
			where[c] = row[c]
		}
		if !complete {
			continue
		}

		if err := w.tx.Lock(ctx, keyLock(u, row)); err != nil {
			return fmt.Errorf("lock %s: %w", u.Name, err)
		}
		hits, err := w.tx.Select(ctx, t, Query{Where: where, Limit: 2})
		if err != nil {
			return fmt.Errorf("select %s: %w", t.Name, err)
		}
		for _, hit := range hits {
			if id, _ := hit.Int64(t.PrimaryKey); id != self {
				kind := ErrUniquenessViolation
				if u.Scheduling {
					kind = ErrSchedulingConflict
				}
				return violation(kind, t.Name, u.Columns, "%s already taken by %s %d", u.Name, t.Name, id)
			}
		}
	}
	return nil
}

func keyLock(u schema.UniqueKey, row schema.Row) string {
	key := u.Name
	for _, c := range u.Columns {
		key += fmt.Sprintf("|%v", row[c])
	}
	return key
}

func (w *txWriter) checkReferences(ctx context.Context, t *schema.Table, row schema.Row, changed map[string]bool) error {
	for _, fk := range t.ForeignKeys {
		if changed != nil && !changed[fk.Column] {
			continue
		}
		v := row[fk.Column]
		if v == nil {
			continue
		}

		target, err := w.s.cat.Table(fk.References)
		if err != nil {
			return err
		}
		hits, err := w.tx.Select(ctx, target, Query{Where: schema.Row{target.PrimaryKey: v}, Limit: 1})
		if err != nil {
			return fmt.Errorf("select %s: %w", target.Name, err)
		}
		if len(hits) == 0 {
			return violation(ErrReferentialViolation, t.Name, []string{fk.Column},
				"%s %v does not exist", fk.References, v)
		}
	}
	return nil
}

// IsConstraintError reports whether err is one of the constraint violations
// (as opposed to an infrastructure failure).
func IsConstraintError(err error) bool {
	for _, kind := range []error{
		ErrDomainViolation, ErrUniquenessViolation, ErrReferentialViolation,
		ErrSchedulingConflict, ErrCascadeFailure, ErrNotFound,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
