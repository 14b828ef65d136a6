package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hackgods/clinic-records/internal/schema"
)

// DeleteReport lists every row a delete touched. Deleted is keyed by table,
// Nullified by "table.column".
type DeleteReport struct {
	Table     string             `json:"table"`
	ID        int64              `json:"id"`
	Deleted   map[string][]int64 `json:"deleted"`
	Nullified map[string][]int64 `json:"nullified,omitempty"`
}

// Rows is the total number of deleted rows, the root included.
func (r DeleteReport) Rows() int {
	n := 0
	for _, ids := range r.Deleted {
		n += len(ids)
	}
	return n
}

type rowRef struct {
	table string
	id    int64
}

type blocker struct {
	edge schema.Edge
	id   int64
}

type closure struct {
	doomed   map[string]map[int64]bool
	nullify  map[schema.Edge][]int64
	blockers []blocker
}

func (c *closure) has(table string, id int64) bool {
	return c.doomed[table][id]
}

func (c *closure) add(table string, id int64) bool {
	if c.has(table, id) {
		return false
	}
	if c.doomed[table] == nil {
		c.doomed[table] = make(map[int64]bool)
	}
	c.doomed[table][id] = true
	return true
}

// Delete removes the row and its cascade closure. Dependents reached over
// set-null edges survive with the link cleared; a dependent reached over a
// restrict edge that is not itself being deleted blocks the whole delete.
func (w *txWriter) Delete(ctx context.Context, table string, id int64) (DeleteReport, error) {
	t, err := w.s.cat.Table(table)
	if err != nil {
		return DeleteReport{}, err
	}
	if _, err := w.Get(ctx, table, id); err != nil {
		return DeleteReport{}, err
	}

	c, err := w.collect(ctx, t, id)
	if err != nil {
		return DeleteReport{}, cascadeErr(t.Name, err, "collect dependents of %s %d", t.Name, id)
	}

	var blocked []string
	for _, b := range c.blockers {
		if !c.has(b.edge.From.Name, b.id) {
			blocked = append(blocked, fmt.Sprintf("%s %d via %s", b.edge.From.Name, b.id, b.edge.FK.Name))
		}
	}
	if len(blocked) > 0 {
		return DeleteReport{}, violation(ErrCascadeFailure, t.Name, nil,
			"%s %d is still referenced by %s", t.Name, id, strings.Join(blocked, ", "))
	}

	report := DeleteReport{
		Table:     t.Name,
		ID:        id,
		Deleted:   make(map[string][]int64),
		Nullified: make(map[string][]int64),
	}

	now := w.s.now()
	for edge, ids := range c.nullify {
		var survivors []int64
		for _, rid := range ids {
			if !c.has(edge.From.Name, rid) {
				survivors = append(survivors, rid)
			}
		}
		slices.Sort(survivors)
		survivors = slices.Compact(survivors)

		for _, rid := range survivors {
			set := schema.Row{edge.FK.Column: nil}
			for _, col := range edge.From.Columns {
				if col.Auto == schema.AutoUpdated {
					set[col.Name] = now
				}
			}
			if err := w.tx.Update(ctx, edge.From, rid, set); err != nil {
				return DeleteReport{}, cascadeErr(t.Name, err, "clear %s.%s on row %d", edge.From.Name, edge.FK.Column, rid)
			}
		}
		if len(survivors) > 0 {
			report.Nullified[edge.From.Name+"."+edge.FK.Column] = survivors
		}
	}

	for _, name := range w.s.cat.DeletionOrder() {
		ids := slices.Sorted(maps.Keys(c.doomed[name]))
		if len(ids) == 0 {
			continue
		}
		target, err := w.s.cat.Table(name)
		if err != nil {
			return DeleteReport{}, err
		}
		if err := w.tx.Delete(ctx, target, ids); err != nil {
			return DeleteReport{}, cascadeErr(t.Name, err, "delete %d rows from %s", len(ids), name)
		}
		report.Deleted[name] = ids
	}

	w.s.log.Info().
		Str("table", t.Name).
		Int64("id", id).
		Int("deleted", report.Rows()).
		Int("nullified", len(report.Nullified)).
		Msg("row deleted")
	return report, nil
}

// collect walks incoming foreign keys breadth first from the root row.
func (w *txWriter) collect(ctx context.Context, root *schema.Table, id int64) (*closure, error) {
	c := &closure{
		doomed:  make(map[string]map[int64]bool),
		nullify: make(map[schema.Edge][]int64),
	}
	c.add(root.Name, id)
	queue := []rowRef{{table: root.Name, id: id}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, edge := range w.s.cat.Referencing(cur.table) {
			rows, err := w.tx.Select(ctx, edge.From, Query{Where: schema.Row{edge.FK.Column: cur.id}})
			if err != nil {
				return nil, err
			}
			for _, r := range rows {
				rid, _ := r.Int64(edge.From.PrimaryKey)
				switch edge.FK.OnDelete {
				case schema.Cascade:
					if c.add(edge.From.Name, rid) {
						queue = append(queue, rowRef{table: edge.From.Name, id: rid})
					}
				case schema.SetNull:
					c.nullify[edge] = append(c.nullify[edge], rid)
				default:
					c.blockers = append(c.blockers, blocker{edge: edge, id: rid})
				}
			}
		}
	}
	return c, nil
}

func cascadeErr(table string, err error, format string, args ...any) error {
	v := violation(ErrCascadeFailure, table, nil, format, args...)
	v.Err = err
	return v
}
