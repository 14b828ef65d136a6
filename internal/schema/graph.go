package schema

import (
	"fmt"
	"strings"
)

func (c *Catalog) topoDeletionOrder() ([]string, error) {
	referencedBy := make(map[string]int, len(c.tables))
	for _, name := range c.order {
		for _, fk := range c.tables[name].ForeignKeys {
			if fk.References == name {
				return nil, fmt.Errorf("%w: %s references itself", ErrInvalidSchema, name)
			}
			referencedBy[fk.References]++
		}
	}

	var (
		out  []string
		done = make(map[string]bool, len(c.tables))
	)
	for len(out) < len(c.order) {
		progressed := false
		for _, name := range c.order {
			if done[name] || referencedBy[name] > 0 {
				continue
			}
			done[name] = true
			out = append(out, name)
			progressed = true
			for _, fk := range c.tables[name].ForeignKeys {
				referencedBy[fk.References]--
			}
		}
		if !progressed {
			return nil, fmt.Errorf("%w: foreign key cycle among remaining tables", ErrInvalidSchema)
		}
	}
	return out, nil
}

// PlanStep is one table reached by cascading deletes.
type PlanStep struct {
	Table string
	Via   Edge
	Depth int
}

// Plan is the table-level closure of deleting a row from Root: which tables
// lose rows by cascade, which foreign keys get cleared, and which foreign keys
// can block the delete.
type Plan struct {
	Root      string
	Cascades  []PlanStep
	Nullifies []Edge
	Restricts []Edge
}

// Plan walks the dependency graph from table following cascade edges.
func (c *Catalog) Plan(table string) (Plan, error) {
	if _, err := c.Table(table); err != nil {
		return Plan{}, err
	}

	p := Plan{Root: table}
	type item struct {
		name  string
		depth int
	}
	seen := map[string]bool{table: true}
	queue := []item{{name: table}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, e := range c.Referencing(cur.name) {
			switch e.FK.OnDelete {
			case Cascade:
				p.Cascades = append(p.Cascades, PlanStep{Table: e.From.Name, Via: e, Depth: cur.depth + 1})
				if !seen[e.From.Name] {
					seen[e.From.Name] = true
					queue = append(queue, item{name: e.From.Name, depth: cur.depth + 1})
				}
			case SetNull:
				p.Nullifies = append(p.Nullifies, e)
			default:
				p.Restricts = append(p.Restricts, e)
			}
		}
	}
	return p, nil
}

// Tables returns the distinct tables that may lose rows, root first.
func (p Plan) Tables() []string {
	out := []string{p.Root}
	seen := map[string]bool{p.Root: true}
	for _, s := range p.Cascades {
		if !seen[s.Table] {
			seen[s.Table] = true
			out = append(out, s.Table)
		}
	}
	return out
}

func (p Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "delete %s\n", p.Root)
	for _, s := range p.Cascades {
		fmt.Fprintf(&b, "%s cascade %s.%s -> %s\n", strings.Repeat("  ", s.Depth), s.Table, s.Via.FK.Column, s.Via.FK.References)
	}
	for _, e := range p.Nullifies {
		fmt.Fprintf(&b, "  set-null %s.%s\n", e.From.Name, e.FK.Column)
	}
	for _, e := range p.Restricts {
		fmt.Fprintf(&b, "  restrict %s.%s\n", e.From.Name, e.FK.Column)
	}
	return b.String()
}
