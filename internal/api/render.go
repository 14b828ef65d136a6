package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-records/internal/schema"
)

// renderRow converts a canonical row to its JSON shape. Dates are
// YYYY-MM-DD, decimals are fixed to the column scale, and secret columns are
// never rendered.
func renderRow(t *schema.Table, row schema.Row) map[string]any {
	out := make(map[string]any, len(row))
	for _, col := range t.Columns {
		if col.Secret {
			continue
		}
		v, ok := row[col.Name]
		if !ok {
			continue
		}
		out[col.Name] = renderValue(col, v)
	}
	return out
}

func renderValue(col schema.Column, v any) any {
	switch x := v.(type) {
	case time.Time:
		if col.Type == schema.Date {
			return x.Format(schema.DateLayout)
		}
		return x.UTC().Format(time.RFC3339)
	case schema.Clock:
		return x.String()
	case decimal.Decimal:
		return x.StringFixed(int32(col.Scale))
	}
	return v
}

func renderRows(t *schema.Table, rows []schema.Row) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, renderRow(t, r))
	}
	return out
}

type planStep struct {
	Table      string `json:"table"`
	Column     string `json:"column"`
	References string `json:"references"`
	Depth      int    `json:"depth,omitempty"`
}

type planResponse struct {
	Root      string     `json:"root"`
	Tables    []string   `json:"tables"`
	Cascades  []planStep `json:"cascade"`
	Nullifies []planStep `json:"set_null"`
	Restricts []planStep `json:"restrict"`
}

func renderPlan(p schema.Plan) planResponse {
	edge := func(e schema.Edge, depth int) planStep {
		return planStep{Table: e.From.Name, Column: e.FK.Column, References: e.FK.References, Depth: depth}
	}
	resp := planResponse{
		Root:      p.Root,
		Tables:    p.Tables(),
		Cascades:  []planStep{},
		Nullifies: []planStep{},
		Restricts: []planStep{},
	}
	for _, s := range p.Cascades {
		resp.Cascades = append(resp.Cascades, edge(s.Via, s.Depth))
	}
	for _, e := range p.Nullifies {
		resp.Nullifies = append(resp.Nullifies, edge(e, 0))
	}
	for _, e := range p.Restricts {
		resp.Restricts = append(resp.Restricts, edge(e, 0))
	}
	return resp
}
