package store

import (
	"context"
	"fmt"

	"github.com/hackgods/clinic-records/internal/schema"
)

// Bootstrap inserts the seeded reference vocabulary. Names already present
// are left untouched, so it is safe to run on every start. It returns the
// number of rows inserted.
func Bootstrap(ctx context.Context, s *Store) (int, error) {
	inserted := 0
	err := s.Atomic(ctx, func(w Writer) error {
		for _, name := range schema.SeedTables {
			t, err := s.cat.Table(name)
			if err != nil {
				return err
			}
			for _, seed := range schema.Seed[name] {
				existing, err := w.Find(ctx, name, Query{Where: schema.Row{t.NameColumn: seed.Name}, Limit: 1})
				if err != nil {
					return err
				}
				if len(existing) > 0 {
					continue
				}

				row := schema.Row{t.NameColumn: seed.Name}
				if _, ok := t.Column("description"); ok && seed.Description != "" {
					row["description"] = seed.Description
				}
				if _, err := w.Create(ctx, name, row); err != nil {
					return fmt.Errorf("seed %s %q: %w", name, seed.Name, err)
				}
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info().Int("inserted", inserted).Msg("reference data bootstrapped")
	return inserted, nil
}
