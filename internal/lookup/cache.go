package lookup

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-records/internal/schema"
	"github.com/hackgods/clinic-records/internal/store"
)

// Source is where reference rows are loaded from.
type Source interface {
	Find(ctx context.Context, table string, q store.Query) ([]schema.Row, error)
}

// Notifier tells other processes that a reference table changed.
type Notifier interface {
	Publish(ctx context.Context, table string) error
}

type Entry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type snapshot struct {
	byName   map[string]map[string]int64
	entries  map[string][]Entry
	loadedAt time.Time
}

// Cache holds an immutable name/id mapping for every reference table. A
// refresh builds a new snapshot and swaps it in, so readers never lock.
type Cache struct {
	cat      *schema.Catalog
	src      Source
	notifier Notifier
	log      zerolog.Logger
	snap     atomic.Pointer[snapshot]
}

func New(cat *schema.Catalog, src Source, log zerolog.Logger) *Cache {
	c := &Cache{
		cat: cat,
		src: src,
		log: log.With().Str("component", "lookup").Logger(),
	}
	c.snap.Store(&snapshot{
		byName:  map[string]map[string]int64{},
		entries: map[string][]Entry{},
	})
	return c
}

// SetNotifier enables cross-instance invalidation on Invalidate.
func (c *Cache) SetNotifier(n Notifier) {
	c.notifier = n
}

// Refresh reloads every reference table.
func (c *Cache) Refresh(ctx context.Context) error {
	next := &snapshot{
		byName:   make(map[string]map[string]int64),
		entries:  make(map[string][]Entry),
		loadedAt: time.Now(),
	}

	for _, t := range c.cat.TablesInTier(schema.TierReference) {
		rows, err := c.src.Find(ctx, t.Name, store.Query{})
		if err != nil {
			return fmt.Errorf("load %s: %w", t.Name, err)
		}
		names := make(map[string]int64, len(rows))
		entries := make([]Entry, 0, len(rows))
		for _, r := range rows {
			id, _ := r.Int64(t.PrimaryKey)
			name, _ := r.String(t.NameColumn)
			names[name] = id
			entries = append(entries, Entry{ID: id, Name: name})
		}
		slices.SortFunc(entries, func(a, b Entry) int { return cmp.Compare(a.ID, b.ID) })
		next.byName[t.Name] = names
		next.entries[t.Name] = entries
	}

	c.snap.Store(next)
	c.log.Debug().Int("tables", len(next.entries)).Msg("lookup snapshot refreshed")
	return nil
}

// Invalidate refreshes the local snapshot after a write to table and tells
// the other instances to do the same.
func (c *Cache) Invalidate(ctx context.Context, table string) error {
	if err := c.Refresh(ctx); err != nil {
		return err
	}
	if c.notifier == nil {
		return nil
	}
	if err := c.notifier.Publish(ctx, table); err != nil {
		c.log.Warn().Err(err).Str("table", table).Msg("invalidation not published")
	}
	return nil
}

// IsReference reports whether table is cached.
func (c *Cache) IsReference(table string) bool {
	t, err := c.cat.Table(table)
	return err == nil && t.Tier == schema.TierReference
}

// ID returns the id of the named row from the current snapshot.
func (c *Cache) ID(table, name string) (int64, error) {
	if !c.IsReference(table) {
		return 0, fmt.Errorf("%w: %s is not a reference table", schema.ErrUnknownTable, table)
	}
	id, ok := c.snap.Load().byName[table][name]
	if !ok {
		return 0, c.unknown(table, name)
	}
	return id, nil
}

// Resolve is ID with one reload on a miss, for rows added by another
// instance since the last refresh.
func (c *Cache) Resolve(ctx context.Context, table, name string) (int64, error) {
	id, err := c.ID(table, name)
	if err == nil || !c.IsReference(table) {
		return id, err
	}
	if err := c.Refresh(ctx); err != nil {
		return 0, err
	}
	return c.ID(table, name)
}

// Name returns the display name of a reference row.
func (c *Cache) Name(table string, id int64) (string, bool) {
	for _, e := range c.snap.Load().entries[table] {
		if e.ID == id {
			return e.Name, true
		}
	}
	return "", false
}

// Entries lists a reference table ordered by id.
func (c *Cache) Entries(table string) []Entry {
	return slices.Clone(c.snap.Load().entries[table])
}

func (c *Cache) LoadedAt() time.Time {
	return c.snap.Load().loadedAt
}

func (c *Cache) unknown(table, name string) error {
	t, err := c.cat.Table(table)
	if err != nil {
		return err
	}
	return store.NewViolation(store.ErrReferentialViolation, t.Name, []string{t.NameColumn}, "no %s named %q", t.Name, name)
}
