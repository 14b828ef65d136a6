package schema

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// Row is a single table row keyed by column name. Values are held in their
// canonical Go form: int64, string, bool, time.Time, Clock or decimal.Decimal.
// A nil value means SQL NULL.
type Row map[string]any

// Clone returns a shallow copy of the row. Values are immutable so a shallow
// copy is enough to isolate writers.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Int64 returns the integer stored under col.
func (r Row) Int64(col string) (int64, bool) {
	v, ok := r[col].(int64)
	return v, ok
}

// String returns the string stored under col.
func (r Row) String(col string) (string, bool) {
	v, ok := r[col].(string)
	return v, ok
}

type ColumnType int

const (
	Int ColumnType = iota + 1
	Text
	Bool
	Date
	Time
	Timestamp
	Decimal
)

func (t ColumnType) String() string {
	switch t {
	case Int:
		return "int"
	case Text:
		return "text"
	case Bool:
		return "bool"
	case Date:
		return "date"
	case Time:
		return "time"
	case Timestamp:
		return "timestamp"
	case Decimal:
		return "decimal"
	default:
		return "unknown"
	}
}

// Auto marks columns the store fills in itself.
type Auto int

const (
	AutoNone Auto = iota
	AutoSerial
	AutoCreated
	AutoUpdated
)

// Column describes one column of a table.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
	Default  any
	Enum     []string
	Min      *decimal.Decimal
	Max      *decimal.Decimal
	Scale    int
	MaxLen   int
	Auto     Auto
	Secret   bool
}

// Required reports whether a create must supply a value for the column.
func (c Column) Required() bool {
	return !c.Nullable && c.Default == nil && c.Auto == AutoNone
}

// Policy is the ON DELETE behavior of a foreign key.
type Policy int

const (
	Restrict Policy = iota
	Cascade
	SetNull
)

func (p Policy) String() string {
	switch p {
	case Cascade:
		return "cascade"
	case SetNull:
		return "set-null"
	default:
		return "restrict"
	}
}

type ForeignKey struct {
	Name       string
	Column     string
	References string
	OnDelete   Policy
}

type UniqueKey struct {
	Name    string
	Columns []string
	// Scheduling marks the key whose collisions are surfaced as scheduling
	// conflicts instead of plain uniqueness violations.
	Scheduling bool
}

// Check is a row-level constraint spanning one or more columns. Fn only runs
// when every listed column is non-null.
type Check struct {
	Name    string
	Columns []string
	Fn      func(Row) error
}

// Derivation computes a column from the other columns of the row.
type Derivation struct {
	Column string
	Fn     func(Row) (any, error)
}

type Tier int

const (
	TierIdentity Tier = iota + 1
	TierReference
	TierTransactional
	TierAssociation
)

func (t Tier) String() string {
	switch t {
	case TierIdentity:
		return "identity"
	case TierReference:
		return "reference"
	case TierTransactional:
		return "transactional"
	case TierAssociation:
		return "association"
	default:
		return "unknown"
	}
}

type Table struct {
	Name        string
	PrimaryKey  string
	Tier        Tier
	NameColumn  string // unique display name for reference tables
	Columns     []Column
	Uniques     []UniqueKey
	ForeignKeys []ForeignKey
	Checks      []Check
	Derived     []Derivation

	index map[string]int
}

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.Columns[i], true
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ForeignKey returns the foreign key declared on column, if any.
func (t *Table) ForeignKey(column string) (ForeignKey, bool) {
	for _, fk := range t.ForeignKeys {
		if fk.Column == column {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

// UniqueByName finds a unique key by its constraint name.
func (t *Table) UniqueByName(name string) (UniqueKey, bool) {
	for _, u := range t.Uniques {
		if u.Name == name {
			return u, true
		}
	}
	return UniqueKey{}, false
}

var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrInvalidSchema = errors.New("invalid schema")
)

// Catalog is the full set of tables plus the foreign-key graph between them.
type Catalog struct {
	tables   map[string]*Table
	order    []string
	incoming map[string][]Edge
	deletion []string
}

// Edge is a foreign key seen from the referenced table.
type Edge struct {
	From *Table
	FK   ForeignKey
}

// NewCatalog validates the table definitions and builds the dependency graph.
func NewCatalog(tables ...*Table) (*Catalog, error) {
	c := &Catalog{
		tables:   make(map[string]*Table, len(tables)),
		incoming: make(map[string][]Edge),
	}

	for _, t := range tables {
		if _, dup := c.tables[t.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate table %s", ErrInvalidSchema, t.Name)
		}
		t.index = make(map[string]int, len(t.Columns))
		for i, col := range t.Columns {
			if _, dup := t.index[col.Name]; dup {
				return nil, fmt.Errorf("%w: duplicate column %s.%s", ErrInvalidSchema, t.Name, col.Name)
			}
			t.index[col.Name] = i
		}
		if _, ok := t.index[t.PrimaryKey]; !ok {
			return nil, fmt.Errorf("%w: %s has no primary key column %s", ErrInvalidSchema, t.Name, t.PrimaryKey)
		}
		c.tables[t.Name] = t
		c.order = append(c.order, t.Name)
	}

	for _, t := range tables {
		if err := c.validateTable(t); err != nil {
			return nil, err
		}
		for _, fk := range t.ForeignKeys {
			c.incoming[fk.References] = append(c.incoming[fk.References], Edge{From: t, FK: fk})
		}
	}

	order, err := c.topoDeletionOrder()
	if err != nil {
		return nil, err
	}
	c.deletion = order

	return c, nil
}

// MustCatalog is NewCatalog for static definitions.
func MustCatalog(tables ...*Table) *Catalog {
	c, err := NewCatalog(tables...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) validateTable(t *Table) error {
	has := func(col string) bool {
		_, ok := t.index[col]
		return ok
	}

	for _, fk := range t.ForeignKeys {
		col, ok := t.Column(fk.Column)
		if !ok {
			return fmt.Errorf("%w: %s.%s foreign key on missing column", ErrInvalidSchema, t.Name, fk.Column)
		}
		if _, ok := c.tables[fk.References]; !ok {
			return fmt.Errorf("%w: %s.%s references unknown table %s", ErrInvalidSchema, t.Name, fk.Column, fk.References)
		}
		if fk.OnDelete == SetNull && !col.Nullable {
			return fmt.Errorf("%w: %s.%s is set-null but not nullable", ErrInvalidSchema, t.Name, fk.Column)
		}
	}
	for _, u := range t.Uniques {
		for _, col := range u.Columns {
			if !has(col) {
				return fmt.Errorf("%w: unique %s on missing column %s.%s", ErrInvalidSchema, u.Name, t.Name, col)
			}
		}
	}
	for _, ck := range t.Checks {
		for _, col := range ck.Columns {
			if !has(col) {
				return fmt.Errorf("%w: check %s on missing column %s.%s", ErrInvalidSchema, ck.Name, t.Name, col)
			}
		}
	}
	for _, d := range t.Derived {
		if !has(d.Column) {
			return fmt.Errorf("%w: derived column %s.%s missing", ErrInvalidSchema, t.Name, d.Column)
		}
	}
	if t.NameColumn != "" && !has(t.NameColumn) {
		return fmt.Errorf("%w: %s name column %s missing", ErrInvalidSchema, t.Name, t.NameColumn)
	}
	for _, col := range t.Columns {
		if col.Default != nil && len(col.Enum) > 0 {
			s, _ := col.Default.(string)
			if !slices.Contains(col.Enum, s) {
				return fmt.Errorf("%w: %s.%s default %v outside its domain", ErrInvalidSchema, t.Name, col.Name, col.Default)
			}
		}
	}
	return nil
}

// Table returns the named table.
func (c *Catalog) Table(name string) (*Table, error) {
	t, ok := c.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

// Tables returns every table in declaration order.
func (c *Catalog) Tables() []*Table {
	out := make([]*Table, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.tables[name])
	}
	return out
}

// TablesInTier returns the tables of one tier in declaration order.
func (c *Catalog) TablesInTier(tier Tier) []*Table {
	var out []*Table
	for _, t := range c.Tables() {
		if t.Tier == tier {
			out = append(out, t)
		}
	}
	return out
}

// Referencing returns the foreign keys pointing at table.
func (c *Catalog) Referencing(table string) []Edge {
	return c.incoming[table]
}

// DeletionOrder lists tables so that every table comes before the tables it
// references. Deleting rows in this order never trips a foreign key.
func (c *Catalog) DeletionOrder() []string {
	return slices.Clone(c.deletion)
}

// TableForConstraint finds the table owning a named unique key, foreign key or
// check. Used to translate driver errors back into catalog terms.
func (c *Catalog) TableForConstraint(name string) (*Table, bool) {
	for _, t := range c.Tables() {
		for _, u := range t.Uniques {
			if u.Name == name {
				return t, true
			}
		}
		for _, fk := range t.ForeignKeys {
			if fk.Name == name {
				return t, true
			}
		}
		for _, ck := range t.Checks {
			if ck.Name == name {
				return t, true
			}
		}
	}
	return nil, false
}
