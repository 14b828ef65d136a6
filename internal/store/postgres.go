package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-records/internal/schema"
)

// PostgresBackend stores rows in the tables created by the db migrations.
type PostgresBackend struct {
	pool *pgxpool.Pool
	cat  *schema.Catalog
}

func NewPostgresBackend(pool *pgxpool.Pool, cat *schema.Catalog) *PostgresBackend {
	return &PostgresBackend{pool: pool, cat: cat}
}

func (b *PostgresBackend) Begin(ctx context.Context) (Tx, error) {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx, cat: b.cat}, nil
}

type pgTx struct {
	tx  pgx.Tx
	cat *schema.Catalog
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (p *pgTx) Insert(ctx context.Context, t *schema.Table, row schema.Row) (int64, error) {
	var (
		cols         []string
		placeholders []string
		args         []any
	)
	for _, col := range t.Columns {
		v, ok := row[col.Name]
		if !ok || col.Name == t.PrimaryKey {
			continue
		}
		args = append(args, toPG(col, v))
		cols = append(cols, ident(col.Name))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING %s`,
		ident(t.Name), strings.Join(cols, ", "), strings.Join(placeholders, ", "), ident(t.PrimaryKey))

	var id int64
	if err := p.tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, mapPgError(p.cat, err)
	}
	return id, nil
}

func (p *pgTx) Select(ctx context.Context, t *schema.Table, q Query) ([]schema.Row, error) {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = ident(col.Name)
	}

	var (
		conds []string
		args  []any
	)
	for _, name := range slices.Sorted(maps.Keys(q.Where)) {
		col, ok := t.Column(name)
		if !ok {
			return nil, domainErr(t.Name, name, "unknown column")
		}
		v := q.Where[name]
		if v == nil {
			conds = append(conds, ident(name)+" IS NULL")
			continue
		}
		args = append(args, toPG(col, v))
		conds = append(conds, fmt.Sprintf("%s = $%d", ident(name), len(args)))
	}
	for _, name := range slices.Sorted(maps.Keys(q.Until)) {
		col, ok := t.Column(name)
		if !ok {
			return nil, domainErr(t.Name, name, "unknown column")
		}
		args = append(args, toPG(col, q.Until[name]))
		conds = append(conds, fmt.Sprintf("%s <= $%d", ident(name), len(args)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(names, ", "), ident(t.Name))
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	fmt.Fprintf(&b, " ORDER BY %s", ident(t.PrimaryKey))
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", q.Offset)
	}

	rows, err := p.tx.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, mapPgError(p.cat, err)
	}
	defer rows.Close()

	var out []schema.Row
	for rows.Next() {
		dest := make([]any, len(t.Columns))
		for i, col := range t.Columns {
			dest[i] = scanTarget(col)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(schema.Row, len(t.Columns))
		for i, col := range t.Columns {
			row[col.Name] = fromPG(dest[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(p.cat, err)
	}
	return out, nil
}

func (p *pgTx) Update(ctx context.Context, t *schema.Table, id int64, set schema.Row) error {
	var (
		assigns []string
		args    []any
	)
	for _, name := range slices.Sorted(maps.Keys(set)) {
		col, ok := t.Column(name)
		if !ok {
			return domainErr(t.Name, name, "unknown column")
		}
		args = append(args, toPG(col, set[name]))
		assigns = append(assigns, fmt.Sprintf("%s = $%d", ident(name), len(args)))
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = $%d`,
		ident(t.Name), strings.Join(assigns, ", "), ident(t.PrimaryKey), len(args))

	tag, err := p.tx.Exec(ctx, query, args...)
	if err != nil {
		return mapPgError(p.cat, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(t.Name, id)
	}
	return nil
}

func (p *pgTx) Delete(ctx context.Context, t *schema.Table, ids []int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ANY($1)`, ident(t.Name), ident(t.PrimaryKey))
	if _, err := p.tx.Exec(ctx, query, ids); err != nil {
		return mapPgError(p.cat, err)
	}
	return nil
}

// Lock takes a transaction-scoped advisory lock on the hashed key.
func (p *pgTx) Lock(ctx context.Context, key string) error {
	_, err := p.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return err
}

func (p *pgTx) Commit(ctx context.Context) error {
	return mapPgError(p.cat, p.tx.Commit(ctx))
}

func (p *pgTx) Rollback(ctx context.Context) error {
	err := p.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func toPG(col schema.Column, v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case schema.Clock:
		return pgtype.Time{Microseconds: int64(x) * 1_000_000, Valid: true}
	case decimal.Decimal:
		return pgtype.Numeric{Int: x.Coefficient(), Exp: x.Exponent(), Valid: true}
	case time.Time:
		if col.Type == schema.Date {
			return pgtype.Date{Time: x, Valid: true}
		}
		return x
	}
	return v
}

func scanTarget(col schema.Column) any {
	switch col.Type {
	case schema.Int:
		return &pgtype.Int8{}
	case schema.Bool:
		return &pgtype.Bool{}
	case schema.Date:
		return &pgtype.Date{}
	case schema.Time:
		return &pgtype.Time{}
	case schema.Timestamp:
		return &pgtype.Timestamptz{}
	case schema.Decimal:
		return &pgtype.Numeric{}
	default:
		return &pgtype.Text{}
	}
}

func fromPG(dest any) any {
	switch v := dest.(type) {
	case *pgtype.Int8:
		if v.Valid {
			return v.Int64
		}
	case *pgtype.Bool:
		if v.Valid {
			return v.Bool
		}
	case *pgtype.Text:
		if v.Valid {
			return v.String
		}
	case *pgtype.Date:
		if v.Valid {
			return schema.DateOf(v.Time)
		}
	case *pgtype.Time:
		if v.Valid {
			return schema.Clock(v.Microseconds / 1_000_000)
		}
	case *pgtype.Timestamptz:
		if v.Valid {
			return v.Time.UTC()
		}
	case *pgtype.Numeric:
		if v.Valid && v.Int != nil {
			return decimal.NewFromBigInt(v.Int, v.Exp)
		}
	}
	return nil
}

// mapPgError translates constraint errors raised by Postgres into the store
// taxonomy, using the constraint name to find the catalog entry.
func mapPgError(cat *schema.Catalog, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	table := pgErr.TableName
	var cols []string
	if pgErr.ColumnName != "" {
		cols = []string{pgErr.ColumnName}
	}

	switch pgErr.Code {
	case "23505":
		kind := ErrUniquenessViolation
		if t, ok := cat.TableForConstraint(pgErr.ConstraintName); ok {
			table = t.Name
			if u, ok := t.UniqueByName(pgErr.ConstraintName); ok {
				cols = u.Columns
				if u.Scheduling {
					kind = ErrSchedulingConflict
				}
			}
		}
		return &ViolationError{Kind: kind, Table: table, Columns: cols, Detail: pgErr.ConstraintName, Err: err}
	case "23503":
		if t, ok := cat.TableForConstraint(pgErr.ConstraintName); ok {
			table = t.Name
		}
		return &ViolationError{Kind: ErrReferentialViolation, Table: table, Columns: cols, Detail: pgErr.ConstraintName, Err: err}
	case "23514", "23502", "22P02", "22003", "22001", "22007", "22008":
		return &ViolationError{Kind: ErrDomainViolation, Table: table, Columns: cols, Detail: pgErr.Message, Err: err}
	}
	return err
}
