package store

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-records/internal/schema"
)

func TestMapPgErrorUsesConstraintName(t *testing.T) {
	cat := schema.Clinic()

	tests := []struct {
		name    string
		pgErr   *pgconn.PgError
		want    error
		table   string
		columns []string
	}{
		{
			name:    "scheduling key",
			pgErr:   &pgconn.PgError{Code: "23505", ConstraintName: schema.SchedulingKey},
			want:    ErrSchedulingConflict,
			table:   schema.Appointments,
			columns: []string{"doctor_id", "appointment_date", "start_time"},
		},
		{
			name:    "natural key",
			pgErr:   &pgconn.PgError{Code: "23505", ConstraintName: "uq_users_email"},
			want:    ErrUniquenessViolation,
			table:   schema.Users,
			columns: []string{"email"},
		},
		{
			name:  "foreign key",
			pgErr: &pgconn.PgError{Code: "23503", ConstraintName: "fk_appointments_doctor_id"},
			want:  ErrReferentialViolation,
			table: schema.Appointments,
		},
		{
			name:    "check",
			pgErr:   &pgconn.PgError{Code: "23514", TableName: schema.Feedback, ColumnName: "rating"},
			want:    ErrDomainViolation,
			table:   schema.Feedback,
			columns: []string{"rating"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapPgError(cat, tt.pgErr)
			require.ErrorIs(t, err, tt.want)

			v, ok := AsViolation(err)
			require.True(t, ok)
			assert.Equal(t, tt.table, v.Table)
			if tt.columns != nil {
				assert.Equal(t, tt.columns, v.Columns)
			}

			var pgErr *pgconn.PgError
			assert.True(t, errors.As(err, &pgErr), "driver error stays reachable")
		})
	}
}

func TestMapPgErrorPassesThroughOtherErrors(t *testing.T) {
	cat := schema.Clinic()
	assert.NoError(t, mapPgError(cat, nil))

	other := errors.New("connection reset")
	assert.Equal(t, other, mapPgError(cat, other))

	deadlock := &pgconn.PgError{Code: "40P01"}
	assert.Equal(t, error(deadlock), mapPgError(cat, deadlock))
}

func TestPgValueConversion(t *testing.T) {
	clock := schema.MustClock("14:30")
	v := toPG(schema.Column{Type: schema.Time}, clock)
	pt, ok := v.(pgtype.Time)
	require.True(t, ok)
	assert.Equal(t, clock, fromPG(&pt))

	amount := decimal.RequireFromString("45.10")
	n, ok := toPG(schema.Column{Type: schema.Decimal}, amount).(pgtype.Numeric)
	require.True(t, ok)
	back, ok := fromPG(&n).(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, amount.Equal(back))

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	d, ok := toPG(schema.Column{Type: schema.Date}, day).(pgtype.Date)
	require.True(t, ok)
	assert.Equal(t, day, fromPG(&d))

	assert.Nil(t, fromPG(&pgtype.Text{}))
	assert.Nil(t, toPG(schema.Column{Type: schema.Text}, nil))
}
