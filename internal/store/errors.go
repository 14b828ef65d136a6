package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDomainViolation      = errors.New("domain violation")
	ErrUniquenessViolation  = errors.New("uniqueness violation")
	ErrReferentialViolation = errors.New("referential violation")
	ErrSchedulingConflict   = errors.New("scheduling conflict")
	ErrCascadeFailure       = errors.New("cascade failure")
	ErrNotFound             = errors.New("row not found")
)

// ViolationError reports which constraint a write broke. Kind is one of the
// sentinel errors above, so callers match with errors.Is.
type ViolationError struct {
	Kind    error
	Table   string
	Columns []string
	Detail  string
	Err     error
}

func (e *ViolationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Table != "" {
		b.WriteString(" on ")
		b.WriteString(e.Table)
		if len(e.Columns) > 0 {
			b.WriteString("(")
			b.WriteString(strings.Join(e.Columns, ", "))
			b.WriteString(")")
		}
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the kind, the underlying cause and, for scheduling
// conflicts, the uniqueness violation they specialize.
func (e *ViolationError) Unwrap() []error {
	errs := []error{e.Kind}
	if errors.Is(e.Kind, ErrSchedulingConflict) {
		errs = append(errs, ErrUniquenessViolation)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func violation(kind error, table string, cols []string, format string, args ...any) *ViolationError {
	return &ViolationError{Kind: kind, Table: table, Columns: cols, Detail: fmt.Sprintf(format, args...)}
}

func domainErr(table, col, format string, args ...any) error {
	return violation(ErrDomainViolation, table, []string{col}, format, args...)
}

func notFound(table string, id int64) error {
	return violation(ErrNotFound, table, nil, "id %d", id)
}

// AsViolation extracts the violation details from err, if any.
func AsViolation(err error) (*ViolationError, bool) {
	var v *ViolationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// NewViolation builds a constraint error for checks done outside the store,
// such as name resolution against reference tables.
func NewViolation(kind error, table string, cols []string, format string, args ...any) *ViolationError {
	return violation(kind, table, cols, format, args...)
}
