package store

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-records/internal/schema"
)

// normalize converts a caller-supplied value into the canonical Go type for
// col and checks it against the column domain.
func normalize(t *schema.Table, col schema.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	var (
		out any
		err error
	)
	switch col.Type {
	case schema.Int:
		out, err = toInt(v)
	case schema.Text:
		out, err = toText(v)
	case schema.Bool:
		b, ok := v.(bool)
		if !ok {
			err = fmt.Errorf("expected boolean, got %T", v)
		}
		out = b
	case schema.Date:
		out, err = toDate(v)
	case schema.Time:
		out, err = toClock(v)
	case schema.Timestamp:
		out, err = toTimestamp(v)
	case schema.Decimal:
		out, err = toDecimal(v, col.Scale)
	default:
		err = fmt.Errorf("unsupported column type %s", col.Type)
	}
	if err != nil {
		return nil, domainErr(t.Name, col.Name, "%v", err)
	}

	if err := checkDomain(t, col, out); err != nil {
		return nil, err
	}
	return out, nil
}

func checkDomain(t *schema.Table, col schema.Column, v any) error {
	if s, ok := v.(string); ok {
		if len(col.Enum) > 0 && !slices.Contains(col.Enum, s) {
			return domainErr(t.Name, col.Name, "%q is not one of %v", s, col.Enum)
		}
		if col.MaxLen > 0 && utf8.RuneCountInString(s) > col.MaxLen {
			return domainErr(t.Name, col.Name, "longer than %d characters", col.MaxLen)
		}
		return nil
	}

	var d decimal.Decimal
	switch n := v.(type) {
	case int64:
		d = decimal.NewFromInt(n)
	case decimal.Decimal:
		d = n
	default:
		return nil
	}
	if col.Min != nil && d.LessThan(*col.Min) {
		return domainErr(t.Name, col.Name, "%s is below the minimum %s", d, col.Min)
	}
	if col.Max != nil && d.GreaterThan(*col.Max) {
		return domainErr(t.Name, col.Name, "%s is above the maximum %s", d, col.Max)
	}
	return nil
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func toText(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	}
	// named string types such as schema.Role
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return "", fmt.Errorf("expected string, got %T", v)
}

func toDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return schema.DateOf(d), nil
	case string:
		return schema.ParseDate(d)
	}
	return time.Time{}, fmt.Errorf("expected date, got %T", v)
}

func toClock(v any) (schema.Clock, error) {
	switch c := v.(type) {
	case schema.Clock:
		if !c.Valid() {
			return 0, fmt.Errorf("time of day out of range")
		}
		return c, nil
	case string:
		return schema.ParseClock(c)
	case time.Time:
		return schema.NewClock(c.Hour(), c.Minute(), c.Second())
	}
	return 0, fmt.Errorf("expected time of day, got %T", v)
}

func toTimestamp(v any) (time.Time, error) {
	switch ts := v.(type) {
	case time.Time:
		return ts.UTC(), nil
	case string:
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", ts)
		}
		return parsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("expected timestamp, got %T", v)
}

func toDecimal(v any, scale int) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch n := v.(type) {
	case decimal.Decimal:
		d = n
	case string:
		d, err = decimal.NewFromString(n)
	case json.Number:
		d, err = decimal.NewFromString(n.String())
	case float64:
		d = decimal.NewFromFloat(n)
	case int64:
		d = decimal.NewFromInt(n)
	case int:
		d = decimal.NewFromInt(int64(n))
	default:
		return decimal.Decimal{}, fmt.Errorf("expected decimal, got %T", v)
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid decimal %v", v)
	}
	if !d.Equal(d.Round(int32(scale))) {
		return decimal.Decimal{}, fmt.Errorf("%s has more than %d fractional digits", d, scale)
	}
	return d.Round(int32(scale)), nil
}

// compareValues orders two canonical values of the same type.
func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case int64:
		bv, ok := b.(int64)
		return cmp.Compare(av, bv), ok
	case string:
		bv, ok := b.(string)
		return cmp.Compare(av, bv), ok
	case schema.Clock:
		bv, ok := b.(schema.Clock)
		return cmp.Compare(av, bv), ok
	case time.Time:
		bv, ok := b.(time.Time)
		return av.Compare(bv), ok
	case decimal.Decimal:
		bv, ok := b.(decimal.Decimal)
		return av.Cmp(bv), ok
	}
	return 0, false
}

// sameValue compares two canonical values.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case decimal.Decimal:
		bv, ok := b.(decimal.Decimal)
		return ok && av.Equal(bv)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	}
	return a == b
}

// ParseFilter turns query-string style values into a Where clause for t.
// The literal "null" matches NULL.
func ParseFilter(t *schema.Table, params map[string]string) (schema.Row, error) {
	where := make(schema.Row, len(params))
	for name, raw := range params {
		col, ok := t.Column(name)
		if !ok {
			return nil, domainErr(t.Name, name, "unknown column")
		}
		if raw == "null" {
			where[name] = nil
			continue
		}

		var v any = raw
		switch col.Type {
		case schema.Int:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, domainErr(t.Name, name, "expected integer, got %q", raw)
			}
			v = n
		case schema.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, domainErr(t.Name, name, "expected boolean, got %q", raw)
			}
			v = b
		}
		norm, err := normalize(t, col, v)
		if err != nil {
			return nil, err
		}
		where[name] = norm
	}
	return where, nil
}
