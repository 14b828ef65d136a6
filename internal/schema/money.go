package schema

import (
	"errors"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept for amounts.
const MoneyScale = 2

var hundred = decimal.NewFromInt(100)

// LineTotal prices one bill line: unit_price * quantity * (1 - discount/100),
// rounded half away from zero to two places.
func LineTotal(unitPrice decimal.Decimal, quantity int64, discountPct decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(discountPct.Div(hundred))
	return unitPrice.Mul(decimal.NewFromInt(quantity)).Mul(factor).Round(MoneyScale)
}

func bound(n int64) *decimal.Decimal {
	d := decimal.NewFromInt(n)
	return &d
}

func deriveLineTotal(r Row) (any, error) {
	unit, ok := r["unit_price"].(decimal.Decimal)
	if !ok {
		return nil, errors.New("unit_price is required")
	}
	qty, ok := r["quantity"].(int64)
	if !ok {
		return nil, errors.New("quantity is required")
	}
	discount := decimal.Zero
	if d, ok := r["discount_percentage"].(decimal.Decimal); ok {
		discount = d
	}
	return LineTotal(unit, qty, discount), nil
}
