package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-records/internal/schema"
	"github.com/hackgods/clinic-records/internal/store"
)

type Line struct {
	ID        int64           `json:"bill_service_id"`
	BillID    int64           `json:"bill_id"`
	ServiceID int64           `json:"service_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount_percentage"`
	Total     decimal.Decimal `json:"total_price"`
}

type Bill struct {
	ID            int64                `json:"bill_id"`
	InvoiceNumber string               `json:"invoice_number"`
	PatientID     int64                `json:"patient_id"`
	AppointmentID *int64               `json:"appointment_id,omitempty"`
	BillDate      string               `json:"bill_date"`
	Total         decimal.Decimal      `json:"total_amount"`
	Paid          decimal.Decimal      `json:"paid_amount"`
	Status        schema.PaymentStatus `json:"payment_status"`
	Method        string               `json:"payment_method,omitempty"`
	Lines         []Line               `json:"services,omitempty"`
}

// Balance is what remains to be paid.
func (b Bill) Balance() decimal.Decimal {
	return b.Total.Sub(b.Paid)
}

// LineRequest adds a service to a bill. A nil UnitPrice takes the service's
// listed cost; Quantity defaults to 1.
type LineRequest struct {
	ServiceID int64            `json:"service_id"`
	Quantity  int64            `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal  `json:"discount_percentage"`
}

// BillRequest creates a bill. An empty InvoiceNumber is generated, a zero
// BillDate is today, and a nil Total is the sum of the line totals.
type BillRequest struct {
	PatientID     int64            `json:"patient_id"`
	AppointmentID *int64           `json:"appointment_id"`
	InvoiceNumber string           `json:"invoice_number"`
	BillDate      time.Time        `json:"-"`
	DueDate       *time.Time       `json:"-"`
	Total         *decimal.Decimal `json:"total_amount"`
	Notes         string           `json:"notes"`
	Lines         []LineRequest    `json:"services"`
}

type Payment struct {
	Amount decimal.Decimal      `json:"amount"`
	Method schema.PaymentMethod `json:"payment_method"`
}

type Service struct {
	store *store.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(s *store.Store, log zerolog.Logger) *Service {
	return &Service{
		store: s,
		log:   log.With().Str("component", "billing").Logger(),
		now:   time.Now,
	}
}

func (s *Service) invoiceNumber(date time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("INV-%s-%s", date.Format("20060102"), id[:10])
}

// CreateBill inserts the bill and its lines in one transaction.
func (s *Service) CreateBill(ctx context.Context, req BillRequest) (*Bill, error) {
	date := req.BillDate
	if date.IsZero() {
		date = s.now()
	}
	date = schema.DateOf(date)
	if req.InvoiceNumber == "" {
		req.InvoiceNumber = s.invoiceNumber(date)
	}

	var bill *Bill
	err := s.store.Atomic(ctx, func(w store.Writer) error {
		lines := make([]schema.Row, 0, len(req.Lines))
		sum := decimal.Zero
		for _, l := range req.Lines {
			row, err := lineRow(ctx, w, l)
			if err != nil {
				return err
			}
			lines = append(lines, row)
			sum = sum.Add(row["total_price"].(decimal.Decimal))
		}

		total := sum
		if req.Total != nil {
			total = *req.Total
		}
		row := schema.Row{
			"invoice_number": req.InvoiceNumber,
			"patient_id":     req.PatientID,
			"bill_date":      date,
			"total_amount":   total,
		}
		if req.AppointmentID != nil {
			row["appointment_id"] = *req.AppointmentID
		}
		if req.DueDate != nil {
			row["due_date"] = schema.DateOf(*req.DueDate)
		}
		if req.Notes != "" {
			row["notes"] = req.Notes
		}
		created, err := w.Create(ctx, schema.Billing, row)
		if err != nil {
			return err
		}
		bill = billFromRow(created)

		for _, line := range lines {
			line["bill_id"] = bill.ID
			delete(line, "total_price")
			out, err := w.Create(ctx, schema.BillServices, line)
			if err != nil {
				return err
			}
			bill.Lines = append(bill.Lines, lineFromRow(out))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create bill: %w", err)
	}

	s.log.Info().Int64("bill_id", bill.ID).Str("invoice", bill.InvoiceNumber).Str("total", bill.Total.StringFixed(schema.MoneyScale)).Msg("bill created")
	return bill, nil
}

// lineRow prices a line the way the store will derive it, so the bill total
// can be summed before anything is inserted.
func lineRow(ctx context.Context, w store.Writer, l LineRequest) (schema.Row, error) {
	if l.Quantity == 0 {
		l.Quantity = 1
	}
	var unit decimal.Decimal
	if l.UnitPrice != nil {
		unit = *l.UnitPrice
	} else {
		svc, err := w.Get(ctx, schema.Services, l.ServiceID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.NewViolation(store.ErrReferentialViolation, schema.BillServices, []string{"service_id"}, "service %d does not exist", l.ServiceID)
		}
		if err != nil {
			return nil, err
		}
		unit, _ = svc["cost"].(decimal.Decimal)
	}
	return schema.Row{
		"service_id":          l.ServiceID,
		"quantity":            l.Quantity,
		"unit_price":          unit,
		"discount_percentage": l.Discount,
		"total_price":         schema.LineTotal(unit, l.Quantity, l.Discount),
	}, nil
}

// AddLine appends a service to an existing bill. The bill total is left as
// billed.
func (s *Service) AddLine(ctx context.Context, billID int64, req LineRequest) (*Line, error) {
	var line Line
	err := s.store.Atomic(ctx, func(w store.Writer) error {
		if _, err := w.Get(ctx, schema.Billing, billID); err != nil {
			return err
		}
		row, err := lineRow(ctx, w, req)
		if err != nil {
			return err
		}
		row["bill_id"] = billID
		delete(row, "total_price")
		out, err := w.Create(ctx, schema.BillServices, row)
		if err != nil {
			return err
		}
		line = lineFromRow(out)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add bill line: %w", err)
	}
	return &line, nil
}

// PaymentStatusFor derives the status of a bill from what has been paid.
func PaymentStatusFor(total, paid decimal.Decimal) schema.PaymentStatus {
	switch {
	case paid.IsZero():
		return schema.PaymentUnpaid
	case paid.LessThan(total):
		return schema.PaymentPartiallyPaid
	default:
		return schema.PaymentPaid
	}
}

// RecordPayment adds a payment to the bill and updates its status.
func (s *Service) RecordPayment(ctx context.Context, billID int64, p Payment) (*Bill, error) {
	if !p.Amount.IsPositive() {
		return nil, store.NewViolation(store.ErrDomainViolation, schema.Billing, []string{"paid_amount"}, "payment must be positive, got %s", p.Amount)
	}
	if p.Method != "" && !p.Method.Valid() {
		return nil, store.NewViolation(store.ErrDomainViolation, schema.Billing, []string{"payment_method"}, "unknown payment method %q", p.Method)
	}

	var bill *Bill
	err := s.store.Atomic(ctx, func(w store.Writer) error {
		if err := w.Lock(ctx, fmt.Sprintf("%s:%d", schema.Billing, billID)); err != nil {
			return err
		}
		row, err := w.Get(ctx, schema.Billing, billID)
		if err != nil {
			return err
		}
		current := billFromRow(row)
		if current.Status == schema.PaymentCancelled || current.Status == schema.PaymentRefunded {
			return store.NewViolation(store.ErrDomainViolation, schema.Billing, []string{"payment_status"}, "bill %d is %s", billID, current.Status)
		}

		paid := current.Paid.Add(p.Amount)
		if paid.GreaterThan(current.Total) {
			return store.NewViolation(store.ErrDomainViolation, schema.Billing, []string{"paid_amount"},
				"payment of %s exceeds balance %s", p.Amount.StringFixed(schema.MoneyScale), current.Balance().StringFixed(schema.MoneyScale))
		}

		changes := schema.Row{
			"paid_amount":    paid,
			"payment_status": string(PaymentStatusFor(current.Total, paid)),
		}
		if p.Method != "" {
			changes["payment_method"] = string(p.Method)
		}
		updated, err := w.Update(ctx, schema.Billing, billID, changes)
		if err != nil {
			return err
		}
		bill = billFromRow(updated)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	s.log.Info().Int64("bill_id", billID).Str("amount", p.Amount.StringFixed(schema.MoneyScale)).Str("status", string(bill.Status)).Msg("payment recorded")
	return bill, nil
}

// SetTotal changes the amount due. The total may not drop below what has
// already been paid, and the payment status follows the new total unless the
// bill is Cancelled or Refunded.
func (s *Service) SetTotal(ctx context.Context, billID int64, total decimal.Decimal) (*Bill, error) {
	if total.IsNegative() {
		return nil, store.NewViolation(store.ErrDomainViolation, schema.Billing, []string{"total_amount"}, "total must not be negative, got %s", total)
	}

	var bill *Bill
	err := s.store.Atomic(ctx, func(w store.Writer) error {
		if err := w.Lock(ctx, fmt.Sprintf("%s:%d", schema.Billing, billID)); err != nil {
			return err
		}
		row, err := w.Get(ctx, schema.Billing, billID)
		if err != nil {
			return err
		}
		current := billFromRow(row)
		if total.LessThan(current.Paid) {
			return store.NewViolation(store.ErrDomainViolation, schema.Billing, []string{"total_amount", "paid_amount"},
				"total %s is below the paid amount %s", total.StringFixed(schema.MoneyScale), current.Paid.StringFixed(schema.MoneyScale))
		}

		changes := schema.Row{"total_amount": total}
		if current.Status != schema.PaymentCancelled && current.Status != schema.PaymentRefunded {
			changes["payment_status"] = string(PaymentStatusFor(total, current.Paid))
		}
		updated, err := w.Update(ctx, schema.Billing, billID, changes)
		if err != nil {
			return err
		}
		bill = billFromRow(updated)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set bill total: %w", err)
	}

	s.log.Info().Int64("bill_id", billID).Str("total", total.StringFixed(schema.MoneyScale)).Str("status", string(bill.Status)).Msg("bill total changed")
	return bill, nil
}

// Get returns a bill with its lines.
func (s *Service) Get(ctx context.Context, id int64) (*Bill, error) {
	row, err := s.store.Get(ctx, schema.Billing, id)
	if err != nil {
		return nil, err
	}
	bill := billFromRow(row)
	rows, err := s.store.Find(ctx, schema.BillServices, store.Query{Where: schema.Row{"bill_id": id}})
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		bill.Lines = append(bill.Lines, lineFromRow(r))
	}
	return bill, nil
}

func billFromRow(r schema.Row) *Bill {
	b := &Bill{}
	b.ID, _ = r.Int64("bill_id")
	b.PatientID, _ = r.Int64("patient_id")
	b.InvoiceNumber, _ = r.String("invoice_number")
	if id, ok := r.Int64("appointment_id"); ok {
		b.AppointmentID = &id
	}
	if d, ok := r["bill_date"].(time.Time); ok {
		b.BillDate = d.Format(schema.DateLayout)
	}
	b.Total, _ = r["total_amount"].(decimal.Decimal)
	b.Paid, _ = r["paid_amount"].(decimal.Decimal)
	status, _ := r.String("payment_status")
	b.Status = schema.PaymentStatus(status)
	b.Method, _ = r.String("payment_method")
	return b
}

func lineFromRow(r schema.Row) Line {
	var l Line
	l.ID, _ = r.Int64("bill_service_id")
	l.BillID, _ = r.Int64("bill_id")
	l.ServiceID, _ = r.Int64("service_id")
	l.Quantity, _ = r.Int64("quantity")
	l.UnitPrice, _ = r["unit_price"].(decimal.Decimal)
	l.Discount, _ = r["discount_percentage"].(decimal.Decimal)
	l.Total, _ = r["total_price"].(decimal.Decimal)
	return l
}
