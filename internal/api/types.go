package api

import (
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-records/internal/appointment"
	"github.com/hackgods/clinic-records/internal/billing"
	"github.com/hackgods/clinic-records/internal/schema"
)

type BookAppointmentRequest struct {
	PatientID       *int64        `json:"patient_id"`
	DoctorID        *int64        `json:"doctor_id"`
	AppointmentDate string        `json:"appointment_date"`
	StartTime       *schema.Clock `json:"start_time"`
	EndTime         *schema.Clock `json:"end_time"`
	Status          string        `json:"status"`
	AppointmentType string        `json:"appointment_type"`
	Reason          string        `json:"reason"`
	Notes           string        `json:"notes"`
}

// missing lists the required booking fields absent from the body.
func (b BookAppointmentRequest) missing() []string {
	var cols []string
	if b.PatientID == nil {
		cols = append(cols, "patient_id")
	}
	if b.DoctorID == nil {
		cols = append(cols, "doctor_id")
	}
	if b.AppointmentDate == "" {
		cols = append(cols, "appointment_date")
	}
	if b.StartTime == nil {
		cols = append(cols, "start_time")
	}
	if b.EndTime == nil {
		cols = append(cols, "end_time")
	}
	return cols
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type RescheduleRequest struct {
	AppointmentDate string        `json:"appointment_date"`
	StartTime       *schema.Clock `json:"start_time"`
	EndTime         *schema.Clock `json:"end_time"`
}

func (b RescheduleRequest) missing() []string {
	var cols []string
	if b.AppointmentDate == "" {
		cols = append(cols, "appointment_date")
	}
	if b.StartTime == nil {
		cols = append(cols, "start_time")
	}
	if b.EndTime == nil {
		cols = append(cols, "end_time")
	}
	return cols
}

type AppointmentResponse struct {
	*appointment.Appointment
	AppointmentDate string `json:"appointment_date"`
}

func appointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{Appointment: a, AppointmentDate: a.AppointmentDate()}
}

type RescheduleResponse struct {
	Previous    AppointmentResponse `json:"previous"`
	Appointment AppointmentResponse `json:"appointment"`
}

type CreateBillRequest struct {
	PatientID     int64                 `json:"patient_id"`
	AppointmentID *int64                `json:"appointment_id"`
	InvoiceNumber string                `json:"invoice_number"`
	BillDate      string                `json:"bill_date"`
	DueDate       string                `json:"due_date"`
	TotalAmount   *decimal.Decimal      `json:"total_amount"`
	Notes         string                `json:"notes"`
	Services      []billing.LineRequest `json:"services"`
}

type BillTotalRequest struct {
	TotalAmount *decimal.Decimal `json:"total_amount"`
}

type PaymentRequest struct {
	Amount decimal.Decimal      `json:"amount"`
	Method schema.PaymentMethod `json:"payment_method"`
}

type BillLineResponse struct {
	ID                 int64  `json:"bill_service_id"`
	ServiceID          int64  `json:"service_id"`
	Quantity           int64  `json:"quantity"`
	UnitPrice          string `json:"unit_price"`
	DiscountPercentage string `json:"discount_percentage"`
	TotalPrice         string `json:"total_price"`
}

type BillResponse struct {
	ID            int64              `json:"bill_id"`
	InvoiceNumber string             `json:"invoice_number"`
	PatientID     int64              `json:"patient_id"`
	AppointmentID *int64             `json:"appointment_id,omitempty"`
	BillDate      string             `json:"bill_date"`
	TotalAmount   string             `json:"total_amount"`
	PaidAmount    string             `json:"paid_amount"`
	Balance       string             `json:"balance"`
	PaymentStatus string             `json:"payment_status"`
	PaymentMethod string             `json:"payment_method,omitempty"`
	Services      []BillLineResponse `json:"services"`
}

func lineResponse(l billing.Line) BillLineResponse {
	return BillLineResponse{
		ID:                 l.ID,
		ServiceID:          l.ServiceID,
		Quantity:           l.Quantity,
		UnitPrice:          l.UnitPrice.StringFixed(schema.MoneyScale),
		DiscountPercentage: l.Discount.StringFixed(schema.MoneyScale),
		TotalPrice:         l.Total.StringFixed(schema.MoneyScale),
	}
}

func billResponse(b *billing.Bill) BillResponse {
	resp := BillResponse{
		ID:            b.ID,
		InvoiceNumber: b.InvoiceNumber,
		PatientID:     b.PatientID,
		AppointmentID: b.AppointmentID,
		BillDate:      b.BillDate,
		TotalAmount:   b.Total.StringFixed(schema.MoneyScale),
		PaidAmount:    b.Paid.StringFixed(schema.MoneyScale),
		Balance:       b.Balance().StringFixed(schema.MoneyScale),
		PaymentStatus: string(b.Status),
		PaymentMethod: b.Method,
		Services:      []BillLineResponse{},
	}
	for _, l := range b.Lines {
		resp.Services = append(resp.Services, lineResponse(l))
	}
	return resp
}

type LinkUserRequest struct {
	UserID int64 `json:"user_id"`
}
