package api

import (
	"net/http"

	"github.com/hackgods/clinic-records/internal/billing"
	"github.com/hackgods/clinic-records/internal/schema"
)

func (h *handlers) createBill(w http.ResponseWriter, r *http.Request) {
	var req CreateBillRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := billing.BillRequest{
		PatientID:     req.PatientID,
		AppointmentID: req.AppointmentID,
		InvoiceNumber: req.InvoiceNumber,
		Total:         req.TotalAmount,
		Notes:         req.Notes,
		Lines:         req.Services,
	}
	if req.BillDate != "" {
		d, err := schema.ParseDate(req.BillDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_bill_date", err.Error())
			return
		}
		in.BillDate = d
	}
	if req.DueDate != "" {
		d, err := schema.ParseDate(req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_due_date", err.Error())
			return
		}
		in.DueDate = &d
	}

	bill, err := h.bills.CreateBill(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, billResponse(bill))
}

func (h *handlers) getBill(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	bill, err := h.bills.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, billResponse(bill))
}

func (h *handlers) addBillLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req billing.LineRequest
	if !decodeBody(w, r, &req) {
		return
	}
	line, err := h.bills.AddLine(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lineResponse(*line))
}

func (h *handlers) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req PaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	bill, err := h.bills.RecordPayment(r.Context(), id, billing.Payment{Amount: req.Amount, Method: req.Method})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, billResponse(bill))
}


func (h *handlers) setBillTotal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req BillTotalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TotalAmount == nil {
		writeMissingFields(w, r, schema.Billing, "total_amount")
		return
	}
	bill, err := h.bills.SetTotal(r.Context(), id, *req.TotalAmount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, billResponse(bill))
}
