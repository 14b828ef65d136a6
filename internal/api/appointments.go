package api

import (
	"context"
	"net/http"

	"github.com/hackgods/clinic-records/internal/appointment"
	"github.com/hackgods/clinic-records/internal/schema"
)

func (h *handlers) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if cols := req.missing(); len(cols) > 0 {
		writeMissingFields(w, r, schema.Appointments, cols...)
		return
	}
	date, err := schema.ParseDate(req.AppointmentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_date", err.Error())
		return
	}

	appt, err := h.appts.Book(r.Context(), appointment.BookRequest{
		PatientID: *req.PatientID,
		DoctorID:  *req.DoctorID,
		Date:      date,
		Start:     *req.StartTime,
		End:       *req.EndTime,
		Status:    appointment.Status(req.Status),
		Type:      schema.AppointmentType(req.AppointmentType),
		Reason:    req.Reason,
		Notes:     req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appointmentResponse(appt))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	appt, err := h.appts.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentResponse(appt))
}

func (h *handlers) transitionAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req TransitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "missing_status", "status is required")
		return
	}

	appt, err := h.appts.Transition(r.Context(), id, appointment.Status(req.Status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentResponse(appt))
}

func (h *handlers) rescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req RescheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if cols := req.missing(); len(cols) > 0 {
		writeMissingFields(w, r, schema.Appointments, cols...)
		return
	}
	date, err := schema.ParseDate(req.AppointmentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_date", err.Error())
		return
	}

	old, next, err := h.appts.Reschedule(r.Context(), id, appointment.Slot{Date: date, Start: *req.StartTime, End: *req.EndTime})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, RescheduleResponse{
		Previous:    appointmentResponse(old),
		Appointment: appointmentResponse(next),
	})
}

func (h *handlers) listAppointmentsByPatient(w http.ResponseWriter, r *http.Request) {
	h.listAppointments(w, r, h.appts.ListByPatient)
}

func (h *handlers) listAppointmentsByDoctor(w http.ResponseWriter, r *http.Request) {
	h.listAppointments(w, r, h.appts.ListByDoctor)
}

type listFunc func(ctx context.Context, id int64, limit, offset int) ([]appointment.Appointment, error)

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request, list listFunc) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, offset, ok := page(w, r)
	if !ok {
		return
	}
	appts, err := list(r.Context(), id, limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	items := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		items = append(items, appointmentResponse(&appts[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}
