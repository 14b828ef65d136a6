package appointment

import (
	"time"

	"github.com/hackgods/clinic-records/internal/schema"
)

// Status is the name of a row in appointment_statuses.
type Status string

const (
	StatusScheduled   Status = "Scheduled"
	StatusConfirmed   Status = "Confirmed"
	StatusCompleted   Status = "Completed"
	StatusCancelled   Status = "Cancelled"
	StatusNoShow      Status = "No-Show"
	StatusRescheduled Status = "Rescheduled"
)

type Appointment struct {
	ID        int64                  `json:"appointment_id"`
	PatientID int64                  `json:"patient_id"`
	DoctorID  int64                  `json:"doctor_id"`
	Date      time.Time              `json:"-"`
	Start     schema.Clock           `json:"start_time"`
	End       schema.Clock           `json:"end_time"`
	StatusID  int64                  `json:"status_id"`
	Status    Status                 `json:"status"`
	Type      schema.AppointmentType `json:"appointment_type"`
	Reason    *string                `json:"reason,omitempty"`
	Notes     *string                `json:"notes,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// AppointmentDate is the calendar day in the wire format.
func (a Appointment) AppointmentDate() string {
	return a.Date.Format(schema.DateLayout)
}

// EndsAt is the end of the appointment as an instant in UTC.
func (a Appointment) EndsAt() time.Time {
	return a.End.On(a.Date)
}

func (a Appointment) row() schema.Row {
	r := schema.Row{
		"patient_id":       a.PatientID,
		"doctor_id":        a.DoctorID,
		"appointment_date": a.Date,
		"start_time":       a.Start,
		"end_time":         a.End,
		"status_id":        a.StatusID,
	}
	if a.Type != "" {
		r["appointment_type"] = string(a.Type)
	}
	if a.Reason != nil {
		r["reason"] = *a.Reason
	}
	if a.Notes != nil {
		r["notes"] = *a.Notes
	}
	return r
}

func fromRow(r schema.Row) *Appointment {
	a := &Appointment{}
	a.ID, _ = r.Int64("appointment_id")
	a.PatientID, _ = r.Int64("patient_id")
	a.DoctorID, _ = r.Int64("doctor_id")
	a.StatusID, _ = r.Int64("status_id")
	a.Date, _ = r["appointment_date"].(time.Time)
	a.Start, _ = r["start_time"].(schema.Clock)
	a.End, _ = r["end_time"].(schema.Clock)
	a.CreatedAt, _ = r["created_at"].(time.Time)
	a.UpdatedAt, _ = r["updated_at"].(time.Time)
	if t, ok := r.String("appointment_type"); ok {
		a.Type = schema.AppointmentType(t)
	}
	if s, ok := r.String("reason"); ok {
		a.Reason = &s
	}
	if s, ok := r.String("notes"); ok {
		a.Notes = &s
	}
	return a
}

// BookRequest describes a new appointment. Status defaults to Scheduled.
type BookRequest struct {
	PatientID int64
	DoctorID  int64
	Date      time.Time
	Start     schema.Clock
	End       schema.Clock
	Status    Status
	Type      schema.AppointmentType
	Reason    string
	Notes     string
}

// Slot is the new time for a rescheduled appointment.
type Slot struct {
	Date  time.Time
	Start schema.Clock
	End   schema.Clock
}

type Notification struct {
	UserID  int64
	Type    schema.NotificationType
	Title   string
	Message string
}
