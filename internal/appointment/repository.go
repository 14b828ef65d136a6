package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrStatusChanged           = fmt.Errorf("%w: status changed concurrently", ErrInvalidStatusTransition)
)

// Repository contains all persistence needed by the service.
type Repository interface {
	Create(ctx context.Context, a Appointment) (*Appointment, error)
	GetByID(ctx context.Context, id int64) (*Appointment, error)

	// UpdateStatus moves the appointment to status to only if it is still in
	// status from, otherwise ErrStatusChanged.
	UpdateStatus(ctx context.Context, id, from, to int64) (*Appointment, error)

	// Reschedule marks the old appointment and books next in one transaction.
	Reschedule(ctx context.Context, id, from, rescheduled int64, next Appointment) (*Appointment, *Appointment, error)

	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]Appointment, error)
	ListByDoctor(ctx context.Context, doctorID int64, limit, offset int) ([]Appointment, error)

	// FindEndedBefore lists appointments in one of statuses that ended at or
	// before cutoff.
	FindEndedBefore(ctx context.Context, statuses []int64, cutoff time.Time) ([]Appointment, error)

	// PatientUser returns the user linked to a patient, if any.
	PatientUser(ctx context.Context, patientID int64) (int64, bool, error)
	InsertNotification(ctx context.Context, n Notification) error
}
