package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/hackgods/clinic-records/internal/schema"
	"github.com/hackgods/clinic-records/internal/store"
)

// StoreRepository persists appointments through the constraint-checking store,
// so booking collisions surface as store.ErrSchedulingConflict.
type StoreRepository struct {
	s *store.Store
}

func NewStoreRepository(s *store.Store) *StoreRepository {
	return &StoreRepository{s: s}
}

func (r *StoreRepository) Create(ctx context.Context, a Appointment) (*Appointment, error) {
	row, err := r.s.Create(ctx, schema.Appointments, a.row())
	if err != nil {
		return nil, err
	}
	return fromRow(row), nil
}

func (r *StoreRepository) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	row, err := r.s.Get(ctx, schema.Appointments, id)
	if err != nil {
		return nil, err
	}
	return fromRow(row), nil
}

func rowKey(id int64) string {
	return fmt.Sprintf("%s:%d", schema.Appointments, id)
}

func casStatus(ctx context.Context, w store.Writer, id, from, to int64) (schema.Row, error) {
	if err := w.Lock(ctx, rowKey(id)); err != nil {
		return nil, err
	}
	current, err := w.Get(ctx, schema.Appointments, id)
	if err != nil {
		return nil, err
	}
	if status, _ := current.Int64("status_id"); status != from {
		return nil, ErrStatusChanged
	}
	return w.Update(ctx, schema.Appointments, id, schema.Row{"status_id": to})
}

func (r *StoreRepository) UpdateStatus(ctx context.Context, id, from, to int64) (*Appointment, error) {
	var updated schema.Row
	err := r.s.Atomic(ctx, func(w store.Writer) error {
		var err error
		updated, err = casStatus(ctx, w, id, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fromRow(updated), nil
}

func (r *StoreRepository) Reschedule(ctx context.Context, id, from, rescheduled int64, next Appointment) (*Appointment, *Appointment, error) {
	var old, created schema.Row
	err := r.s.Atomic(ctx, func(w store.Writer) error {
		var err error
		if old, err = casStatus(ctx, w, id, from, rescheduled); err != nil {
			return err
		}
		created, err = w.Create(ctx, schema.Appointments, next.row())
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return fromRow(old), fromRow(created), nil
}

func (r *StoreRepository) list(ctx context.Context, col string, id int64, limit, offset int) ([]Appointment, error) {
	rows, err := r.s.Find(ctx, schema.Appointments, store.Query{
		Where:  schema.Row{col: id},
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Appointment, 0, len(rows))
	for _, row := range rows {
		out = append(out, *fromRow(row))
	}
	return out, nil
}

func (r *StoreRepository) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]Appointment, error) {
	return r.list(ctx, "patient_id", patientID, limit, offset)
}

func (r *StoreRepository) ListByDoctor(ctx context.Context, doctorID int64, limit, offset int) ([]Appointment, error) {
	return r.list(ctx, "doctor_id", doctorID, limit, offset)
}

func (r *StoreRepository) FindEndedBefore(ctx context.Context, statuses []int64, cutoff time.Time) ([]Appointment, error) {
	cutoff = cutoff.UTC()
	var out []Appointment
	for _, status := range statuses {
		rows, err := r.s.Find(ctx, schema.Appointments, store.Query{
			Where: schema.Row{"status_id": status},
			Until: schema.Row{"appointment_date": schema.DateOf(cutoff)},
		})
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			a := fromRow(row)
			if !a.EndsAt().After(cutoff) {
				out = append(out, *a)
			}
		}
	}
	return out, nil
}

func (r *StoreRepository) PatientUser(ctx context.Context, patientID int64) (int64, bool, error) {
	row, err := r.s.Get(ctx, schema.Patients, patientID)
	if err != nil {
		return 0, false, err
	}
	id, ok := row.Int64("user_id")
	return id, ok, nil
}

func (r *StoreRepository) InsertNotification(ctx context.Context, n Notification) error {
	_, err := r.s.Create(ctx, schema.Notifications, schema.Row{
		"user_id":           n.UserID,
		"notification_type": string(n.Type),
		"title":             n.Title,
		"message":           n.Message,
	})
	return err
}
