package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-records/internal/config"
	redisclient "github.com/hackgods/clinic-records/internal/redis"
	"github.com/hackgods/clinic-records/internal/schema"
	"github.com/hackgods/clinic-records/internal/store"
)

// Lookups resolves appointment status names. *lookup.Cache satisfies it.
type Lookups interface {
	Resolve(ctx context.Context, table, name string) (int64, error)
	Name(table string, id int64) (string, bool)
}

type Service struct {
	repo        Repository
	locker      redisclient.Locker
	lookups     Lookups
	transitions *Transitions
	cfg         config.Config
	log         zerolog.Logger
	now         func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, lookups Lookups, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		locker:      locker,
		lookups:     lookups,
		transitions: DefaultTransitions(),
		cfg:         cfg,
		log:         log.With().Str("component", "appointment").Logger(),
		now:         time.Now,
	}
}

func (s *Service) Transitions() *Transitions {
	return s.transitions
}

func (s *Service) statusID(ctx context.Context, status Status) (int64, error) {
	return s.lookups.Resolve(ctx, schema.AppointmentStatus, string(status))
}

func (s *Service) hydrate(a *Appointment) *Appointment {
	if a == nil {
		return nil
	}
	if name, ok := s.lookups.Name(schema.AppointmentStatus, a.StatusID); ok {
		a.Status = Status(name)
	}
	return a
}

// Book reserves a doctor's slot for a patient. The Redis lock turns most
// collisions into a fast retry; the store's scheduling key is what
// guarantees a doctor is never double booked.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if req.Status == "" {
		req.Status = StatusScheduled
	}
	if !s.transitions.CanBook(req.Status) {
		return nil, fmt.Errorf("%w: cannot book in status %q", ErrInvalidStatusTransition, req.Status)
	}
	statusID, err := s.statusID(ctx, req.Status)
	if err != nil {
		return nil, fmt.Errorf("resolve status: %w", err)
	}

	appt := Appointment{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Date:      schema.DateOf(req.Date),
		Start:     req.Start,
		End:       req.End,
		StatusID:  statusID,
		Type:      req.Type,
	}
	if req.Reason != "" {
		appt.Reason = &req.Reason
	}
	if req.Notes != "" {
		appt.Notes = &req.Notes
	}

	var created *Appointment
	key := redisclient.SlotKey(req.DoctorID, appt.Date, req.Start)
	err = s.locker.WithLock(ctx, key, func(lockCtx context.Context) error {
		var err error
		created, err = s.repo.Create(lockCtx, appt)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	created = s.hydrate(created)
	s.log.Info().
		Int64("appointment_id", created.ID).
		Int64("doctor_id", created.DoctorID).
		Str("date", created.AppointmentDate()).
		Str("start", created.Start.String()).
		Msg("appointment booked")
	s.notify(ctx, created, "Appointment booked",
		fmt.Sprintf("Your appointment on %s at %s is %s.", created.AppointmentDate(), created.Start, created.Status))
	return created, nil
}

// Transition moves an appointment to another status if the state machine
// allows it.
func (s *Service) Transition(ctx context.Context, id int64, to Status) (*Appointment, error) {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.transitions.Allowed(appt.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, appt.Status, to)
	}
	toID, err := s.statusID(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("resolve status: %w", err)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, appt.StatusID, toID)
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	updated = s.hydrate(updated)

	s.log.Info().Int64("appointment_id", id).Str("from", string(appt.Status)).Str("to", string(to)).Msg("appointment status changed")
	s.notify(ctx, updated, "Appointment "+string(to),
		fmt.Sprintf("Your appointment on %s at %s is now %s.", updated.AppointmentDate(), updated.Start, to))
	return updated, nil
}

// Reschedule marks the appointment Rescheduled and books the new slot for
// the same patient and doctor in one transaction.
func (s *Service) Reschedule(ctx context.Context, id int64, slot Slot) (*Appointment, *Appointment, error) {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !s.transitions.Allowed(appt.Status, StatusRescheduled) {
		return nil, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, appt.Status, StatusRescheduled)
	}
	rescheduledID, err := s.statusID(ctx, StatusRescheduled)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve status: %w", err)
	}
	scheduledID, err := s.statusID(ctx, StatusScheduled)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve status: %w", err)
	}

	next := *appt
	next.ID = 0
	next.Date = schema.DateOf(slot.Date)
	next.Start = slot.Start
	next.End = slot.End
	next.StatusID = scheduledID

	var old, created *Appointment
	key := redisclient.SlotKey(appt.DoctorID, next.Date, next.Start)
	err = s.locker.WithLock(ctx, key, func(lockCtx context.Context) error {
		var err error
		old, created, err = s.repo.Reschedule(lockCtx, id, appt.StatusID, rescheduledID, next)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, nil, ErrSlotBeingBooked
		}
		return nil, nil, err
	}

	old, created = s.hydrate(old), s.hydrate(created)
	s.log.Info().Int64("appointment_id", id).Int64("replacement_id", created.ID).Msg("appointment rescheduled")
	s.notify(ctx, created, "Appointment rescheduled",
		fmt.Sprintf("Your appointment moved to %s at %s.", created.AppointmentDate(), created.Start))
	return old, created, nil
}

// MarkNoShows is called by the worker periodically. Appointments still
// Scheduled or Confirmed once the grace period after their end has passed
// become No-Show.
func (s *Service) MarkNoShows(ctx context.Context) (int, error) {
	noShowID, err := s.statusID(ctx, StatusNoShow)
	if err != nil {
		return 0, fmt.Errorf("resolve status: %w", err)
	}
	var open []int64
	for _, st := range []Status{StatusScheduled, StatusConfirmed} {
		id, err := s.statusID(ctx, st)
		if err != nil {
			return 0, fmt.Errorf("resolve status: %w", err)
		}
		open = append(open, id)
	}

	cutoff := s.now().Add(-s.cfg.NoShowGrace)
	overdue, err := s.repo.FindEndedBefore(ctx, open, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	marked := 0
	for _, appt := range overdue {
		updated, err := s.repo.UpdateStatus(ctx, appt.ID, appt.StatusID, noShowID)
		if err != nil {
			if !errors.Is(err, ErrStatusChanged) && !errors.Is(err, store.ErrNotFound) {
				s.log.Error().Err(err).Int64("appointment_id", appt.ID).Msg("failed to mark no-show")
			}
			continue
		}
		marked++
		updated = s.hydrate(updated)
		s.notify(ctx, updated, "Missed appointment",
			fmt.Sprintf("You missed your appointment on %s at %s.", updated.AppointmentDate(), updated.Start))
	}
	return marked, nil
}

func (s *Service) notify(ctx context.Context, appt *Appointment, title, message string) {
	userID, ok, err := s.repo.PatientUser(ctx, appt.PatientID)
	if err != nil {
		s.log.Warn().Err(err).Int64("patient_id", appt.PatientID).Msg("failed to load patient user")
		return
	}
	if !ok {
		return
	}
	n := Notification{UserID: userID, Type: schema.NotifyAppointment, Title: title, Message: message}
	if err := s.repo.InsertNotification(ctx, n); err != nil {
		s.log.Warn().Err(err).Int64("appointment_id", appt.ID).Msg("failed to insert notification")
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return s.hydrate(appt), nil
}

// ClampPage applies the listing defaults: limit 20, at most 100.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListByPatient retrieves appointments for a specific patient
func (s *Service) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]Appointment, error) {
	limit, offset = ClampPage(limit, offset)
	appts, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	for i := range appts {
		s.hydrate(&appts[i])
	}
	return appts, nil
}

// ListByDoctor retrieves appointments for a specific doctor
func (s *Service) ListByDoctor(ctx context.Context, doctorID int64, limit, offset int) ([]Appointment, error) {
	limit, offset = ClampPage(limit, offset)
	appts, err := s.repo.ListByDoctor(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	for i := range appts {
		s.hydrate(&appts[i])
	}
	return appts, nil
}
