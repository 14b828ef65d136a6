package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-records/internal/account"
	"github.com/hackgods/clinic-records/internal/appointment"
	"github.com/hackgods/clinic-records/internal/config"
	"github.com/hackgods/clinic-records/internal/db"
	"github.com/hackgods/clinic-records/internal/logging"
	"github.com/hackgods/clinic-records/internal/lookup"
	redisclient "github.com/hackgods/clinic-records/internal/redis"
	"github.com/hackgods/clinic-records/internal/schema"
	"github.com/hackgods/clinic-records/internal/store"
)

type seeder struct {
	store    *store.Store
	lookups  *lookup.Cache
	accounts *account.Service
	appts    *appointment.Service
	log      zerolog.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Env, cfg.LogLevel)
	log.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4})
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if _, err := db.NewMigrator(pool, db.Migrations()).Up(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	cat := schema.Clinic()
	st := store.New(cat, store.NewPostgresBackend(pool, cat), log)
	if _, err := store.Bootstrap(ctx, st); err != nil {
		log.Fatal().Err(err).Msg("bootstrap reference data")
	}
	cache := lookup.New(cat, st, log)

	s := &seeder{
		store:    st,
		lookups:  cache,
		accounts: account.NewService(st, log),
		// the seed runs alone, an in-process lock is enough
		appts: appointment.NewService(appointment.NewStoreRepository(st), redisclient.NewLocalLocker(), cache, cfg, log),
		log:   log,
	}

	_ = gofakeit.Seed(time.Now().UnixNano())

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"catalog", s.seedCatalog},
		{"doctors", func(ctx context.Context) error { return s.seedDoctors(ctx, getInt("SEED_DOCTORS", 20)) }},
		{"patients", func(ctx context.Context) error { return s.seedPatients(ctx, getInt("SEED_PATIENTS", 500)) }},
		{"appointments", func(ctx context.Context) error { return s.seedAppointments(ctx, getInt("SEED_APPOINTMENTS", 1000)) }},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			log.Fatal().Err(err).Str("step", step.name).Msg("seed failed")
		}
	}

	log.Info().Msg("seed complete")
}

// createIgnoringDuplicates lets the seed be re-run against a populated database.
func (s *seeder) createIgnoringDuplicates(ctx context.Context, table string, row schema.Row) error {
	_, err := s.store.Create(ctx, table, row)
	if errors.Is(err, store.ErrUniquenessViolation) {
		return nil
	}
	return err
}

func (s *seeder) seedCatalog(ctx context.Context) error {
	services := map[string]string{
		"General Consultation":    "60.00",
		"Specialist Consultation": "120.00",
		"Electrocardiogram":       "50.00",
		"Blood Panel":             "35.00",
		"X-Ray":                   "80.00",
		"Ultrasound":              "110.00",
	}
	for name, cost := range services {
		if err := s.createIgnoringDuplicates(ctx, schema.Services, schema.Row{"service_name": name, "cost": cost}); err != nil {
			return err
		}
	}

	for _, name := range []string{"Penicillin", "Peanuts", "Latex", "Pollen", "Shellfish"} {
		if err := s.createIgnoringDuplicates(ctx, schema.Allergies, schema.Row{"allergy_name": name}); err != nil {
			return err
		}
	}

	for _, m := range []struct{ name, form, strength, price string }{
		{"Amoxicillin", "Capsule", "500mg", "0.45"},
		{"Ibuprofen", "Tablet", "400mg", "0.20"},
		{"Metformin", "Tablet", "850mg", "0.30"},
		{"Lisinopril", "Tablet", "10mg", "0.25"},
	} {
		err := s.createIgnoringDuplicates(ctx, schema.Medications, schema.Row{
			"medication_name": m.name, "dosage_form": m.form, "strength": m.strength, "unit_price": m.price,
		})
		if err != nil {
			return err
		}
	}

	for floor := int64(1); floor <= 3; floor++ {
		for n := 1; n <= 4; n++ {
			err := s.createIgnoringDuplicates(ctx, schema.Rooms, schema.Row{
				"room_number": fmt.Sprintf("%d%02d", floor, n),
				"room_type":   gofakeit.RandomString(schemaValues(schema.RoomTypes)),
				"floor":       floor,
			})
			if err != nil {
				return err
			}
		}
	}

	return s.lookups.Refresh(ctx)
}

func schemaValues[T ~string](vs []T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

func (s *seeder) seedDoctors(ctx context.Context, count int) error {
	s.log.Info().Int("count", count).Msg("seeding doctors")
	specialties := s.lookups.Entries(schema.Specialties)
	departments := s.lookups.Entries(schema.Departments)

	for i := 0; i < count; i++ {
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		first, last := gofakeit.FirstName(), gofakeit.LastName()

		err := s.store.Atomic(ctx, func(w store.Writer) error {
			doc, err := w.Create(ctx, schema.Doctors, schema.Row{
				"first_name":          first,
				"last_name":           last,
				"specialty_id":        spec.ID,
				"license_number":      "LIC-" + strings.ToUpper(uuid.NewString()[:8]),
				"email":               strings.ToLower(first + "." + last + "@clinic.example"),
				"years_of_experience": int64(gofakeit.Number(1, 35)),
				"consultation_fee":    fmt.Sprintf("%d.00", gofakeit.Number(80, 250)),
			})
			if err != nil {
				return err
			}
			id, _ := doc.Int64("doctor_id")

			dept := departments[gofakeit.Number(0, len(departments)-1)]
			if _, err := w.Create(ctx, schema.DoctorDepartments, schema.Row{"doctor_id": id, "department_id": dept.ID}); err != nil {
				return err
			}
			for _, day := range []schema.Weekday{schema.Weekdays[0], schema.Weekdays[2], schema.Weekdays[4]} {
				_, err := w.Create(ctx, schema.DoctorAvailability, schema.Row{
					"doctor_id": id, "day_of_week": string(day), "start_time": "09:00", "end_time": "17:00",
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("doctor %d: %w", i, err)
		}
	}
	return nil
}

func (s *seeder) seedPatients(ctx context.Context, count int) error {
	s.log.Info().Int("count", count).Msg("seeding patients")
	const logEvery = 100

	for i := 0; i < count; i++ {
		row := schema.Row{
			"first_name":    gofakeit.FirstName(),
			"last_name":     gofakeit.LastName(),
			"date_of_birth": fmt.Sprintf("%04d-%02d-%02d", gofakeit.Number(1940, 2020), gofakeit.Number(1, 12), gofakeit.Number(1, 28)),
			"gender":        gofakeit.RandomString(schemaValues(schema.Genders)),
			"blood_type":    gofakeit.RandomString(schemaValues(schema.BloodTypes)),
			"phone":         gofakeit.Phone(),
			"email":         gofakeit.Email(),
		}

		// a third of patients get a portal login
		if i%3 == 0 {
			user, err := s.accounts.Register(ctx, account.RegisterRequest{
				Username: fmt.Sprintf("%s%d", strings.ToLower(gofakeit.Username()), gofakeit.Number(100, 999999)),
				Email:    fmt.Sprintf("patient%d.%s", gofakeit.Number(1, 1<<30), gofakeit.Email()),
				Password: uuid.NewString(),
				Role:     schema.RolePatient,
			})
			if err != nil && !errors.Is(err, store.ErrUniquenessViolation) {
				return err
			}
			if err == nil {
				row["user_id"] = user["user_id"]
			}
		}

		if _, err := s.store.Create(ctx, schema.Patients, row); err != nil {
			return fmt.Errorf("patient %d: %w", i, err)
		}
		if (i+1)%logEvery == 0 {
			s.log.Info().Int("seeded", i+1).Int("total", count).Msg("patients seeded")
		}
	}
	return nil
}

func (s *seeder) seedAppointments(ctx context.Context, count int) error {
	s.log.Info().Int("count", count).Msg("seeding appointments")
	doctors, err := s.store.Find(ctx, schema.Doctors, store.Query{})
	if err != nil {
		return err
	}
	patients, err := s.store.Find(ctx, schema.Patients, store.Query{Limit: 5000})
	if err != nil {
		return err
	}
	if len(doctors) == 0 || len(patients) == 0 {
		return errors.New("no doctors or patients to book")
	}

	today := schema.DateOf(time.Now())
	booked, conflicts := 0, 0
	for i := 0; i < count; i++ {
		doctorID, _ := doctors[gofakeit.Number(0, len(doctors)-1)].Int64("doctor_id")
		patientID, _ := patients[gofakeit.Number(0, len(patients)-1)].Int64("patient_id")
		start, _ := schema.NewClock(gofakeit.Number(9, 16), 30*gofakeit.Number(0, 1), 0)

		_, err := s.appts.Book(ctx, appointment.BookRequest{
			PatientID: patientID,
			DoctorID:  doctorID,
			Date:      today.AddDate(0, 0, gofakeit.Number(-30, 30)),
			Start:     start,
			End:       start + schema.Clock(30*60),
			Type:      schema.AppointmentType(gofakeit.RandomString(schemaValues(schema.AppointmentTypes))),
		})
		switch {
		case errors.Is(err, store.ErrSchedulingConflict):
			conflicts++
		case err != nil:
			return err
		default:
			booked++
		}
	}
	s.log.Info().Int("booked", booked).Int("conflicts", conflicts).Msg("appointments seeded")
	return nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
