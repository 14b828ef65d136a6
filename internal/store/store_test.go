package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-records/internal/schema"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New(schema.Clinic(), NewMemoryBackend(), zerolog.Nop())
	_, err := Bootstrap(context.Background(), s)
	require.NoError(t, err)
	return s
}

func create(t *testing.T, s *Store, table string, row schema.Row) int64 {
	t.Helper()
	out, err := s.Create(context.Background(), table, row)
	require.NoError(t, err, "create %s", table)
	tbl, err := s.Catalog().Table(table)
	require.NoError(t, err)
	id, ok := out.Int64(tbl.PrimaryKey)
	require.True(t, ok)
	return id
}

func lookupID(t *testing.T, s *Store, table, name string) int64 {
	t.Helper()
	tbl, err := s.Catalog().Table(table)
	require.NoError(t, err)
	rows, err := s.Find(context.Background(), table, Query{Where: schema.Row{tbl.NameColumn: name}})
	require.NoError(t, err)
	require.Len(t, rows, 1, "%s %q", table, name)
	id, _ := rows[0].Int64(tbl.PrimaryKey)
	return id
}

func count(t *testing.T, s *Store, table string, where schema.Row) int {
	t.Helper()
	rows, err := s.Find(context.Background(), table, Query{Where: where})
	require.NoError(t, err)
	return len(rows)
}

type fixture struct {
	s         *Store
	user      int64
	patient   int64
	doctor    int64
	scheduled int64
}

func newFixture(t *testing.T) *fixture {
	s := newStore(t)
	f := &fixture{s: s}
	f.user = create(t, s, schema.Users, schema.Row{
		"username": "mgarcia", "password_hash": "x", "email": "mgarcia@example.com", "role": "patient",
	})
	f.patient = create(t, s, schema.Patients, schema.Row{
		"user_id": f.user, "first_name": "Maria", "last_name": "Garcia",
		"date_of_birth": "1988-03-14", "gender": "Female",
	})
	f.doctor = create(t, s, schema.Doctors, schema.Row{
		"first_name": "Alan", "last_name": "Reyes",
		"specialty_id": lookupID(t, s, schema.Specialties, "Cardiology"), "license_number": "LIC-1001",
	})
	f.scheduled = lookupID(t, s, schema.AppointmentStatus, "Scheduled")
	return f
}

func (f *fixture) appointment(t *testing.T, date, start, end string) int64 {
	return create(t, f.s, schema.Appointments, schema.Row{
		"patient_id": f.patient, "doctor_id": f.doctor,
		"appointment_date": date, "start_time": start, "end_time": end,
		"status_id": f.scheduled,
	})
}

func TestCreateAssignsIDAndTimestamps(t *testing.T) {
	s := newStore(t)
	fixed := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	out, err := s.Create(context.Background(), schema.Users, schema.Row{
		"username": "admin", "password_hash": "x", "email": "admin@example.com", "role": schema.RoleAdmin,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), out["user_id"])
	assert.Equal(t, fixed, out["created_at"])
	assert.Equal(t, fixed, out["updated_at"])
	assert.Equal(t, true, out["is_active"])
	assert.Equal(t, "admin", out["role"])
	assert.Nil(t, out["last_login"])
}

func TestCreateRejectsAutoColumns(t *testing.T) {
	s := newStore(t)
	_, err := s.Create(context.Background(), schema.Specialties, schema.Row{"specialty_id": 99, "specialty_name": "Oncology"})
	assert.ErrorIs(t, err, ErrDomainViolation)
}

func TestCreateRejectsMissingRequired(t *testing.T) {
	s := newStore(t)
	_, err := s.Create(context.Background(), schema.Patients, schema.Row{
		"last_name": "Garcia", "date_of_birth": "1988-03-14", "gender": "Female",
	})
	require.ErrorIs(t, err, ErrDomainViolation)

	v, ok := AsViolation(err)
	require.True(t, ok)
	assert.Equal(t, []string{"first_name"}, v.Columns)
}

func TestCreateRejectsEnumOutsideDomain(t *testing.T) {
	s := newStore(t)
	for col, bad := range map[string]any{"gender": "Unknown", "blood_type": "C+"} {
		row := schema.Row{"first_name": "A", "last_name": "B", "date_of_birth": "1990-01-01", "gender": "Male"}
		row[col] = bad
		_, err := s.Create(context.Background(), schema.Patients, row)
		assert.ErrorIs(t, err, ErrDomainViolation, col)
	}
}

func TestCreateRejectsMalformedValues(t *testing.T) {
	s := newStore(t)
	row := schema.Row{"first_name": "A", "last_name": "B", "date_of_birth": "14/03/1988", "gender": "Male"}
	_, err := s.Create(context.Background(), schema.Patients, row)
	assert.ErrorIs(t, err, ErrDomainViolation)

	_, err = s.Create(context.Background(), schema.Services, schema.Row{"service_name": "ECG", "cost": "10.005"})
	assert.ErrorIs(t, err, ErrDomainViolation)

	_, err = s.Create(context.Background(), schema.Services, schema.Row{"service_name": "ECG", "cost": "-1"})
	assert.ErrorIs(t, err, ErrDomainViolation)
}

func TestFeedbackRatingBounds(t *testing.T) {
	f := newFixture(t)
	for rating := 0; rating <= 6; rating++ {
		_, err := f.s.Create(context.Background(), schema.Feedback, schema.Row{
			"patient_id": f.patient, "doctor_id": f.doctor, "rating": rating,
		})
		if rating < 1 || rating > 5 {
			assert.ErrorIs(t, err, ErrDomainViolation, "rating %d", rating)
			continue
		}
		assert.NoError(t, err, "rating %d", rating)
	}
}

func TestCreateRejectsDuplicateNaturalKey(t *testing.T) {
	s := newStore(t)
	create(t, s, schema.Users, schema.Row{"username": "u1", "password_hash": "x", "email": "a@example.com", "role": "nurse"})

	_, err := s.Create(context.Background(), schema.Users, schema.Row{
		"username": "u1", "password_hash": "x", "email": "b@example.com", "role": "nurse",
	})
	require.ErrorIs(t, err, ErrUniquenessViolation)
	assert.NotErrorIs(t, err, ErrSchedulingConflict)

	_, err = s.Create(context.Background(), schema.Specialties, schema.Row{"specialty_name": "Cardiology"})
	assert.ErrorIs(t, err, ErrUniquenessViolation)
}

func TestCreateRejectsDanglingReference(t *testing.T) {
	f := newFixture(t)
	_, err := f.s.Create(context.Background(), schema.Appointments, schema.Row{
		"patient_id": f.patient, "doctor_id": 999,
		"appointment_date": "2025-06-01", "start_time": "14:00", "end_time": "14:30",
		"status_id": f.scheduled,
	})
	require.ErrorIs(t, err, ErrReferentialViolation)

	v, _ := AsViolation(err)
	assert.Equal(t, []string{"doctor_id"}, v.Columns)
}

func TestNullableReferenceMayBeNull(t *testing.T) {
	f := newFixture(t)
	create(t, f.s, schema.Patients, schema.Row{
		"user_id": nil, "first_name": "Walk", "last_name": "In", "date_of_birth": "2001-01-01", "gender": "Other",
	})
}

func TestSchedulingConflict(t *testing.T) {
	f := newFixture(t)
	f.appointment(t, "2025-06-01", "14:00", "14:30")

	_, err := f.s.Create(context.Background(), schema.Appointments, schema.Row{
		"patient_id": f.patient, "doctor_id": f.doctor,
		"appointment_date": "2025-06-01", "start_time": "14:00", "end_time": "15:00",
		"status_id": f.scheduled,
	})
	require.ErrorIs(t, err, ErrSchedulingConflict)
	assert.ErrorIs(t, err, ErrUniquenessViolation)
	assert.Equal(t, 1, count(t, f.s, schema.Appointments, nil))
}

func TestSchedulingKeyIsPerDoctorAndSlot(t *testing.T) {
	f := newFixture(t)
	f.appointment(t, "2025-06-01", "14:00", "14:30")
	f.appointment(t, "2025-06-01", "14:30", "15:00")
	f.appointment(t, "2025-06-02", "14:00", "14:30")

	other := create(t, f.s, schema.Doctors, schema.Row{
		"first_name": "Ines", "last_name": "Park",
		"specialty_id": lookupID(t, f.s, schema.Specialties, "Neurology"), "license_number": "LIC-2002",
	})
	create(t, f.s, schema.Appointments, schema.Row{
		"patient_id": f.patient, "doctor_id": other,
		"appointment_date": "2025-06-01", "start_time": "14:00", "end_time": "14:30",
		"status_id": f.scheduled,
	})
}

func TestAppointmentTimeOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.s.Create(context.Background(), schema.Appointments, schema.Row{
		"patient_id": f.patient, "doctor_id": f.doctor,
		"appointment_date": "2025-06-01", "start_time": "14:00", "end_time": "13:30",
		"status_id": f.scheduled,
	})
	require.ErrorIs(t, err, ErrDomainViolation)

	v, _ := AsViolation(err)
	assert.Equal(t, []string{"start_time", "end_time"}, v.Columns)
}

func TestConcurrentBookingsOnlyOneWins(t *testing.T) {
	f := newFixture(t)

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.s.Create(context.Background(), schema.Appointments, schema.Row{
				"patient_id": f.patient, "doctor_id": f.doctor,
				"appointment_date": "2025-06-01", "start_time": "10:00", "end_time": "10:30",
				"status_id": f.scheduled,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrSchedulingConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflicts)
}

func TestUpdateRechecksKeysExcludingSelf(t *testing.T) {
	f := newFixture(t)
	a1 := f.appointment(t, "2025-06-01", "14:00", "14:30")
	a2 := f.appointment(t, "2025-06-01", "15:00", "15:30")

	later := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	f.s.now = func() time.Time { return later }

	out, err := f.s.Update(context.Background(), schema.Appointments, a1, schema.Row{
		"start_time": "14:00", "notes": "bring previous ECG",
	})
	require.NoError(t, err)
	assert.Equal(t, "bring previous ECG", out["notes"])
	assert.Equal(t, later, out["updated_at"])
	assert.NotEqual(t, later, out["created_at"])

	_, err = f.s.Update(context.Background(), schema.Appointments, a2, schema.Row{"start_time": "14:00", "end_time": "14:45"})
	assert.ErrorIs(t, err, ErrSchedulingConflict)

	_, err = f.s.Update(context.Background(), schema.Appointments, a2, schema.Row{"status_id": 999})
	assert.ErrorIs(t, err, ErrReferentialViolation)

	_, err = f.s.Update(context.Background(), schema.Appointments, a2, schema.Row{"end_time": "14:00"})
	assert.ErrorIs(t, err, ErrDomainViolation)
}

func TestUpdateKeepsIdentityImmutable(t *testing.T) {
	f := newFixture(t)
	a1 := f.appointment(t, "2025-06-01", "14:00", "14:30")

	_, err := f.s.Update(context.Background(), schema.Appointments, a1, schema.Row{"appointment_id": a1 + 1})
	assert.ErrorIs(t, err, ErrDomainViolation)

	_, err = f.s.Update(context.Background(), schema.Appointments, a1, schema.Row{"created_at": time.Now()})
	assert.ErrorIs(t, err, ErrDomainViolation)

	_, err = f.s.Update(context.Background(), schema.Appointments, 404, schema.Row{"notes": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBillLinesDeriveTotals(t *testing.T) {
	f := newFixture(t)
	consult := create(t, f.s, schema.Services, schema.Row{"service_name": "Consultation", "cost": "60.00"})
	xray := create(t, f.s, schema.Services, schema.Row{"service_name": "X-Ray", "cost": "50.00"})

	bill, err := f.s.Create(context.Background(), schema.Billing, schema.Row{
		"invoice_number": "INV-0001", "patient_id": f.patient, "bill_date": "2025-06-01", "total_amount": "100.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "0.00", bill["paid_amount"].(decimal.Decimal).StringFixed(2))
	assert.Equal(t, string(schema.PaymentUnpaid), bill["payment_status"])
	billID, _ := bill.Int64("bill_id")

	l1, err := f.s.Create(context.Background(), schema.BillServices, schema.Row{
		"bill_id": billID, "service_id": consult, "unit_price": "60.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "60.00", l1["total_price"].(decimal.Decimal).StringFixed(2))

	_, err = f.s.Create(context.Background(), schema.BillServices, schema.Row{
		"bill_id": billID, "service_id": xray, "unit_price": "50.00", "discount_percentage": "10", "total_price": "50.00",
	})
	require.ErrorIs(t, err, ErrDomainViolation)

	l2, err := f.s.Create(context.Background(), schema.BillServices, schema.Row{
		"bill_id": billID, "service_id": xray, "unit_price": "50.00", "discount_percentage": "10",
	})
	require.NoError(t, err)
	assert.Equal(t, "45.00", l2["total_price"].(decimal.Decimal).StringFixed(2))

	l2ID, _ := l2.Int64("bill_service_id")
	l2, err = f.s.Update(context.Background(), schema.BillServices, l2ID, schema.Row{"quantity": 2})
	require.NoError(t, err)
	assert.Equal(t, "90.00", l2["total_price"].(decimal.Decimal).StringFixed(2))

	_, err = f.s.Create(context.Background(), schema.BillServices, schema.Row{
		"bill_id": billID, "service_id": consult, "unit_price": "60.00",
	})
	assert.ErrorIs(t, err, ErrUniquenessViolation)
}

func TestDeletePatientCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.s

	appt := f.appointment(t, "2025-06-01", "14:00", "14:30")
	record := create(t, s, schema.MedicalRecords, schema.Row{
		"patient_id": f.patient, "doctor_id": f.doctor, "appointment_id": appt,
		"record_date": "2025-06-01", "diagnosis": "Hypertension",
	})
	med := create(t, s, schema.Medications, schema.Row{"medication_name": "Lisinopril"})
	create(t, s, schema.Prescriptions, schema.Row{
		"record_id": record, "medication_id": med, "dosage": "10mg", "frequency": "daily",
	})
	test := create(t, s, schema.MedicalTests, schema.Row{"test_name": "Lipid Panel"})
	create(t, s, schema.PatientTests, schema.Row{
		"patient_id": f.patient, "test_id": test, "doctor_id": f.doctor, "appointment_id": appt, "test_date": "2025-06-01",
	})
	svc := create(t, s, schema.Services, schema.Row{"service_name": "Consultation", "cost": "60.00"})
	bill := create(t, s, schema.Billing, schema.Row{
		"invoice_number": "INV-1", "patient_id": f.patient, "appointment_id": appt,
		"bill_date": "2025-06-01", "total_amount": "60.00",
	})
	create(t, s, schema.BillServices, schema.Row{"bill_id": bill, "service_id": svc, "unit_price": "60.00"})
	create(t, s, schema.Feedback, schema.Row{"patient_id": f.patient, "doctor_id": f.doctor, "rating": 5})
	allergy := create(t, s, schema.Allergies, schema.Row{"allergy_name": "Penicillin"})
	create(t, s, schema.PatientAllergies, schema.Row{"patient_id": f.patient, "allergy_id": allergy, "severity": "Severe"})
	provider := create(t, s, schema.InsuranceProviders, schema.Row{"provider_name": "Acme Health"})
	create(t, s, schema.PatientInsurance, schema.Row{
		"patient_id": f.patient, "provider_id": provider, "policy_number": "P-1", "coverage_start_date": "2025-01-01",
	})
	room := create(t, s, schema.Rooms, schema.Row{"room_number": "101", "room_type": "Examination"})
	create(t, s, schema.RoomAssignments, schema.Row{
		"room_id": room, "patient_id": f.patient, "assigned_at": "2025-06-01T14:00:00Z",
	})

	report, err := s.Delete(ctx, schema.Patients, f.patient)
	require.NoError(t, err)

	for _, table := range []string{
		schema.Patients, schema.Appointments, schema.MedicalRecords, schema.Prescriptions,
		schema.PatientTests, schema.Billing, schema.BillServices, schema.Feedback,
		schema.PatientAllergies, schema.PatientInsurance, schema.RoomAssignments,
	} {
		assert.Zero(t, count(t, s, table, nil), table)
		assert.Len(t, report.Deleted[table], 1, table)
	}
	assert.Equal(t, 11, report.Rows())

	assert.Equal(t, 1, count(t, s, schema.Doctors, nil))
	assert.Equal(t, 1, count(t, s, schema.Users, nil))
	assert.Equal(t, 1, count(t, s, schema.Medications, nil))
	assert.Empty(t, report.Nullified)
}

func TestDeleteUserNullifiesLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.s.Update(ctx, schema.Doctors, f.doctor, schema.Row{"user_id": f.user})
	require.NoError(t, err)
	staff := create(t, f.s, schema.Staff, schema.Row{
		"user_id": f.user, "first_name": "Sam", "last_name": "Lee", "position": "Nurse",
	})
	create(t, f.s, schema.Notifications, schema.Row{
		"user_id": f.user, "notification_type": "General", "title": "Welcome", "message": "Hello",
	})

	report, err := f.s.Delete(ctx, schema.Users, f.user)
	require.NoError(t, err)

	for table, id := range map[string]int64{schema.Patients: f.patient, schema.Doctors: f.doctor, schema.Staff: staff} {
		row, err := f.s.Get(ctx, table, id)
		require.NoError(t, err, table)
		assert.Nil(t, row["user_id"], table)
		assert.Equal(t, []int64{id}, report.Nullified[table+".user_id"])
	}
	assert.Zero(t, count(t, f.s, schema.Notifications, nil))
	assert.Equal(t, []int64{1}, report.Deleted[schema.Notifications])
}

func TestDeleteReferencedLookupFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cardiology := lookupID(t, f.s, schema.Specialties, "Cardiology")

	_, err := f.s.Delete(ctx, schema.Specialties, cardiology)
	require.ErrorIs(t, err, ErrCascadeFailure)
	assert.Equal(t, 1, count(t, f.s, schema.Doctors, nil))

	_, err = f.s.Delete(ctx, schema.Specialties, lookupID(t, f.s, schema.Specialties, "Dermatology"))
	require.NoError(t, err)

	_, err = f.s.Delete(ctx, schema.Specialties, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRoomBlockedUntilAssignmentsGone(t *testing.T) {
	f := newFixture(t)
	appt := f.appointment(t, "2025-06-01", "14:00", "14:30")
	room := create(t, f.s, schema.Rooms, schema.Row{"room_number": "101", "room_type": "Ward"})
	create(t, f.s, schema.RoomAssignments, schema.Row{
		"room_id": room, "patient_id": f.patient, "appointment_id": appt, "assigned_at": "2025-06-01T14:00:00Z",
	})

	_, err := f.s.Delete(context.Background(), schema.Rooms, room)
	require.ErrorIs(t, err, ErrCascadeFailure)

	_, err = f.s.Delete(context.Background(), schema.Appointments, appt)
	require.NoError(t, err)
	_, err = f.s.Delete(context.Background(), schema.Rooms, room)
	require.NoError(t, err)
}

// failingBackend fails every delete on one table.
type failingBackend struct {
	Backend
	table string
}

func (b failingBackend) Begin(ctx context.Context) (Tx, error) {
	tx, err := b.Backend.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return failingTx{Tx: tx, table: b.table}, nil
}

type failingTx struct {
	Tx
	table string
}

func (tx failingTx) Delete(ctx context.Context, t *schema.Table, ids []int64) error {
	if t.Name == tx.table {
		return fmt.Errorf("disk full")
	}
	return tx.Tx.Delete(ctx, t, ids)
}

func TestDeleteIsAllOrNothing(t *testing.T) {
	mem := NewMemoryBackend()
	s := New(schema.Clinic(), mem, zerolog.Nop())
	_, err := Bootstrap(context.Background(), s)
	require.NoError(t, err)
	f := &fixture{s: s}
	f.user = create(t, s, schema.Users, schema.Row{"username": "u", "password_hash": "x", "email": "u@example.com", "role": "patient"})
	f.patient = create(t, s, schema.Patients, schema.Row{
		"user_id": f.user, "first_name": "A", "last_name": "B", "date_of_birth": "1990-01-01", "gender": "Male",
	})
	f.doctor = create(t, s, schema.Doctors, schema.Row{
		"first_name": "C", "last_name": "D", "specialty_id": lookupID(t, s, schema.Specialties, "Pediatrics"), "license_number": "L1",
	})
	f.scheduled = lookupID(t, s, schema.AppointmentStatus, "Scheduled")
	f.appointment(t, "2025-06-01", "09:00", "09:30")

	broken := New(schema.Clinic(), failingBackend{Backend: mem, table: schema.Patients}, zerolog.Nop())
	_, err = broken.Delete(context.Background(), schema.Patients, f.patient)
	require.ErrorIs(t, err, ErrCascadeFailure)

	assert.Equal(t, 1, count(t, s, schema.Patients, nil))
	assert.Equal(t, 1, count(t, s, schema.Appointments, nil))
}

func TestAtomicRollsBackOnError(t *testing.T) {
	s := newStore(t)
	boom := errors.New("boom")

	err := s.Atomic(context.Background(), func(w Writer) error {
		if _, err := w.Create(context.Background(), schema.Specialties, schema.Row{"specialty_name": "Oncology"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, count(t, s, schema.Specialties, schema.Row{"specialty_name": "Oncology"}))
}

func TestBootstrapIsIdempotent(t *testing.T) {
	s := New(schema.Clinic(), NewMemoryBackend(), zerolog.Nop())
	ctx := context.Background()

	n, err := Bootstrap(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 22, n)

	n, err = Bootstrap(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, table := range schema.SeedTables {
		for _, seed := range schema.Seed[table] {
			lookupID(t, s, table, seed.Name)
		}
	}
}

func TestUnseededReferenceFailsUntilInserted(t *testing.T) {
	f := newFixture(t)
	row := schema.Row{"patient_id": f.patient, "test_id": 1, "test_date": "2025-06-01"}

	_, err := f.s.Create(context.Background(), schema.PatientTests, row)
	require.ErrorIs(t, err, ErrReferentialViolation)

	create(t, f.s, schema.MedicalTests, schema.Row{"test_name": "Complete Blood Count"})
	out, err := f.s.Create(context.Background(), schema.PatientTests, row)
	require.NoError(t, err)
	assert.Equal(t, string(schema.TestOrdered), out["status"])
}

func TestFindWithParsedFilter(t *testing.T) {
	f := newFixture(t)
	f.appointment(t, "2025-06-01", "14:00", "14:30")
	f.appointment(t, "2025-06-02", "14:00", "14:30")

	tbl, err := f.s.Catalog().Table(schema.Appointments)
	require.NoError(t, err)
	where, err := ParseFilter(tbl, map[string]string{
		"doctor_id": fmt.Sprint(f.doctor), "appointment_date": "2025-06-02", "notes": "null",
	})
	require.NoError(t, err)

	rows, err := f.s.Find(context.Background(), schema.Appointments, Query{Where: where})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, schema.MustClock("14:00"), rows[0]["start_time"])

	_, err = ParseFilter(tbl, map[string]string{"doctor_id": "abc"})
	assert.ErrorIs(t, err, ErrDomainViolation)
	_, err = ParseFilter(tbl, map[string]string{"colour": "red"})
	assert.ErrorIs(t, err, ErrDomainViolation)
}

func TestFindPaging(t *testing.T) {
	s := newStore(t)
	rows, err := s.Find(context.Background(), schema.Specialties, Query{Limit: 3, Offset: 2})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Neurology", rows[0]["specialty_name"])
}

func TestUnknownTable(t *testing.T) {
	s := newStore(t)
	_, err := s.Create(context.Background(), "invoices", schema.Row{})
	assert.ErrorIs(t, err, schema.ErrUnknownTable)
}
