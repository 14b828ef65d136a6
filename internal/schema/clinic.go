package schema

import (
	"fmt"
	"time"
)

func pk(name string) Column { return Column{Name: name, Type: Int, Auto: AutoSerial} }

func text(name string, maxLen int) Column { return Column{Name: name, Type: Text, MaxLen: maxLen} }

func longText(name string) Column { return Column{Name: name, Type: Text} }

func ref(name string) Column { return Column{Name: name, Type: Int} }

func enum(name string, vals []string) Column { return Column{Name: name, Type: Text, Enum: vals} }

func flag(name string, def bool) Column { return Column{Name: name, Type: Bool, Default: def} }

func date(name string) Column { return Column{Name: name, Type: Date} }

func clock(name string) Column { return Column{Name: name, Type: Time} }

func stamp(name string) Column { return Column{Name: name, Type: Timestamp} }

func money(name string) Column {
	return Column{Name: name, Type: Decimal, Scale: MoneyScale, Min: bound(0)}
}

func percent(name string) Column {
	return Column{Name: name, Type: Decimal, Scale: 2, Min: bound(0), Max: bound(100)}
}

func between(c Column, lo, hi int64) Column {
	c.Min, c.Max = bound(lo), bound(hi)
	return c
}

func atLeast(c Column, lo int64) Column {
	c.Min = bound(lo)
	return c
}

func withDefault(c Column, v any) Column {
	c.Default = v
	return c
}

func null(c Column) Column {
	c.Nullable = true
	return c
}

func createdAt() Column { return Column{Name: "created_at", Type: Timestamp, Auto: AutoCreated} }

func updatedAt() Column { return Column{Name: "updated_at", Type: Timestamp, Auto: AutoUpdated} }

func fk(table, column, references string, onDelete Policy) ForeignKey {
	return ForeignKey{
		Name:       fmt.Sprintf("fk_%s_%s", table, column),
		Column:     column,
		References: references,
		OnDelete:   onDelete,
	}
}

func unique(name string, cols ...string) UniqueKey {
	return UniqueKey{Name: name, Columns: cols}
}

// after reports whether a is later than b (or equal when orEqual is set). Both
// values must be of the same temporal type.
func after(a, b any, orEqual bool) bool {
	switch av := a.(type) {
	case Clock:
		bv, ok := b.(Clock)
		return ok && (av > bv || orEqual && av == bv)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && (av.After(bv) || orEqual && av.Equal(bv))
	}
	return false
}

func laterThan(later, earlier string) func(Row) error {
	return func(r Row) error {
		if !after(r[later], r[earlier], false) {
			return fmt.Errorf("%s must be after %s", later, earlier)
		}
		return nil
	}
}

func notBefore(later, earlier string) func(Row) error {
	return func(r Row) error {
		if !after(r[later], r[earlier], true) {
			return fmt.Errorf("%s must not be before %s", later, earlier)
		}
		return nil
	}
}

// Table names.
const (
	Users              = "users"
	Patients           = "patients"
	Doctors            = "doctors"
	Staff              = "staff"
	Specialties        = "specialties"
	Departments        = "departments"
	AppointmentStatus  = "appointment_statuses"
	Medications        = "medications"
	Allergies          = "allergies"
	MedicalTests       = "medical_tests"
	Services           = "services"
	InsuranceProviders = "insurance_providers"
	Rooms              = "rooms"
	DoctorAvailability = "doctor_availability"
	Appointments       = "appointments"
	MedicalRecords     = "medical_records"
	Prescriptions      = "prescriptions"
	PatientTests       = "patient_tests"
	Billing            = "billing"
	RoomAssignments    = "room_assignments"
	Notifications      = "notifications"
	Feedback           = "feedback"
	PatientAllergies   = "patient_allergies"
	DoctorDepartments  = "doctor_departments"
	BillServices       = "bill_services"
	PatientInsurance   = "patient_insurance"
)

// SchedulingKey is the constraint guarding a doctor against double booking.
const SchedulingKey = "uq_appointments_doctor_slot"

func identityTables() []*Table {
	return []*Table{
		{
			Name: Users, PrimaryKey: "user_id", Tier: TierIdentity,
			Columns: []Column{
				pk("user_id"),
				text("username", 50),
				{Name: "password_hash", Type: Text, MaxLen: 255, Secret: true},
				text("email", 100),
				enum("role", values(Roles)),
				flag("is_active", true),
				null(stamp("last_login")),
				createdAt(), updatedAt(),
			},
			Uniques: []UniqueKey{
				unique("uq_users_username", "username"),
				unique("uq_users_email", "email"),
			},
		},
		{
			Name: Patients, PrimaryKey: "patient_id", Tier: TierIdentity,
			Columns: []Column{
				pk("patient_id"),
				null(ref("user_id")),
				text("first_name", 50),
				text("last_name", 50),
				date("date_of_birth"),
				enum("gender", values(Genders)),
				null(enum("blood_type", values(BloodTypes))),
				null(text("phone", 20)),
				null(text("email", 100)),
				null(longText("address")),
				null(text("emergency_contact_name", 100)),
				null(text("emergency_contact_phone", 20)),
				createdAt(), updatedAt(),
			},
			Uniques:     []UniqueKey{unique("uq_patients_user", "user_id")},
			ForeignKeys: []ForeignKey{fk(Patients, "user_id", Users, SetNull)},
		},
		{
			Name: Doctors, PrimaryKey: "doctor_id", Tier: TierIdentity,
			Columns: []Column{
				pk("doctor_id"),
				null(ref("user_id")),
				text("first_name", 50),
				text("last_name", 50),
				ref("specialty_id"),
				text("license_number", 50),
				null(text("phone", 20)),
				null(text("email", 100)),
				null(atLeast(Column{Name: "years_of_experience", Type: Int}, 0)),
				null(money("consultation_fee")),
				flag("is_available", true),
				createdAt(), updatedAt(),
			},
			Uniques: []UniqueKey{
				unique("uq_doctors_user", "user_id"),
				unique("uq_doctors_license_number", "license_number"),
			},
			ForeignKeys: []ForeignKey{
				fk(Doctors, "user_id", Users, SetNull),
				fk(Doctors, "specialty_id", Specialties, Restrict),
			},
		},
		{
			Name: Staff, PrimaryKey: "staff_id", Tier: TierIdentity,
			Columns: []Column{
				pk("staff_id"),
				null(ref("user_id")),
				text("first_name", 50),
				text("last_name", 50),
				text("position", 50),
				null(ref("department_id")),
				null(text("phone", 20)),
				null(text("email", 100)),
				null(date("hire_date")),
				null(money("salary")),
				createdAt(), updatedAt(),
			},
			Uniques: []UniqueKey{unique("uq_staff_user", "user_id")},
			ForeignKeys: []ForeignKey{
				fk(Staff, "user_id", Users, SetNull),
				fk(Staff, "department_id", Departments, SetNull),
			},
		},
	}
}

func lookupTable(name, key, nameCol string, extra ...Column) *Table {
	cols := append([]Column{pk(key), text(nameCol, 100)}, extra...)
	return &Table{
		Name: name, PrimaryKey: key, Tier: TierReference, NameColumn: nameCol,
		Columns: cols,
		Uniques: []UniqueKey{unique(fmt.Sprintf("uq_%s_name", name), nameCol)},
	}
}

func referenceTables() []*Table {
	return []*Table{
		lookupTable(Specialties, "specialty_id", "specialty_name", null(longText("description"))),
		lookupTable(Departments, "department_id", "department_name",
			null(longText("description")), null(text("location", 100))),
		lookupTable(AppointmentStatus, "status_id", "status_name", null(longText("description"))),
		lookupTable(Medications, "medication_id", "medication_name",
			null(text("generic_name", 100)),
			null(text("manufacturer", 100)),
			null(text("dosage_form", 50)),
			null(text("strength", 50)),
			null(money("unit_price")),
			null(longText("description")),
		),
		lookupTable(Allergies, "allergy_id", "allergy_name",
			null(text("category", 50)), null(longText("description"))),
		lookupTable(MedicalTests, "test_id", "test_name",
			null(longText("description")),
			null(text("normal_range", 100)),
			null(text("unit", 20)),
			null(money("cost")),
		),
		lookupTable(Services, "service_id", "service_name",
			null(longText("description")), money("cost")),
		lookupTable(InsuranceProviders, "provider_id", "provider_name",
			null(text("contact_phone", 20)),
			null(text("contact_email", 100)),
			null(longText("address")),
		),
		{
			Name: Rooms, PrimaryKey: "room_id", Tier: TierReference, NameColumn: "room_number",
			Columns: []Column{
				pk("room_id"),
				text("room_number", 20),
				enum("room_type", values(RoomTypes)),
				null(Column{Name: "floor", Type: Int}),
				flag("is_available", true),
			},
			Uniques: []UniqueKey{unique("uq_rooms_name", "room_number")},
		},
	}
}

func transactionalTables() []*Table {
	return []*Table{
		{
			Name: DoctorAvailability, PrimaryKey: "availability_id", Tier: TierTransactional,
			Columns: []Column{
				pk("availability_id"),
				ref("doctor_id"),
				enum("day_of_week", values(Weekdays)),
				clock("start_time"),
				clock("end_time"),
				flag("is_available", true),
			},
			Uniques:     []UniqueKey{unique("uq_doctor_availability_window", "doctor_id", "day_of_week", "start_time")},
			ForeignKeys: []ForeignKey{fk(DoctorAvailability, "doctor_id", Doctors, Cascade)},
			Checks: []Check{{
				Name: "ck_doctor_availability_time_order", Columns: []string{"start_time", "end_time"},
				Fn: laterThan("end_time", "start_time"),
			}},
		},
		{
			Name: Appointments, PrimaryKey: "appointment_id", Tier: TierTransactional,
			Columns: []Column{
				pk("appointment_id"),
				ref("patient_id"),
				ref("doctor_id"),
				date("appointment_date"),
				clock("start_time"),
				clock("end_time"),
				ref("status_id"),
				withDefault(enum("appointment_type", values(AppointmentTypes)), string(AppointmentConsultation)),
				null(longText("reason")),
				null(longText("notes")),
				createdAt(), updatedAt(),
			},
			Uniques: []UniqueKey{{
				Name:       SchedulingKey,
				Columns:    []string{"doctor_id", "appointment_date", "start_time"},
				Scheduling: true,
			}},
			ForeignKeys: []ForeignKey{
				fk(Appointments, "patient_id", Patients, Cascade),
				fk(Appointments, "doctor_id", Doctors, Cascade),
				fk(Appointments, "status_id", AppointmentStatus, Restrict),
			},
			Checks: []Check{{
				Name: "ck_appointments_time_order", Columns: []string{"start_time", "end_time"},
				Fn: laterThan("end_time", "start_time"),
			}},
		},
		{
			Name: MedicalRecords, PrimaryKey: "record_id", Tier: TierTransactional,
			Columns: []Column{
				pk("record_id"),
				ref("patient_id"),
				ref("doctor_id"),
				null(ref("appointment_id")),
				date("record_date"),
				longText("diagnosis"),
				null(longText("symptoms")),
				null(longText("treatment")),
				null(longText("notes")),
				null(date("follow_up_date")),
				createdAt(), updatedAt(),
			},
			ForeignKeys: []ForeignKey{
				fk(MedicalRecords, "patient_id", Patients, Cascade),
				fk(MedicalRecords, "doctor_id", Doctors, Cascade),
				fk(MedicalRecords, "appointment_id", Appointments, Cascade),
			},
		},
		{
			Name: Prescriptions, PrimaryKey: "prescription_id", Tier: TierTransactional,
			Columns: []Column{
				pk("prescription_id"),
				ref("record_id"),
				ref("medication_id"),
				text("dosage", 100),
				text("frequency", 100),
				null(text("duration", 100)),
				null(longText("instructions")),
				createdAt(),
			},
			ForeignKeys: []ForeignKey{
				fk(Prescriptions, "record_id", MedicalRecords, Cascade),
				fk(Prescriptions, "medication_id", Medications, Restrict),
			},
		},
		{
			Name: PatientTests, PrimaryKey: "patient_test_id", Tier: TierTransactional,
			Columns: []Column{
				pk("patient_test_id"),
				ref("patient_id"),
				ref("test_id"),
				null(ref("doctor_id")),
				null(ref("appointment_id")),
				date("test_date"),
				withDefault(enum("status", values(TestStatuses)), string(TestOrdered)),
				null(longText("result")),
				null(longText("notes")),
				createdAt(), updatedAt(),
			},
			ForeignKeys: []ForeignKey{
				fk(PatientTests, "patient_id", Patients, Cascade),
				fk(PatientTests, "test_id", MedicalTests, Restrict),
				fk(PatientTests, "doctor_id", Doctors, SetNull),
				fk(PatientTests, "appointment_id", Appointments, SetNull),
			},
		},
		{
			Name: Billing, PrimaryKey: "bill_id", Tier: TierTransactional,
			Columns: []Column{
				pk("bill_id"),
				text("invoice_number", 50),
				ref("patient_id"),
				null(ref("appointment_id")),
				date("bill_date"),
				null(date("due_date")),
				money("total_amount"),
				withDefault(money("paid_amount"), "0.00"),
				withDefault(enum("payment_status", values(PaymentStatuses)), string(PaymentUnpaid)),
				null(enum("payment_method", values(PaymentMethods))),
				null(longText("notes")),
				createdAt(), updatedAt(),
			},
			Uniques: []UniqueKey{unique("uq_billing_invoice_number", "invoice_number")},
			ForeignKeys: []ForeignKey{
				fk(Billing, "patient_id", Patients, Cascade),
				fk(Billing, "appointment_id", Appointments, SetNull),
			},
		},
		{
			Name: RoomAssignments, PrimaryKey: "assignment_id", Tier: TierTransactional,
			Columns: []Column{
				pk("assignment_id"),
				ref("room_id"),
				ref("patient_id"),
				null(ref("appointment_id")),
				stamp("assigned_at"),
				null(stamp("released_at")),
				null(longText("notes")),
			},
			ForeignKeys: []ForeignKey{
				fk(RoomAssignments, "room_id", Rooms, Restrict),
				fk(RoomAssignments, "patient_id", Patients, Cascade),
				fk(RoomAssignments, "appointment_id", Appointments, Cascade),
			},
			Checks: []Check{{
				Name: "ck_room_assignments_release_order", Columns: []string{"assigned_at", "released_at"},
				Fn: notBefore("released_at", "assigned_at"),
			}},
		},
		{
			Name: Notifications, PrimaryKey: "notification_id", Tier: TierTransactional,
			Columns: []Column{
				pk("notification_id"),
				ref("user_id"),
				enum("notification_type", values(NotificationTypes)),
				text("title", 200),
				longText("message"),
				flag("is_read", false),
				createdAt(),
			},
			ForeignKeys: []ForeignKey{fk(Notifications, "user_id", Users, Cascade)},
		},
		{
			Name: Feedback, PrimaryKey: "feedback_id", Tier: TierTransactional,
			Columns: []Column{
				pk("feedback_id"),
				ref("patient_id"),
				null(ref("doctor_id")),
				null(ref("appointment_id")),
				between(Column{Name: "rating", Type: Int}, 1, 5),
				null(longText("comments")),
				createdAt(),
			},
			ForeignKeys: []ForeignKey{
				fk(Feedback, "patient_id", Patients, Cascade),
				fk(Feedback, "doctor_id", Doctors, SetNull),
				fk(Feedback, "appointment_id", Appointments, SetNull),
			},
		},
	}
}

func associationTables() []*Table {
	return []*Table{
		{
			Name: PatientAllergies, PrimaryKey: "patient_allergy_id", Tier: TierAssociation,
			Columns: []Column{
				pk("patient_allergy_id"),
				ref("patient_id"),
				ref("allergy_id"),
				enum("severity", values(Severities)),
				null(longText("reaction")),
				null(date("diagnosed_date")),
			},
			Uniques: []UniqueKey{unique("uq_patient_allergies_pair", "patient_id", "allergy_id")},
			ForeignKeys: []ForeignKey{
				fk(PatientAllergies, "patient_id", Patients, Cascade),
				fk(PatientAllergies, "allergy_id", Allergies, Restrict),
			},
		},
		{
			Name: DoctorDepartments, PrimaryKey: "doctor_department_id", Tier: TierAssociation,
			Columns: []Column{
				pk("doctor_department_id"),
				ref("doctor_id"),
				ref("department_id"),
				flag("is_head", false),
				null(date("joined_date")),
			},
			Uniques: []UniqueKey{unique("uq_doctor_departments_pair", "doctor_id", "department_id")},
			ForeignKeys: []ForeignKey{
				fk(DoctorDepartments, "doctor_id", Doctors, Cascade),
				fk(DoctorDepartments, "department_id", Departments, Cascade),
			},
		},
		{
			Name: BillServices, PrimaryKey: "bill_service_id", Tier: TierAssociation,
			Columns: []Column{
				pk("bill_service_id"),
				ref("bill_id"),
				ref("service_id"),
				withDefault(atLeast(Column{Name: "quantity", Type: Int}, 1), int64(1)),
				money("unit_price"),
				withDefault(percent("discount_percentage"), "0.00"),
				money("total_price"),
			},
			Uniques: []UniqueKey{unique("uq_bill_services_pair", "bill_id", "service_id")},
			ForeignKeys: []ForeignKey{
				fk(BillServices, "bill_id", Billing, Cascade),
				fk(BillServices, "service_id", Services, Restrict),
			},
			Derived: []Derivation{{Column: "total_price", Fn: deriveLineTotal}},
		},
		{
			Name: PatientInsurance, PrimaryKey: "patient_insurance_id", Tier: TierAssociation,
			Columns: []Column{
				pk("patient_insurance_id"),
				ref("patient_id"),
				ref("provider_id"),
				text("policy_number", 50),
				date("coverage_start_date"),
				null(date("coverage_end_date")),
				null(percent("coverage_percentage")),
				flag("is_primary", false),
			},
			Uniques: []UniqueKey{unique("uq_patient_insurance_policy", "patient_id", "provider_id", "policy_number")},
			ForeignKeys: []ForeignKey{
				fk(PatientInsurance, "patient_id", Patients, Cascade),
				fk(PatientInsurance, "provider_id", InsuranceProviders, Restrict),
			},
			Checks: []Check{{
				Name: "ck_patient_insurance_coverage_order", Columns: []string{"coverage_start_date", "coverage_end_date"},
				Fn: notBefore("coverage_end_date", "coverage_start_date"),
			}},
		},
	}
}

// Clinic builds the catalog of the clinic schema. Every call returns a fresh
// catalog.
func Clinic() *Catalog {
	var tables []*Table
	tables = append(tables, identityTables()...)
	tables = append(tables, referenceTables()...)
	tables = append(tables, transactionalTables()...)
	tables = append(tables, associationTables()...)
	return MustCatalog(tables...)
}
