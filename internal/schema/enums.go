package schema

import "slices"

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RoleNurse        Role = "nurse"
	RoleReceptionist Role = "receptionist"
	RolePatient      Role = "patient"
)

var Roles = []Role{RoleAdmin, RoleDoctor, RoleNurse, RoleReceptionist, RolePatient}

func (r Role) Valid() bool { return slices.Contains(Roles, r) }

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

var Genders = []Gender{GenderMale, GenderFemale, GenderOther}

func (g Gender) Valid() bool { return slices.Contains(Genders, g) }

type BloodType string

var BloodTypes = []BloodType{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

func (b BloodType) Valid() bool { return slices.Contains(BloodTypes, b) }

type AppointmentType string

const (
	AppointmentConsultation   AppointmentType = "Consultation"
	AppointmentFollowUp       AppointmentType = "Follow-up"
	AppointmentEmergency      AppointmentType = "Emergency"
	AppointmentRoutineCheckup AppointmentType = "Routine Checkup"
	AppointmentProcedure      AppointmentType = "Procedure"
)

var AppointmentTypes = []AppointmentType{
	AppointmentConsultation,
	AppointmentFollowUp,
	AppointmentEmergency,
	AppointmentRoutineCheckup,
	AppointmentProcedure,
}

func (a AppointmentType) Valid() bool { return slices.Contains(AppointmentTypes, a) }

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "Unpaid"
	PaymentPartiallyPaid PaymentStatus = "Partially Paid"
	PaymentPaid          PaymentStatus = "Paid"
	PaymentRefunded      PaymentStatus = "Refunded"
	PaymentCancelled     PaymentStatus = "Cancelled"
)

var PaymentStatuses = []PaymentStatus{PaymentUnpaid, PaymentPartiallyPaid, PaymentPaid, PaymentRefunded, PaymentCancelled}

func (p PaymentStatus) Valid() bool { return slices.Contains(PaymentStatuses, p) }

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "Cash"
	MethodCreditCard   PaymentMethod = "Credit Card"
	MethodDebitCard    PaymentMethod = "Debit Card"
	MethodInsurance    PaymentMethod = "Insurance"
	MethodBankTransfer PaymentMethod = "Bank Transfer"
	MethodOnline       PaymentMethod = "Online"
)

var PaymentMethods = []PaymentMethod{MethodCash, MethodCreditCard, MethodDebitCard, MethodInsurance, MethodBankTransfer, MethodOnline}

func (p PaymentMethod) Valid() bool { return slices.Contains(PaymentMethods, p) }

type RoomType string

var RoomTypes = []RoomType{"Consultation", "Examination", "Operation", "Ward", "ICU", "Laboratory"}

func (r RoomType) Valid() bool { return slices.Contains(RoomTypes, r) }

type NotificationType string

const (
	NotifyAppointment  NotificationType = "Appointment"
	NotifyReminder     NotificationType = "Reminder"
	NotifyBilling      NotificationType = "Billing"
	NotifyTestResult   NotificationType = "Test Result"
	NotifyPrescription NotificationType = "Prescription"
	NotifyGeneral      NotificationType = "General"
)

var NotificationTypes = []NotificationType{NotifyAppointment, NotifyReminder, NotifyBilling, NotifyTestResult, NotifyPrescription, NotifyGeneral}

func (n NotificationType) Valid() bool { return slices.Contains(NotificationTypes, n) }

type Weekday string

var Weekdays = []Weekday{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func (w Weekday) Valid() bool { return slices.Contains(Weekdays, w) }

type Severity string

var Severities = []Severity{"Mild", "Moderate", "Severe", "Life-threatening"}

func (s Severity) Valid() bool { return slices.Contains(Severities, s) }

type TestStatus string

const (
	TestOrdered    TestStatus = "Ordered"
	TestInProgress TestStatus = "In Progress"
	TestCompleted  TestStatus = "Completed"
	TestCancelled  TestStatus = "Cancelled"
)

var TestStatuses = []TestStatus{TestOrdered, TestInProgress, TestCompleted, TestCancelled}

func (t TestStatus) Valid() bool { return slices.Contains(TestStatuses, t) }

func values[T ~string](xs []T) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = string(x)
	}
	return out
}
