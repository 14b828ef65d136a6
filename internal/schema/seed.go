package schema

// SeedRow is one reference row inserted at bootstrap.
type SeedRow struct {
	Name        string
	Description string
}

// Seed holds the reference vocabulary that must exist before any
// transactional row can be written.
var Seed = map[string][]SeedRow{
	AppointmentStatus: {
		{"Scheduled", "Appointment has been booked"},
		{"Confirmed", "Appointment confirmed by the clinic"},
		{"Completed", "Patient was seen"},
		{"Cancelled", "Appointment was cancelled"},
		{"No-Show", "Patient did not attend"},
		{"Rescheduled", "Appointment moved to another slot"},
	},
	Specialties: {
		{"Cardiology", "Heart and blood vessel disorders"},
		{"Dermatology", "Skin, hair and nail conditions"},
		{"Neurology", "Disorders of the nervous system"},
		{"Orthopedics", "Bones, joints and muscles"},
		{"Pediatrics", "Medical care of infants and children"},
		{"General Medicine", "Primary care and internal medicine"},
		{"Gynecology", "Female reproductive health"},
		{"Ophthalmology", "Eye and vision care"},
	},
	Departments: {
		{"Emergency", "Emergency and urgent care"},
		{"Cardiology", "Cardiac care unit"},
		{"Neurology", "Neurological care unit"},
		{"Orthopedics", "Orthopedic surgery and care"},
		{"Pediatrics", "Children's care unit"},
		{"Radiology", "Imaging services"},
		{"Laboratory", "Clinical laboratory"},
		{"General Medicine", "Outpatient general medicine"},
	},
}

// SeedTables lists the seeded tables in insertion order.
var SeedTables = []string{AppointmentStatus, Specialties, Departments}
