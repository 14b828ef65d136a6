package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-records/internal/account"
	"github.com/hackgods/clinic-records/internal/appointment"
	"github.com/hackgods/clinic-records/internal/billing"
	"github.com/hackgods/clinic-records/internal/config"
	"github.com/hackgods/clinic-records/internal/lookup"
	redisclient "github.com/hackgods/clinic-records/internal/redis"
	"github.com/hackgods/clinic-records/internal/schema"
	"github.com/hackgods/clinic-records/internal/store"
)

type server struct {
	t       *testing.T
	handler http.Handler
	lookups *lookup.Cache
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()
	log := zerolog.Nop()

	s := store.New(schema.Clinic(), store.NewMemoryBackend(), log)
	_, err := store.Bootstrap(ctx, s)
	require.NoError(t, err)
	cache := lookup.New(s.Catalog(), s, log)
	require.NoError(t, cache.Refresh(ctx))

	handler := NewRouter(RouterConfig{
		Store:        s,
		Lookups:      cache,
		Appointments: appointment.NewService(appointment.NewStoreRepository(s), redisclient.NewLocalLocker(), cache, config.Config{}, log),
		Billing:      billing.NewService(s, log),
		Accounts:     account.NewService(s, log),
		Log:          log,
		Env:          "test",
	})
	return &server{t: t, handler: handler, lookups: cache}
}

func (s *server) do(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func (s *server) create(path, pk string, body any) int64 {
	s.t.Helper()
	rec, out := s.do(http.MethodPost, path, body)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	id, ok := out[pk].(float64)
	require.True(s.t, ok, "no %s in %v", pk, out)
	return int64(id)
}

type clinic struct {
	*server
	user    int64
	patient int64
	doctor  int64
}

func newClinic(t *testing.T) *clinic {
	s := newServer(t)
	c := &clinic{server: s}
	c.user = s.create("/v1/users", "user_id", map[string]any{
		"username": "mgarcia", "email": "mgarcia@example.com", "password": "correct horse", "role": "patient",
	})
	c.patient = s.create("/v1/patients", "patient_id", map[string]any{
		"first_name": "Maria", "last_name": "Garcia", "date_of_birth": "1988-03-14", "gender": "Female",
	})
	cardiology, err := s.lookups.ID(schema.Specialties, "Cardiology")
	require.NoError(t, err)
	c.doctor = s.create("/v1/doctors", "doctor_id", map[string]any{
		"first_name": "Alan", "last_name": "Reyes", "specialty_id": cardiology, "license_number": "LIC-1001",
		"consultation_fee": "150.00",
	})
	return c
}

func (c *clinic) book(start, end string) (*httptest.ResponseRecorder, map[string]any) {
	return c.do(http.MethodPost, "/v1/appointments", map[string]any{
		"patient_id": c.patient, "doctor_id": c.doctor,
		"appointment_date": "2025-06-01", "start_time": start, "end_time": end,
	})
}

func TestHealth(t *testing.T) {
	s := newServer(t)

	rec, out := s.do(http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
	assert.NotEmpty(t, rec.Header().Get(TraceHeader))

	rec, out = s.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"postgres": "disabled", "redis": "disabled"}, out["dependencies"])
}

func TestReadinessReportsDependencies(t *testing.T) {
	down := RedisPinger(func(context.Context) error { return errors.New("connection refused") })
	h := NewHealthHandler(nil, down, "test", "v1")

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestUserRegistrationHidesHash(t *testing.T) {
	c := newClinic(t)

	rec, out := c.do(http.MethodGet, fmt.Sprintf("/v1/users/%d", c.user), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mgarcia", out["username"])
	assert.NotContains(t, out, "password_hash")

	rec, _ = c.do(http.MethodGet, "/v1/users?password_hash=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = c.do(http.MethodPost, fmt.Sprintf("/v1/users/%d/deactivate", c.user), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["is_active"])
}

func TestLinkPatientToUser(t *testing.T) {
	c := newClinic(t)

	rec, out := c.do(http.MethodPut, fmt.Sprintf("/v1/patients/%d/user", c.patient), map[string]any{"user_id": c.user})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, c.user, out["user_id"])

	rec, out = c.do(http.MethodPut, fmt.Sprintf("/v1/doctors/%d/user", c.doctor), map[string]any{"user_id": c.user})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out = c.do(http.MethodDelete, fmt.Sprintf("/v1/users/%d", c.user), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []any{float64(c.patient)}, out["nullified"].(map[string]any)["patients.user_id"])

	rec, out = c.do(http.MethodGet, fmt.Sprintf("/v1/patients/%d", c.patient), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, out["user_id"])
}

func TestBookingAndConflict(t *testing.T) {
	c := newClinic(t)

	rec, out := c.book("14:00", "14:30")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Scheduled", out["status"])
	assert.Equal(t, "2025-06-01", out["appointment_date"])
	assert.Equal(t, "14:00:00", out["start_time"])

	rec, out = c.book("14:00", "15:00")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "scheduling_conflict", out["error"])
	assert.Equal(t, schema.Appointments, out["table"])

	rec, out = c.book("16:00", "15:00")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "domain_violation", out["error"])

	rec, _ = c.do(http.MethodPost, "/v1/appointments", map[string]any{"appointment_date": "June 1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAppointmentStatusRoutes(t *testing.T) {
	c := newClinic(t)
	_, out := c.book("14:00", "14:30")
	id := int64(out["appointment_id"].(float64))

	rec, out := c.do(http.MethodPost, fmt.Sprintf("/v1/appointments/%d/status", id), map[string]any{"status": "Confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Confirmed", out["status"])

	rec, out = c.do(http.MethodPost, fmt.Sprintf("/v1/appointments/%d/status", id), map[string]any{"status": "Scheduled"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_status_transition", out["error"])

	rec, _ = c.do(http.MethodPatch, fmt.Sprintf("/v1/appointments/%d", id), map[string]any{"status_id": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, out = c.do(http.MethodPatch, fmt.Sprintf("/v1/appointments/%d", id), map[string]any{"notes": "bring ECG results"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bring ECG results", out["notes"])

	rec, out = c.do(http.MethodPost, fmt.Sprintf("/v1/appointments/%d/reschedule", id), map[string]any{
		"appointment_date": "2025-06-02", "start_time": "09:00", "end_time": "09:30",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Rescheduled", out["previous"].(map[string]any)["status"])
	assert.Equal(t, "2025-06-02", out["appointment"].(map[string]any)["appointment_date"])

	rec, out = c.do(http.MethodGet, fmt.Sprintf("/v1/patients/%d/appointments?limit=500", c.patient), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["items"], 2)
	assert.EqualValues(t, 100, out["limit"])

	rec, out = c.do(http.MethodGet, fmt.Sprintf("/v1/doctors/%d/appointments", c.doctor+1), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, out["items"])

	rec, _ = c.do(http.MethodGet, "/v1/appointments/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenericRecords(t *testing.T) {
	c := newClinic(t)

	rec, out := c.do(http.MethodPost, "/v1/feedback", map[string]any{"patient_id": c.patient, "rating": 6})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []any{"rating"}, out["columns"])

	rec, _ = c.do(http.MethodPost, "/v1/feedback", map[string]any{"patient_id": c.patient, "rating": 5})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, out = c.do(http.MethodGet, fmt.Sprintf("/v1/feedback?patient_id=%d&doctor_id=null", c.patient), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["items"], 1)

	rec, out = c.do(http.MethodGet, fmt.Sprintf("/v1/doctors/%d", c.doctor), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "150.00", out["consultation_fee"])

	rec, _ = c.do(http.MethodPost, "/v1/feedback", map[string]any{"patient_id": 999, "rating": 3})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, out = c.do(http.MethodGet, "/v1/widgets", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_table", out["error"])

	rec, _ = c.do(http.MethodGet, "/v1/patients/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = c.do(http.MethodPost, "/v1/patients", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeletePatientCascades(t *testing.T) {
	c := newClinic(t)
	rec, _ := c.book("14:00", "14:30")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, out := c.do(http.MethodDelete, fmt.Sprintf("/v1/patients/%d", c.patient), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, out["rows"])

	rec, out = c.do(http.MethodGet, "/v1/appointments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, out["items"])
}

func TestReferenceRowsAndPlan(t *testing.T) {
	c := newClinic(t)

	c.create("/v1/specialties", "specialty_id", map[string]any{"specialty_name": "Oncology"})
	_, err := c.lookups.ID(schema.Specialties, "Oncology")
	assert.NoError(t, err)

	rec, out := c.do(http.MethodGet, "/v1/lookups/specialties", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["items"], 9)

	rec, _ = c.do(http.MethodGet, "/v1/lookups/patients", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	cardiology, err := c.lookups.ID(schema.Specialties, "Cardiology")
	require.NoError(t, err)
	rec, out = c.do(http.MethodDelete, fmt.Sprintf("/v1/specialties/%d", cardiology), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "cascade_failure", out["error"])

	rec, out = c.do(http.MethodGet, "/v1/catalog/patients/plan", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "patients", out["root"])
	assert.Contains(t, out["tables"], "appointments")
	assert.Contains(t, out["tables"], "bill_services")
}

func TestBillingRoutes(t *testing.T) {
	c := newClinic(t)
	consult := c.create("/v1/services", "service_id", map[string]any{"service_name": "Consultation", "cost": "60.00"})
	ecg := c.create("/v1/services", "service_id", map[string]any{"service_name": "ECG", "cost": "50.00"})

	rec, out := c.do(http.MethodPost, "/v1/billing", map[string]any{
		"patient_id": c.patient, "invoice_number": "INV-1", "bill_date": "2025-06-01", "total_amount": "100.00",
		"services": []map[string]any{
			{"service_id": consult},
			{"service_id": ecg, "discount_percentage": "10"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "100.00", out["total_amount"])
	assert.Equal(t, "0.00", out["paid_amount"])
	assert.Equal(t, "Unpaid", out["payment_status"])
	lines := out["services"].([]any)
	require.Len(t, lines, 2)
	assert.Equal(t, "60.00", lines[0].(map[string]any)["total_price"])
	assert.Equal(t, "45.00", lines[1].(map[string]any)["total_price"])
	id := int64(out["bill_id"].(float64))

	rec, out = c.do(http.MethodPost, fmt.Sprintf("/v1/billing/%d/payments", id), map[string]any{"amount": "30.00", "payment_method": "Cash"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Partially Paid", out["payment_status"])
	assert.Equal(t, "70.00", out["balance"])

	rec, _ = c.do(http.MethodPost, fmt.Sprintf("/v1/billing/%d/payments", id), map[string]any{"amount": "70.01"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = c.do(http.MethodPatch, fmt.Sprintf("/v1/billing/%d", id), map[string]any{"paid_amount": "100.00"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, out = c.do(http.MethodPost, fmt.Sprintf("/v1/billing/%d/services", id), map[string]any{"service_id": ecg})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "uniqueness_violation", out["error"])

	rec, out = c.do(http.MethodGet, fmt.Sprintf("/v1/billing/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["services"], 2)
}

func TestBookingRequiresSlotFields(t *testing.T) {
	c := newClinic(t)

	for _, field := range []string{"patient_id", "doctor_id", "appointment_date", "start_time", "end_time"} {
		t.Run(field, func(t *testing.T) {
			body := map[string]any{
				"patient_id": c.patient, "doctor_id": c.doctor,
				"appointment_date": "2025-06-01", "start_time": "09:00", "end_time": "09:30",
			}
			delete(body, field)

			rec, out := c.do(http.MethodPost, "/v1/appointments", body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			assert.Equal(t, "domain_violation", out["error"])
			assert.Equal(t, []any{field}, out["columns"])
		})
	}

	rec, out := c.do(http.MethodGet, fmt.Sprintf("/v1/patients/%d/appointments", c.patient), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, out["items"], "nothing is booked at midnight by default")
}

func TestRescheduleRequiresSlotFields(t *testing.T) {
	c := newClinic(t)
	rec, out := c.book("09:00", "09:30")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := int64(out["appointment_id"].(float64))

	rec, out = c.do(http.MethodPost, fmt.Sprintf("/v1/appointments/%d/reschedule", id), map[string]any{
		"appointment_date": "2025-06-02", "start_time": "10:00",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, []any{"end_time"}, out["columns"])

	rec, out = c.do(http.MethodGet, fmt.Sprintf("/v1/appointments/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Scheduled", out["status"])
}

func TestBillTotalKeepsPaymentsConsistent(t *testing.T) {
	c := newClinic(t)
	rec, out := c.do(http.MethodPost, "/v1/billing", map[string]any{
		"patient_id": c.patient, "invoice_number": "INV-2", "bill_date": "2025-06-01", "total_amount": "100.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := int64(out["bill_id"].(float64))

	rec, out = c.do(http.MethodPost, fmt.Sprintf("/v1/billing/%d/payments", id), map[string]any{"amount": "100.00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Paid", out["payment_status"])

	rec, out = c.do(http.MethodPatch, fmt.Sprintf("/v1/billing/%d", id), map[string]any{"total_amount": "50.00"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "guarded_column", out["error"])

	rec, out = c.do(http.MethodPut, fmt.Sprintf("/v1/billing/%d/total", id), map[string]any{"total_amount": "50.00"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "domain_violation", out["error"])

	rec, out = c.do(http.MethodPut, fmt.Sprintf("/v1/billing/%d/total", id), map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []any{"total_amount"}, out["columns"])

	rec, out = c.do(http.MethodPut, fmt.Sprintf("/v1/billing/%d/total", id), map[string]any{"total_amount": "150.00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Partially Paid", out["payment_status"])

	rec, out = c.do(http.MethodGet, fmt.Sprintf("/v1/billing/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "150.00", out["total_amount"])
	assert.Equal(t, "100.00", out["paid_amount"])
	assert.Equal(t, "50.00", out["balance"])
}

func TestRegistrationRejectsOverlongPassword(t *testing.T) {
	s := newServer(t)

	rec, out := s.do(http.MethodPost, "/v1/users", map[string]any{
		"username": "long", "email": "long@example.com", "password": strings.Repeat("p", 80), "role": "patient",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, "domain_violation", out["error"])

	rec, out = s.do(http.MethodPost, "/v1/users", map[string]any{
		"username": "", "email": "blank@example.com", "password": "correct horse", "role": "patient",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, []any{"username"}, out["columns"])
}

func TestUnexpectedErrorsAreLoggedNotExposed(t *testing.T) {
	var logs bytes.Buffer
	log := zerolog.New(&logs)
	req := httptest.NewRequest(http.MethodGet, "/v1/patients", nil)
	req = req.WithContext(log.WithContext(context.WithValue(req.Context(), traceKey{}, "trace-1")))
	rec := httptest.NewRecorder()

	writeServiceError(rec, req, errors.New("dial tcp 10.0.0.3:5432: connection refused"))
	assert.Contains(t, rec.Body.String(), `"trace":"trace-1"`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
	assert.Contains(t, rec.Body.String(), "internal_error")
	assert.Contains(t, logs.String(), "10.0.0.3")
}

func TestTraceHeader(t *testing.T) {
	var logs bytes.Buffer
	handler := NewRouter(RouterConfig{Log: zerolog.New(&logs), Env: "test"})

	trace := "5b0c1f8e-6a51-4f43-9d1e-2f3c9a7b0d11"
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(TraceHeader, trace)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, trace, rec.Header().Get(TraceHeader))
	assert.Contains(t, logs.String(), `"trace":"`+trace+`"`)
	assert.Contains(t, logs.String(), `"route":"/health/live"`)

	req = httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(TraceHeader, "not a uuid")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.NotEqual(t, "not a uuid", rec.Header().Get(TraceHeader))
	assert.NotEmpty(t, rec.Header().Get(TraceHeader))
}
