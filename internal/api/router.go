package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-records/internal/account"
	"github.com/hackgods/clinic-records/internal/appointment"
	"github.com/hackgods/clinic-records/internal/billing"
	"github.com/hackgods/clinic-records/internal/lookup"
	"github.com/hackgods/clinic-records/internal/schema"
	"github.com/hackgods/clinic-records/internal/store"
)

type RouterConfig struct {
	Store        *store.Store
	Lookups      *lookup.Cache
	Appointments *appointment.Service
	Billing      *billing.Service
	Accounts     *account.Service
	Postgres     Pinger
	Redis        RedisPinger
	Log          zerolog.Logger
	Env          string
	Version      string
}

type handlers struct {
	store    *store.Store
	lookups  *lookup.Cache
	appts    *appointment.Service
	bills    *billing.Service
	accounts *account.Service
	log      zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(Trace(cfg.Log))
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := &handlers{
		store:    cfg.Store,
		lookups:  cfg.Lookups,
		appts:    cfg.Appointments,
		bills:    cfg.Billing,
		accounts: cfg.Accounts,
		log:      cfg.Log,
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/catalog/{table}/plan", h.deletionPlan)
		r.Get("/lookups/{table}", h.listLookups)

		r.Route("/"+schema.Appointments, func(r chi.Router) {
			r.Use(withTable(schema.Appointments))
			r.Post("/", h.bookAppointment)
			r.Get("/", h.listRecords)
			r.Get("/{id}", h.getAppointment)
			r.Patch("/{id}", h.updateRecord)
			r.Delete("/{id}", h.deleteRecord)
			r.Post("/{id}/status", h.transitionAppointment)
			r.Post("/{id}/reschedule", h.rescheduleAppointment)
		})

		r.Route("/"+schema.Billing, func(r chi.Router) {
			r.Use(withTable(schema.Billing))
			r.Post("/", h.createBill)
			r.Get("/", h.listRecords)
			r.Get("/{id}", h.getBill)
			r.Patch("/{id}", h.updateRecord)
			r.Delete("/{id}", h.deleteRecord)
			r.Post("/{id}/services", h.addBillLine)
			r.Post("/{id}/payments", h.recordPayment)
			r.Put("/{id}/total", h.setBillTotal)
		})

		r.Route("/"+schema.Users, func(r chi.Router) {
			r.Use(withTable(schema.Users))
			r.Post("/", h.registerUser)
			r.Get("/", h.listRecords)
			r.Get("/{id}", h.getRecord)
			r.Patch("/{id}", h.updateRecord)
			r.Delete("/{id}", h.deleteRecord)
			r.Post("/{id}/deactivate", h.deactivateUser)
		})

		for _, name := range []string{schema.Patients, schema.Doctors, schema.Staff} {
			r.Route("/"+name, func(r chi.Router) {
				r.Use(withTable(name))
				h.mountRecords(r)
				r.Put("/{id}/user", h.linkUser)
				switch name {
				case schema.Patients:
					r.Get("/{id}/appointments", h.listAppointmentsByPatient)
				case schema.Doctors:
					r.Get("/{id}/appointments", h.listAppointmentsByDoctor)
				}
			})
		}

		r.Route("/{table}", h.mountRecords)
	})

	return r
}

func (h *handlers) mountRecords(r chi.Router) {
	r.Post("/", h.createRecord)
	r.Get("/", h.listRecords)
	r.Get("/{id}", h.getRecord)
	r.Patch("/{id}", h.updateRecord)
	r.Delete("/{id}", h.deleteRecord)
}
