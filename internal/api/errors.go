package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-records/internal/appointment"
	"github.com/hackgods/clinic-records/internal/schema"
	"github.com/hackgods/clinic-records/internal/store"
)

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Table   string   `json:"table,omitempty"`
	Columns []string `json:"columns,omitempty"`
	Trace   string   `json:"trace,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeMissingFields rejects a request body that left required fields out.
func writeMissingFields(w http.ResponseWriter, r *http.Request, table string, cols ...string) {
	writeServiceError(w, r, store.NewViolation(store.ErrDomainViolation, table, cols,
		"missing required field(s): %s", strings.Join(cols, ", ")))
}

// writeServiceError maps the store and service error taxonomy to HTTP.
// Anything outside the taxonomy is logged and answered without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, store.ErrSchedulingConflict):
		status, code = http.StatusConflict, "scheduling_conflict"
	case errors.Is(err, store.ErrUniquenessViolation):
		status, code = http.StatusConflict, "uniqueness_violation"
	case errors.Is(err, store.ErrCascadeFailure):
		status, code = http.StatusConflict, "cascade_failure"
	case errors.Is(err, store.ErrReferentialViolation):
		status, code = http.StatusUnprocessableEntity, "referential_violation"
	case errors.Is(err, store.ErrDomainViolation):
		status, code = http.StatusUnprocessableEntity, "domain_violation"
	case errors.Is(err, store.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, schema.ErrUnknownTable):
		status, code = http.StatusNotFound, "unknown_table"
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		status, code = http.StatusConflict, "slot_being_booked"
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		status, code = http.StatusConflict, "invalid_status_transition"
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("route", r.URL.Path).Msg("unhandled service error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Details: "the request could not be completed",
			Trace:   TraceID(r.Context()),
		})
		return
	}

	resp := ErrorResponse{Error: code, Details: err.Error()}
	if v, ok := store.AsViolation(err); ok {
		resp.Table = v.Table
		resp.Columns = v.Columns
	}
	writeJSON(w, status, resp)
}
