package api

import (
	"context"
	"net/http"

	"github.com/hackgods/clinic-records/internal/account"
	"github.com/hackgods/clinic-records/internal/schema"
)

func (h *handlers) registerUser(w http.ResponseWriter, r *http.Request) {
	var req account.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	t, _ := h.store.Catalog().Table(schema.Users)
	writeJSON(w, http.StatusCreated, renderRow(t, user))
}

func (h *handlers) deactivateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.accounts.Deactivate(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	t, _ := h.store.Catalog().Table(schema.Users)
	writeJSON(w, http.StatusOK, renderRow(t, user))
}

// linkUser attaches a login to a patient, doctor or staff member.
func (h *handlers) linkUser(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req LinkUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	link := map[string]func(ctx context.Context, id, userID int64) (schema.Row, error){
		schema.Patients: h.accounts.LinkPatient,
		schema.Doctors:  h.accounts.LinkDoctor,
		schema.Staff:    h.accounts.LinkStaff,
	}[t.Name]
	if link == nil {
		writeError(w, http.StatusNotFound, "not_linkable", t.Name+" has no user link")
		return
	}

	row, err := link(r.Context(), id, req.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderRow(t, row))
}
