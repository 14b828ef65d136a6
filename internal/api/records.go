package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-records/internal/appointment"
	"github.com/hackgods/clinic-records/internal/schema"
	"github.com/hackgods/clinic-records/internal/store"
)

type tableKey struct{}

// withTable pins the generic handlers of a sub-router to one table.
func withTable(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tableKey{}, name)))
		})
	}
}

func (h *handlers) table(w http.ResponseWriter, r *http.Request) (*schema.Table, bool) {
	name, ok := r.Context().Value(tableKey{}).(string)
	if !ok {
		name = chi.URLParam(r, "table")
	}
	t, err := h.store.Catalog().Table(name)
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	return t, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

// guardedColumns are only changed through their domain endpoints.
var guardedColumns = map[string][]string{
	schema.Appointments: {"status_id"},
	schema.Billing:      {"total_amount", "paid_amount", "payment_status"},
	schema.Users:        {"password_hash"},
}

func (h *handlers) invalidate(ctx context.Context, t *schema.Table) {
	if h.lookups == nil || t.Tier != schema.TierReference {
		return
	}
	if err := h.lookups.Invalidate(ctx, t.Name); err != nil {
		h.log.Error().Err(err).Str("table", t.Name).Msg("lookup refresh failed")
	}
}

func (h *handlers) createRecord(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	var row schema.Row
	if !decodeBody(w, r, &row) {
		return
	}
	created, err := h.store.Create(r.Context(), t.Name, row)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.invalidate(r.Context(), t)
	writeJSON(w, http.StatusCreated, renderRow(t, created))
}

func (h *handlers) getRecord(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	row, err := h.store.Get(r.Context(), t.Name, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderRow(t, row))
}

func (h *handlers) listRecords(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	limit, offset, ok := page(w, r)
	if !ok {
		return
	}

	params := make(map[string]string)
	for key, values := range r.URL.Query() {
		if key == "limit" || key == "offset" || len(values) == 0 {
			continue
		}
		if col, ok := t.Column(key); ok && col.Secret {
			writeError(w, http.StatusBadRequest, "invalid_filter", key+" cannot be filtered on")
			return
		}
		params[key] = values[0]
	}
	where, err := store.ParseFilter(t, params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	rows, err := h.store.Find(r.Context(), t.Name, store.Query{Where: where, Limit: limit, Offset: offset})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  renderRows(t, rows),
		"limit":  limit,
		"offset": offset,
	})
}

func (h *handlers) updateRecord(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var changes schema.Row
	if !decodeBody(w, r, &changes) {
		return
	}
	for _, col := range guardedColumns[t.Name] {
		if _, ok := changes[col]; ok {
			writeError(w, http.StatusUnprocessableEntity, "guarded_column", col+" cannot be changed directly")
			return
		}
	}

	row, err := h.store.Update(r.Context(), t.Name, id, changes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.invalidate(r.Context(), t)
	writeJSON(w, http.StatusOK, renderRow(t, row))
}

func (h *handlers) deleteRecord(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	report, err := h.store.Delete(r.Context(), t.Name, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.invalidate(r.Context(), t)
	writeJSON(w, http.StatusOK, map[string]any{
		"table":     report.Table,
		"id":        report.ID,
		"deleted":   report.Deleted,
		"nullified": report.Nullified,
		"rows":      report.Rows(),
	})
}

func (h *handlers) deletionPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.store.Catalog().Plan(chi.URLParam(r, "table"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderPlan(plan))
}

func (h *handlers) listLookups(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	if !h.lookups.IsReference(name) {
		writeError(w, http.StatusNotFound, "unknown_table", name+" is not a reference table")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table":     name,
		"items":     h.lookups.Entries(name),
		"loaded_at": h.lookups.LoadedAt(),
	})
}

func page(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	q := r.URL.Query()
	var limit, offset int
	var err error
	if s := q.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return 0, 0, false
		}
	}
	if s := q.Get("offset"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_offset", "offset must be an integer")
			return 0, 0, false
		}
	}
	limit, offset = appointment.ClampPage(limit, offset)
	return limit, offset, true
}
