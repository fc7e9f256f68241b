package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stayops/guest-insights/internal/enrich"
	"github.com/stayops/guest-insights/internal/pkg/httputil"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	svc *Service
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"kinds":  h.svc.Kinds(),
	})
}

type uploadRequest struct {
	Name    string       `json:"name"`
	Columns []string     `json:"columns"`
	Rows    []enrich.Row `json:"rows"`
}

// UploadDataset registers a dataset for enrichment and returns its key.
func (h *Handlers) UploadDataset(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}
	if len(req.Rows) == 0 {
		httputil.BadRequest(w, "rows must not be empty")
		return
	}

	d := &enrich.Dataset{Name: req.Name, Columns: req.Columns, Rows: req.Rows}
	key, err := h.svc.UploadDataset(r.Context(), d)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.Created(w, map[string]any{
		"dataset_key": key,
		"name":        d.Name,
		"rows":        len(d.Rows),
		"columns":     d.Columns,
	})
}

// GetDataset returns dataset metadata and per-kind job progress.
func (h *Handlers) GetDataset(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	d, err := h.svc.GetDataset(r.Context(), key)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	jobs := map[string]any{}
	for _, kind := range h.svc.Kinds() {
		job, err := h.svc.JobStatus(r.Context(), key, kind)
		if err != nil || job == nil {
			continue
		}
		jobs[kind] = map[string]any{
			"cursor":   job.Cursor,
			"done":     job.Done(),
			"progress": job.Progress(),
		}
	}

	httputil.OK(w, map[string]any{
		"dataset_key": key,
		"name":        d.Name,
		"rows":        len(d.Rows),
		"columns":     d.Columns,
		"jobs":        jobs,
	})
}

// GetDatasetRows returns one page of (possibly enriched) rows.
func (h *Handlers) GetDatasetRows(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	d, err := h.svc.GetDataset(r.Context(), key)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 100)
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if offset > len(d.Rows) {
		offset = len(d.Rows)
	}
	end := offset + limit
	if end > len(d.Rows) {
		end = len(d.Rows)
	}

	httputil.OK(w, map[string]any{
		"dataset_key": key,
		"columns":     d.Columns,
		"offset":      offset,
		"total":       len(d.Rows),
		"rows":        d.Rows[offset:end],
	})
}

// AdvanceEnrichment processes the next chunk of one enrichment kind.
// Repeated calls resume from the saved cursor until done.
func (h *Handlers) AdvanceEnrichment(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	kind := chi.URLParam(r, "kind")

	report, err := h.svc.AdvanceJob(r.Context(), key, kind)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, report)
}

// DeleteDataset removes a dataset and all of its derived state.
func (h *Handlers) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, err := h.svc.GetDataset(r.Context(), key); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.svc.ResetDataset(r.Context(), key); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"dataset_key": key, "status": "deleted"})
}

// GetSummary resolves one phone number's communication summary on demand.
// Optional arrival (YYYY-MM-DD) enables pre/post-arrival classification;
// group scopes the cache and defaults to "adhoc".
func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		httputil.BadRequest(w, "phone is required")
		return
	}

	group := r.URL.Query().Get("group")
	if group == "" {
		group = "adhoc"
	}

	var arrival *time.Time
	if raw := r.URL.Query().Get("arrival"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httputil.BadRequest(w, "arrival must be YYYY-MM-DD")
			return
		}
		arrival = &t
	}

	summary, err := h.svc.Summary(r.Context(), group, phone, arrival)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, summary)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDatasetNotFound):
		httputil.NotFound(w, "dataset not found")
	case errors.Is(err, ErrUnknownKind):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
