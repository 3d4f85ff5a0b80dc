package emissions

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-carbon/internal/auth"
	"github.com/odyssey-erp/odyssey-carbon/internal/platform/httpx"
)

// Handler serves the /emissions endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	auth    auth.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, authMW auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, auth: authMW}
}

// MountRoutes registers the emission routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/emissions", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/summary/stats", h.summary)
		r.With(h.auth.RequireRole(auth.RoleAdmin, auth.RoleManager)).Post("/bulk", h.bulk)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	filter, err := h.parseListFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	recs, page, err := h.service.List(r.Context(), p, filter)
	if err != nil {
		h.fail(w, "list emissions", err)
		return
	}
	httpx.List(w, recs, len(recs), page)
}

func (h *Handler) parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	page, limit, err := httpx.PageParams(q)
	if err != nil {
		return ListFilter{}, err
	}
	filter := ListFilter{Page: page, Limit: limit}
	if raw := strings.TrimSpace(q.Get("scope")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || !Scope(v).Valid() {
			return ListFilter{}, httpx.Invalid("scope", "must be one of: 1 2 3")
		}
		scope := Scope(v)
		filter.Scope = &scope
	}
	if raw := strings.TrimSpace(q.Get("year")); raw != "" {
		year, err := h.parseYear(raw)
		if err != nil {
			return ListFilter{}, err
		}
		filter.Year = &year
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status := Status(raw)
		if !status.Valid() {
			return ListFilter{}, httpx.Invalid("status", "must be one of: draft submitted verified published")
		}
		filter.Status = &status
	}
	return filter, nil
}

func (h *Handler) parseYear(raw string) (int, error) {
	year, err := strconv.Atoi(raw)
	if err != nil || !h.service.ValidYear(year) {
		return 0, httpx.Invalid("year", "must be between 2020 and next year")
	}
	return year, nil
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Get(r.Context(), p, id)
	if err != nil {
		h.fail(w, "get emission", err)
		return
	}
	httpx.OK(w, http.StatusOK, "", rec)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.Create(r.Context(), p, req)
	if err != nil {
		h.fail(w, "create emission", err)
		return
	}
	httpx.OK(w, http.StatusCreated, "Emission created successfully", rec)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.Update(r.Context(), p, id, req)
	if err != nil {
		h.fail(w, "update emission", err)
		return
	}
	httpx.OK(w, http.StatusOK, "Emission updated successfully", rec)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), p, id); err != nil {
		h.fail(w, "delete emission", err)
		return
	}
	httpx.OK(w, http.StatusOK, "Emission deleted successfully", nil)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	year := h.service.CurrentYear()
	if raw := strings.TrimSpace(r.URL.Query().Get("year")); raw != "" {
		parsed, err := h.parseYear(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		year = parsed
	}
	summary, err := h.service.Summary(r.Context(), p, year)
	if err != nil {
		h.fail(w, "emission summary", err)
		return
	}
	httpx.OK(w, http.StatusOK, "", summary)
}

func (h *Handler) bulk(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	var req BulkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	recs, err := h.service.BulkCreate(r.Context(), p, req)
	if err != nil {
		h.fail(w, "bulk import emissions", err)
		return
	}
	httpx.OK(w, http.StatusCreated, strconv.Itoa(len(recs))+" emissions created successfully", recs)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil && !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func recordID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		// Malformed ids cannot belong to the caller.
		httpx.RespondError(w, ErrRecordNotFound)
		return uuid.Nil, false
	}
	return id, true
}
