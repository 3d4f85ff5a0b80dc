package suppliers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-carbon/internal/auth"
	"github.com/odyssey-erp/odyssey-carbon/internal/platform/httpx"
)

// Handler serves the /suppliers endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers supplier routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/suppliers", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/network/visualization", h.network)
		r.Get("/analytics/performance", h.performance)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/invite", h.invite)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page, limit, err := httpx.PageParams(q)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListFilter{Page: page, Limit: limit, Type: strings.TrimSpace(q.Get("type"))}
	if raw := strings.TrimSpace(q.Get("connectionStatus")); raw != "" {
		status := ConnectionStatus(raw)
		if !status.Valid() {
			httpx.RespondError(w, httpx.Invalid("connectionStatus", "must be one of: not-connected invited connected disconnected"))
			return
		}
		filter.ConnectionStatus = &status
	}
	if raw := strings.TrimSpace(q.Get("tier")); raw != "" {
		tier, err := strconv.Atoi(raw)
		if err != nil || tier < 1 || tier > 3 {
			httpx.RespondError(w, httpx.Invalid("tier", "must be one of: 1 2 3"))
			return
		}
		filter.Tier = &tier
	}
	out, pagination, err := h.service.List(r.Context(), p, filter)
	if err != nil {
		h.fail(w, "list suppliers", err)
		return
	}
	httpx.List(w, out, len(out), pagination)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	id, ok := supplierID(w, r)
	if !ok {
		return
	}
	s, err := h.service.Get(r.Context(), p, id)
	if err != nil {
		h.fail(w, "get supplier", err)
		return
	}
	httpx.OK(w, http.StatusOK, "", s)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	var doc Document
	if err := httpx.DecodeJSON(r, &doc); err != nil {
		httpx.RespondError(w, err)
		return
	}
	s, err := h.service.Create(r.Context(), p, doc)
	if err != nil {
		h.fail(w, "create supplier", err)
		return
	}
	httpx.OK(w, http.StatusCreated, "Supplier created successfully", s)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	id, ok := supplierID(w, r)
	if !ok {
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(raw) {
		httpx.RespondError(w, httpx.NewError(httpx.ErrValidation, "Malformed JSON body"))
		return
	}
	s, err := h.service.Update(r.Context(), p, id, raw)
	if err != nil {
		h.fail(w, "update supplier", err)
		return
	}
	httpx.OK(w, http.StatusOK, "Supplier updated successfully", s)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	id, ok := supplierID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), p, id); err != nil {
		h.fail(w, "delete supplier", err)
		return
	}
	httpx.OK(w, http.StatusOK, "Supplier deleted successfully", nil)
}

func (h *Handler) invite(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	id, ok := supplierID(w, r)
	if !ok {
		return
	}
	var req InviteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Invite(r.Context(), p, id, req)
	if err != nil {
		h.fail(w, "invite supplier", err)
		return
	}
	httpx.OK(w, http.StatusOK, "Invitation sent successfully", inv)
}

func (h *Handler) network(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	tree, err := h.service.Network(r.Context(), p)
	if err != nil {
		h.fail(w, "supplier network", err)
		return
	}
	httpx.OK(w, http.StatusOK, "", tree)
}

func (h *Handler) performance(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	report, err := h.service.Performance(r.Context(), p)
	if err != nil {
		h.fail(w, "supplier performance", err)
		return
	}
	httpx.OK(w, http.StatusOK, "", report)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil && !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func supplierID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, ErrSupplierNotFound)
		return uuid.Nil, false
	}
	return id, true
}
