package reports

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-carbon/internal/auth"
	"github.com/odyssey-erp/odyssey-carbon/internal/platform/httpx"
)

// IdempotencyHeader carries the client's generate request key.
const IdempotencyHeader = "Idempotency-Key"

// Handler serves the /reports endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the report routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/generate", h.generate)
		r.Get("/types", h.types)
		r.Get("/{id}", h.get)
		r.Get("/{id}/download", h.download)
		r.Post("/{id}/share", h.share)
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
	filter := ListFilter{Page: page, Limit: limit}
	if raw := strings.TrimSpace(q.Get("reportType")); raw != "" {
		t := Type(raw)
		if !t.Valid() {
			httpx.RespondError(w, httpx.Invalid("reportType", "is not a known report type"))
			return
		}
		filter.ReportType = &t
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status := Status(raw)
		if !status.Valid() {
			httpx.RespondError(w, httpx.Invalid("status", "must be one of: generating completed failed scheduled"))
			return
		}
		filter.Status = &status
	}
	reps, pagination, err := h.service.List(r.Context(), p, filter)
	if err != nil {
		h.fail(w, "list reports", err)
		return
	}
	httpx.List(w, reps, len(reps), pagination)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	var req GenerateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rep, err := h.service.Generate(r.Context(), p, req, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.fail(w, "generate report", err)
		return
	}
	message := "Report generation started"
	if rep.Status == StatusScheduled {
		message = "Report scheduled successfully"
	}
	httpx.OK(w, http.StatusAccepted, message, rep)
}

func (h *Handler) types(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.FromRequest(w, r); !ok {
		return
	}
	httpx.OK(w, http.StatusOK, "", Catalog())
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	rep, err := h.service.Get(r.Context(), p, id)
	if err != nil {
		h.fail(w, "get report", err)
		return
	}
	httpx.OK(w, http.StatusOK, "", rep)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	dl, err := h.service.Download(r.Context(), p, id)
	if err != nil {
		h.fail(w, "download report", err)
		return
	}
	httpx.OK(w, http.StatusOK, "Report ready for download", dl)
}

func (h *Handler) share(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	var req ShareRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rep, err := h.service.Share(r.Context(), p, id, req)
	if err != nil {
		h.fail(w, "share report", err)
		return
	}
	httpx.OK(w, http.StatusOK, "Report sharing updated", rep.Sharing)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil && !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func reportID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, ErrReportNotFound)
		return uuid.Nil, false
	}
	return id, true
}
