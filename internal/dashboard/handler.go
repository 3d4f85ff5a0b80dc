package dashboard

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-carbon/internal/auth"
	"github.com/odyssey-erp/odyssey-carbon/internal/platform/httpx"
)

// Handler serves the /dashboard endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the dashboard routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/overview", h.overview)
		r.Get("/emissions-chart", h.chart)
	})
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	out, err := h.service.Overview(r.Context(), p)
	if err != nil {
		h.fail(w, "dashboard overview", err)
		return
	}
	httpx.OK(w, http.StatusOK, "", out)
}

func (h *Handler) chart(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromRequest(w, r)
	if !ok {
		return
	}
	year := h.service.CurrentYear()
	if raw := strings.TrimSpace(r.URL.Query().Get("year")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || !h.service.ValidYear(parsed) {
			httpx.RespondError(w, httpx.Invalid("year", "must be between 2020 and next year"))
			return
		}
		year = parsed
	}
	out, err := h.service.EmissionsChart(r.Context(), p, year)
	if err != nil {
		h.fail(w, "dashboard chart", err)
		return
	}
	httpx.OK(w, http.StatusOK, "", out)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil && !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
