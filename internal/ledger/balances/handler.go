package balances

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/medichain-erp/medichain-erp/internal/platform/httpx"
)

// Handler serves the balance report endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	tenantID, err := strconv.ParseInt(query.Get("tenant_id"), 10, 64)
	if err != nil || tenantID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "tenant_id is required")
		return
	}
	branchID, err := strconv.ParseInt(query.Get("branch_id"), 10, 64)
	if err != nil || branchID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "branch_id is required")
		return
	}
	var filters ListFilters
	if raw := query.Get("account_id"); raw != "" {
		filters.AccountID, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw := query.Get("fiscal_year"); raw != "" {
		filters.FiscalYear, _ = strconv.Atoi(raw)
	}
	if raw := query.Get("fiscal_month"); raw != "" {
		filters.FiscalMonth, _ = strconv.Atoi(raw)
	}
	rows, err := h.service.List(r.Context(), tenantID, branchID, filters)
	if err != nil {
		h.logger.Error("list balances", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

// MountRoutes attaches the balance endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
}
