package purchasing

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medichain-erp/medichain-erp/internal/platform/httpx"
)

// Handler manages the purchase order JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

type itemRequest struct {
	Description string  `json:"description" validate:"required"`
	Qty         float64 `json:"qty" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

type createPORequest struct {
	TenantID    int64         `json:"tenant_id" validate:"required"`
	BranchID    int64         `json:"branch_id" validate:"required"`
	RequesterID int64         `json:"requester_id" validate:"required"`
	Vendor      string        `json:"vendor" validate:"required"`
	Total       float64       `json:"total" validate:"gte=0"`
	Items       []itemRequest `json:"items" validate:"dive"`
}

type decisionRequest struct {
	ApproverID int64  `json:"approver_id" validate:"required"`
	Comments   string `json:"comments"`
}

type receiptRequest struct {
	ConfirmerID int64  `json:"confirmer_id" validate:"required"`
	Side        string `json:"side" validate:"required,oneof=ACCOUNTANT UNIT"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPORequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreatePOInput{
		TenantID:    req.TenantID,
		BranchID:    req.BranchID,
		RequesterID: req.RequesterID,
		Vendor:      req.Vendor,
		Total:       req.Total,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, ItemInput(item))
	}
	po, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create purchase order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	poID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase order id")
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	decision, err := h.service.Approve(r.Context(), poID, req.ApproverID, req.Comments)
	if err != nil {
		h.logger.Error("approve purchase order", slog.Int64("po_id", poID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, decision)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	poID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase order id")
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Reject(r.Context(), poID, req.ApproverID, req.Comments); err != nil {
		h.logger.Error("reject purchase order", slog.Int64("po_id", poID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(POStatusRejected)})
}

func (h *Handler) handleConfirmReceipt(w http.ResponseWriter, r *http.Request) {
	poID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase order id")
		return
	}
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.ConfirmReceived(r.Context(), poID, req.ConfirmerID, ReceiptSide(req.Side)); err != nil {
		h.logger.Error("confirm receipt", slog.Int64("po_id", poID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	po, _, err := h.service.Get(r.Context(), poID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	poID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase order id")
		return
	}
	po, items, err := h.service.Get(r.Context(), poID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase_order": po, "items": items})
}

func (h *Handler) handleApprovals(w http.ResponseWriter, r *http.Request) {
	poID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase order id")
		return
	}
	records, err := h.service.Approvals(r.Context(), poID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}
