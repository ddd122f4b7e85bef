package pettycash

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medichain-erp/medichain-erp/internal/platform/httpx"
	"github.com/medichain-erp/medichain-erp/internal/shared"
)

// Handler manages the petty cash JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

type createFundRequest struct {
	TenantID    int64   `json:"tenant_id" validate:"required"`
	BranchID    int64   `json:"branch_id" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	FloatAmount float64 `json:"float_amount" validate:"gt=0"`
	ActorID     int64   `json:"actor_id" validate:"required"`
}

type createTransactionRequest struct {
	FundID      int64   `json:"fund_id" validate:"required"`
	RequesterID int64   `json:"requester_id" validate:"required"`
	Type        string  `json:"type" validate:"required,oneof=EXPENSE REPLENISHMENT"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	Purpose     string  `json:"purpose" validate:"required"`
	Category    string  `json:"category"`
	Payee       string  `json:"payee"`
	Method      string  `json:"method" validate:"omitempty,oneof=CASH CHEQUE BANK"`
}

type stepDecisionRequest struct {
	ApproverID int64  `json:"approver_id" validate:"required"`
	Comments   string `json:"comments"`
}

type disburseRequest struct {
	DisbursedBy int64 `json:"disbursed_by" validate:"required"`
}

type reconcileRequest struct {
	ActorID int64 `json:"actor_id" validate:"required"`
}

func (h *Handler) handleCreateFund(w http.ResponseWriter, r *http.Request) {
	var req createFundRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	fund, err := h.service.CreateFund(r.Context(), CreateFundInput{
		TenantID:    req.TenantID,
		BranchID:    req.BranchID,
		Name:        req.Name,
		FloatAmount: req.FloatAmount,
		ActorID:     req.ActorID,
	})
	if err != nil {
		h.logger.Error("create petty cash fund", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, fund)
}

func (h *Handler) handleGetFund(w http.ResponseWriter, r *http.Request) {
	fundID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid fund id")
		return
	}
	fund, err := h.service.GetFund(r.Context(), fundID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, fund)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	fundID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid fund id")
		return
	}
	var req reconcileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	report, err := h.service.Reconcile(r.Context(), fundID, req.ActorID)
	if err != nil {
		h.logger.Error("reconcile petty cash fund", slog.Int64("fund_id", fundID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	txn, err := h.service.CreateTransaction(r.Context(), CreateTransactionInput{
		FundID:      req.FundID,
		RequesterID: req.RequesterID,
		Type:        TxType(req.Type),
		Amount:      req.Amount,
		Purpose:     req.Purpose,
		Category:    req.Category,
		Payee:       req.Payee,
		Method:      PayMethod(req.Method),
	})
	if err != nil {
		h.logger.Error("create petty cash transaction", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

func (h *Handler) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	txID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return
	}
	txn, err := h.service.GetTransaction(r.Context(), txID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	steps, err := h.service.Steps(r.Context(), txID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payload := map[string]any{"transaction": txn, "steps": steps}
	voucher, err := h.service.GetVoucherByTransaction(r.Context(), txID)
	switch {
	case err == nil:
		payload["voucher"] = voucher
	case errors.Is(err, shared.ErrNotFound):
	default:
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payload)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	txID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return
	}
	var req stepDecisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	txn, err := h.service.Approve(r.Context(), txID, req.ApproverID, req.Comments)
	if err != nil {
		h.logger.Error("approve petty cash transaction", slog.Int64("transaction_id", txID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txn)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	txID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return
	}
	var req stepDecisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Reject(r.Context(), txID, req.ApproverID, req.Comments); err != nil {
		h.logger.Error("reject petty cash transaction", slog.Int64("transaction_id", txID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(TxStatusRejected)})
}

func (h *Handler) handleDisburse(w http.ResponseWriter, r *http.Request) {
	voucherID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid voucher id")
		return
	}
	var req disburseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	voucher, err := h.service.Disburse(r.Context(), voucherID, req.DisbursedBy)
	if err != nil {
		h.logger.Error("disburse petty cash voucher", slog.Int64("voucher_id", voucherID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, voucher)
}
