package journals

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/medichain-erp/medichain-erp/internal/platform/httpx"
)

// Handler manages the general ledger JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

type lineRequest struct {
	AccountID   int64   `json:"account_id" validate:"required"`
	Description string  `json:"description"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
}

type createEntryRequest struct {
	TenantID    int64         `json:"tenant_id" validate:"required"`
	BranchID    int64         `json:"branch_id" validate:"required"`
	Date        time.Time     `json:"date"`
	Description string        `json:"description"`
	SourceType  string        `json:"source_type"`
	SourceID    string        `json:"source_id"`
	CreatedBy   int64         `json:"created_by" validate:"required"`
	Lines       []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

type postEntryRequest struct {
	ApproverID int64 `json:"approver_id" validate:"required"`
}

type reverseEntryRequest struct {
	ActorID     int64  `json:"actor_id" validate:"required"`
	Description string `json:"description"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sourceID := uuid.Nil
	if req.SourceID != "" {
		parsed, err := uuid.Parse(req.SourceID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "source_id must be a uuid")
			return
		}
		sourceID = parsed
	}
	input := DraftInput{
		TenantID:    req.TenantID,
		BranchID:    req.BranchID,
		Date:        req.Date,
		Description: req.Description,
		SourceType:  req.SourceType,
		SourceID:    sourceID,
		CreatedBy:   req.CreatedBy,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput(line))
	}
	entry, err := h.service.CreateEntry(r.Context(), input)
	if err != nil {
		h.logger.Error("create journal entry", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	var req postEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.PostEntry(r.Context(), entryID, req.ApproverID)
	if err != nil {
		h.logger.Error("post journal entry", slog.Int64("entry_id", entryID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	var req reverseEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	reversal, err := h.service.ReverseEntry(r.Context(), ReverseInput{EntryID: entryID, ActorID: req.ActorID, Description: req.Description})
	if err != nil {
		h.logger.Error("reverse journal entry", slog.Int64("entry_id", entryID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reversal)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(r.URL.Query().Get("tenant_id"), 10, 64)
	if err != nil || tenantID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "tenant_id is required")
		return
	}
	entries, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("list journals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	entry, err := h.service.Get(r.Context(), entryID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}
