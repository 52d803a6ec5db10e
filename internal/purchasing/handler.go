package purchasing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/procura-hq/procura/internal/platform/httpx"
	"github.com/procura-hq/procura/internal/rbac"
	"github.com/procura-hq/procura/internal/shared"
)

// Handler manages the draft composer and purchase order endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers purchasing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermPurchasingView))
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermPurchasingEdit))
		r.Post("/drafts", h.startDraft)
		r.Get("/drafts/{draftID}", h.getDraft)
		r.Get("/drafts/{draftID}/vendors", h.eligibleVendors)
		r.Get("/drafts/{draftID}/suggestions", h.suggestions)
		r.Get("/drafts/{draftID}/payment-types", h.paymentTypes)
		r.Post("/drafts/{draftID}/order-type", h.setOrderType)
		r.Post("/drafts/{draftID}/vendor", h.selectVendor)
		r.Post("/drafts/{draftID}/payment-type", h.setPaymentType)
		r.Post("/drafts/{draftID}/remarks", h.setRemarks)
		r.Post("/drafts/{draftID}/lines/{lineID}/toggle", h.toggleLine)
		r.Post("/drafts/{draftID}/lines/{lineID}/increase", h.increaseQuantity)
		r.Post("/drafts/{draftID}/lines/{lineID}/decrease", h.decreaseQuantity)
		r.Post("/drafts/{draftID}/submit", h.submit)
		r.Post("/orders/{id}/cancel", h.cancelOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermPurchasingApprove))
		r.Post("/orders/{id}/approve", h.approveOrder)
		r.Post("/orders/{id}/close", h.closeOrder)
	})
}

type startDraftRequest struct {
	OrderType     string `json:"order_type" validate:"required,oneof=Items Services"`
	RequisitionID int64  `json:"requisition_id" validate:"required,gt=0"`
}

func (h *Handler) startDraft(w http.ResponseWriter, r *http.Request) {
	var req startDraftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	draft, err := h.service.StartDraft(r.Context(), OrderType(req.OrderType), req.RequisitionID)
	if err != nil {
		h.respondError(w, "start draft", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.draftView(draft))
}

func (h *Handler) getDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.service.GetDraft(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		h.respondError(w, "get draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.draftView(draft))
}

func (h *Handler) eligibleVendors(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.EligibleVendors(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		h.respondError(w, "list eligible vendors", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": list})
}

func (h *Handler) suggestions(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Suggest(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		h.respondError(w, "suggest vendors", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": list})
}

func (h *Handler) paymentTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.PaymentTypesFor(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		h.respondError(w, "list payment types", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": types})
}

type setOrderTypeRequest struct {
	OrderType string `json:"order_type" validate:"required,oneof=Items Services"`
}

func (h *Handler) setOrderType(w http.ResponseWriter, r *http.Request) {
	var req setOrderTypeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	draft, err := h.service.SetOrderType(r.Context(), chi.URLParam(r, "draftID"), OrderType(req.OrderType))
	if err != nil {
		h.respondError(w, "set order type", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.draftView(draft))
}

type selectVendorRequest struct {
	VendorID int64 `json:"vendor_id" validate:"required,gt=0"`
}

func (h *Handler) selectVendor(w http.ResponseWriter, r *http.Request) {
	var req selectVendorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	draft, err := h.service.SelectVendor(r.Context(), chi.URLParam(r, "draftID"), req.VendorID)
	if err != nil {
		h.respondError(w, "select vendor", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.draftView(draft))
}

type setPaymentTypeRequest struct {
	PaymentType string `json:"payment_type" validate:"required,oneof=CASH DISBURSEMENT STORE_CREDIT"`
}

func (h *Handler) setPaymentType(w http.ResponseWriter, r *http.Request) {
	var req setPaymentTypeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	draft, err := h.service.SetPaymentType(r.Context(), chi.URLParam(r, "draftID"), PaymentType(req.PaymentType))
	if err != nil {
		h.respondError(w, "set payment type", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.draftView(draft))
}

type setRemarksRequest struct {
	Remarks string `json:"remarks"`
}

func (h *Handler) setRemarks(w http.ResponseWriter, r *http.Request) {
	var req setRemarksRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "malformed JSON body")
		return
	}
	draft, err := h.service.SetRemarks(r.Context(), chi.URLParam(r, "draftID"), req.Remarks)
	if err != nil {
		h.respondError(w, "set remarks", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.draftView(draft))
}

func (h *Handler) toggleLine(w http.ResponseWriter, r *http.Request) {
	h.lineAction(w, r, "toggle line", h.service.ToggleLine)
}

func (h *Handler) increaseQuantity(w http.ResponseWriter, r *http.Request) {
	h.lineAction(w, r, "increase quantity", h.service.IncreaseQuantity)
}

func (h *Handler) decreaseQuantity(w http.ResponseWriter, r *http.Request) {
	h.lineAction(w, r, "decrease quantity", h.service.DecreaseQuantity)
}

func (h *Handler) lineAction(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, draftID string, refLineID int64) (Draft, error)) {
	lineID, err := strconv.ParseInt(chi.URLParam(r, "lineID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "line id must be numeric")
		return
	}
	draft, err := fn(r.Context(), chi.URLParam(r, "draftID"), lineID)
	if err != nil {
		h.respondError(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.draftView(draft))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	po, err := h.service.Submit(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		h.respondError(w, "submit draft", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	vendorID, _ := strconv.ParseInt(r.URL.Query().Get("vendor_id"), 10, 64)
	requisitionID, _ := strconv.ParseInt(r.URL.Query().Get("requisition_id"), 10, 64)
	filters := ListFilters{
		Status:        r.URL.Query().Get("status"),
		VendorID:      vendorID,
		RequisitionID: requisitionID,
		Search:        r.URL.Query().Get("search"),
	}
	list, total, err := h.service.ListPOs(r.Context(), limit, offset, filters)
	if err != nil {
		h.logger.Error("list purchase orders", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": list, "total": total, "limit": limit, "offset": offset})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	po, itemLines, serviceLines, err := h.service.GetPO(r.Context(), id)
	if err != nil {
		h.respondError(w, "get purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"order":         po,
		"item_lines":    itemLines,
		"service_lines": serviceLines,
	})
}

func (h *Handler) approveOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.ApprovePO(r.Context(), id, shared.ActorID(r.Context())); err != nil {
		h.respondError(w, "approve purchase order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.CancelPO(r.Context(), id); err != nil {
		h.respondError(w, "cancel purchase order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) closeOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.ClosePO(r.Context(), id); err != nil {
		h.respondError(w, "close purchase order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be numeric")
		return 0, false
	}
	return id, true
}

// draftView decorates the stored draft with its derived totals so clients
// do not reimplement the line math.
func (h *Handler) draftView(draft Draft) map[string]any {
	return map[string]any{
		"draft": draft,
		"total": draft.Total(),
	}
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "record not found")
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrMissingRequisition),
		errors.Is(err, ErrMissingVendor),
		errors.Is(err, ErrMissingPaymentType),
		errors.Is(err, ErrNoLinesSelected),
		errors.Is(err, ErrUnknownLine):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrIncompatiblePaymentType):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Incompatible Payment Type", err.Error())
	case errors.Is(err, ErrQuantityBelowFloor):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Quantity Below Floor", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Already Submitted", "this draft was already submitted")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
