package receiving

import (
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

// Handler manages delivery, return and rework endpoints.
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

// MountRoutes registers receiving routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermReceivingView))
		r.Get("/deliveries", h.listDeliveries)
		r.Get("/deliveries/{id}", h.getDelivery)
		r.Get("/returns/{id}", h.getReturn)
		r.Get("/reworks/{id}", h.getRework)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermReceivingEdit))
		r.Post("/deliveries", h.createDelivery)
		r.Post("/deliveries/{id}/post", h.postDelivery)
		r.Post("/returns", h.createReturn)
		r.Post("/reworks", h.createRework)
		r.Post("/reworks/{id}/complete", h.completeRework)
	})
}

type createDeliveryRequest struct {
	OrderID int64  `json:"order_id" validate:"required,gt=0"`
	Notes   string `json:"notes"`
	Lines   []struct {
		ItemID   int64 `json:"item_id" validate:"required,gt=0"`
		Quantity int   `json:"quantity" validate:"required,gte=1"`
	} `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) createDelivery(w http.ResponseWriter, r *http.Request) {
	var req createDeliveryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateDeliveryInput{OrderID: req.OrderID, Notes: req.Notes}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, DeliveryLineInput{ItemID: line.ItemID, Quantity: line.Quantity})
	}
	created, err := h.service.CreateDelivery(r.Context(), input)
	if err != nil {
		h.respondError(w, "create delivery", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) postDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.PostDelivery(r.Context(), id); err != nil {
		h.respondError(w, "post delivery", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	orderID, _ := strconv.ParseInt(r.URL.Query().Get("order_id"), 10, 64)
	filters := ListFilters{
		Status:  r.URL.Query().Get("status"),
		OrderID: orderID,
		Search:  r.URL.Query().Get("search"),
	}
	list, total, err := h.service.ListDeliveries(r.Context(), limit, offset, filters)
	if err != nil {
		h.logger.Error("list deliveries", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": list, "total": total, "limit": limit, "offset": offset})
}

func (h *Handler) getDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	delivery, lines, err := h.service.GetDelivery(r.Context(), id)
	if err != nil {
		h.respondError(w, "get delivery", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"delivery": delivery, "lines": lines})
}

type createReturnRequest struct {
	DeliveryID int64  `json:"delivery_id" validate:"required,gt=0"`
	Reason     string `json:"reason" validate:"required"`
	Lines      []struct {
		ItemID   int64 `json:"item_id" validate:"required,gt=0"`
		Quantity int   `json:"quantity" validate:"required,gte=1"`
	} `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) createReturn(w http.ResponseWriter, r *http.Request) {
	var req createReturnRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateReturnInput{DeliveryID: req.DeliveryID, Reason: req.Reason}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, ReturnLineInput{ItemID: line.ItemID, Quantity: line.Quantity})
	}
	created, err := h.service.CreateReturn(r.Context(), input)
	if err != nil {
		h.respondError(w, "create return", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	ret, lines, err := h.service.GetReturn(r.Context(), id)
	if err != nil {
		h.respondError(w, "get return", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"return": ret, "lines": lines})
}

type createReworkRequest struct {
	ReturnID int64  `json:"return_id" validate:"required,gt=0"`
	Notes    string `json:"notes"`
}

func (h *Handler) createRework(w http.ResponseWriter, r *http.Request) {
	var req createReworkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.CreateRework(r.Context(), req.ReturnID, req.Notes)
	if err != nil {
		h.respondError(w, "create rework", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) completeRework(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.CompleteRework(r.Context(), id); err != nil {
		h.respondError(w, "complete rework", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getRework(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	rw, err := h.service.GetRework(r.Context(), id)
	if err != nil {
		h.respondError(w, "get rework", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rw)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be numeric")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "record not found")
	case errors.Is(err, ErrValidation), errors.Is(err, ErrLineNotOnOrder):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrQuantityExceeded):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Quantity Exceeded", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Already Posted", "this delivery was already posted")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
