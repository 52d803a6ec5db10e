package requisitions

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

// Handler manages requisition endpoints.
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

// MountRoutes registers requisition routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermRequisitionsView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermRequisitionsEdit))
		r.Post("/", h.create)
		r.Post("/{id}/receive", h.markReceived)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermRequisitionsApprove))
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
	})
}

type createRequest struct {
	Number       string `json:"number"`
	Priority     string `json:"priority"`
	Notes        string `json:"notes"`
	ItemLines    []struct {
		ItemID   int64 `json:"item_id" validate:"required,gt=0"`
		Quantity int   `json:"quantity" validate:"required,gte=1"`
	} `json:"item_lines" validate:"dive"`
	ServiceLines []struct {
		ServiceID int64 `json:"service_id" validate:"required,gt=0"`
		ItemID    int64 `json:"item_id"`
	} `json:"service_lines" validate:"dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateInput{
		Number:      req.Number,
		Priority:    Priority(req.Priority),
		RequestorID: shared.ActorID(r.Context()),
		Notes:       req.Notes,
	}
	for _, line := range req.ItemLines {
		input.ItemLines = append(input.ItemLines, ItemLineInput{ItemID: line.ItemID, Quantity: line.Quantity})
	}
	for _, line := range req.ServiceLines {
		input.ServiceLines = append(input.ServiceLines, ServiceLineInput{ServiceID: line.ServiceID, ItemID: line.ItemID})
	}

	created, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, "create requisition", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	requestorID, _ := strconv.ParseInt(r.URL.Query().Get("requestor_id"), 10, 64)
	filters := ListFilters{
		Status:      r.URL.Query().Get("status"),
		Priority:    r.URL.Query().Get("priority"),
		RequestorID: requestorID,
		Search:      r.URL.Query().Get("search"),
	}
	list, total, err := h.service.List(r.Context(), limit, offset, filters)
	if err != nil {
		h.logger.Error("list requisitions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": list, "total": total, "limit": limit, "offset": offset})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	req, itemLines, serviceLines, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get requisition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"requisition":   req,
		"item_lines":    itemLines,
		"service_lines": serviceLines,
	})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Approve(r.Context(), id, shared.ActorID(r.Context())); err != nil {
		h.respondError(w, "approve requisition", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type rejectRequest struct {
	Remarks string `json:"remarks" validate:"required"`
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Reject(r.Context(), id, shared.ActorID(r.Context()), req.Remarks); err != nil {
		h.respondError(w, "reject requisition", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markReceived(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.MarkReceived(r.Context(), id); err != nil {
		h.respondError(w, "mark requisition received", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "requisition id must be numeric")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "requisition not found")
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
