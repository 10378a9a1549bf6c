package handlers

import (
	"net/http"

	"github.com/harvestlink/harvestlink/internal/api"
	"github.com/harvestlink/harvestlink/internal/database"
	"github.com/harvestlink/harvestlink/internal/lock"
	"github.com/harvestlink/harvestlink/internal/middleware"
	"github.com/harvestlink/harvestlink/internal/services"
)

// orderErrors maps service errors to HTTP responses for the order endpoints
var orderErrors = []api.ErrorMapping{
	{Err: services.ErrOrderNotFound, Status: http.StatusNotFound, Code: "order_not_found"},
	{Err: services.ErrInvalidOrder, Status: http.StatusBadRequest, Code: "invalid_order"},
	{Err: services.ErrInvalidTransition, Status: http.StatusConflict, Code: "invalid_transition"},
	{Err: services.ErrInvalidMergeInput, Status: http.StatusBadRequest, Code: "invalid_merge_input"},
	{Err: services.ErrNotMergeable, Status: http.StatusConflict, Code: "not_mergeable"},
	{Err: lock.ErrLockTimeout, Status: http.StatusServiceUnavailable, Code: "busy"},
}

// OrderHandler exposes order intake, review and merge endpoints
type OrderHandler struct {
	orders *services.OrderService
	merges *services.MergeService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders *services.OrderService, merges *services.MergeService) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		merges: merges,
	}
}

// SetupRoutes configures order routes
func (h *OrderHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.handleCreateOrder)
	mux.HandleFunc("GET /api/orders/suspicious", h.handleListSuspicious)
	mux.HandleFunc("POST /api/orders/merge", h.handleMergeOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.handleGetOrder)
	mux.HandleFunc("PUT /api/orders/{id}/status", h.handleUpdateStatus)
}

// handleCreateOrder handles POST /api/orders
func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req api.CreateOrderRequest
	if !api.Bind(w, r, &req) {
		return
	}

	result, err := h.orders.CreateOrder(r.Context(), api.CreateOrderRequestToModel(req))
	if err != nil {
		api.RespondMappedError(w, err, orderErrors...)
		return
	}

	resp := api.CreateOrderResponse{
		Order:          api.OrderToResponse(*result.Order),
		MarkedOrderIDs: result.MarkedOrderIDs,
	}
	if result.Verdict != nil {
		resp.Suspicious = true
		resp.Reason = result.Verdict.Reason
		resp.RelatedOrders = result.Verdict.RelatedOrderIDs
	}
	api.RespondJSON(w, http.StatusCreated, resp)
}

// handleGetOrder handles GET /api/orders/{id}
func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "id")
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		api.RespondMappedError(w, err, orderErrors...)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.OrderToResponse(*order))
}

// handleListSuspicious handles GET /api/orders/suspicious
func (h *OrderHandler) handleListSuspicious(w http.ResponseWriter, r *http.Request) {
	p, err := api.ParsePagination(r)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders, total, err := h.orders.ListSuspicious(r.Context(), p.Offset(), p.PerPage)
	if err != nil {
		api.RespondMappedError(w, err, orderErrors...)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.NewPaginatedResponse(api.OrdersToResponses(orders), p, total))
}

// handleUpdateStatus handles PUT /api/orders/{id}/status
func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "id")
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req api.UpdateStatusRequest
	if !api.Bind(w, r, &req) {
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, database.OrderStatus(req.Status), req.Note)
	if err != nil {
		api.RespondMappedError(w, err, orderErrors...)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.OrderToResponse(*order))
}

// handleMergeOrders handles POST /api/orders/merge
func (h *OrderHandler) handleMergeOrders(w http.ResponseWriter, r *http.Request) {
	var req api.MergeOrdersRequest
	if !api.Bind(w, r, &req) {
		return
	}

	survivor, err := h.merges.Merge(r.Context(), req.OrderIDs, adminFrom(r))
	if err != nil {
		api.RespondMappedError(w, err, orderErrors...)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.OrderToResponse(*survivor))
}

// adminFrom returns the authenticated admin, or "admin" when auth is disabled
func adminFrom(r *http.Request) string {
	if user := middleware.GetUserFromContext(r.Context()); user != "" {
		return user
	}
	return "admin"
}
