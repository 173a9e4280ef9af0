package handler

import (
	"net/http"

	"kart-ledger/internal/middleware"
	"kart-ledger/internal/model"
	"kart-ledger/internal/service"

	"github.com/rs/zerolog"
)

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger.With().Str("handler", "order").Logger(),
	}
}

// Create handles POST /api/orders requests. Anonymous callers check out as
// guests.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.OrderRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	order, err := h.service.CreateOrder(r.Context(), middleware.IdentityFrom(r.Context()), &req)
	if err != nil {
		writeServiceError(w, err, "failed to create order", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// GetByID handles GET /api/orders/{id} requests.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	order, err := h.service.GetByID(r.Context(), middleware.IdentityFrom(r.Context()), orderID)
	if err != nil {
		writeServiceError(w, err, "failed to retrieve order", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// CheckDiscount handles POST /api/discounts/check requests.
func (h *OrderHandler) CheckDiscount(w http.ResponseWriter, r *http.Request) {
	var req model.DiscountCheckRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	result, err := h.service.CheckDiscount(r.Context(), middleware.IdentityFrom(r.Context()), &req)
	if err != nil {
		writeServiceError(w, err, "failed to check discount code", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// UpdateStatus handles PATCH /api/admin/orders/{id}/status requests.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req model.StatusUpdateRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), orderID, req.Status)
	if err != nil {
		writeServiceError(w, err, "failed to update order status", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// AddTracking handles POST /api/admin/orders/{id}/tracking requests.
func (h *OrderHandler) AddTracking(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req model.TrackingRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	order, err := h.service.AddTracking(r.Context(), orderID, &req)
	if err != nil {
		writeServiceError(w, err, "failed to add tracking", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Anonymize handles POST /api/admin/orders/{id}/anonymize requests.
func (h *OrderHandler) Anonymize(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	order, err := h.service.AnonymizeGuest(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, err, "failed to anonymise order", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// LinkGuestOrders handles POST /api/me/orders/link requests.
func (h *OrderHandler) LinkGuestOrders(w http.ResponseWriter, r *http.Request) {
	linked, err := h.service.LinkGuestOrders(r.Context(), middleware.IdentityFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err, "failed to link guest orders", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"linked": linked})
}
