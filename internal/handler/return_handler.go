package handler

import (
	"net/http"

	"kart-ledger/internal/middleware"
	"kart-ledger/internal/model"
	"kart-ledger/internal/service"

	"github.com/rs/zerolog"
)

// ReturnHandler handles return requests and their administration.
type ReturnHandler struct {
	service service.ReturnService
	logger  zerolog.Logger
}

// NewReturnHandler creates a new return handler.
func NewReturnHandler(service service.ReturnService, logger zerolog.Logger) *ReturnHandler {
	return &ReturnHandler{
		service: service,
		logger:  logger.With().Str("handler", "return").Logger(),
	}
}

// Request handles POST /api/orders/{id}/returns requests.
func (h *ReturnHandler) Request(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req model.ReturnRequestInput
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	ret, err := h.service.RequestReturn(r.Context(), middleware.IdentityFrom(r.Context()), orderID, &req)
	if err != nil {
		writeServiceError(w, err, "failed to request return", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, ret)
}

// List handles GET /api/orders/{id}/returns requests.
func (h *ReturnHandler) List(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	returns, err := h.service.ListReturns(r.Context(), middleware.IdentityFrom(r.Context()), orderID)
	if err != nil {
		writeServiceError(w, err, "failed to list returns", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, returns)
}

// SetStatus handles PATCH /api/admin/returns/{id}/status requests.
func (h *ReturnHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	returnID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req model.ReturnStatusRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	ret, err := h.service.SetReturnStatus(r.Context(), returnID, req.Status)
	if err != nil {
		writeServiceError(w, err, "failed to update return", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, ret)
}

// Complete handles POST /api/admin/returns/{id}/complete requests and
// responds with the credit note.
func (h *ReturnHandler) Complete(w http.ResponseWriter, r *http.Request) {
	returnID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req model.CompleteReturnRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	note, err := h.service.CompleteReturn(r.Context(), returnID, req.AcceptedItems)
	if err != nil {
		writeServiceError(w, err, "failed to complete return", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, note)
}
