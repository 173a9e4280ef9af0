package handler

import (
	"net/http"

	"kart-ledger/internal/middleware"
	"kart-ledger/internal/model"
	"kart-ledger/internal/service"

	"github.com/rs/zerolog"
)

// PointsHandler exposes the loyalty ledger.
type PointsHandler struct {
	service service.PointsService
	logger  zerolog.Logger
}

// NewPointsHandler creates a new points handler.
func NewPointsHandler(service service.PointsService, logger zerolog.Logger) *PointsHandler {
	return &PointsHandler{
		service: service,
		logger:  logger.With().Str("handler", "points").Logger(),
	}
}

// Me handles GET /api/me/points requests.
func (h *PointsHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller := middleware.IdentityFrom(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, model.ErrCodeUnauthorised, "login required", h.logger)
		return
	}

	overview, err := h.service.Overview(r.Context(), caller.UserID)
	if err != nil {
		writeServiceError(w, err, "failed to load points", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, overview)
}

// GrantAdmin handles POST /api/admin/points/grants requests.
func (h *PointsHandler) GrantAdmin(w http.ResponseWriter, r *http.Request) {
	var req model.AdminGrantRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if err := service.ValidateRequest(&req); err != nil {
		writeServiceError(w, err, "invalid grant request", h.logger)
		return
	}

	grant, err := h.service.GrantForAdmin(r.Context(), req.UserID, req.Points, req.Reason)
	if err != nil {
		writeServiceError(w, err, "failed to grant points", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, grant)
}

// GrantReview handles POST /api/admin/points/reviews requests, sent when a
// review is approved.
func (h *PointsHandler) GrantReview(w http.ResponseWriter, r *http.Request) {
	var req model.ReviewGrantRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if err := service.ValidateRequest(&req); err != nil {
		writeServiceError(w, err, "invalid review grant request", h.logger)
		return
	}

	grant, err := h.service.GrantForReview(r.Context(), req.UserID, req.ReviewID)
	if err != nil {
		writeServiceError(w, err, "failed to grant review points", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, grant)
}

// Cancel handles DELETE /api/admin/points/grants/{id} requests.
func (h *PointsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	grantID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	if err := h.service.CancelGrant(r.Context(), grantID); err != nil {
		writeServiceError(w, err, "failed to cancel grant", h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Extend handles POST /api/admin/points/grants/{id}/extend requests.
func (h *PointsHandler) Extend(w http.ResponseWriter, r *http.Request) {
	grantID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req model.ExtendGrantRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if err := service.ValidateRequest(&req); err != nil {
		writeServiceError(w, err, "invalid extend request", h.logger)
		return
	}

	grant, err := h.service.ExtendGrant(r.Context(), grantID, req.Days)
	if err != nil {
		writeServiceError(w, err, "failed to extend grant", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, grant)
}
