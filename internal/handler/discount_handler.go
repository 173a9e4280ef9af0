package handler

import (
	"context"
	"net/http"

	"kart-ledger/internal/coupon"
	"kart-ledger/internal/model"

	"github.com/rs/zerolog"
)

// DiscountImporter stores discount codes from batch files.
type DiscountImporter interface {
	Import(ctx context.Context, paths []string) (coupon.ImportSummary, error)
}

// ImportRequest lists the batch files to import, as local paths or keys
// under the configured bucket prefix.
type ImportRequest struct {
	Files []string `json:"files"`
}

// DiscountHandler handles discount code administration.
type DiscountHandler struct {
	importer DiscountImporter
	logger   zerolog.Logger
}

// NewDiscountHandler creates a new discount handler.
func NewDiscountHandler(importer DiscountImporter, logger zerolog.Logger) *DiscountHandler {
	return &DiscountHandler{
		importer: importer,
		logger:   logger.With().Str("handler", "discount").Logger(),
	}
}

// Import handles POST /api/admin/discounts/import requests.
func (h *DiscountHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "files is required", h.logger)
		return
	}

	summary, err := h.importer.Import(r.Context(), req.Files)
	if err != nil {
		writeServiceError(w, err, "failed to import discount codes", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
