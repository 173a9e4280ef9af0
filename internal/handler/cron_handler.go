package handler

import (
	"net/http"

	"kart-ledger/internal/service"

	"github.com/rs/zerolog"
)

// CronHandler serves the endpoints an external scheduler calls.
type CronHandler struct {
	points service.PointsService
	logger zerolog.Logger
}

// NewCronHandler creates a new cron handler.
func NewCronHandler(points service.PointsService, logger zerolog.Logger) *CronHandler {
	return &CronHandler{
		points: points,
		logger: logger.With().Str("handler", "cron").Logger(),
	}
}

// CreditPoints handles POST /api/cron/credit-points. Calling it more often
// than scheduled is harmless.
func (h *CronHandler) CreditPoints(w http.ResponseWriter, r *http.Request) {
	summary, err := h.points.CreditEligible(r.Context())
	if err != nil {
		writeServiceError(w, err, "failed to credit points", h.logger)
		return
	}

	h.logger.Info().
		Int("credited", summary.Credited).
		Int64("points", summary.Points).
		Int("skipped", summary.Skipped).
		Msg("scheduled points crediting done")

	writeJSON(w, http.StatusOK, summary)
}
