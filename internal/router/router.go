package router

import (
	"net/http"

	"kart-ledger/internal/handler"
	"kart-ledger/internal/middleware"

	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers the router dispatches to.
type Handlers struct {
	Product  *handler.ProductHandler
	Order    *handler.OrderHandler
	Return   *handler.ReturnHandler
	Points   *handler.PointsHandler
	Cron     *handler.CronHandler
	Discount *handler.DiscountHandler
}

// New creates a new HTTP router with all routes and middleware configured.
// identitySecret verifies caller tokens; cronSecret gates the scheduler
// endpoints.
func New(h Handlers, identitySecret []byte, cronSecret string, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint (no authentication required)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	admin := func(fn http.HandlerFunc) http.Handler {
		return middleware.RequireAdmin(fn)
	}
	authenticated := func(fn http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(fn)
	}
	cron := middleware.CronAuth(cronSecret, logger)

	// Catalogue
	mux.HandleFunc("GET /api/products", h.Product.GetAll)
	mux.HandleFunc("GET /api/products/{id}", h.Product.GetByID)
	mux.Handle("PUT /api/admin/products/{id}", admin(h.Product.Save))

	// Orders, open to guests
	mux.HandleFunc("POST /api/orders", h.Order.Create)
	mux.HandleFunc("GET /api/orders/{id}", h.Order.GetByID)
	mux.HandleFunc("POST /api/discounts/check", h.Order.CheckDiscount)

	// Returns
	mux.Handle("POST /api/orders/{id}/returns", authenticated(h.Return.Request))
	mux.Handle("GET /api/orders/{id}/returns", authenticated(h.Return.List))

	// Signed-in customer
	mux.Handle("POST /api/me/orders/link", authenticated(h.Order.LinkGuestOrders))
	mux.Handle("GET /api/me/points", authenticated(h.Points.Me))

	// Administration
	mux.Handle("PATCH /api/admin/orders/{id}/status", admin(h.Order.UpdateStatus))
	mux.Handle("POST /api/admin/orders/{id}/tracking", admin(h.Order.AddTracking))
	mux.Handle("POST /api/admin/orders/{id}/anonymize", admin(h.Order.Anonymize))
	mux.Handle("PATCH /api/admin/returns/{id}/status", admin(h.Return.SetStatus))
	mux.Handle("POST /api/admin/returns/{id}/complete", admin(h.Return.Complete))
	mux.Handle("POST /api/admin/points/grants", admin(h.Points.GrantAdmin))
	mux.Handle("POST /api/admin/points/reviews", admin(h.Points.GrantReview))
	mux.Handle("DELETE /api/admin/points/grants/{id}", admin(h.Points.Cancel))
	mux.Handle("POST /api/admin/points/grants/{id}/extend", admin(h.Points.Extend))
	mux.Handle("POST /api/admin/discounts/import", admin(h.Discount.Import))

	// Scheduler
	mux.Handle("POST /api/cron/credit-points", cron(http.HandlerFunc(h.Cron.CreditPoints)))

	// Apply middleware in order: Recovery -> Logging -> CORS -> Identity
	var handler http.Handler = mux
	handler = middleware.Identity(identitySecret, logger)(handler)
	handler = middleware.CORS(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)

	return handler
}
