package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soakstead/soakstead-backend/api/controllers"
	"github.com/soakstead/soakstead-backend/api/middleware"
	"github.com/soakstead/soakstead-backend/internal/availability"
	"github.com/soakstead/soakstead-backend/internal/board"
	"github.com/soakstead/soakstead-backend/internal/fulfillment"
	"github.com/soakstead/soakstead-backend/internal/reconcile"
	"github.com/soakstead/soakstead-backend/internal/reservations"
	"github.com/soakstead/soakstead-backend/pkg/config"
	"github.com/soakstead/soakstead-backend/pkg/db"
	"github.com/soakstead/soakstead-backend/pkg/logger"
	"github.com/soakstead/soakstead-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	availabilityService availability.Service,
	reservationsService reservations.Service,
	fulfillmentService fulfillment.Service,
	reconcileService reconcile.Service,
	boardCoordinator *board.Coordinator,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	// A typed nil would slip past the middleware's interface nil check.
	var idempotencyStore middleware.IdempotencyStore
	if redisClient != nil {
		idempotencyStore = redisClient
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Get("/availability", controllers.CheckAvailability(availabilityService, logg))
		r.Get("/locations/{locationId}/units", controllers.AvailableUnits(availabilityService, logg))

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/reserve", controllers.ReserveBooking(reservationsService, logg))
			r.Post("/{bookingId}/confirm", controllers.ConfirmBooking(reservationsService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/board", controllers.OrderBoard(fulfillmentService, logg))
			r.Get("/events", controllers.FulfilmentEvents(fulfillmentService, logg))
			r.Post("/{orderId}/mark-paid", controllers.MarkOrderPaid(reservationsService, logg))
			r.Post("/{orderId}/transition", controllers.TransitionOrder(fulfillmentService, logg))
			r.Put("/{orderId}/refund", controllers.UpsertRefund(reconcileService, logg))
			r.Delete("/{orderId}/refund", controllers.RemoveRefund(reconcileService, logg))
			r.Post("/{orderId}/refund/settle", controllers.SettleRefund(reconcileService, logg))
		})

		r.Route("/board", func(r chi.Router) {
			r.Get("/", controllers.BoardLists(boardCoordinator, fulfillmentService, logg))
			r.Post("/moves", controllers.ApplyBoardMove(boardCoordinator, fulfillmentService, logg))
			r.Post("/moves/undo", controllers.UndoBoardMove(boardCoordinator, logg))
			r.Post("/moves/retry", controllers.RetryBoardMove(reconcileService, logg))
		})
	})

	return r
}
