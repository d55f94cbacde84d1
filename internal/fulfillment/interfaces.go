package fulfillment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soakstead/soakstead-backend/pkg/db/models"
	"github.com/soakstead/soakstead-backend/pkg/enums"
	"github.com/soakstead/soakstead-backend/pkg/pagination"
)

// Repository defines persistence operations for order lifecycle flags and
// the fulfilment event log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateOrderFlags(ctx context.Context, orderID uuid.UUID, from, to enums.FulfillmentState) (int64, error)
	AppendEvent(ctx context.Context, event *models.FulfilmentEvent) error
	ListPaidOrders(ctx context.Context) ([]models.Order, error)
	LatestStatusPerOrder(ctx context.Context) (map[uuid.UUID]enums.FulfillmentState, error)
	RecentChanges(ctx context.Context, since time.Time, params pagination.Params) (*EventPage, error)
}

// Service is the fulfillment state machine.
type Service interface {
	Transition(ctx context.Context, orderID uuid.UUID, target enums.FulfillmentState, actorID uuid.UUID) (*TransitionResult, error)
	TransitionFlags(ctx context.Context, orderID uuid.UUID, fulfilled, returned bool, actorID uuid.UUID) (*TransitionResult, error)
	BoardOrders(ctx context.Context) (map[enums.FulfillmentState][]models.Order, error)
	RecentChanges(ctx context.Context, days int, params pagination.Params) (*EventPage, error)
}
