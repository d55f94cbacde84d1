package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soakstead/soakstead-backend/pkg/db/models"
	"github.com/soakstead/soakstead-backend/pkg/enums"
	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
	"github.com/soakstead/soakstead-backend/pkg/pagination"
)

// EventPage is one page of the fulfilment event feed, newest first.
type EventPage struct {
	Events     []models.FulfilmentEvent `json:"events"`
	NextCursor *string                  `json:"next_cursor,omitempty"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a fulfillment repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
			WithDetails(map[string]any{"order_id": orderID})
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderFlags applies the target state's flag pair conditionally on the
// current pair. Zero rows means a concurrent transition won.
func (r *repository) UpdateOrderFlags(ctx context.Context, orderID uuid.UUID, from, to enums.FulfillmentState) (int64, error) {
	fromFulfilled, fromReturned := from.Flags()
	toFulfilled, toReturned := to.Flags()
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND fulfilled = ? AND returned = ?", orderID, fromFulfilled, fromReturned).
		Updates(map[string]any{
			"fulfilled": toFulfilled,
			"returned":  toReturned,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) AppendEvent(ctx context.Context, event *models.FulfilmentEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListPaidOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("paid = ?", true).
		Order("created_at ASC, id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// LatestStatusPerOrder reconstructs each order's most recent status from the
// event log, keyed off created_at rather than insertion order.
func (r *repository) LatestStatusPerOrder(ctx context.Context) (map[uuid.UUID]enums.FulfillmentState, error) {
	var events []models.FulfilmentEvent
	err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	latest := make(map[uuid.UUID]enums.FulfillmentState, len(events))
	for _, event := range events {
		latest[event.OrderID] = event.ResultingStatus
	}
	return latest, nil
}

func (r *repository) RecentChanges(ctx context.Context, since time.Time, params pagination.Params) (*EventPage, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	q := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)
	if cursor != nil {
		q = q.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var events []models.FulfilmentEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}

	page := &EventPage{}
	if len(events) > limit {
		events = events[:limit]
		last := events[len(events)-1]
		next := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		page.NextCursor = &next
	}
	page.Events = events
	return page, nil
}
