package board

import (
	"sync"

	"github.com/google/uuid"

	"github.com/soakstead/soakstead-backend/pkg/db/models"
	"github.com/soakstead/soakstead-backend/pkg/enums"
	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
)

// Board is the operator-facing view of paid orders: an arena of order rows
// plus three ordered id lists, one per fulfillment column. The lists are
// allowed to run ahead of the backend's acknowledged state while a move's
// persistence call is in flight.
type Board struct {
	mu    sync.Mutex
	arena map[uuid.UUID]models.Order
	lists map[enums.FulfillmentState][]uuid.UUID
}

// NewBoard builds an empty board.
func NewBoard() *Board {
	return &Board{
		arena: make(map[uuid.UUID]models.Order),
		lists: map[enums.FulfillmentState][]uuid.UUID{
			enums.FulfillmentStateUpcoming:  {},
			enums.FulfillmentStateDelivered: {},
			enums.FulfillmentStateReturned:  {},
		},
	}
}

// Load replaces the board contents from grouped orders, preserving the
// given per-column ordering.
func (b *Board) Load(grouped map[enums.FulfillmentState][]models.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.arena = make(map[uuid.UUID]models.Order)
	b.lists = map[enums.FulfillmentState][]uuid.UUID{
		enums.FulfillmentStateUpcoming:  {},
		enums.FulfillmentStateDelivered: {},
		enums.FulfillmentStateReturned:  {},
	}
	for state, orders := range grouped {
		ids := make([]uuid.UUID, 0, len(orders))
		for _, order := range orders {
			b.arena[order.ID] = order
			ids = append(ids, order.ID)
		}
		b.lists[state] = ids
	}
}

// Order returns the arena row for an id.
func (b *Board) Order(orderID uuid.UUID) (models.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.arena[orderID]
	return order, ok
}

// Column returns a copy of the ordered ids in the given column.
func (b *Board) Column(state enums.FulfillmentState) []uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uuid.UUID(nil), b.lists[state]...)
}

// Locate finds the column and index currently holding the order.
func (b *Board) Locate(orderID uuid.UUID) (enums.FulfillmentState, int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locate(orderID)
}

func (b *Board) locate(orderID uuid.UUID) (enums.FulfillmentState, int, bool) {
	for state, ids := range b.lists {
		for i, id := range ids {
			if id == orderID {
				return state, i, true
			}
		}
	}
	return "", 0, false
}

// move relocates an order between (or within) columns, clamping the target
// index to the destination list bounds. Returns the index the order was
// removed from.
func (b *Board) move(orderID uuid.UUID, from, to enums.FulfillmentState, toIndex int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, fromIndex, ok := b.locate(orderID)
	if !ok || state != from {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "order not present in source column").
			WithDetails(map[string]any{"order_id": orderID, "column": string(from)})
	}
	b.lists[from] = removeAt(b.lists[from], fromIndex)
	b.lists[to] = insertAt(b.lists[to], orderID, toIndex)
	return fromIndex, nil
}

// removeAt returns a new list without the element at index i.
func removeAt(list []uuid.UUID, i int) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}

// insertAt returns a new list with id inserted at index i, clamped to the
// list bounds.
func insertAt(list []uuid.UUID, id uuid.UUID, i int) []uuid.UUID {
	if i < 0 {
		i = 0
	}
	if i > len(list) {
		i = len(list)
	}
	out := make([]uuid.UUID, 0, len(list)+1)
	out = append(out, list[:i]...)
	out = append(out, id)
	return append(out, list[i:]...)
}
