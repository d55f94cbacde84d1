package board

import (
	"context"

	"github.com/google/uuid"

	"github.com/soakstead/soakstead-backend/internal/fulfillment"
	"github.com/soakstead/soakstead-backend/pkg/enums"
	pkgerrors "github.com/soakstead/soakstead-backend/pkg/errors"
	"github.com/soakstead/soakstead-backend/pkg/logger"
)

// transitioner is the slice of the fulfillment service the coordinator
// drives for cross-column moves.
type transitioner interface {
	Transition(ctx context.Context, orderID uuid.UUID, target enums.FulfillmentState, actorID uuid.UUID) (*fulfillment.TransitionResult, error)
}

// MoveRecord captures everything needed to reverse a single move exactly:
// where the order came from, where it landed, and the positions involved.
type MoveRecord struct {
	OrderID    uuid.UUID              `json:"order_id"`
	From       enums.FulfillmentState `json:"from"`
	To         enums.FulfillmentState `json:"to"`
	FromIndex  int                    `json:"from_index"`
	ToIndex    int                    `json:"to_index"`
	SideEffect enums.SideEffect       `json:"side_effect"`
}

// Coordinator applies drag-and-drop moves to the board optimistically: the
// local lists are mutated first, then the fulfillment transition is pushed
// through the backend. When persistence fails the local state is left as
// moved and the caller decides whether to replay the returned MoveRecord
// through UndoMove.
type Coordinator struct {
	board   *Board
	machine transitioner
	logger  *logger.Logger
}

// CoordinatorParams carries the dependencies for NewCoordinator.
type CoordinatorParams struct {
	Board   *Board
	Machine transitioner
	Logger  *logger.Logger
}

// NewCoordinator validates dependencies and builds a Coordinator.
func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	if params.Board == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "board coordinator requires a board")
	}
	if params.Machine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "board coordinator requires a fulfillment service")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "board coordinator requires a logger")
	}
	return &Coordinator{
		board:   params.Board,
		machine: params.Machine,
		logger:  params.Logger,
	}, nil
}

// Board exposes the coordinator's board for read access.
func (c *Coordinator) Board() *Board {
	return c.board
}

// ApplyMove relocates an order from one column position to another. A move
// within a single column is a pure reorder and never touches the state
// machine. A cross-column move mutates the lists first and then drives the
// fulfillment transition; if the transition fails the lists stay moved and
// both the MoveRecord and the error are returned so the caller can undo.
func (c *Coordinator) ApplyMove(ctx context.Context, orderID uuid.UUID, from, to enums.FulfillmentState, toIndex int, actorID uuid.UUID) (*MoveRecord, error) {
	if !from.IsValid() || !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown board column").
			WithDetails(map[string]any{"from": string(from), "to": string(to)})
	}

	fromIndex, err := c.board.move(orderID, from, to, toIndex)
	if err != nil {
		return nil, err
	}
	record := &MoveRecord{
		OrderID:    orderID,
		From:       from,
		To:         to,
		FromIndex:  fromIndex,
		ToIndex:    toIndex,
		SideEffect: enums.SideEffectNone,
	}
	if from == to {
		return record, nil
	}

	result, err := c.machine.Transition(ctx, orderID, to, actorID)
	if err != nil {
		ctx = c.logger.WithFields(ctx, map[string]any{
			"order_id": orderID.String(),
			"from":     from.String(),
			"to":       to.String(),
			"error":    err.Error(),
		})
		c.logger.Warn(ctx, "board move applied locally but transition failed")
		return record, err
	}
	record.SideEffect = result.SideEffect
	return record, nil
}

// UndoMove reverses a prior move by replaying it backwards through ApplyMove,
// one adjacent column at a time, so every refund instruction the forward path
// produced gets its counterpart on the way back. Reversing Upcoming to
// Returned therefore replays Returned to Delivered and then Delivered to
// Upcoming. The records of the replayed steps are returned in order.
func (c *Coordinator) UndoMove(ctx context.Context, record MoveRecord, actorID uuid.UUID) ([]*MoveRecord, error) {
	if record.From == record.To {
		step, err := c.ApplyMove(ctx, record.OrderID, record.To, record.From, record.FromIndex, actorID)
		if err != nil {
			return nil, err
		}
		return []*MoveRecord{step}, nil
	}

	fromRank := record.From.Rank()
	toRank := record.To.Rank()
	if fromRank < 0 || toRank < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown board column").
			WithDetails(map[string]any{"from": string(record.From), "to": string(record.To)})
	}

	step := -1
	if toRank < fromRank {
		step = 1
	}

	steps := make([]*MoveRecord, 0, abs(toRank-fromRank))
	current := record.To
	for current != record.From {
		next := stateAtRank(current.Rank() + step)
		targetIndex := c.board.columnLen(next)
		if next == record.From {
			targetIndex = record.FromIndex
		}
		replayed, err := c.ApplyMove(ctx, record.OrderID, current, next, targetIndex, actorID)
		if err != nil {
			return steps, err
		}
		steps = append(steps, replayed)
		current = next
	}
	return steps, nil
}

// columnLen reports the current length of a column's id list.
func (b *Board) columnLen(state enums.FulfillmentState) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lists[state])
}

func stateAtRank(rank int) enums.FulfillmentState {
	switch rank {
	case 0:
		return enums.FulfillmentStateUpcoming
	case 1:
		return enums.FulfillmentStateDelivered
	case 2:
		return enums.FulfillmentStateReturned
	default:
		return ""
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
