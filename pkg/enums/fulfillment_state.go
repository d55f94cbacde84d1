package enums

import "fmt"

// FulfillmentState is the three-state order lifecycle. Each state corresponds
// to exactly one legal (fulfilled, returned) flag pair; (false, true) has no
// state and is always rejected.
type FulfillmentState string

const (
	FulfillmentStateUpcoming  FulfillmentState = "upcoming"
	FulfillmentStateDelivered FulfillmentState = "delivered"
	FulfillmentStateReturned  FulfillmentState = "returned"
)

var validFulfillmentStates = []FulfillmentState{
	FulfillmentStateUpcoming,
	FulfillmentStateDelivered,
	FulfillmentStateReturned,
}

// String implements fmt.Stringer.
func (s FulfillmentState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known FulfillmentState.
func (s FulfillmentState) IsValid() bool {
	for _, candidate := range validFulfillmentStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// Rank orders the states the way the operator board renders its columns:
// Upcoming < Delivered < Returned. Undo replay walks one rank at a time.
func (s FulfillmentState) Rank() int {
	switch s {
	case FulfillmentStateUpcoming:
		return 0
	case FulfillmentStateDelivered:
		return 1
	case FulfillmentStateReturned:
		return 2
	default:
		return -1
	}
}

// Flags returns the (fulfilled, returned) pair encoded by the state.
func (s FulfillmentState) Flags() (fulfilled, returned bool) {
	switch s {
	case FulfillmentStateDelivered:
		return true, false
	case FulfillmentStateReturned:
		return true, true
	default:
		return false, false
	}
}

// FulfillmentStateFromFlags maps a (fulfilled, returned) pair onto its state.
// The (false, true) combination is impossible: an order cannot be returned
// without having been delivered.
func FulfillmentStateFromFlags(fulfilled, returned bool) (FulfillmentState, error) {
	switch {
	case !fulfilled && !returned:
		return FulfillmentStateUpcoming, nil
	case fulfilled && !returned:
		return FulfillmentStateDelivered, nil
	case fulfilled && returned:
		return FulfillmentStateReturned, nil
	default:
		return "", fmt.Errorf("illegal flag pair fulfilled=%t returned=%t", fulfilled, returned)
	}
}

// ParseFulfillmentState converts raw input into a FulfillmentState.
func ParseFulfillmentState(value string) (FulfillmentState, error) {
	for _, candidate := range validFulfillmentStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment state %q", value)
}

// SideEffect is the instruction a committed transition hands back to the
// caller. The flag change is applied immediately; the side effect is a
// human-confirmed follow-up that may itself be cancelled.
type SideEffect string

const (
	SideEffectNone                    SideEffect = "none"
	SideEffectRequireRefundAssessment SideEffect = "require_refund_assessment"
	SideEffectRequireRefundRemoval    SideEffect = "require_refund_removal"
)
