package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/soakstead/soakstead-backend/pkg/enums"
)

// FulfilmentEvent is the append-only audit record of a committed transition.
// Events are appended in acceptance order; readers computing "most recent
// status" must key off CreatedAt, never insertion order.
type FulfilmentEvent struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	ActorID         uuid.UUID              `gorm:"column:actor_id;type:uuid;not null"`
	ResultingStatus enums.FulfillmentState `gorm:"column:resulting_status;type:text;not null"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime;index"`
}
