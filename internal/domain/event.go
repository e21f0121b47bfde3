package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChangeEvent tells realtime subscribers that an entity changed. Subscribers
// re-fetch the entity; the event carries no authoritative state.
type ChangeEvent struct {
	Type     string    `json:"type"` // "<entity>.<action>", e.g. "order.created"
	Entity   string    `json:"entity"`
	EntityID uuid.UUID `json:"entity_id"`
	At       time.Time `json:"at"`
}

func NewChangeEvent(entity, action string, id uuid.UUID) ChangeEvent {
	return ChangeEvent{
		Type:     entity + "." + action,
		Entity:   entity,
		EntityID: id,
		At:       time.Now().UTC(),
	}
}
