package ports

import (
	"context"
	"time"
)

const (
	EventDisasterCreated    = "disaster_created"
	EventDisasterUpdated    = "disaster_updated"
	EventDisasterDeleted    = "disaster_deleted"
	EventSocialMediaUpdated = "social_media_updated"
	EventResourcesUpdated   = "resources_updated"
)

type Event struct {
	Type       string    `json:"type"`
	DisasterID string    `json:"disaster_id"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
