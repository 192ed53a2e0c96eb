// Package audit records review events for the audit trail.
package audit

import (
	"context"
	"time"
)

// ActorType identifies who caused an event.
type ActorType string

const (
	ActorInternalUser ActorType = "InternalUser"
	ActorExternal     ActorType = "ExternalApplicant"
	ActorSystem       ActorType = "System"
)

// Source entity types. Events name the application unless it could not be
// resolved, in which case they name the amendment round they were about.
const (
	SourceApplication     = "FellingLicenceApplication"
	SourceAmendmentReview = "AmendmentReview"
)

// Event is one audit trail entry.
type Event struct {
	Name             string                 `json:"eventName"`
	ActorType        ActorType              `json:"actorType"`
	PerformingUserID string                 `json:"performingUserId,omitempty"`
	SourceEntityID   string                 `json:"sourceEntityId"`
	SourceEntityType string                 `json:"sourceEntityType"`
	CorrelationID    string                 `json:"correlationId,omitempty"`
	OccurredAt       time.Time              `json:"occurredAt"`
	Data             map[string]interface{} `json:"data,omitempty"`
}

// Recorder publishes audit events.
type Recorder interface {
	Publish(ctx context.Context, event Event) error
}

type correlationKey struct{}

// WithCorrelationID attaches id to ctx for events recorded under it.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id attached by WithCorrelationID, if any.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
