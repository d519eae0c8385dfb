// Package event publishes team lifecycle events for downstream consumers
// (notification, search indexing). Delivery is best effort.
package event

import (
	"context"
	"time"
)

type Type string

const (
	TeamCreated       Type = "team.created"
	TeamUpdated       Type = "team.updated"
	TeamDeleted       Type = "team.deleted"
	TeamJoined        Type = "team.joined"
	TeamExited        Type = "team.exited"
	TeamLeaderChanged Type = "team.leader_changed"
	TeamKicked        Type = "team.kicked"
)

// TeamEvent describes one mutation. TargetID is the affected member for
// joined/exited/kicked/leader_changed and zero otherwise.
type TeamEvent struct {
	Type       Type      `json:"type"`
	TeamID     int64     `json:"teamId"`
	ActorID    int64     `json:"actorId"`
	TargetID   int64     `json:"targetId,omitempty"`
	TraceID    string    `json:"traceId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, evt TeamEvent) error
	Close() error
}

// NopPublisher drops every event. Used when kafka is disabled or unreachable.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, TeamEvent) error { return nil }
func (NopPublisher) Close() error                             { return nil }
