// internal/event/nats.go
// Package event provides NATS JetStream implementation for event publishing.
// Every change made through the resource endpoints is streamed so other
// systems can follow the dataset without polling it.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
)

// StreamName is the JetStream stream holding resource events.
const StreamName = "ADMIN_RESOURCES"

// Action is the kind of change an event reports.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// ResourceEvent describes one change to a resource row.
type ResourceEvent struct {
	Resource      string // resource name, e.g. "address-types"
	Action        Action
	ID            any    // identifier of the changed row
	CorrelationID string // correlation id of the request that made the change
	Actor         string // username of the caller
	Payload       any    // row after the change; nil for deletions
}

// Subject returns the NATS subject of the event.
func (e ResourceEvent) Subject() string {
	return fmt.Sprintf("admin.%s.%s", e.Resource, e.Action)
}

// Publisher interface defines the event publishing operations required by the admin API.
type Publisher interface {
	// PublishResourceEvent publishes one resource change
	PublishResourceEvent(ctx context.Context, ev ResourceEvent) error

	// Close closes the publisher connection
	Close() error
}

// noop is a no-op implementation of Publisher for when NATS is not configured.
type noop struct{}

// NewNoop returns a Publisher that drops every event.
func NewNoop() Publisher { return &noop{} }

func (n *noop) Close() error { return nil }

func (n *noop) PublishResourceEvent(ctx context.Context, ev ResourceEvent) error {
	return nil
}

// natsPub is the NATS JetStream implementation of Publisher.
type natsPub struct {
	nc *nats.Conn            // NATS connection
	js nats.JetStreamContext // JetStream context for stream operations
}

// NewPublisher connects to the NATS server at url and makes sure the
// resource stream exists. An empty url, or any connection failure, yields
// the no-op publisher so the API keeps serving without event streaming.
func NewPublisher(url string) Publisher {
	if url == "" {
		return &noop{}
	}

	nc, err := nats.Connect(url, nats.Name("awadmin"))
	if err != nil {
		slog.Warn("NATS connect failed, using noop publisher", "error", err)
		return &noop{}
	}

	js, err := nc.JetStream()
	if err != nil {
		slog.Warn("NATS JetStream context creation failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	if err := initStreams(js); err != nil {
		slog.Warn("NATS stream initialization failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	return &natsPub{nc: nc, js: js}
}

// initStreams creates the ADMIN_RESOURCES stream if it does not exist.
func initStreams(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(StreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{"admin.*.*"},
		Retention:  nats.LimitsPolicy,
		MaxAge:     7 * 24 * time.Hour,
		Discard:    nats.DiscardOld,
		Storage:    nats.FileStorage,
		Duplicates: 2 * time.Minute, // window for Nats-Msg-Id deduplication
	})
	if err != nil {
		return fmt.Errorf("failed to create %s stream: %w", StreamName, err)
	}
	return nil
}

// EventEnvelope represents the standard event envelope structure.
// All events published to NATS are wrapped in this envelope for consistency.
type EventEnvelope struct {
	ID            string    `json:"id"`            // ULID, also used as the JetStream message id
	Type          string    `json:"type"`          // Event type identifier
	Version       string    `json:"version"`       // Event schema version
	OccurredAt    time.Time `json:"occurredAt"`    // When the event occurred
	CorrelationID string    `json:"correlationId"` // Correlation ID of the originating request
	Actor         string    `json:"actor,omitempty"`
	Resource      string    `json:"resource"`
	ResourceID    any       `json:"resourceId"`
	Payload       any       `json:"payload"` // Row after the change
}

// NewEnvelope wraps ev for publication.
func NewEnvelope(ev ResourceEvent, now time.Time) EventEnvelope {
	return EventEnvelope{
		ID:            ulid.Make().String(),
		Type:          ev.Subject(),
		Version:       "1.0.0",
		OccurredAt:    now.UTC(),
		CorrelationID: ev.CorrelationID,
		Actor:         ev.Actor,
		Resource:      ev.Resource,
		ResourceID:    ev.ID,
		Payload:       ev.Payload,
	}
}

// Close drains and closes the NATS connection.
func (p *natsPub) Close() error {
	if p.nc != nil {
		return p.nc.Drain()
	}
	return nil
}

// PublishResourceEvent publishes ev to the ADMIN_RESOURCES stream.
func (p *natsPub) PublishResourceEvent(ctx context.Context, ev ResourceEvent) error {
	envelope := NewEnvelope(ev, time.Now())

	b, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", envelope.Type, err)
	}

	if _, err := p.js.Publish(ev.Subject(), b, nats.Context(ctx), nats.MsgId(envelope.ID)); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", envelope.Type, err)
	}
	return nil
}
