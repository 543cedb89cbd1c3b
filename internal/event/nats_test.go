package event

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
)

func TestSubject(t *testing.T) {
	ev := ResourceEvent{Resource: "address-types", Action: ActionCreated}
	if got := ev.Subject(); got != "admin.address-types.created" {
		t.Errorf("Subject() = %q, want %q", got, "admin.address-types.created")
	}
}

func TestNewEnvelope(t *testing.T) {
	is := assert.New(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	env := NewEnvelope(ResourceEvent{
		Resource:      "currencies",
		Action:        ActionDeleted,
		ID:            "USD",
		CorrelationID: "corr-1",
		Actor:         "alice",
	}, now)

	_, err := ulid.Parse(env.ID)
	is.Nil(err)
	is.Equal("admin.currencies.deleted", env.Type)
	is.Equal("1.0.0", env.Version)
	is.Equal(now, env.OccurredAt)
	is.Equal("corr-1", env.CorrelationID)
	is.Equal("USD", env.ResourceID)
	is.Nil(env.Payload)
}

func TestNewPublisherWithoutURL(t *testing.T) {
	p := NewPublisher("")
	if _, ok := p.(*noop); !ok {
		t.Fatalf("NewPublisher(\"\") = %T, want *noop", p)
	}
	if err := p.PublishResourceEvent(context.Background(), ResourceEvent{}); err != nil {
		t.Errorf("noop publish returned %v", err)
	}
}

func TestRecorder(t *testing.T) {
	is := assert.New(t)
	r := NewRecorder()

	is.Nil(r.PublishResourceEvent(context.Background(), ResourceEvent{Resource: "a", Action: ActionCreated, ID: int64(1)}))
	is.Nil(r.PublishResourceEvent(context.Background(), ResourceEvent{Resource: "a", Action: ActionUpdated, ID: int64(1)}))

	envs := r.Envelopes()
	is.Len(envs, 2)
	is.Equal("admin.a.created", envs[0].Type)
	is.Equal("admin.a.updated", envs[1].Type)
	is.NotEqual(envs[0].ID, envs[1].ID)
}
