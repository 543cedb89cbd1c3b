// internal/event/recorder.go
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Recorder is an in-process Publisher that keeps every envelope it is
// given. It backs tests and local runs where no NATS server is available.
// Payloads are stored as their JSON encoding at publish time.
type Recorder struct {
	mu        sync.Mutex
	envelopes []EventEnvelope
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) PublishResourceEvent(ctx context.Context, ev ResourceEvent) error {
	envelope := NewEnvelope(ev, time.Now())
	if envelope.Payload != nil {
		b, err := json.Marshal(envelope.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s event: %w", envelope.Type, err)
		}
		envelope.Payload = json.RawMessage(b)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, envelope)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Envelopes returns a copy of the recorded envelopes in publish order.
func (r *Recorder) Envelopes() []EventEnvelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventEnvelope, len(r.envelopes))
	copy(out, r.envelopes)
	return out
}
