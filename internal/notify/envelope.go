package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/polyinsider/tracker/internal/store"
)

// Envelope is the JSON shape published to machine consumers (Redis, /ws).
type Envelope struct {
	ID       string          `json:"id"`
	Kind     store.EventKind `json:"kind"`
	Headline string          `json:"headline"`
	Market   string          `json:"market,omitempty"`
	SentAt   time.Time       `json:"sentAt"`
	Event    store.Event     `json:"event"`
}

// NewEnvelope wraps ev with a fresh id.
func NewEnvelope(ev store.Event, now time.Time) Envelope {
	return Envelope{
		ID:       uuid.NewString(),
		Kind:     ev.Kind(),
		Headline: ev.Headline(),
		Market:   ev.MarketKey(),
		SentAt:   now.UTC(),
		Event:    ev,
	}
}

func marshalEnvelope(ev store.Event) ([]byte, error) {
	data, err := json.Marshal(NewEnvelope(ev, time.Now()))
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.Kind(), err)
	}
	return data, nil
}
