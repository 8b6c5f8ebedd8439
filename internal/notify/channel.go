package notify

import (
	"context"
	"errors"

	"github.com/polyinsider/tracker/internal/store"
)

// ErrChannelFull is returned when a ChannelSink's consumer has fallen behind.
var ErrChannelFull = errors.New("event channel full")

// ChannelSink forwards events to an in-process consumer such as the dashboard.
type ChannelSink struct {
	name string
	ch   chan<- store.Event
}

// NewChannelSink creates a sink sending to ch without blocking.
func NewChannelSink(name string, ch chan<- store.Event) *ChannelSink {
	return &ChannelSink{name: name, ch: ch}
}

func (c *ChannelSink) Name() string { return c.name }

func (c *ChannelSink) Notify(_ context.Context, ev store.Event) error {
	select {
	case c.ch <- ev:
		return nil
	default:
		return ErrChannelFull
	}
}
