// Package notify delivers detector events to alert sinks without blocking the
// poll loop.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/polyinsider/tracker/internal/store"
)

// DefaultDeliveryTimeout bounds a single sink delivery.
const DefaultDeliveryTimeout = 10 * time.Second

// Sink is one alert destination.
type Sink interface {
	Name() string
	Notify(ctx context.Context, ev store.Event) error
}

// DeliveryHook observes every delivery attempt. err is nil on success.
type DeliveryHook func(sink string, kind store.EventKind, err error)

// Dispatcher fans each event out to every sink on its own goroutine.
// A failing or slow sink never affects the others or the caller.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	hook    DeliveryHook
	wg      sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDeliveryTimeout overrides DefaultDeliveryTimeout.
func WithDeliveryTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.timeout = d
	}
}

// WithDeliveryHook registers a hook called after each delivery.
func WithDeliveryHook(hook DeliveryHook) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.hook = hook
	}
}

// NewDispatcher creates a Dispatcher over sinks.
func NewDispatcher(sinks []Sink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{sinks: sinks, timeout: DefaultDeliveryTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Sinks returns the names of the configured sinks.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Dispatch starts one delivery per sink and returns immediately.
func (d *Dispatcher) Dispatch(ev store.Event) {
	for _, s := range d.sinks {
		d.wg.Add(1)
		go d.deliver(s, ev)
	}
}

func (d *Dispatcher) deliver(s Sink, ev store.Event) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("sink panicked: %v", r)
			}
		}()
		return s.Notify(ctx, ev)
	}()

	if err != nil {
		slog.Error("sink_delivery_failed",
			"sink", s.Name(),
			"kind", ev.Kind(),
			"market", ev.MarketKey(),
			"error", err,
		)
	}
	if d.hook != nil {
		d.hook(s.Name(), ev.Kind(), err)
	}
}

// Wait blocks until in-flight deliveries finish or timeout elapses. It
// reports whether everything drained.
func (d *Dispatcher) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
