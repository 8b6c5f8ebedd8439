package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/polyinsider/tracker/internal/store"
)

const (
	// HubPath is where the hub accepts websocket subscribers.
	HubPath = "/ws"
	// hubWriteTimeout bounds a write to one subscriber.
	hubWriteTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HubSink broadcasts alert envelopes to websocket subscribers.
type HubSink struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHubSink creates an empty hub.
func NewHubSink() *HubSink {
	return &HubSink{clients: make(map[*websocket.Conn]struct{})}
}

func (h *HubSink) Name() string { return "hub" }

// Handler returns the HTTP handler serving HubPath.
func (h *HubSink) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(HubPath, h.serveWS)
	return mux
}

func (h *HubSink) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("hub_upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	slog.Info("hub_client_connected", "remote", r.RemoteAddr, "clients", count)

	// Subscribers never send; reading only detects disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

func (h *HubSink) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if ok {
		conn.Close()
		slog.Debug("hub_client_disconnected", "remote", conn.RemoteAddr().String())
	}
}

// ClientCount returns the number of connected subscribers.
func (h *HubSink) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Notify writes the envelope to every subscriber, dropping any that fail.
func (h *HubSink) Notify(ctx context.Context, ev store.Event) error {
	data, err := marshalEnvelope(ev)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	deadline := time.Now().Add(hubWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var failed int
	for conn := range h.clients {
		conn.SetWriteDeadline(deadline)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(h.clients, conn)
			failed++
		}
	}
	if failed > 0 {
		slog.Debug("hub_clients_dropped", "count", failed)
	}
	return nil
}

// Serve runs the hub's HTTP server on addr until ctx is cancelled.
func (h *HubSink) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		h.closeAll()
	}()

	slog.Info("hub_listening", "addr", addr, "path", HubPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *HubSink) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
