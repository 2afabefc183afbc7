package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/layzeechat/layzee/pkg/config"
	"github.com/layzeechat/layzee/pkg/logger"
	"github.com/layzeechat/layzee/pkg/network"
	"github.com/layzeechat/layzee/pkg/network/websocket"
)

type Hub struct {
	conf     config.CoordinatorConfig
	mm       *Matchmaker
	upgrader *websocket.Upgrader
	log      *logger.Logger

	mu sync.Mutex
	// draining refuses new connections
	draining bool
	// conns counts the connections not cleaned up yet
	conns sync.WaitGroup
}

func NewHub(conf config.CoordinatorConfig, mm *Matchmaker, log *logger.Logger) *Hub {
	return &Hub{
		conf:     conf,
		mm:       mm,
		upgrader: websocket.NewUpgrader(conf.Coordinator.Origin),
		log:      log,
	}
}

// handleWebsocketUserConnection serves one participant until it disconnects.
func (h *Hub) handleWebsocketUserConnection(w http.ResponseWriter, r *http.Request) {
	if !h.enter() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.conns.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("socket upgrade failed")
		return
	}

	id := network.NewUid()
	log := h.log.Extend(h.log.With().Str(logger.ClientField, id.Short()))
	ws := websocket.NewServerWithConn(conn, h.conf.Matchmaking.SendBuffer, log)
	usr := NewUser(id, ws, h.log)

	if err = h.mm.Connect(usr); err != nil {
		log.Error().Err(err).Msg("connection refused")
		ws.Close()
		_ = conn.Close()
		return
	}

	if h.isDraining() {
		// connected after the users were disconnected
		usr.Disconnect()
	}

	ctx, cancel := context.WithCancel(r.Context())
	ws.OnMessage = func(data []byte, _ error) { h.handle(ctx, usr, data) }
	<-ws.Listen()
	cancel()
	h.mm.Cleanup(usr.Id)
}

// enter counts a new connection unless the hub drains.
func (h *Hub) enter() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.conns.Add(1)
	return true
}

func (h *Hub) isDraining() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.draining
}

// Drain refuses new connections, disconnects all users and
// waits until every connection is cleaned up or ctx is done.
func (h *Hub) Drain(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()
	h.mm.DisconnectAll()

	done := make(chan struct{})
	go func() { h.conns.Wait(); close(done) }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain: %v users left: %w", h.mm.Online(), ctx.Err())
	}
}

func (h *Hub) handleHealth(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("API is running"))
}
