package server

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/saveenergy/netstrain/internal/logging"
	"github.com/saveenergy/netstrain/internal/run"
)

// Hub fans live run events out to connected websocket clients. A
// netstrain server executes one measurement at a time, so there is a
// single feed rather than per-run rooms.
type Hub struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration

	mu      sync.RWMutex
	clients map[*websocket.Conn]*clientConn

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	log      zerolog.Logger
}

type clientConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewHub() *Hub {
	h := &Hub{
		clients:      make(map[*websocket.Conn]*clientConn),
		pingInterval: 30 * time.Second,
		stopCh:       make(chan struct{}),
		log:          logging.Component("live"),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return sameOrigin(r.Header.Get("Origin"), r.Host)
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	h.startPingLoop()
	return h
}

// Handle upgrades the request and holds the connection until the client
// goes away. Inbound frames are discarded; the read loop exists only to
// detect disconnects.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return err
	}
	defer conn.Close()

	conn.SetReadLimit(4096)

	client := &clientConn{conn: conn}
	h.mu.Lock()
	h.clients[conn] = client
	h.mu.Unlock()

	if err := client.writeJSON(map[string]any{
		"type": "connected",
		"time": time.Now().Unix(),
	}); err != nil {
		h.removeClient(conn)
		return nil
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.removeClient(conn)
	return nil
}

// Broadcast sends one run event to every connected client, dropping
// clients whose writes fail.
func (h *Hub) Broadcast(ev run.Event) {
	h.mu.RLock()
	list := make([]*clientConn, 0, len(h.clients))
	for _, client := range h.clients {
		list = append(list, client)
	}
	h.mu.RUnlock()

	for _, client := range list {
		if err := client.writeJSON(ev); err != nil {
			h.removeClient(client.conn)
			client.conn.Close()
		}
	}
}

func (h *Hub) Close() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
	h.wg.Wait()
}

func (h *Hub) startPingLoop() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-h.stopCh:
				return
			case <-ticker.C:
				h.pingClients()
			}
		}
	}()
}

func (h *Hub) pingClients() {
	h.mu.RLock()
	list := make([]*clientConn, 0, len(h.clients))
	for _, client := range h.clients {
		list = append(list, client)
	}
	h.mu.RUnlock()

	for _, client := range list {
		if err := client.writeMessage(websocket.PingMessage, nil); err != nil {
			h.removeClient(client.conn)
			client.conn.Close()
		}
	}
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

func sameOrigin(origin, host string) bool {
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(stripHostPort(parsed.Host), stripHostPort(host))
}

func stripHostPort(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}

func (c *clientConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(v)
}

func (c *clientConn) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(messageType, data)
}
