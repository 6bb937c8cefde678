package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/volanre/jollyred/internal/command"
	"github.com/volanre/jollyred/internal/game"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	// clientSendBuffer is the number of queued outbound messages per client
	clientSendBuffer = 32

	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// CommandSink accepts client commands for asynchronous processing
type CommandSink interface {
	Enqueue(cmd command.Command) bool
}

// wsClient tracks a WebSocket connection with its source IP and the
// character it controls, if any
type wsClient struct {
	id          string
	conn        *websocket.Conn
	ip          string
	characterID string
	send        chan []byte
	closed      bool // Guarded by the hub's mu
}

// clientMessage is a message from a WebSocket client
type clientMessage struct {
	Type string `json:"type"` // "command"
	Text string `json:"text"` // e.g. "jump", "move -1", "-dash"
	Seq  uint64 `json:"seq,omitempty"`
}

// commandReply acknowledges or rejects a client command
type commandReply struct {
	Type   string `json:"type"` // "commandAck" or "commandReject"
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason,omitempty"`
}

// WebSocketHub manages all WebSocket connections with DoS protection
type WebSocketHub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	upgrader  websocket.Upgrader
	commands  CommandSink
	wsLimiter *WebSocketRateLimiter
}

// NewWebSocketHub creates a new hub. commands may be nil for a read-only hub.
func NewWebSocketHub(origins OriginChecker, commands CommandSink) *WebSocketHub {
	h := &WebSocketHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		stop:       make(chan struct{}),
		commands:   commands,
		wsLimiter:  NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origins.Allowed(origin) {
				return true
			}
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run starts the hub. It returns after Stop.
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client %s connected from %s (%d total)", c.id, c.ip, count)
			UpdateWSConnections(count)

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				h.drop(c)
			}
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client %s disconnected (%d remaining)", c.id, count)
			UpdateWSConnections(count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Slow consumer, cut it loose
					h.drop(c)
				}
			}
			h.mu.Unlock()
			IncrementWSMessages()
		}
	}
}

// drop must be called with h.mu held
func (h *WebSocketHub) drop(c *wsClient) {
	delete(h.clients, c)
	c.closed = true
	close(c.send)
	h.wsLimiter.Release(c.ip)
}

// Stop disconnects every client and ends Run
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Broadcast sends a message to all connected clients
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	msg := map[string]interface{}{
		"event": event,
		"data":  data,
	}

	jsonBytes, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- jsonBytes:
	default:
		// Channel full, skip (backpressure)
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop pushes the latest game snapshot hz times per second
// until Stop. It also refreshes the character gauges.
func (h *WebSocketHub) StartBroadcastLoop(engine EngineInterface, hz int) {
	if hz <= 0 {
		hz = 20
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				snap := engine.GetSnapshot()
				UpdateCharacterCounts(snap)
				if h.ClientCount() == 0 {
					continue
				}
				h.Broadcast("game:state", snap)
			}
		}
	}()
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection.
// The optional ?id= query parameter binds the connection to a character so
// its command messages drive that character.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if h.ClientCount() >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached")
		RecordConnectionRejected("ws_total_limit")
		writeError(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.wsLimiter.Allow(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		writeError(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.wsLimiter.Release(ip)
		return
	}

	c := &wsClient{
		id:          uuid.NewString(),
		conn:        conn,
		ip:          ip,
		characterID: r.URL.Query().Get("id"),
		send:        make(chan []byte, clientSendBuffer),
	}

	select {
	case h.register <- c:
	case <-h.stop:
		conn.Close()
		h.wsLimiter.Release(ip)
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

// writePump is the only goroutine that writes to c.conn
func (h *WebSocketHub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump turns client messages into queued commands
func (h *WebSocketHub) readPump(c *wsClient) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stop:
		}
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		if msg.Type != "command" {
			continue
		}

		h.reply(c, msg.Seq, h.submit(c, msg.Text))
	}
}

// submit queues a command and returns the reject reason, or "" on success
func (h *WebSocketHub) submit(c *wsClient, text string) string {
	if h.commands == nil {
		return "commands disabled"
	}
	if c.characterID == "" {
		return "no character bound, connect with ?id=<character>"
	}
	cmd, err := command.Parse(c.id, c.characterID, text)
	if err != nil {
		return err.Error()
	}
	if _, err := game.ParseInput(cmd.Name, cmd.Args); err != nil {
		return err.Error()
	}
	if !h.commands.Enqueue(cmd) {
		return "queue full"
	}
	return ""
}

// reply sends a command ack or reject to one client. Seq 0 means the client
// did not ask for one.
func (h *WebSocketHub) reply(c *wsClient, seq uint64, reason string) {
	if seq == 0 {
		return
	}
	r := commandReply{Type: "commandAck", Seq: seq}
	if reason != "" {
		r = commandReply{Type: "commandReject", Seq: seq, Reason: reason}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
