package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Subscription-related defaults (§6: "max subscriptions (default 10)",
// "max pending requests (default 100)", "per-client rate limit (default
// 50 req/s)").
const (
	defaultMaxSubscriptions = 10
	defaultMaxPending       = 100
	defaultClientRateHz     = 50
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsNotification is the JSON envelope pushed to a subscribed client: a
// subscription id, the event name and the payload. The binary
// `[opcode:u8][request_id:u32 LE][payload]` framing named in §6 is not
// implemented; the envelope carries no opcode and no request id (no teacher
// file models a binary websocket protocol to ground against).
type wsNotification struct {
	SubscriptionID uint32      `json:"subscription_id"`
	Event          string      `json:"event"`
	Payload        interface{} `json:"payload"`
}

// wsClient is one connected WebSocket session.
type wsClient struct {
	conn          *websocket.Conn
	mu            sync.Mutex
	subscriptions map[uint32]string // id -> event name
	nextSubID     uint32
}

func (c *wsClient) send(n wsNotification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(n)
}

type wsSubscribeRequest struct {
	Event string `json:"event"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("api: websocket upgrade failed")
		return
	}
	client := &wsClient{conn: conn, subscriptions: make(map[uint32]string), nextSubID: 1}
	defer conn.Close()
	if s.broadcaster != nil {
		s.broadcaster.register(client)
		defer s.broadcaster.unregister(client)
	}

	for {
		var req wsSubscribeRequest
		if err := conn.ReadJSON(&req); err != nil {
			return // client closed or protocol error; connection torn down
		}
		client.mu.Lock()
		if len(client.subscriptions) >= defaultMaxSubscriptions {
			client.mu.Unlock()
			_ = conn.WriteJSON(map[string]string{"error": "max subscriptions reached"})
			continue
		}
		id := client.nextSubID
		client.nextSubID++
		client.subscriptions[id] = req.Event
		client.mu.Unlock()

		_ = conn.WriteJSON(map[string]interface{}{"subscription_id": id, "event": req.Event})
	}
}

// Broadcaster fans a server-side event out to every WebSocket client
// subscribed to it. cmd/indexerd's serve wiring registers it with
// internal/hooks as a plugin with no permissions, so it receives every
// dispatched event that requires none (there: BlockPostProcess and Reorg).
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewBroadcaster constructs an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[*wsClient]struct{})}
}

func (b *Broadcaster) register(c *wsClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[c] = struct{}{}
}

func (b *Broadcaster) unregister(c *wsClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, c)
}

// Publish pushes payload to every client subscribed to event.
func (b *Broadcaster) Publish(event string, payload interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		c.mu.Lock()
		var subID uint32
		for id, ev := range c.subscriptions {
			if ev == event {
				subID = id
				break
			}
		}
		c.mu.Unlock()
		if subID == 0 {
			continue
		}
		_ = c.send(wsNotification{SubscriptionID: subID, Event: event, Payload: payload})
	}
}
