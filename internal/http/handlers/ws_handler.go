package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/audt-staking/backend/internal/auth"
	"github.com/audt-staking/backend/internal/config"
	"github.com/audt-staking/backend/internal/events"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const maxReplay = 500

type wsWriter interface {
	WriteMessage(messageType int, data []byte) error
}

type wsClient struct {
	conn wsWriter
	mine bool // only events concerning the connected address
	mu   sync.Mutex

	// Live events are queued until the replay is written, then sent unless
	// the replay already carried them.
	replaying bool
	queued    []queuedEvent
	replayed  map[string]struct{}
}

type queuedEvent struct {
	id   string
	data []byte
}

func newWSClient(conn wsWriter, mine bool) *wsClient {
	return &wsClient{conn: conn, mine: mine, replaying: true, replayed: make(map[string]struct{})}
}

func (c *wsClient) write(data []byte) {
	_ = c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) deliver(id string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.replaying {
		c.queued = append(c.queued, queuedEvent{id: id, data: data})
		return
	}
	if _, dup := c.replayed[id]; dup && id != "" {
		return
	}
	c.write(data)
}

func (c *wsClient) deliverReplayed(id string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != "" {
		c.replayed[id] = struct{}{}
	}
	c.write(data)
}

func (c *wsClient) finishReplay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaying = false
	for _, q := range c.queued {
		if _, dup := c.replayed[q.id]; dup && q.id != "" {
			continue
		}
		c.write(q.data)
	}
	c.queued = nil
}

func eventID(event events.Event) string {
	id, _ := event.Payload["event_id"].(string)
	return id
}

// WSHub fans committed staking events out to websocket clients.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	history     events.History // optional
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[common.Address][]*wsClient
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, history events.History, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		history:     history,
		log:         log,
		connections: make(map[common.Address][]*wsClient),
	}
}

func (h *WSHub) Start(ctx context.Context) {
	if err := h.subscriber.Subscribe(ctx, events.StreamStaking, h.broadcast); err != nil {
		h.log.Error("ws hub subscribe failed", zap.Error(err))
	}
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	id := eventID(event)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for addr, clients := range h.connections {
		concerns := concernsAddress(event, addr)
		for _, c := range clients {
			if c.mine && !concerns {
				continue
			}
			c.deliver(id, data)
		}
	}
}

func concernsAddress(event events.Event, address common.Address) bool {
	for _, key := range []string{"caller", "depositor", "from", "to", "owner", "account", "recipient"} {
		if s, ok := event.Payload[key].(string); ok && strings.EqualFold(s, address.Hex()) {
			return true
		}
	}
	return false
}

// replay sends up to n recent events to a registered client, then releases
// the live events queued meanwhile.
func (h *WSHub) replay(c *wsClient, address common.Address, n string) {
	defer c.finishReplay()
	if h.history == nil || n == "" {
		return
	}
	limit, err := strconv.ParseInt(n, 10, 64)
	if err != nil || limit <= 0 {
		return
	}
	if limit > maxReplay {
		limit = maxReplay
	}
	recent, err := h.history.Recent(context.Background(), events.StreamStaking, limit)
	if err != nil {
		h.log.Warn("ws replay failed", zap.Error(err))
		return
	}
	for _, ev := range recent {
		if c.mine && !concernsAddress(ev, address) {
			continue
		}
		if data, err := json.Marshal(ev); err == nil {
			c.deliverReplayed(eventID(ev), data)
		}
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	// Extract token from query
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	address := claims.Caller()
	client := newWSClient(conn, conn.Query("scope") == "mine")
	h.register(address, client)
	defer func() {
		h.unregister(address, client)
		conn.Close()
	}()
	h.replay(client, address, conn.Query("replay"))

	// Read loop (keep alive / pings)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

func (h *WSHub) register(address common.Address, client *wsClient) {
	h.mu.Lock()
	h.connections[address] = append(h.connections[address], client)
	h.mu.Unlock()
}

func (h *WSHub) unregister(address common.Address, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.connections[address]
	for i, c := range clients {
		if c == client {
			h.connections[address] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.connections[address]) == 0 {
		delete(h.connections, address)
	}
}
