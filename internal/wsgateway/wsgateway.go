// Package wsgateway implements the WebSocket gateway (C10): one reader
// goroutine and one buffered writer goroutine per connection, channel
// subscribe/unsubscribe authorized from the principal's course roles and the
// message scope's domain rule, and cross-replica fan-out through the
// pub/sub bus (C11).
package wsgateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"ctp/internal/auth"
	"ctp/internal/message"
	"ctp/internal/pubsub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	idleTimeout  = 60 * time.Second
	sendBuffer   = 256
	closePolicy  = 4401
	closeTimeout = 4408
)

// frame is the wire shape of every inbound/outbound JSON message; type is
// always lower-case, e.g. "channel:subscribe".
type frame struct {
	Type      string          `json:"type"`
	Channels  []string        `json:"channels,omitempty"`
	Channel   string          `json:"channel,omitempty"`
	MessageID int             `json:"message_id,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// Gateway owns the per-channel hubs and the shared infrastructure every
// connection needs to authorize and relay messages.
type Gateway struct {
	DB       *gorm.DB
	Auth     *auth.Registry
	Bus      *pubsub.Bus
	Upgrader websocket.Upgrader

	mu   sync.Mutex
	hubs map[string]*channelHub
}

func New(db *gorm.DB, registry *auth.Registry, bus *pubsub.Bus) *Gateway {
	return &Gateway{
		DB:   db,
		Auth: registry,
		Bus:  bus,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		hubs: make(map[string]*channelHub),
	}
}

// channelHub fans the bus's envelopes for one channel out to every locally
// connected subscriber, deduplicating the single Redis subscription across
// however many local connections are on that channel.
type channelHub struct {
	sub   *pubsub.Subscription
	conns map[*Conn]struct{}
}

func (g *Gateway) subscribe(conn *Conn, channel string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	hub, ok := g.hubs[channel]
	if !ok {
		hub = &channelHub{sub: g.Bus.Subscribe(conn.ctx(), channel), conns: map[*Conn]struct{}{}}
		g.hubs[channel] = hub
		go g.fanOut(channel, hub)
	}
	hub.conns[conn] = struct{}{}
}

func (g *Gateway) unsubscribe(conn *Conn, channel string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	hub, ok := g.hubs[channel]
	if !ok {
		return
	}
	delete(hub.conns, conn)
	if len(hub.conns) == 0 {
		_ = hub.sub.Close()
		delete(g.hubs, channel)
	}
}

func (g *Gateway) fanOut(channel string, hub *channelHub) {
	for env := range hub.sub.Envelopes() {
		encoded, err := json.Marshal(env)
		if err != nil {
			continue
		}
		g.mu.Lock()
		for conn := range hub.conns {
			select {
			case conn.send <- encoded:
			default:
				logrus.Warnf("wsgateway: dropping slow subscriber on channel %s", channel)
			}
		}
		g.mu.Unlock()
	}
}

// removeConnEverywhere tears down every hub membership conn still holds;
// called once from the connection's cleanup path.
func (g *Gateway) removeConnEverywhere(conn *Conn) {
	conn.mu.Lock()
	channels := make([]string, 0, len(conn.subscriptions))
	for ch := range conn.subscriptions {
		channels = append(channels, ch)
	}
	conn.mu.Unlock()

	for _, ch := range channels {
		g.unsubscribe(conn, ch)
		_ = g.Bus.ClearTyping(conn.base, ch, conn.Principal.UserID)
	}
}

// Handle upgrades an authenticated request to a WebSocket connection and
// runs it until the socket closes.
func (g *Gateway) Handle(c *gin.Context) {
	token := c.Query("token")
	req := c.Request.Clone(c.Request.Context())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	principal, err := g.Auth.Authenticate(req.Context(), req)
	if err != nil || principal == nil {
		ws, upErr := g.Upgrader.Upgrade(c.Writer, c.Request, nil)
		if upErr != nil {
			return
		}
		closeWithCode(ws, closePolicy, "authentication failed")
		return
	}

	ws, err := g.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := &Conn{
		gw:            g,
		Principal:     principal,
		ws:            ws,
		send:          make(chan []byte, sendBuffer),
		subscriptions: map[string]struct{}{},
		base:          req.Context(),
	}

	conn.writeJSON(frame{Type: "system:connected"}, map[string]any{"user_id": principal.UserID})

	go conn.writePump()
	conn.readPump()
}

func closeWithCode(ws *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(5 * time.Second)
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = ws.Close()
}

// channelScope splits "<scope>:<id>" and validates both halves.
func channelScope(channel string) (message.Scope, int, bool) {
	parts := strings.SplitN(channel, ":", 2)
	if len(parts) != 2 {
		return "", 0, false
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, false
	}
	return message.Scope(parts[0]), id, true
}

func channelName(scope message.Scope, id int) string {
	return fmt.Sprintf("%s:%d", scope, id)
}
