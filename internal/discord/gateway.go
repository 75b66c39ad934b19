package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const gatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

// Gateway intents: guilds, guild messages, message content, DMs.
const defaultIntents = (1 << 0) | (1 << 9) | (1 << 15) | (1 << 12)

// Gateway maintains the Discord gateway WebSocket connection and
// delivers MESSAGE_CREATE events on a channel. It reconnects with
// backoff until its context is cancelled.
type Gateway struct {
	token  string
	url    string
	logger *slog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	seq    int64
	seqMu  sync.Mutex

	messages chan Message
	ready    chan User
}

// gatewayPayload is the generic gateway frame.
type gatewayPayload struct {
	Op   int             `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
	Seq  *int64          `json:"s,omitempty"`
	Type string          `json:"t,omitempty"`
}

// NewGateway creates a gateway client for the given bot token.
func NewGateway(token string, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		token:    token,
		url:      gatewayURL,
		logger:   logger.With("component", "gateway"),
		messages: make(chan Message, 100),
		ready:    make(chan User, 1),
	}
}

// Messages returns the channel of inbound MESSAGE_CREATE events. Closed
// when Run returns.
func (g *Gateway) Messages() <-chan Message {
	return g.messages
}

// Ready delivers the bot user once per connection.
func (g *Gateway) Ready() <-chan User {
	return g.ready
}

// Run connects and processes gateway events until ctx is cancelled,
// reconnecting with backoff on connection loss.
func (g *Gateway) Run(ctx context.Context) {
	defer close(g.messages)

	backoff := time.Second
	for {
		if err := g.session(ctx); err != nil {
			if ctx.Err() != nil {
				g.logger.Info("gateway shutting down")
				return
			}
			g.logger.Warn("gateway session ended, reconnecting",
				"error", err,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
	}
}

// session runs one full gateway connection: hello, identify, heartbeat
// loop, and dispatch until the connection drops.
func (g *Gateway) session(ctx context.Context) error {
	dialer := websocket.Dialer{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 16 * 1024,
	}
	conn, _, err := dialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	g.connMu.Lock()
	g.conn = conn
	g.connMu.Unlock()
	defer conn.Close()

	// Close the socket when ctx is cancelled so the read loop unblocks.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	// First frame must be HELLO with the heartbeat interval.
	var hello gatewayPayload
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var helloData struct {
		HeartbeatInterval int `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.Data, &helloData); err != nil {
		return fmt.Errorf("decode hello: %w", err)
	}

	if err := g.identify(); err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	go g.heartbeatLoop(stop, time.Duration(helloData.HeartbeatInterval)*time.Millisecond)

	for {
		var payload gatewayPayload
		if err := conn.ReadJSON(&payload); err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if payload.Seq != nil {
			g.seqMu.Lock()
			g.seq = *payload.Seq
			g.seqMu.Unlock()
		}

		switch payload.Op {
		case opDispatch:
			g.dispatch(payload)
		case opHeartbeat:
			g.sendHeartbeat()
		case opReconnect, opInvalidSession:
			return fmt.Errorf("server requested reconnect (op %d)", payload.Op)
		case opHeartbeatAck:
			// Expected; nothing to do.
		}
	}
}

func (g *Gateway) identify() error {
	identify := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   g.token,
			"intents": defaultIntents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "nekoai",
				"device":  "nekoai",
			},
		},
	}
	return g.writeJSON(identify)
}

func (g *Gateway) heartbeatLoop(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			g.sendHeartbeat()
		}
	}
}

func (g *Gateway) sendHeartbeat() {
	g.seqMu.Lock()
	seq := g.seq
	g.seqMu.Unlock()
	if err := g.writeJSON(map[string]any{"op": opHeartbeat, "d": seq}); err != nil {
		g.logger.Debug("heartbeat send failed", "error", err)
	}
}

func (g *Gateway) writeJSON(v any) error {
	g.connMu.Lock()
	defer g.connMu.Unlock()
	if g.conn == nil {
		return fmt.Errorf("not connected")
	}
	return g.conn.WriteJSON(v)
}

// dispatch routes op-0 events. Only READY and MESSAGE_CREATE matter;
// everything else is ignored.
func (g *Gateway) dispatch(payload gatewayPayload) {
	switch payload.Type {
	case "READY":
		var readyData struct {
			User User `json:"user"`
		}
		if err := json.Unmarshal(payload.Data, &readyData); err != nil {
			g.logger.Warn("decode ready event", "error", err)
			return
		}
		g.logger.Info("connected to Discord", "user", readyData.User.Username)
		select {
		case g.ready <- readyData.User:
		default:
		}
	case "MESSAGE_CREATE":
		var msg Message
		if err := json.Unmarshal(payload.Data, &msg); err != nil {
			g.logger.Warn("decode message event", "error", err)
			return
		}
		select {
		case g.messages <- msg:
		default:
			g.logger.Warn("message channel full, dropping event",
				"channel_id", msg.ChannelID,
			)
		}
	}
}
