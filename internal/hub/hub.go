// Package hub publishes turn outcomes to a home-automation hub over a
// websocket and accepts commands addressed to this shard.
package hub

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"aeris/internal/session"
)

type Config struct {
	URL    string
	Shard  string
	Reconn time.Duration
	// OnMessage receives valid messages addressed to Shard or ALL.
	OnMessage func(*Message)
}

// Notifier keeps one connection to the hub alive in the background.
// Observe never blocks on the network: when the hub is away, events are
// dropped.
type Notifier struct {
	cfg Config

	mu   sync.Mutex
	conn *ws.Conn
}

func New(cfg Config) *Notifier {
	if cfg.Reconn <= 0 {
		cfg.Reconn = 5 * time.Second
	}
	if cfg.Shard == "" {
		cfg.Shard = "aeris"
	}
	return &Notifier{cfg: cfg}
}

// Run connects, reads until the connection drops, and reconnects until ctx
// is done.
func (n *Notifier) Run(ctx context.Context) {
	for {
		conn, _, err := ws.DefaultDialer.DialContext(ctx, n.cfg.URL, nil)
		if err != nil {
			log.Warn("Hub unreachable", "url", n.cfg.URL, "err", err)
		} else {
			log.Info("Connected to hub", "url", n.cfg.URL)
			n.setConn(conn)
			n.readLoop(ctx, conn)
			n.setConn(nil)
			conn.Close()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(n.cfg.Reconn):
		}
	}
}

func (n *Notifier) readLoop(ctx context.Context, conn *ws.Conn) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("Hub connection lost", "err", err)
			}
			return
		}
		log.Debug("Read ws", "msg", string(raw))

		to, _, _ := strings.Cut(string(raw), ":")
		if to != n.cfg.Shard && to != "ALL" {
			continue
		}
		msg, err := Parse(string(raw))
		if err != nil {
			log.Warn("Failed to parse", "msg", string(raw), "err", err)
			continue
		}
		if msg.From == n.cfg.Shard {
			continue
		}
		if n.cfg.OnMessage != nil {
			n.cfg.OnMessage(msg)
		}
	}
}

func (n *Notifier) setConn(c *ws.Conn) {
	n.mu.Lock()
	n.conn = c
	n.mu.Unlock()
}

func (n *Notifier) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.conn != nil
}

var errOffline = errors.New("hub offline")

// Send writes msg with this shard as sender.
func (n *Notifier) Send(msg Message) error {
	msg.From = n.cfg.Shard

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return errOffline
	}
	n.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	log.Debug("Write ws", "msg", msg.String())
	return n.conn.WriteMessage(ws.TextMessage, []byte(msg.String()))
}

// Observe broadcasts ALL:EVT:<COMMAND>:<DEVICE>:<shard>, or ERR instead of
// EVT when the turn failed.
func (n *Notifier) Observe(_ context.Context, t session.Turn) error {
	msg := TurnMessage(t)
	if err := n.Send(msg); err != nil {
		if errors.Is(err, errOffline) {
			log.Debug("Hub offline, event dropped", "turn", t.ID)
			return nil
		}
		return err
	}
	return nil
}

func TurnMessage(t session.Turn) Message {
	verb := "EVT"
	if t.Err != nil {
		verb = "ERR"
	}
	return Message{
		To:   "ALL",
		Verb: verb,
		Noun: strings.ToUpper(Token(t.Command)),
		Args: []string{Token(t.Device)},
	}
}
