package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edgenet-x/client-go/internal/logger"
)

// frame is the wire envelope a WSBus uses to multiplex topics over one
// full-duplex connection: a broker that understands this shape behaves
// like a shared-subscription pub/sub bus even though the underlying
// transport is a single socket.
type frame struct {
	Topic   string `json:"topic"`
	Payload []byte `json:"payload"`
}

// WSBus implements Bus over a single gorilla/websocket connection to a
// broker that multiplexes topics inside frame.Topic. It is the only
// concrete Bus backend this module ships; a broker-side MQTT bridge can
// sit behind the same websocket endpoint without this client knowing.
type WSBus struct {
	cfg Config
	log logger.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	subMu sync.RWMutex
	subs  map[string][]chan []byte

	writeMu sync.Mutex

	closed   bool
	closedCh chan struct{}
}

// NewWSBus creates a websocket-backed Bus. Connect must be called before
// Subscribe/Publish will do anything useful.
func NewWSBus(cfg Config, log logger.Logger) *WSBus {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &WSBus{
		cfg:      cfg,
		log:      log,
		subs:     make(map[string][]chan []byte),
		closedCh: make(chan struct{}),
	}
}

// Connect dials the broker and starts the read loop.
func (b *WSBus) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		return nil
	}

	dialer := &websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	header := make(map[string][]string)
	if b.cfg.Username != "" {
		header["X-Bus-Username"] = []string{b.cfg.Username}
	}
	if b.cfg.Password != "" {
		header["X-Bus-Password"] = []string{b.cfg.Password}
	}
	if b.cfg.ClientID != "" {
		header["X-Bus-Client-Id"] = []string{b.cfg.ClientID}
	}

	conn, resp, err := dialer.DialContext(ctx, b.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("bus: dial %s (HTTP %d): %w", b.cfg.URL, resp.StatusCode, err)
		}
		return fmt.Errorf("bus: dial %s: %w", b.cfg.URL, err)
	}

	b.conn = conn
	go b.readLoop()
	return nil
}

// readLoop demultiplexes incoming frames to every subscriber of their
// topic. It exits, closing all subscription channels, when the
// connection breaks or Close is called.
func (b *WSBus) readLoop() {
	defer b.teardownSubs()

	for {
		b.mu.Lock()
		conn := b.conn
		b.mu.Unlock()
		if conn == nil {
			return
		}

		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			select {
			case <-b.closedCh:
				return
			default:
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.log.Warn("bus read error", logger.Error(err))
			}
			return
		}

		b.subMu.RLock()
		chans := append([]chan []byte(nil), b.subs[f.Topic]...)
		b.subMu.RUnlock()

		for _, ch := range chans {
			select {
			case ch <- f.Payload:
			default:
				b.log.Warn("bus subscriber channel full, dropping frame", logger.String("topic", f.Topic))
			}
		}
	}
}

func (b *WSBus) teardownSubs() {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for topic, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
		delete(b.subs, topic)
	}
}

// Subscribe registers a new channel for topic. Multiple subscribers to
// the same topic each get their own channel (used by shared-subscription
// worker pools, where every worker subscribes with a distinct suffix and
// so ends up with a distinct topic string rather than sharing one here).
func (b *WSBus) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	ch := make(chan []byte, 256)

	b.subMu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.subMu.Unlock()

	return ch, nil
}

// Publish writes payload to topic as a single frame.
func (b *WSBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("bus: set write deadline: %w", err)
	}

	if err := conn.WriteJSON(frame{Topic: topic, Payload: payload}); err != nil {
		return fmt.Errorf("bus: publish %s: %w", topic, err)
	}
	return nil
}

// Close closes the underlying connection and every subscriber channel.
func (b *WSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrAlreadyClosed
	}
	b.closed = true
	close(b.closedCh)

	if b.conn == nil {
		return nil
	}

	_ = b.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := b.conn.Close()
	b.conn = nil
	return err
}
