// Package client implements the Client Facade: boot sequencing, fleet
// membership management, event emission to the embedding application,
// and outbound publish with optional encryption, per spec.md §4.8.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgenet-x/client-go/bus"
	"github.com/edgenet-x/client-go/config"
	"github.com/edgenet-x/client-go/crypto"
	"github.com/edgenet-x/client-go/directory"
	"github.com/edgenet-x/client-go/ingress"
	"github.com/edgenet-x/client-go/internal/logger"
	"github.com/edgenet-x/client-go/registry"
	"github.com/edgenet-x/client-go/state"
)

// memoryReportInterval matches spec.md §5's "memory-usage reporter every
// 10s" note.
const memoryReportInterval = 10 * time.Second

// fleetRetryInterval is how often registerEdgeNode/deregisterEdgeNode
// retry while a node name cannot yet be resolved through the directory,
// per spec.md §4.8.
const fleetRetryInterval = 2 * time.Second

// Option customizes Client construction.
type Option func(*Client)

// WithLogger overrides the default structured logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithFormatters registers programmatic formatters in addition to the
// builtin "raw"/"identity" ones. Go has no runtime module loader, so
// config.CustomFormatters (name → module path) can only name formatters
// supplied this way; entries with no matching option are logged and
// ignored at boot.
func WithFormatters(formatters map[string]ingress.Formatter) Option {
	return func(c *Client) { c.customFormatters = formatters }
}

// Client owns the Bus Adapter, the State Manager, the worker pool, the
// Pending-Request Registry, and the Address Directory exclusively, per
// spec.md §3's ownership invariant.
type Client struct {
	cfg      config.Config
	log      logger.Logger
	identity *crypto.KeyPair

	bus        bus.Bus
	stateMgr   state.Manager
	directory  *directory.Directory
	registry   *registry.Registry
	formatters *ingress.FormatterRegistry

	customFormatters map[string]ingress.Formatter

	poolsMu sync.RWMutex
	pools   map[ingress.ThreadType]*pool

	fleetMu sync.Mutex
	fleet   map[string]struct{}

	alertMu sync.Mutex
	alerted map[string]bool

	events appEmitter

	reports chan ingress.Report

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    bool
}

// New constructs a Client from cfg without connecting anything; call
// Start to run the boot sequence.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	if cfg.Initiator == "" {
		cfg.Initiator = uuid.NewString()
	}

	c := &Client{
		cfg:       cfg,
		log:       logger.GetDefaultLogger(),
		directory: directory.New(),
		pools:     make(map[ingress.ThreadType]*pool),
		fleet:     make(map[string]struct{}),
		alerted:   make(map[string]bool),
		events:    newAppEmitter(),
		reports:   make(chan ingress.Report, 1024),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.registry = registry.New(c.log)
	c.formatters = ingress.NewFormatterRegistry(c.customFormatters)

	for name := range cfg.CustomFormatters {
		if _, ok := c.customFormatters[name]; !ok {
			c.log.Warn("client: custom formatter has no registered implementation",
				logger.String("name", name))
		}
	}

	identity, err := loadIdentity(cfg)
	if err != nil {
		return nil, fmt.Errorf("client: load identity: %w", err)
	}
	c.identity = identity

	for _, entry := range cfg.Fleet {
		if entry == "*" {
			continue
		}
		c.fleet[entry] = struct{}{}
	}

	return c, nil
}

// loadIdentity implements boot step 1: load from configured DER hex if
// present, otherwise generate a fresh key pair. A failure here is fatal,
// per spec.md §7.
func loadIdentity(cfg config.Config) (*crypto.KeyPair, error) {
	if cfg.Blockchain.Key != "" {
		return crypto.LoadPrivateKeyFromDERHex(cfg.Blockchain.Key)
	}
	return crypto.GenerateKeys()
}

// Start runs the boot sequence from spec.md §4.8: state manager, bus
// connection, worker pools, boot events, then the initial fleet.
func (c *Client) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	stateMgr, err := c.newStateManager(c.ctx)
	if err != nil {
		return fmt.Errorf("client: state manager: %w", err)
	}
	c.stateMgr = stateMgr

	wsBus := bus.NewWSBus(bus.Config{
		URL:      c.cfg.Bus.URL,
		Username: c.cfg.Bus.Username,
		Password: c.cfg.Bus.Password,
		Clean:    c.cfg.Bus.Clean,
		ClientID: c.cfg.Bus.ClientID,
		Prefix:   c.cfg.Bus.Prefix,
	}, c.log)
	if err := wsBus.Connect(c.ctx); err != nil {
		return fmt.Errorf("client: bus connect: %w", err)
	}
	c.bus = wsBus

	pools := []struct {
		thread ingress.ThreadType
		stream bus.Stream
		count  int
	}{
		{ingress.ThreadHeartbeats, bus.StreamHeartbeats, c.cfg.Threads.Heartbeats},
		{ingress.ThreadNotifications, bus.StreamNotifications, c.cfg.Threads.Notifications},
		{ingress.ThreadPayloads, bus.StreamPayloads, c.cfg.Threads.Payloads},
	}
	for _, spec := range pools {
		p, err := c.spawnPool(c.ctx, spec.thread, spec.stream, spec.count)
		if err != nil {
			return fmt.Errorf("client: spawn %s pool: %w", spec.thread, err)
		}
		c.poolsMu.Lock()
		c.pools[spec.thread] = p
		c.poolsMu.Unlock()
		c.events.emit(EventSysTopicSubscribe, map[string]interface{}{"thread": string(spec.thread)})
	}

	c.wg.Add(2)
	go func() { defer c.wg.Done(); c.reportLoop() }()
	go func() { defer c.wg.Done(); c.memoryReportLoop() }()

	c.events.emit(EventClientBooted, map[string]interface{}{"initiator": c.cfg.Initiator})
	c.events.emit(EventBCAddress, map[string]interface{}{"address": string(c.identity.Address())})

	for _, entry := range c.cfg.Fleet {
		if entry == "*" {
			continue
		}
		go c.registerEdgeNode(entry)
	}

	return nil
}

func (c *Client) newStateManager(ctx context.Context) (state.Manager, error) {
	switch c.cfg.StateManager {
	case config.StateManagerExternal:
		return state.NewExternal(ctx, state.ExternalConfig{
			Host:          c.cfg.External.Host,
			Port:          c.cfg.External.Port,
			Password:      c.cfg.External.Password,
			PubSubChannel: c.cfg.External.PubSubChannel,
		}, c.cfg.Initiator, c.log)
	default:
		return state.NewInProcess(), nil
	}
}

// Subscribe registers handler for application events named name.
func (c *Client) Subscribe(name string, handler EventHandler) (unsubscribe func()) {
	return c.events.Subscribe(name, handler)
}

// Identity returns the client's own address.
func (c *Client) Identity() crypto.Address {
	return c.identity.Address()
}

// Shutdown implements the §9 open-question resolution: stop accepting
// publishes, cancel all pending requests with a shutdown error, signal
// workers to drain and exit, close bus and cache handles.
func (c *Client) Shutdown(reason string) error {
	var shutdownErr error
	c.closeOnce.Do(func() {
		c.fleetMu.Lock()
		c.closed = true
		c.fleetMu.Unlock()

		if c.registry != nil {
			c.registry.CancelAll(reason)
		}
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()

		if c.bus != nil {
			if err := c.bus.Close(); err != nil && err != bus.ErrAlreadyClosed {
				shutdownErr = err
			}
		}
		if c.stateMgr != nil {
			if err := c.stateMgr.Close(); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})
	return shutdownErr
}
