package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cockpit/internal/bus"
	"cockpit/internal/conn"
	"cockpit/internal/logging"
	"cockpit/internal/state"
	"cockpit/internal/types"
)

const DefaultReadyTimeout = 1500 * time.Millisecond

// UI is the presentation side of startup. Initialized reports whether the
// UI finished setting itself up before the coordinator started listening.
type UI interface {
	InitializeUI() error
	Initialized() bool
}

type SessionResolver interface {
	Resolve(ctx context.Context) types.Session
}

type Connector interface {
	Open(ctx context.Context, sessionID string) (*conn.Handle, error)
	Close() error
}

type Fetcher interface {
	FetchAll(ctx context.Context) error
}

type Options struct {
	UI           UI
	Resolver     SessionResolver
	Connector    Connector
	Fetcher      Fetcher
	Store        *state.Store
	Bus          *bus.Bus
	Logger       logging.Logger
	ReadyTimeout time.Duration
}

// Coordinator runs the startup sequence: wait for the UI, resolve the
// session, open the connection, then load initial data.
type Coordinator struct {
	ui           UI
	resolver     SessionResolver
	connector    Connector
	fetcher      Fetcher
	store        *state.Store
	bus          *bus.Bus
	logger       logging.Logger
	readyTimeout time.Duration

	readyOnce sync.Once
	ready     chan struct{}
	unsubs    []func()

	mu     sync.Mutex
	handle *conn.Handle
}

func New(opts Options) (*Coordinator, error) {
	if opts.UI == nil || opts.Resolver == nil || opts.Connector == nil {
		return nil, errors.New("ui, resolver and connector are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	timeout := opts.ReadyTimeout
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	c := &Coordinator{
		ui:           opts.UI,
		resolver:     opts.Resolver,
		connector:    opts.Connector,
		fetcher:      opts.Fetcher,
		store:        opts.Store,
		bus:          opts.Bus,
		logger:       logger,
		readyTimeout: timeout,
		ready:        make(chan struct{}),
	}
	if c.bus != nil {
		c.unsubs = append(c.unsubs,
			c.bus.Subscribe(bus.TopicUIReady, func(bus.Signal) { c.markReady() }),
			c.bus.Subscribe(bus.TopicLayoutChanged, func(bus.Signal) { c.reinitialize() }),
		)
	}
	return c, nil
}

// Run executes the startup sequence once. A failure to open the connection
// stops the sequence and is returned; the loss has already been reported on
// the bus by then. Initial fetch failures are only logged.
func (c *Coordinator) Run(ctx context.Context) (types.Session, error) {
	if err := c.waitReady(ctx); err != nil {
		return types.Session{}, err
	}

	session := c.resolver.Resolve(ctx)
	if c.store != nil {
		c.store.SetSession(session)
	}
	c.logger.Info("bootstrap_session",
		logging.F("session_id", session.ID),
		logging.F("ephemeral", session.Ephemeral),
	)

	handle, err := c.connector.Open(ctx, session.ID)
	if err != nil {
		c.logger.Error("bootstrap_connect_failed", logging.F("error", err))
		return session, fmt.Errorf("open connection: %w", err)
	}
	c.mu.Lock()
	c.handle = handle
	c.mu.Unlock()

	if c.fetcher != nil {
		if err := c.fetcher.FetchAll(ctx); err != nil {
			c.logger.Warn("bootstrap_fetch_incomplete", logging.F("error", err))
		}
	}
	c.logger.Info("bootstrap_complete", logging.F("session_id", session.ID))
	return session, nil
}

// Handle returns the connection handle once Run has opened it.
func (c *Coordinator) Handle() *conn.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

func (c *Coordinator) Dispose() error {
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
	return c.connector.Close()
}

func (c *Coordinator) waitReady(ctx context.Context) error {
	if c.ui.Initialized() {
		c.markReady()
	}
	timer := time.NewTimer(c.readyTimeout)
	defer timer.Stop()
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	c.logger.Warn("ui_ready_timeout", logging.F("timeout", c.readyTimeout.String()))
	if err := c.ui.InitializeUI(); err != nil {
		c.logger.Warn("ui_initialize_failed", logging.F("error", err))
	}
	c.markReady()
	return nil
}

func (c *Coordinator) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

func (c *Coordinator) reinitialize() {
	if err := c.ui.InitializeUI(); err != nil {
		c.logger.Warn("ui_reinitialize_failed", logging.F("error", err))
	}
}
