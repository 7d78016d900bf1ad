package panel

import (
	"context"
	"errors"
	"sync"

	"cockpit/internal/bus"
	"cockpit/internal/logging"
	"cockpit/internal/state"
	"cockpit/internal/types"
)

const DefaultBreakpoint = 100

type Refresher interface {
	Refetch(ctx context.Context, domain types.Domain) error
}

type Options struct {
	Store      *state.Store
	Bus        *bus.Bus
	Refresher  Refresher
	Logger     logging.Logger
	Breakpoint int
}

// Controller decides which side panel is visible. A single active field
// holds the visible panel, so two panels can never be open at once.
type Controller struct {
	store      *state.Store
	bus        *bus.Bus
	refresher  Refresher
	logger     logging.Logger
	breakpoint int

	mu     sync.Mutex
	active types.Panel

	// lifeMu orders wg.Add against Dispose's wg.Wait.
	lifeMu   sync.Mutex
	disposed bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	unsubs   []func()
}

func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	breakpoint := opts.Breakpoint
	if breakpoint <= 0 {
		breakpoint = DefaultBreakpoint
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		store:      opts.Store,
		bus:        opts.Bus,
		refresher:  opts.Refresher,
		logger:     logger,
		breakpoint: breakpoint,
		ctx:        ctx,
		cancel:     cancel,
	}
	if c.bus != nil {
		c.unsubs = append(c.unsubs,
			c.bus.Subscribe(bus.TopicPanelToggle, func(sig bus.Signal) { c.Toggle(sig.Panel) }),
			c.bus.Subscribe(bus.TopicViewportResized, func(sig bus.Signal) { c.OnViewportResize(sig.Width) }),
			c.bus.Subscribe(bus.TopicPanelEventsOpened, func(bus.Signal) { c.OnDataRequested(types.PanelEvents) }),
			c.bus.Subscribe(bus.TopicPanelTasksOpened, func(bus.Signal) { c.OnDataRequested(types.PanelTasks) }),
		)
	}
	return c
}

func (c *Controller) Active() types.Panel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) Breakpoint() int {
	return c.breakpoint
}

// Toggle opens p, or closes it when it is already the visible panel.
// Switching between panels is a single transition.
func (c *Controller) Toggle(p types.Panel) {
	c.mu.Lock()
	prev := c.active
	next := p
	if prev == p {
		next = types.PanelNone
	}
	c.active = next
	c.mu.Unlock()

	if next == prev {
		return
	}
	c.logger.Debug("panel_changed", logging.F("from", prev.String()), logging.F("to", next.String()))
	c.publish(bus.PanelChanged(next))
	if opened, ok := bus.PanelOpened(next); ok {
		c.publish(opened)
	}
}

// OnViewportResize hides the visible panel when the viewport becomes
// narrower than the breakpoint. Widening again does not restore it.
func (c *Controller) OnViewportResize(width int) {
	c.mu.Lock()
	if width >= c.breakpoint || c.active == types.PanelNone {
		c.mu.Unlock()
		return
	}
	prev := c.active
	c.active = types.PanelNone
	c.mu.Unlock()

	c.logger.Debug("panel_collapsed", logging.F("panel", prev.String()), logging.F("width", width))
	c.publish(bus.PanelChanged(types.PanelNone))
}

// OnDataRequested clears the caches behind p and refetches them in the
// background.
func (c *Controller) OnDataRequested(p types.Panel) {
	domains := p.Domains()
	if len(domains) == 0 || c.store == nil {
		return
	}
	for _, domain := range domains {
		c.store.ClearCache(domain)
	}
	if c.refresher == nil {
		return
	}
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.disposed {
		return
	}
	for _, domain := range domains {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			err := c.refresher.Refetch(c.ctx, domain)
			switch {
			case err == nil:
			case errors.Is(err, state.ErrStaleFetch), errors.Is(err, context.Canceled):
				c.logger.Debug("panel_refetch_superseded", logging.F("domain", string(domain)))
			default:
				c.logger.Warn("panel_refetch_failed", logging.F("domain", string(domain)), logging.F("error", err))
			}
		}()
	}
}

// Dispose unsubscribes from the bus and waits for running refetches.
func (c *Controller) Dispose() {
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
	c.lifeMu.Lock()
	c.disposed = true
	c.lifeMu.Unlock()
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) publish(sig bus.Signal) {
	if c.bus != nil {
		c.bus.Publish(sig)
	}
}
