package conn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"cockpit/internal/bus"
	"cockpit/internal/logging"
	"cockpit/internal/state"
	"cockpit/internal/types"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 8 * time.Second
	defaultBufferSize     = 64
)

// RetryPolicy bounds both the initial connect and every reconnect. Backoff
// doubles after each failed attempt up to MaxBackoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = defaultMaxBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	return p
}

type Options struct {
	Dialer     Dialer
	Store      *state.Store
	Bus        *bus.Bus
	Logger     logging.Logger
	Retry      RetryPolicy
	BufferSize int
}

// Manager owns the single backend connection for a session. All state
// transitions happen under mu; network writes are serialized by writeMu and
// never happen while mu is held.
type Manager struct {
	dialer     Dialer
	store      *state.Store
	bus        *bus.Bus
	logger     logging.Logger
	retry      RetryPolicy
	bufferSize int

	writeMu sync.Mutex

	mu         sync.Mutex
	state      types.ConnectionState
	sessionID  string
	transport  Transport
	pending    [][]byte
	epoch      uint64
	lifeCtx    context.Context
	lifeCancel context.CancelFunc
	handlers   map[uint64]func(json.RawMessage)
	nextID     uint64
	handle     *Handle
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Dialer == nil {
		return nil, errors.New("dialer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	size := opts.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Manager{
		dialer:     opts.Dialer,
		store:      opts.Store,
		bus:        opts.Bus,
		logger:     logger,
		retry:      opts.Retry.normalized(),
		bufferSize: size,
		handlers:   map[uint64]func(json.RawMessage){},
	}, nil
}

func (m *Manager) State() types.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Open connects for sessionID, retrying per the policy. It blocks until the
// connection is open, retries are exhausted, ctx is done or Close is called.
// Exhausting retries reports the loss on the bus and returns an error
// wrapping ErrConnectionLost.
func (m *Manager) Open(ctx context.Context, sessionID string) (*Handle, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	m.mu.Lock()
	if m.state != types.ConnectionClosed {
		defer m.mu.Unlock()
		if m.sessionID == sessionID && m.handle != nil {
			return m.handle, nil
		}
		return nil, ErrAlreadyOpen
	}
	m.epoch++
	epoch := m.epoch
	m.sessionID = sessionID
	m.state = types.ConnectionConnecting
	lifeCtx, lifeCancel := context.WithCancel(context.WithoutCancel(ctx))
	m.lifeCtx = lifeCtx
	m.lifeCancel = lifeCancel
	m.handle = &Handle{m: m, sessionID: sessionID}
	handle := m.handle
	m.mu.Unlock()

	m.publishState(types.ConnectionConnecting)
	m.logger.Info("connection_opening", logging.F("session_id", sessionID))

	dialCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(lifeCtx, cancel)
	t, err := m.dialWithRetry(dialCtx, sessionID)
	stop()
	cancel()
	if err != nil {
		if lostErr := m.lose(epoch, err); lostErr != nil {
			return nil, lostErr
		}
		return nil, ErrClosed
	}
	if !m.activate(epoch, t) {
		_ = t.Close()
		return nil, ErrClosed
	}
	return handle, nil
}

// Send writes msg, or queues it while the connection is being established.
func (m *Manager) Send(msg types.OutboundMessage) error {
	if msg.Type == "" {
		msg.Type = types.OutboundTypeMessage
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	m.writeMu.Lock()
	m.mu.Lock()
	switch m.state {
	case types.ConnectionClosed:
		m.mu.Unlock()
		m.writeMu.Unlock()
		return ErrClosed
	case types.ConnectionConnecting, types.ConnectionReconnecting:
		err := m.enqueueLocked(payload)
		m.mu.Unlock()
		m.writeMu.Unlock()
		return err
	}
	t, epoch := m.transport, m.epoch
	m.mu.Unlock()

	werr := t.WriteFrame(payload)
	if werr == nil {
		m.writeMu.Unlock()
		return nil
	}

	m.mu.Lock()
	if m.epoch != epoch || m.state == types.ConnectionClosed {
		m.mu.Unlock()
		m.writeMu.Unlock()
		return ErrClosed
	}
	m.pending = append([][]byte{payload}, m.pending...)
	changed := m.state != types.ConnectionReconnecting
	m.state = types.ConnectionReconnecting
	m.mu.Unlock()
	m.writeMu.Unlock()

	m.logger.Warn("connection_write_failed", logging.F("error", werr))
	_ = t.Close()
	if changed {
		m.publishState(types.ConnectionReconnecting)
	}
	return nil
}

// OnMessage registers fn for every valid inbound frame. Handlers run on the
// reader goroutine in frame order.
func (m *Manager) OnMessage(fn func(json.RawMessage)) func() {
	if fn == nil {
		return func() {}
	}
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.handlers[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.handlers, id)
		m.mu.Unlock()
	}
}

// Close tears the connection down from any state and cancels pending
// retries. It never reports a connection loss.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state == types.ConnectionClosed && m.transport == nil {
		m.mu.Unlock()
		return nil
	}
	m.epoch++
	prev := m.state
	t := m.transport
	m.transport = nil
	m.state = types.ConnectionClosed
	dropped := len(m.pending)
	m.pending = nil
	m.handle = nil
	if m.lifeCancel != nil {
		m.lifeCancel()
		m.lifeCancel = nil
	}
	m.mu.Unlock()

	var err error
	if t != nil {
		err = t.Close()
	}
	if dropped > 0 {
		m.logger.Info("connection_closed_with_pending", logging.F("dropped", dropped))
	}
	if prev != types.ConnectionClosed {
		m.publishState(types.ConnectionClosed)
	}
	return err
}

func (m *Manager) enqueueLocked(payload []byte) error {
	if len(m.pending) >= m.bufferSize {
		return ErrBufferFull
	}
	m.pending = append(m.pending, payload)
	return nil
}

func (m *Manager) dialWithRetry(ctx context.Context, sessionID string) (Transport, error) {
	backoff := m.retry.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= m.retry.MaxAttempts; attempt++ {
		t, err := m.dialer.Dial(ctx, sessionID)
		if err == nil {
			return t, nil
		}
		lastErr = err
		m.logger.Warn("connection_dial_failed",
			logging.F("session_id", sessionID),
			logging.F("attempt", attempt),
			logging.F("error", err),
		)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == m.retry.MaxAttempts {
			break
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, m.retry.MaxBackoff)
	}
	return nil, fmt.Errorf("%w: %d attempts: %w", ErrTransport, m.retry.MaxAttempts, lastErr)
}

// activate installs t as the live transport, starts its reader and flushes
// queued messages in order. It reports false when the connection was closed
// in the meantime.
func (m *Manager) activate(epoch uint64, t Transport) bool {
	m.writeMu.Lock()
	m.mu.Lock()
	if m.epoch != epoch || m.state == types.ConnectionClosed {
		m.mu.Unlock()
		m.writeMu.Unlock()
		return false
	}
	m.transport = t
	m.state = types.ConnectionOpen
	queued := m.pending
	m.pending = nil
	m.mu.Unlock()

	go m.readLoop(epoch, t)

	flushed := 0
	var flushErr error
	for i, payload := range queued {
		if err := t.WriteFrame(payload); err != nil {
			flushErr = err
			m.mu.Lock()
			if m.epoch == epoch && m.state != types.ConnectionClosed {
				m.pending = append(append([][]byte{}, queued[i:]...), m.pending...)
				m.state = types.ConnectionReconnecting
			}
			m.mu.Unlock()
			break
		}
		flushed++
	}
	m.writeMu.Unlock()

	if flushErr != nil {
		m.logger.Warn("connection_flush_failed", logging.F("flushed", flushed), logging.F("error", flushErr))
		_ = t.Close()
		m.publishState(types.ConnectionReconnecting)
		return true
	}
	m.logger.Info("connection_open", logging.F("session_id", m.SessionID()), logging.F("flushed", flushed))
	m.publishState(types.ConnectionOpen)
	return true
}

func (m *Manager) readLoop(epoch uint64, t Transport) {
	for {
		frame, err := t.ReadFrame()
		if err != nil {
			m.handleDrop(epoch, t, err)
			return
		}
		m.mu.Lock()
		current := m.epoch == epoch && m.transport == t
		m.mu.Unlock()
		if !current {
			return
		}
		m.dispatch(frame)
	}
}

func (m *Manager) dispatch(frame []byte) {
	if !json.Valid(frame) {
		m.logger.Warn("connection_frame_skipped",
			logging.F("error", ErrMalformedMessage),
			logging.F("bytes", len(frame)),
		)
		return
	}
	raw := json.RawMessage(append([]byte(nil), frame...))
	// Only objects can carry agent info; strings, arrays and numbers are
	// forwarded as-is.
	var msg types.InboundMessage
	if json.Unmarshal(frame, &msg) == nil && m.store != nil {
		if info, ok := msg.AgentInfo(); ok {
			m.store.SetAgentInfo(info.AgentName, info.Model)
		}
	}

	m.mu.Lock()
	ids := make([]uint64, 0, len(m.handlers))
	for id := range m.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]func(json.RawMessage), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, m.handlers[id])
	}
	m.mu.Unlock()

	for _, fn := range handlers {
		fn(raw)
	}
	if m.bus != nil {
		m.bus.Publish(bus.MessageReceived(raw))
	}
}

func (m *Manager) handleDrop(epoch uint64, t Transport, readErr error) {
	m.mu.Lock()
	if m.epoch != epoch || m.state == types.ConnectionClosed {
		m.mu.Unlock()
		return
	}
	if m.transport == t {
		m.transport = nil
	}
	changed := m.state != types.ConnectionReconnecting
	m.state = types.ConnectionReconnecting
	sessionID := m.sessionID
	ctx := m.lifeCtx
	m.mu.Unlock()

	_ = t.Close()
	m.logger.Warn("connection_dropped", logging.F("session_id", sessionID), logging.F("error", readErr))
	if changed {
		m.publishState(types.ConnectionReconnecting)
	}

	next, err := m.dialWithRetry(ctx, sessionID)
	if err != nil {
		m.lose(epoch, err)
		return
	}
	if !m.activate(epoch, next) {
		_ = next.Close()
	}
}

// lose transitions to Closed after retries ran out and reports the loss
// exactly once. It returns nil when Close already ended this connection.
func (m *Manager) lose(epoch uint64, cause error) error {
	m.mu.Lock()
	if m.epoch != epoch || m.state == types.ConnectionClosed {
		m.mu.Unlock()
		return nil
	}
	m.state = types.ConnectionClosed
	m.transport = nil
	dropped := len(m.pending)
	m.pending = nil
	m.handle = nil
	if m.lifeCancel != nil {
		m.lifeCancel()
		m.lifeCancel = nil
	}
	m.mu.Unlock()

	err := fmt.Errorf("%w: %w", ErrConnectionLost, cause)
	if dropped > 0 {
		err = errors.Join(err, fmt.Errorf("%w: %d messages", ErrBufferDropped, dropped))
	}
	m.logger.Error("connection_lost", logging.F("error", err))
	m.publishState(types.ConnectionClosed)
	if m.bus != nil {
		m.bus.Publish(bus.ConnectionLost(err))
	}
	return err
}

func (m *Manager) publishState(s types.ConnectionState) {
	if m.bus != nil {
		m.bus.Publish(bus.ConnectionState(s))
	}
}
