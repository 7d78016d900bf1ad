package conn

import (
	"context"
	"errors"
	"sync"
)

var errFakeDial = errors.New("dial refused")

type fakeTransport struct {
	frames chan []byte

	mu       sync.Mutex
	written  [][]byte
	writeErr error

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (t *fakeTransport) ReadFrame() ([]byte, error) {
	select {
	case frame := <-t.frames:
		return frame, nil
	case <-t.closed:
		return nil, errors.New("fake transport closed")
	}
}

func (t *fakeTransport) WriteFrame(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return t.writeErr
	}
	t.written = append(t.written, append([]byte(nil), payload...))
	return nil
}

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) drop() {
	_ = t.Close()
}

func (t *fakeTransport) setWriteErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
}

func (t *fakeTransport) writtenFrames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.written))
	for _, frame := range t.written {
		out = append(out, string(frame))
	}
	return out
}

type dialStep func(ctx context.Context) (Transport, error)

func succeed(t *fakeTransport) dialStep {
	return func(context.Context) (Transport, error) { return t, nil }
}

func fail() dialStep {
	return func(context.Context) (Transport, error) { return nil, errFakeDial }
}

// scriptedDialer replays steps in order and then repeats fallback.
type scriptedDialer struct {
	mu       sync.Mutex
	steps    []dialStep
	fallback dialStep
	sessions []string
}

func (d *scriptedDialer) Dial(ctx context.Context, sessionID string) (Transport, error) {
	d.mu.Lock()
	d.sessions = append(d.sessions, sessionID)
	step := d.fallback
	if len(d.steps) > 0 {
		step = d.steps[0]
		d.steps = d.steps[1:]
	}
	d.mu.Unlock()
	if step == nil {
		return nil, errFakeDial
	}
	return step(ctx)
}

func (d *scriptedDialer) dialedSessions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.sessions...)
}
