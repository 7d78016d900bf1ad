package app

import (
	"sync/atomic"

	tea "charm.land/bubbletea/v2"

	"cockpit/internal/bus"
	"cockpit/internal/logging"
	"cockpit/internal/state"
)

var bridgedTopics = []bus.Topic{
	bus.TopicPanelChanged,
	bus.TopicConnectionState,
	bus.TopicConnectionLost,
	bus.TopicMessageReceived,
}

// UI owns the bubbletea program and presents it to the bootstrap
// coordinator. Bus signals and store changes are forwarded into the
// program as messages so the model is only touched by the event loop.
type UI struct {
	bus         *bus.Bus
	logger      logging.Logger
	program     *tea.Program
	initialized atomic.Bool
	unsubs      []func()
}

func NewUI(opts Options, programOpts ...tea.ProgramOption) *UI {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	u := &UI{bus: opts.Bus, logger: logger}
	onReady := opts.OnReady
	opts.OnReady = func() {
		u.markReady()
		if onReady != nil {
			onReady()
		}
	}
	model := NewModel(opts)
	u.program = tea.NewProgram(model, programOpts...)

	for _, topic := range bridgedTopics {
		u.unsubs = append(u.unsubs, u.bus.Subscribe(topic, func(sig bus.Signal) {
			u.program.Send(signalMsg{sig: sig})
		}))
	}
	u.unsubs = append(u.unsubs, model.store.OnChange(func(field state.Field) {
		u.program.Send(storeChangedMsg{field: field})
	}))
	return u
}

// InitializeUI forces a layout pass. The coordinator calls it when the
// ready signal did not arrive in time and again on layout changes.
func (u *UI) InitializeUI() error {
	u.initialized.Store(true)
	u.program.Send(initializeMsg{})
	return nil
}

func (u *UI) Initialized() bool {
	return u.initialized.Load()
}

// Attach hands the open connection to the model for sending.
func (u *UI) Attach(sender Sender) {
	u.program.Send(attachSenderMsg{sender: sender})
}

// Run blocks until the program exits.
func (u *UI) Run() error {
	_, err := u.program.Run()
	return err
}

func (u *UI) Quit() {
	u.program.Quit()
}

func (u *UI) Dispose() {
	for _, unsub := range u.unsubs {
		unsub()
	}
	u.unsubs = nil
}

func (u *UI) markReady() {
	if u.initialized.Swap(true) {
		return
	}
	u.logger.Debug("ui_ready")
	u.bus.Publish(bus.UIReady())
}
