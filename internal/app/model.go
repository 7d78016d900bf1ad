package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	xansi "github.com/charmbracelet/x/ansi"

	"cockpit/internal/bus"
	"cockpit/internal/logging"
	"cockpit/internal/state"
	"cockpit/internal/types"
)

const (
	minPanelWidth     = 24
	maxPanelWidth     = 48
	agentRefreshLimit = 10 * time.Second
)

var errNotConnected = errors.New("not connected yet")

// Sender delivers chat text to the backend. conn.Handle satisfies it.
type Sender interface {
	Send(text string) error
}

type AgentRefresher interface {
	FetchAgentInfo(ctx context.Context) error
}

type Options struct {
	Store     *state.Store
	Bus       *bus.Bus
	Refresher AgentRefresher
	Logger    logging.Logger
	// OnReady runs once, after the first window size is known.
	OnReady func()
}

type chatRole uint8

const (
	chatRoleUser chatRole = iota
	chatRoleAgent
	chatRoleSystem
)

type chatLine struct {
	role chatRole
	text string
}

type Model struct {
	store     *state.Store
	bus       *bus.Bus
	refresher AgentRefresher
	logger    logging.Logger
	onReady   func()
	sender    Sender

	viewport viewport.Model
	input    textinput.Model
	styles   styles
	dark     bool
	markdown *markdownRenderer

	width     int
	height    int
	sized     bool
	compact   bool
	panel     types.Panel
	connState types.ConnectionState
	lines     []chatLine
	toast     string
	toastErr  bool
}

func NewModel(opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	store := opts.Store
	if store == nil {
		store = state.New(state.Options{DarkTheme: true})
	}
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "message"
	input.Focus()

	dark := store.IsDarkTheme()
	return &Model{
		store:     store,
		bus:       opts.Bus,
		refresher: opts.Refresher,
		logger:    logger,
		onReady:   opts.OnReady,
		viewport:  viewport.New(),
		input:     input,
		styles:    newStyles(dark),
		dark:      dark,
		markdown:  newMarkdownRenderer(),
	}
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m, m.resize(msg.Width, msg.Height)
	case tea.KeyPressMsg:
		return m, m.handleKey(msg)
	case signalMsg:
		m.applySignal(msg.sig)
		return m, nil
	case storeChangedMsg:
		m.applyStoreChange(msg.field)
		return m, nil
	case attachSenderMsg:
		m.sender = msg.sender
		return m, nil
	case initializeMsg:
		m.relayout()
		return m, nil
	case sendResultMsg:
		if msg.err != nil {
			m.setToast("send failed: "+msg.err.Error(), true)
		}
		return m, nil
	case agentRefreshMsg:
		if msg.err != nil {
			m.setToast("agent info: "+msg.err.Error(), true)
		} else {
			m.setToast("agent info refreshed", false)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

func (m *Model) resize(width, height int) tea.Cmd {
	m.width, m.height = width, height
	m.relayout()
	cmds := []tea.Cmd{publishCmd(m.bus, bus.ViewportResized(width))}
	if !m.sized {
		m.sized = true
		if ready := m.onReady; ready != nil {
			cmds = append(cmds, func() tea.Msg {
				ready()
				return nil
			})
		}
	}
	return tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		return tea.Quit
	case "ctrl+e":
		return publishCmd(m.bus, bus.PanelToggle(types.PanelEvents))
	case "ctrl+t":
		return publishCmd(m.bus, bus.PanelToggle(types.PanelTasks))
	case "ctrl+y":
		m.copySessionID()
		return nil
	case "ctrl+r":
		return m.refreshAgentInfo()
	case "ctrl+l":
		m.compact = !m.compact
		m.relayout()
		return publishCmd(m.bus, bus.LayoutChanged())
	case "enter":
		return m.submit()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	if m.sender == nil {
		m.setToast("send failed: "+errNotConnected.Error(), true)
		return nil
	}
	m.input.Reset()
	m.appendLine(chatRoleUser, text)
	sender := m.sender
	return func() tea.Msg {
		return sendResultMsg{err: sender.Send(text)}
	}
}

func (m *Model) refreshAgentInfo() tea.Cmd {
	if m.refresher == nil {
		return nil
	}
	refresher := m.refresher
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), agentRefreshLimit)
		defer cancel()
		return agentRefreshMsg{err: refresher.FetchAgentInfo(ctx)}
	}
}

func (m *Model) copySessionID() {
	id := m.store.SessionID()
	if id == "" {
		m.setToast("no session yet", true)
		return
	}
	method, err := copyTextToClipboard(id)
	if err != nil {
		m.logger.Warn("clipboard_copy_failed", logging.F("error", err))
		m.setToast("copy failed: "+err.Error(), true)
		return
	}
	m.logger.Debug("clipboard_copied", logging.F("method", method.String()))
	m.setToast("session id copied", false)
}

func (m *Model) applySignal(sig bus.Signal) {
	switch sig.Topic {
	case bus.TopicPanelChanged:
		m.panel = sig.Panel
		m.relayout()
	case bus.TopicConnectionState:
		m.connState = sig.State
	case bus.TopicConnectionLost:
		text := "connection lost"
		if sig.Err != nil {
			text += ": " + sig.Err.Error()
		}
		m.appendLine(chatRoleSystem, text)
		m.setToast(text, true)
	case bus.TopicMessageReceived:
		m.receive(sig.Payload)
	}
}

// receive shows the text of an inbound frame. Frames that only carry agent
// info are reflected in the status bar and skipped here.
func (m *Model) receive(payload json.RawMessage) {
	var plain string
	if json.Unmarshal(payload, &plain) == nil {
		if text := strings.TrimSpace(xansi.Strip(plain)); text != "" {
			m.appendLine(chatRoleAgent, text)
		}
		return
	}
	var msg types.InboundMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		m.appendLine(chatRoleSystem, xansi.Strip(string(payload)))
		return
	}
	if text := strings.TrimSpace(xansi.Strip(msg.Text)); text != "" {
		m.appendLine(chatRoleAgent, text)
		return
	}
	if _, ok := msg.AgentInfo(); ok {
		return
	}
	m.appendLine(chatRoleSystem, xansi.Strip(string(payload)))
}

func (m *Model) applyStoreChange(field state.Field) {
	if field != state.FieldDarkTheme {
		return
	}
	dark := m.store.IsDarkTheme()
	if dark == m.dark {
		return
	}
	m.dark = dark
	m.styles = newStyles(dark)
	m.refreshTranscript()
}

func (m *Model) appendLine(role chatRole, text string) {
	m.lines = append(m.lines, chatLine{role: role, text: text})
	m.refreshTranscript()
}

func (m *Model) setToast(text string, isErr bool) {
	m.toast = text
	m.toastErr = isErr
}

func (m *Model) panelWidth() int {
	if m.panel == types.PanelNone || m.width <= 0 {
		return 0
	}
	w := m.width / 3
	if w < minPanelWidth {
		w = minPanelWidth
	}
	if w > maxPanelWidth {
		w = maxPanelWidth
	}
	if w >= m.width {
		return 0
	}
	return w
}

func (m *Model) chromeHeight() int {
	// header, input, footer
	h := 3
	if !m.compact {
		h++
	}
	return h
}

func (m *Model) bodyHeight() int {
	h := m.height - m.chromeHeight()
	if h < 1 {
		return 1
	}
	return h
}

func (m *Model) relayout() {
	chatWidth := m.width - m.panelWidth()
	if chatWidth < 1 {
		chatWidth = 1
	}
	m.viewport.SetWidth(chatWidth)
	m.viewport.SetHeight(m.bodyHeight())
	inputWidth := m.width - lipgloss.Width(m.input.Prompt) - 1
	if inputWidth < 1 {
		inputWidth = 1
	}
	m.input.SetWidth(inputWidth)
	m.refreshTranscript()
}

func (m *Model) refreshTranscript() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}
