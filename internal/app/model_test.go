package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "charm.land/bubbletea/v2"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cockpit/internal/bus"
	"cockpit/internal/state"
	"cockpit/internal/types"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *recordingSender) Send(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return s.err
}

type countingRefresher struct {
	calls int
	err   error
}

func (r *countingRefresher) FetchAgentInfo(context.Context) error {
	r.calls++
	return r.err
}

type fixture struct {
	model   *Model
	bus     *bus.Bus
	store   *state.Store
	signals []bus.Signal
	ready   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{bus: bus.New(nil), store: state.New(state.Options{DarkTheme: true})}
	for _, topic := range []bus.Topic{bus.TopicViewportResized, bus.TopicPanelToggle, bus.TopicLayoutChanged} {
		f.bus.Subscribe(topic, func(sig bus.Signal) { f.signals = append(f.signals, sig) })
	}
	f.model = NewModel(Options{
		Store:   f.store,
		Bus:     f.bus,
		OnReady: func() { f.ready++ },
	})
	return f
}

// run executes cmd and every command it expands into, feeding resulting
// messages back into the model.
func (f *fixture) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case nil:
	case tea.BatchMsg:
		for _, c := range msg {
			f.run(c)
		}
	default:
		_, next := f.model.Update(msg)
		f.run(next)
	}
}

func (f *fixture) update(msg tea.Msg) {
	_, cmd := f.model.Update(msg)
	f.run(cmd)
}

func (f *fixture) key(code rune, mod tea.KeyMod) {
	f.update(tea.KeyPressMsg{Code: code, Mod: mod})
}

func (f *fixture) topics() []bus.Topic {
	out := make([]bus.Topic, 0, len(f.signals))
	for _, sig := range f.signals {
		out = append(out, sig.Topic)
	}
	return out
}

func TestFirstResizeReportsReadyOnce(t *testing.T) {
	f := newFixture(t)

	f.update(tea.WindowSizeMsg{Width: 120, Height: 40})
	f.update(tea.WindowSizeMsg{Width: 90, Height: 40})

	assert.Equal(t, 1, f.ready)
	require.Len(t, f.signals, 2)
	assert.Equal(t, bus.TopicViewportResized, f.signals[0].Topic)
	assert.Equal(t, 120, f.signals[0].Width)
	assert.Equal(t, 90, f.signals[1].Width)
}

func TestPanelKeysPublishToggle(t *testing.T) {
	f := newFixture(t)

	f.key('e', tea.ModCtrl)
	f.key('t', tea.ModCtrl)

	require.Len(t, f.signals, 2)
	assert.Equal(t, types.PanelEvents, f.signals[0].Panel)
	assert.Equal(t, types.PanelTasks, f.signals[1].Panel)
}

func TestPanelChangedShowsPanel(t *testing.T) {
	f := newFixture(t)
	f.update(tea.WindowSizeMsg{Width: 120, Height: 30})
	f.store.Tasks().Set([]types.Task{{ID: "t1", Title: "Write report", Status: types.TaskStatusDone}})

	f.update(signalMsg{sig: bus.PanelChanged(types.PanelTasks)})

	out := f.model.render()
	assert.Contains(t, out, "Tasks")
	assert.Contains(t, out, "[x] Write report")
	assert.Contains(t, out, "Projects")

	f.update(signalMsg{sig: bus.PanelChanged(types.PanelNone)})
	assert.NotContains(t, f.model.render(), "Write report")
}

func TestClearedPanelShowsLoading(t *testing.T) {
	f := newFixture(t)
	f.update(tea.WindowSizeMsg{Width: 120, Height: 30})
	f.store.Events().Set([]types.Event{{ID: "e1", Title: "Standup"}})
	f.store.ClearCache(types.DomainEvents)

	f.update(signalMsg{sig: bus.PanelChanged(types.PanelEvents)})

	out := f.model.render()
	assert.Contains(t, out, "loading…")
	assert.NotContains(t, out, "Standup")
}

func TestEnterSendsThroughAttachedSender(t *testing.T) {
	f := newFixture(t)
	sender := &recordingSender{}
	f.update(attachSenderMsg{sender: sender})
	f.model.input.SetValue("  hello there ")

	f.key(tea.KeyEnter, 0)

	assert.Equal(t, []string{"hello there"}, sender.sent)
	assert.Empty(t, f.model.input.Value())
	require.Len(t, f.model.lines, 1)
	assert.Equal(t, chatRoleUser, f.model.lines[0].role)
}

func TestEnterWithoutConnectionKeepsInput(t *testing.T) {
	f := newFixture(t)
	f.model.input.SetValue("hello")

	f.key(tea.KeyEnter, 0)

	assert.Equal(t, "hello", f.model.input.Value())
	assert.True(t, f.model.toastErr)
	assert.Contains(t, f.model.toast, "not connected")
}

func TestSendFailureShowsToast(t *testing.T) {
	f := newFixture(t)
	f.update(attachSenderMsg{sender: &recordingSender{err: errors.New("buffer full")}})
	f.model.input.SetValue("hello")

	f.key(tea.KeyEnter, 0)

	assert.True(t, f.model.toastErr)
	assert.Contains(t, f.model.toast, "buffer full")
}

func TestBlankInputIsIgnored(t *testing.T) {
	f := newFixture(t)
	sender := &recordingSender{}
	f.update(attachSenderMsg{sender: sender})
	f.model.input.SetValue("   ")

	f.key(tea.KeyEnter, 0)

	assert.Empty(t, sender.sent)
	assert.Empty(t, f.model.lines)
}

func TestInboundTextIsAppendedWithoutEscapes(t *testing.T) {
	f := newFixture(t)
	payload, err := json.Marshal(map[string]string{"text": "\x1b[31mhi\x1b[0m"})
	require.NoError(t, err)

	f.update(signalMsg{sig: bus.MessageReceived(payload)})

	require.Len(t, f.model.lines, 1)
	assert.Equal(t, chatLine{role: chatRoleAgent, text: "hi"}, f.model.lines[0])
}

func TestAgentInfoFrameOnlyUpdatesHeader(t *testing.T) {
	f := newFixture(t)
	f.store.SetAgentInfo("BETO", "gemini-2.5-pro")

	f.update(signalMsg{sig: bus.MessageReceived(json.RawMessage(`{"agentName":"BETO","model":"gemini-2.5-pro"}`))})

	assert.Empty(t, f.model.lines)
	header := f.model.renderHeader()
	assert.Contains(t, header, "BETO")
	assert.Contains(t, header, "gemini-2.5-pro")
}

func TestUnknownFrameIsShownRaw(t *testing.T) {
	f := newFixture(t)

	f.update(signalMsg{sig: bus.MessageReceived(json.RawMessage(`{"type":"typing"}`))})

	require.Len(t, f.model.lines, 1)
	assert.Equal(t, chatRoleSystem, f.model.lines[0].role)
	assert.Contains(t, f.model.lines[0].text, "typing")
}

func TestNonObjectFramesAreShown(t *testing.T) {
	f := newFixture(t)

	f.update(signalMsg{sig: bus.MessageReceived(json.RawMessage(`"plain text reply"`))})
	f.update(signalMsg{sig: bus.MessageReceived(json.RawMessage(`[{"id":"e1"}]`))})

	require.Len(t, f.model.lines, 2)
	assert.Equal(t, chatLine{role: chatRoleAgent, text: "plain text reply"}, f.model.lines[0])
	assert.Equal(t, chatLine{role: chatRoleSystem, text: `[{"id":"e1"}]`}, f.model.lines[1])
}

func TestConnectionSignalsReachStatus(t *testing.T) {
	f := newFixture(t)

	f.update(signalMsg{sig: bus.ConnectionState(types.ConnectionReconnecting)})
	assert.Contains(t, f.model.renderHeader(), types.ConnectionReconnecting.String())

	f.update(signalMsg{sig: bus.ConnectionLost(errors.New("3 attempts failed"))})
	assert.True(t, f.model.toastErr)
	require.Len(t, f.model.lines, 1)
	assert.Contains(t, f.model.lines[0].text, "3 attempts failed")
}

func TestCopySessionID(t *testing.T) {
	var copied string
	stubClipboard(t,
		func(text string) error {
			copied = text
			return nil
		},
		func(string) error { return errors.New("unused") },
	)
	f := newFixture(t)
	f.store.SetSession(types.Session{ID: "s1"})

	f.key('y', tea.ModCtrl)

	assert.Equal(t, "s1", copied)
	assert.False(t, f.model.toastErr)
	assert.Equal(t, "session id copied", f.model.toast)
}

func TestCopyWithoutSessionDoesNotTouchClipboard(t *testing.T) {
	called := false
	stubClipboard(t,
		func(string) error {
			called = true
			return nil
		},
		func(string) error { return nil },
	)
	f := newFixture(t)

	f.key('y', tea.ModCtrl)

	assert.False(t, called)
	assert.True(t, f.model.toastErr)
}

func TestRefreshAgentInfo(t *testing.T) {
	f := newFixture(t)
	refresher := &countingRefresher{}
	f.model.refresher = refresher

	f.key('r', tea.ModCtrl)

	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, "agent info refreshed", f.model.toast)
}

func TestCompactLayoutPublishesLayoutChange(t *testing.T) {
	f := newFixture(t)
	f.update(tea.WindowSizeMsg{Width: 200, Height: 30})
	f.signals = nil

	f.key('l', tea.ModCtrl)

	assert.True(t, f.model.compact)
	assert.Equal(t, []bus.Topic{bus.TopicLayoutChanged}, f.topics())
	assert.NotContains(t, f.model.render(), "ctrl+c quit")

	f.key('l', tea.ModCtrl)
	assert.False(t, f.model.compact)
	assert.Contains(t, f.model.render(), "ctrl+c quit")
}

func TestThemeChangeRebuildsStyles(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.model.dark)

	f.store.SetDarkTheme(false)
	f.update(storeChangedMsg{field: state.FieldDarkTheme})

	assert.False(t, f.model.dark)
}

func TestNarrowWindowHidesPanel(t *testing.T) {
	f := newFixture(t)
	f.update(tea.WindowSizeMsg{Width: 20, Height: 10})
	f.update(signalMsg{sig: bus.PanelChanged(types.PanelEvents)})

	assert.Equal(t, 0, f.model.panelWidth())
	for _, line := range strings.Split(f.model.renderHeader(), "\n") {
		assert.LessOrEqual(t, len([]rune(xansi.Strip(line))), 20)
	}
}

func TestCtrlCQuits(t *testing.T) {
	f := newFixture(t)
	_, cmd := f.model.Update(tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}
