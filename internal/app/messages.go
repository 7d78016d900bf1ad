package app

import (
	tea "charm.land/bubbletea/v2"

	"cockpit/internal/bus"
	"cockpit/internal/state"
)

type signalMsg struct {
	sig bus.Signal
}

type storeChangedMsg struct {
	field state.Field
}

type attachSenderMsg struct {
	sender Sender
}

// initializeMsg asks the model to recompute its layout from scratch.
type initializeMsg struct{}

type sendResultMsg struct {
	err error
}

type agentRefreshMsg struct {
	err error
}

func publishCmd(b *bus.Bus, sig bus.Signal) tea.Cmd {
	if b == nil {
		return nil
	}
	return func() tea.Msg {
		b.Publish(sig)
		return nil
	}
}
