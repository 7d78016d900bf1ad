package conn

import (
	"encoding/json"

	"cockpit/internal/types"
)

// Handle is what consumers keep after Open. It exposes sending, receiving
// and state without giving access to the transport.
type Handle struct {
	m         *Manager
	sessionID string
}

func (h *Handle) SessionID() string {
	return h.sessionID
}

// Send sends text as a chat message for the handle's session.
func (h *Handle) Send(text string) error {
	return h.m.Send(types.OutboundMessage{
		Type:      types.OutboundTypeMessage,
		SessionID: h.sessionID,
		Text:      text,
	})
}

func (h *Handle) OnMessage(fn func(json.RawMessage)) func() {
	return h.m.OnMessage(fn)
}

func (h *Handle) State() types.ConnectionState {
	return h.m.State()
}
