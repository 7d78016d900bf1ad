package types

import "encoding/json"

const OutboundTypeMessage = "message"

// InboundMessage is the subset of a backend frame the client interprets.
// Everything else stays in Raw and is forwarded untouched.
type InboundMessage struct {
	Type      string          `json:"type,omitempty"`
	AgentName string          `json:"agentName,omitempty"`
	Model     string          `json:"model,omitempty"`
	Text      string          `json:"text,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

func (m InboundMessage) AgentInfo() (AgentInfo, bool) {
	info := AgentInfo{AgentName: m.AgentName, Model: m.Model}
	return info, !info.IsZero()
}

type OutboundMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
}
