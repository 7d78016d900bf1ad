package bus

import (
	"encoding/json"

	"cockpit/internal/types"
)

type Topic string

const (
	TopicUIReady           Topic = "ui:ready"
	TopicLayoutChanged     Topic = "layout:changed"
	TopicPanelEventsOpened Topic = "panel:events-opened"
	TopicPanelTasksOpened  Topic = "panel:tasks-opened"
	TopicViewportResized   Topic = "viewport:resized"
	TopicPanelToggle       Topic = "panel:toggle"
	TopicPanelChanged      Topic = "panel:changed"
	TopicConnectionState   Topic = "connection:state"
	TopicConnectionLost    Topic = "connection:lost"
	TopicMessageReceived   Topic = "message:received"
)

// Signal is one published notification. Only the fields relevant to Topic
// are populated.
type Signal struct {
	Topic   Topic
	Width   int
	Panel   types.Panel
	State   types.ConnectionState
	Err     error
	Payload json.RawMessage
}

func UIReady() Signal       { return Signal{Topic: TopicUIReady} }
func LayoutChanged() Signal { return Signal{Topic: TopicLayoutChanged} }

func ViewportResized(width int) Signal {
	return Signal{Topic: TopicViewportResized, Width: width}
}

func PanelToggle(p types.Panel) Signal {
	return Signal{Topic: TopicPanelToggle, Panel: p}
}

func PanelChanged(p types.Panel) Signal {
	return Signal{Topic: TopicPanelChanged, Panel: p}
}

// PanelOpened returns the topic-specific open signal for p, or false for
// PanelNone.
func PanelOpened(p types.Panel) (Signal, bool) {
	switch p {
	case types.PanelEvents:
		return Signal{Topic: TopicPanelEventsOpened, Panel: p}, true
	case types.PanelTasks:
		return Signal{Topic: TopicPanelTasksOpened, Panel: p}, true
	default:
		return Signal{}, false
	}
}

func ConnectionState(state types.ConnectionState) Signal {
	return Signal{Topic: TopicConnectionState, State: state}
}

func ConnectionLost(err error) Signal {
	return Signal{Topic: TopicConnectionLost, State: types.ConnectionClosed, Err: err}
}

func MessageReceived(payload json.RawMessage) Signal {
	return Signal{Topic: TopicMessageReceived, Payload: payload}
}
