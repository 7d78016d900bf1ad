package types

type ConnectionState int

const (
	ConnectionClosed ConnectionState = iota
	ConnectionConnecting
	ConnectionOpen
	ConnectionReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionConnecting:
		return "connecting"
	case ConnectionOpen:
		return "open"
	case ConnectionReconnecting:
		return "reconnecting"
	default:
		return "closed"
	}
}
