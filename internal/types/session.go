package types

type Session struct {
	ID        string `json:"id"`
	Ephemeral bool   `json:"ephemeral,omitempty"`
}
