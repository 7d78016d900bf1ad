package types

import "strings"

type AgentInfo struct {
	AgentName string `json:"agentName,omitempty"`
	Model     string `json:"model,omitempty"`
}

func (a AgentInfo) IsZero() bool {
	return strings.TrimSpace(a.AgentName) == "" && strings.TrimSpace(a.Model) == ""
}

type TaskAPIConfig struct {
	Endpoint       string `json:"endpoint,omitempty" toml:"endpoint"`
	APIKey         string `json:"api_key,omitempty" toml:"api_key"`
	DefaultProject string `json:"default_project,omitempty" toml:"default_project"`
}
