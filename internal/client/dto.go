package client

import "cockpit/internal/types"

type HealthResponse struct {
	OK      bool   `json:"ok"`
	Version string `json:"version,omitempty"`
}

type EventsResponse struct {
	Events []types.Event `json:"events"`
}

type TasksResponse struct {
	Tasks []types.Task `json:"tasks"`
}

type ProjectsResponse struct {
	Projects []types.Project `json:"projects"`
}

type SendMessageResponse struct {
	OK bool `json:"ok"`
}
