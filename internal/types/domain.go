package types

import (
	"strings"
	"time"
)

type Domain string

const (
	DomainEvents   Domain = "events"
	DomainTasks    Domain = "tasks"
	DomainProjects Domain = "projects"
)

var AllDomains = []Domain{DomainEvents, DomainTasks, DomainProjects}

func ParseDomain(raw string) (Domain, bool) {
	switch Domain(strings.ToLower(strings.TrimSpace(raw))) {
	case DomainEvents:
		return DomainEvents, true
	case DomainTasks:
		return DomainTasks, true
	case DomainProjects:
		return DomainProjects, true
	default:
		return "", false
	}
}

type Event struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Location string     `json:"location,omitempty"`
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
}

func (e Event) EntityID() string { return e.ID }

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

type Task struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Status    TaskStatus `json:"status,omitempty"`
	ProjectID string     `json:"project_id,omitempty"`
	Due       *time.Time `json:"due,omitempty"`
}

func (t Task) EntityID() string { return t.ID }

type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p Project) EntityID() string { return p.ID }
