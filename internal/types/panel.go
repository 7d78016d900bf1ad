package types

import "strings"

type Panel int

const (
	PanelNone Panel = iota
	PanelEvents
	PanelTasks
)

func (p Panel) String() string {
	switch p {
	case PanelEvents:
		return "events"
	case PanelTasks:
		return "tasks"
	default:
		return "none"
	}
}

func ParsePanel(raw string) (Panel, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "events":
		return PanelEvents, true
	case "tasks":
		return PanelTasks, true
	case "", "none":
		return PanelNone, true
	default:
		return PanelNone, false
	}
}

// Domains lists the caches a panel reads from. The first entry is the
// panel's primary cache.
func (p Panel) Domains() []Domain {
	switch p {
	case PanelEvents:
		return []Domain{DomainEvents}
	case PanelTasks:
		return []Domain{DomainTasks, DomainProjects}
	default:
		return nil
	}
}
