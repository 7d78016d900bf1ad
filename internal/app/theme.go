package app

import (
	"charm.land/lipgloss/v2"

	"cockpit/internal/types"
)

type styles struct {
	header       lipgloss.Style
	status       lipgloss.Style
	help         lipgloss.Style
	user         lipgloss.Style
	agent        lipgloss.Style
	system       lipgloss.Style
	panelFrame   lipgloss.Style
	panelTitle   lipgloss.Style
	muted        lipgloss.Style
	toastInfo    lipgloss.Style
	toastError   lipgloss.Style
	stateOpen    lipgloss.Style
	stateWaiting lipgloss.Style
	stateClosed  lipgloss.Style
}

// newStyles builds the palette for a dark or light terminal background.
func newStyles(dark bool) styles {
	c := lipgloss.LightDark(dark)
	fg := c(lipgloss.Color("236"), lipgloss.Color("252"))
	dim := c(lipgloss.Color("243"), lipgloss.Color("245"))
	accent := c(lipgloss.Color("25"), lipgloss.Color("63"))
	return styles{
		header:       lipgloss.NewStyle().Bold(true).Foreground(accent),
		status:       lipgloss.NewStyle().Foreground(dim),
		help:         lipgloss.NewStyle().Foreground(c(lipgloss.Color("246"), lipgloss.Color("241"))),
		user:         lipgloss.NewStyle().Foreground(c(lipgloss.Color("24"), lipgloss.Color("117"))).Bold(true),
		agent:        lipgloss.NewStyle().Foreground(fg),
		system:       lipgloss.NewStyle().Foreground(dim).Italic(true),
		panelFrame:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(c(lipgloss.Color("250"), lipgloss.Color("238"))).Padding(0, 1),
		panelTitle:   lipgloss.NewStyle().Bold(true).Foreground(accent),
		muted:        lipgloss.NewStyle().Foreground(dim).Faint(true),
		toastInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("29")).Bold(true),
		toastError:   lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("160")).Bold(true),
		stateOpen:    lipgloss.NewStyle().Foreground(lipgloss.Color("70")),
		stateWaiting: lipgloss.NewStyle().Foreground(lipgloss.Color("179")),
		stateClosed:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
	}
}

func (s styles) connectionState(state types.ConnectionState) lipgloss.Style {
	switch state {
	case types.ConnectionOpen:
		return s.stateOpen
	case types.ConnectionConnecting, types.ConnectionReconnecting:
		return s.stateWaiting
	default:
		return s.stateClosed
	}
}
