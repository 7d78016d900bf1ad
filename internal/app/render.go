package app

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	xansi "github.com/charmbracelet/x/ansi"

	"cockpit/internal/state"
	"cockpit/internal/types"
)

const helpText = "enter send · ctrl+e events · ctrl+t tasks · ctrl+y copy session · ctrl+r agent · ctrl+l layout · ctrl+c quit"

func (m *Model) render() string {
	body := m.viewport.View()
	if w := m.panelWidth(); w > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.renderPanel(w, m.bodyHeight()))
	}
	rows := []string{m.renderHeader(), body, m.input.View(), m.renderFooter()}
	if !m.compact {
		rows = append(rows, m.styles.help.Render(m.truncate(helpText)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *Model) renderHeader() string {
	view := m.store.View()
	agent := view.CurrentAgentName
	if agent == "" {
		agent = "agent"
	}
	parts := []string{m.styles.header.Render("cockpit"), m.styles.agent.Render(agent)}
	if view.CurrentModel != "" {
		parts = append(parts, view.CurrentModel)
	}
	parts = append(parts, m.styles.connectionState(m.connState).Render("● "+m.connState.String()))
	if view.SessionID != "" {
		session := "session " + view.SessionID
		if view.SessionEphemeral {
			session += " (ephemeral)"
		}
		parts = append(parts, m.styles.status.Render(session))
	}
	return m.truncate(strings.Join(parts, "  "))
}

func (m *Model) renderFooter() string {
	if m.toast == "" {
		return ""
	}
	style := m.styles.toastInfo
	if m.toastErr {
		style = m.styles.toastError
	}
	return style.Render(m.truncate(" " + m.toast + " "))
}

func (m *Model) renderTranscript() string {
	if len(m.lines) == 0 {
		return m.styles.muted.Render("no messages yet")
	}
	out := make([]string, 0, len(m.lines))
	for _, line := range m.lines {
		switch line.role {
		case chatRoleUser:
			out = append(out, m.styles.user.Render("you: ")+line.text)
		case chatRoleAgent:
			out = append(out, m.markdown.Render(line.text, m.viewport.Width(), m.dark))
		default:
			out = append(out, m.styles.system.Render(line.text))
		}
	}
	return strings.Join(out, "\n")
}

func (m *Model) renderPanel(width, height int) string {
	inner := width - 4
	if inner < 1 {
		inner = 1
	}
	var lines []string
	switch m.panel {
	case types.PanelEvents:
		lines = append(lines, m.styles.panelTitle.Render("Events"))
		lines = append(lines, eventLines(m.store.Events().Snapshot())...)
	case types.PanelTasks:
		lines = append(lines, m.styles.panelTitle.Render("Tasks"))
		lines = append(lines, taskLines(m.store.Tasks().Snapshot())...)
		lines = append(lines, "", m.styles.panelTitle.Render("Projects"))
		lines = append(lines, projectLines(m.store.Projects().Snapshot())...)
	}
	for i, line := range lines {
		lines[i] = xansi.Truncate(line, inner, "…")
	}
	return m.styles.panelFrame.Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func eventLines(snap state.Snapshot[types.Event]) []string {
	if placeholder, ok := emptyPlaceholder(snap.Cleared(), len(snap.Items), "no events"); ok {
		return []string{placeholder}
	}
	out := make([]string, 0, len(snap.Items))
	for _, e := range snap.Items {
		line := "• " + e.Title
		if e.Start != nil {
			line = fmt.Sprintf("• %s %s", e.Start.Local().Format("Jan 2 15:04"), e.Title)
		}
		out = append(out, line)
	}
	return out
}

func taskLines(snap state.Snapshot[types.Task]) []string {
	if placeholder, ok := emptyPlaceholder(snap.Cleared(), len(snap.Items), "no tasks"); ok {
		return []string{placeholder}
	}
	out := make([]string, 0, len(snap.Items))
	for _, t := range snap.Items {
		out = append(out, taskMarker(t.Status)+" "+t.Title)
	}
	return out
}

func projectLines(snap state.Snapshot[types.Project]) []string {
	if placeholder, ok := emptyPlaceholder(snap.Cleared(), len(snap.Items), "no projects"); ok {
		return []string{placeholder}
	}
	out := make([]string, 0, len(snap.Items))
	for _, p := range snap.Items {
		out = append(out, "· "+p.Name)
	}
	return out
}

func emptyPlaceholder(cleared bool, n int, empty string) (string, bool) {
	switch {
	case cleared:
		return "loading…", true
	case n == 0:
		return empty, true
	default:
		return "", false
	}
}

func taskMarker(status types.TaskStatus) string {
	switch status {
	case types.TaskStatusDone:
		return "[x]"
	case types.TaskStatusInProgress:
		return "[~]"
	default:
		return "[ ]"
	}
}

func (m *Model) truncate(s string) string {
	if m.width <= 0 {
		return s
	}
	return xansi.Truncate(s, m.width, "…")
}
