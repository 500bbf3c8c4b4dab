// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	freshStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	staleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true)
)

// View renders the session's step table.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.lastErr != nil {
		return warningStyle.Render(fmt.Sprintf("roar watch: %s", m.lastErr)) + "\n"
	}
	if m.sessionHash == "" {
		return m.spin.View() + dimStyle.Render(" waiting for an active session...") + "\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("session %s", shortHash(m.sessionHash))))
	b.WriteString("\n\n")

	if m.gitWarning != "" {
		b.WriteString(warningStyle.Render(m.gitWarning))
		b.WriteString("\n\n")
	}

	if len(m.rows) == 0 {
		b.WriteString(dimStyle.Render("no steps recorded yet"))
		b.WriteString("\n")
		return b.String()
	}

	for _, row := range m.rows {
		b.WriteString(renderRow(row))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("q to quit"))
	b.WriteString("\n")
	return b.String()
}

func renderRow(row Row) string {
	badge := freshStyle.Render("fresh")
	if row.Badge == BadgeStale {
		badge = staleStyle.Render("stale")
	}
	name := row.Name
	if name == "" {
		name = row.Command
	}
	return fmt.Sprintf("  @%-3d %-8s %-40s %s",
		row.StepNumber, badge, truncate(name, 40), dimStyle.Render(fmt.Sprintf("%d outputs", row.Outputs)))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}
