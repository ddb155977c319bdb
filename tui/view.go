package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/yllada/claw-manager/common"
	"github.com/yllada/claw-manager/gateway"
)

// headerHeight is the rows used above the log viewport.
const headerHeight = 7

var (
	colorPrimary = lipgloss.Color("39")
	colorSuccess = lipgloss.Color("42")
	colorWarning = lipgloss.Color("220")
	colorError   = lipgloss.Color("196")
	colorDim     = lipgloss.Color("241")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	onlineStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	busyStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorWarning)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	offlineStyle = lipgloss.NewStyle().Bold(true).Foreground(colorDim)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)

	logBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim)
)

func stateStyle(st gateway.State) lipgloss.Style {
	switch st {
	case gateway.StateOnline:
		return onlineStyle
	case gateway.StateStarting, gateway.StateStopping:
		return busyStyle
	case gateway.StateError:
		return errorStyle
	default:
		return offlineStyle
	}
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(common.AppName))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(m.endpoint.BaseURL))
	b.WriteString("\n\n")

	badge := stateStyle(m.state).Render(strings.ToUpper(m.state.String()))
	if m.state.Busy() || m.busyOp != "" {
		badge = m.spinner.View() + " " + badge
	}
	b.WriteString(badge)
	b.WriteString("  ")
	b.WriteString(m.statusText)
	b.WriteString("\n")

	if m.lastErr != nil {
		b.WriteString(errorStyle.Render("error: " + m.lastErr.Error()))
	}
	b.WriteString("\n")

	b.WriteString(logBoxStyle.Render(m.viewport.View()))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.helpLine()))
	return b.String()
}

func (m model) helpLine() string {
	keys := []string{"s start", "x stop", "r restart", "c check"}
	if m.opts.Open != nil {
		keys = append(keys, "o open web")
	}
	keys = append(keys, "↑/↓ scroll", "q quit")
	return strings.Join(keys, " · ")
}
