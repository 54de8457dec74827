package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/aescanero/assetforge/pkg/domain"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	statusStyles = map[domain.StepStatus]lipgloss.Style{
		domain.StepStatusCompleted: successStyle,
		domain.StepStatusFailed:    failStyle,
		domain.StepStatusSkipped:   warnStyle,
		domain.StepStatusCancelled: warnStyle,
		domain.StepStatusPending:   mutedStyle,
		domain.StepStatusRunning:   mutedStyle,
	}
)

const (
	nameWidth     = 12
	statusWidth   = 11
	retriesWidth  = 8
	durationWidth = 10
)

// renderSummary formats a run snapshot as a table followed by totals
func renderSummary(snap *domain.RunSnapshot) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Pipeline run " + snap.RunID))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render(row("STEP", "STATUS", "RETRIES", "DURATION", "DETAIL")))
	b.WriteString("\n")

	for _, st := range snap.Steps {
		style, ok := statusStyles[st.Status]
		if !ok {
			style = mutedStyle
		}
		duration := "-"
		if st.StartTime != nil && st.EndTime != nil {
			duration = st.Duration().Round(time.Millisecond).String()
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			cell(st.Name.String(), nameWidth),
			style.Width(statusWidth).Render(string(st.Status)),
			cell(fmt.Sprintf("%d", st.RetryCount), retriesWidth),
			cell(duration, durationWidth),
			st.ErrorMessage,
		))
		b.WriteString("\n")
	}

	s := snap.Summary
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%d steps: %d completed, %d failed, %d skipped, %d cancelled\n",
		s.Total, s.Completed, s.Failed, s.Skipped, s.Cancelled))

	switch {
	case snap.Error != "":
		b.WriteString(failStyle.Render("Run " + string(snap.Status) + ": " + snap.Error))
	case snap.Success:
		b.WriteString(successStyle.Render("Run " + string(snap.Status)))
	default:
		b.WriteString(failStyle.Render("Run " + string(snap.Status) + " with failures"))
	}
	b.WriteString("\n")

	return b.String()
}

func row(name, status, retries, duration, detail string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		cell(name, nameWidth),
		cell(status, statusWidth),
		cell(retries, retriesWidth),
		cell(duration, durationWidth),
		detail,
	)
}

func cell(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}
