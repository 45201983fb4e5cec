package form

import (
	"fmt"
	"strings"

	"diabetes-risk/internal/assess"
	"diabetes-risk/internal/features"
	"diabetes-risk/internal/present"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorAccent   = lipgloss.Color("39")
	colorPositive = lipgloss.Color("196")
	colorNegative = lipgloss.Color("42")
	colorMuted    = lipgloss.Color("241")
	colorWarning  = lipgloss.Color("214")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	resultBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	positiveBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPositive)

	negativeBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorNegative)

	errorBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPositive).
			Foreground(colorPositive).
			Padding(0, 1)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)
)

// RenderHeader renders the title, intro and disclaimer shown above the form.
func RenderHeader() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(present.Title))
	b.WriteString("\n")
	b.WriteString(present.Intro)
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(present.Disclaimer))
	return b.String()
}

// RenderResult renders a successful prediction. Diabetes is shown in red,
// No Diabetes in green.
func RenderResult(p present.Presentation) string {
	badge, border := negativeBadge, colorNegative
	if p.Positive {
		badge, border = positiveBadge, colorPositive
	}

	lines := []string{
		titleStyle.Render(p.Headline()),
		badge.Render(p.Label),
		"Confidence: " + p.ConfidenceText(),
		"Diabetes Risk Probability: " + p.RiskText(),
	}
	return resultBox.BorderForeground(border).Render(strings.Join(lines, "\n"))
}

// RenderError renders the message of a failed assessment.
func RenderError(err *assess.UserError) string {
	return errorBox.Render(err.Display())
}

// RenderOutcome renders whichever of result or error the outcome carries.
func RenderOutcome(out assess.Outcome) string {
	if out.Err != nil {
		return RenderError(out.Err)
	}
	if out.Presentation == nil {
		return RenderError(&assess.UserError{Kind: assess.KindInference, Message: "no prediction produced"})
	}
	s := RenderResult(*out.Presentation)
	if out.RequestID != "" {
		s += "\n" + mutedStyle.Render("request "+out.RequestID)
	}
	return s
}

// RenderModelNotFound renders the one-time startup failure for a missing artifact.
func RenderModelNotFound(path string) string {
	return errorBox.Render(present.ModelNotFound(path))
}

// fieldDescription is the help line under each input.
func fieldDescription(f features.FeatureSpec) string {
	if !f.RangeChecked {
		return fmt.Sprintf("%s, must not be negative", f.Help)
	}
	return fmt.Sprintf("%s, accepted %s", f.Help, f.RangeText())
}
