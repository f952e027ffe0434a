// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tbernier/docroute/internal/model"
)

var (
	// SuccessColor indicates successful operations.
	SuccessColor = lipgloss.Color("#4ECDC4")
	// WarningColor indicates warnings or review routing.
	WarningColor = lipgloss.Color("#FFE66D")
	// ErrorColor indicates errors or failure routing.
	ErrorColor = lipgloss.Color("#FF6B6B")
	// SubtleColor indicates less prominent output.
	SubtleColor = lipgloss.Color("#666666")

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(SuccessColor)

	// SuccessStyle formats success messages.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	// WarningStyle formats warning messages.
	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠"
)

// FormatRoute renders a route outcome with its color and icon.
func FormatRoute(route model.Route) string {
	switch route {
	case model.RouteClassified:
		return SuccessStyle.Render(SuccessIcon + " " + string(route))
	case model.RouteNeedsReview:
		return WarningStyle.Render(WarningIcon + " " + string(route))
	case model.RouteFailed:
		return ErrorStyle.Render(ErrorIcon + " " + string(route))
	default:
		return string(route)
	}
}

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// Subtle formats secondary text.
func Subtle(message string) string {
	return SubtleStyle.Render(message)
}
