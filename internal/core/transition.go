package core

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Severity is the visual weight given to a health color.
type Severity int

const (
	SeverityNeutral Severity = iota
	SeverityPositive
	SeverityCautionary
	SeverityNegative
)

func (s Severity) String() string {
	switch s {
	case SeverityPositive:
		return "positive"
	case SeverityCautionary:
		return "cautionary"
	case SeverityNegative:
		return "negative"
	default:
		return "neutral"
	}
}

// SeverityOf maps a health color to a severity. Unknown and absent colors are neutral.
func SeverityOf(c Color) Severity {
	switch c {
	case ColorGreen:
		return SeverityPositive
	case ColorYellow:
		return SeverityCautionary
	case ColorRed:
		return SeverityNegative
	default:
		return SeverityNeutral
	}
}

// StyleFunc renders text with the given severity.
type StyleFunc func(sev Severity, text string) string

// PlainStyle returns text unchanged.
func PlainStyle(_ Severity, text string) string { return text }

var (
	severityStyles = map[Severity]lipgloss.Style{
		SeverityNeutral:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		SeverityPositive:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		SeverityCautionary: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		SeverityNegative:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
	envStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// TerminalStyle colors text for a terminal sink.
func TerminalStyle(sev Severity, text string) string {
	return severityStyles[sev].Render(text)
}

// TransitionFunc is invoked by the poller for each observed health change.
type TransitionFunc func(env Environment, previous, current HealthSnapshot) string

// FormatTransition renders the one-line transition message.
func FormatTransition(env string, previous, current HealthSnapshot, style StyleFunc) string {
	if style == nil {
		style = PlainStyle
	}
	prev := SeverityOf(previous.Color)
	cur := SeverityOf(current.Color)
	return fmt.Sprintf("Environment %s transitioned from %s(%s) to %s(%s)",
		env,
		style(prev, previous.HealthStatus), style(prev, previous.Status),
		style(cur, current.HealthStatus), style(cur, current.Status))
}

// NewTransitionLogger returns a TransitionFunc writing colored lines to logger.
func NewTransitionLogger(logger zerolog.Logger) TransitionFunc {
	return func(env Environment, previous, current HealthSnapshot) string {
		name := env.Name()
		styled := FormatTransition(envStyle.Render(name), previous, current, TerminalStyle)
		logger.Info().
			Str("environment", name).
			Str("health", current.HealthStatus).
			Str("status", current.Status).
			Str("severity", SeverityOf(current.Color).String()).
			Msg(styled)
		return FormatTransition(name, previous, current, PlainStyle)
	}
}

// LogTransition logs through the global logger and returns the plain message.
func LogTransition(env Environment, previous, current HealthSnapshot) string {
	return NewTransitionLogger(log.Logger)(env, previous, current)
}
