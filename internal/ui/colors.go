package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Semantic colors use the basic ANSI palette so they follow the user's
// terminal theme.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors: table text, upload spinner and secondary detail.
const (
	ColorPrimary   lipgloss.Color = "7"
	ColorSecondary lipgloss.Color = "4"
	ColorMuted     lipgloss.Color = "8"
)

// Accent colors for spinners and headings.
const (
	ColorAccentPink   lipgloss.Color = "#ff2e97"
	ColorAccentPurple lipgloss.Color = "#b967ff"
	ColorAccentCyan   lipgloss.Color = "#00e5ff"
	ColorAccentGreen  lipgloss.Color = "#05ffa1"
)

// GradientColors is the cycle a Track spinner walks through, one color
// per frame.
var GradientColors = []lipgloss.Color{
	ColorAccentPink,
	ColorAccentPurple,
	ColorAccentCyan,
	ColorAccentGreen,
}

func SuccessStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorSuccess) }
func ErrorStyle() lipgloss.Style   { return lipgloss.NewStyle().Foreground(ColorError) }
func WarningStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorWarning) }
func InfoStyle() lipgloss.Style    { return lipgloss.NewStyle().Foreground(ColorInfo) }
func MutedStyle() lipgloss.Style   { return lipgloss.NewStyle().Foreground(ColorMuted) }

// DisableColors switches all styles to plain text (--no-color, NO_COLOR).
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
