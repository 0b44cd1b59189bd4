package styles

import (
	"os"

	"github.com/charmbracelet/lipgloss/v2"
)

// EnvNoColor disables every colour when set to any value.
const EnvNoColor = "PERFASM_NO_COLOR"

func NoColor() bool {
	return os.Getenv(EnvNoColor) != ""
}

// Theme holds the lipgloss styles of the assembly view.
type Theme struct {
	Title      lipgloss.Style
	Header     lipgloss.Style
	Cursor     lipgloss.Style
	Callee     lipgloss.Style
	Register   lipgloss.Style
	Match      lipgloss.Style
	Diagnostic lipgloss.Style
	Address    lipgloss.Style
	Menu       lipgloss.Style
	Status     lipgloss.Style
	CostHot    lipgloss.Style
	CostWarm   lipgloss.Style
	CostCold   lipgloss.Style
}

// CurrentTheme honours PERFASM_NO_COLOR.
func CurrentTheme() Theme {
	if NoColor() {
		return PlainTheme()
	}
	return DefaultTheme()
}

func DefaultTheme() Theme {
	return Theme{
		Title:      lipgloss.NewStyle().Foreground(lipgloss.Color("99")).MarginLeft(2),
		Header:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		Cursor:     lipgloss.NewStyle().Background(lipgloss.Color("237")),
		Callee:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Underline(true),
		Register:   lipgloss.NewStyle().Foreground(lipgloss.Color("81")),
		Match:      lipgloss.NewStyle().Background(lipgloss.Color("170")).Foreground(lipgloss.Color("0")),
		Diagnostic: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Address:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Menu: lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
		Status:   lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		CostHot:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		CostWarm: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		CostCold: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
}

// PlainTheme only uses attributes that survive a monochrome terminal.
func PlainTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{
		Title:      plain.MarginLeft(2),
		Header:     plain.Bold(true),
		Cursor:     plain.Reverse(true),
		Callee:     plain.Underline(true),
		Register:   plain,
		Match:      plain.Reverse(true),
		Diagnostic: plain.Bold(true),
		Address:    plain,
		Menu:       plain.Padding(0, 1),
		Status:     plain,
		CostHot:    plain.Bold(true),
		CostWarm:   plain,
		CostCold:   plain,
	}
}

// Cost picks the cost style for a percentage of the column total.
func (t Theme) Cost(pct float64) lipgloss.Style {
	switch {
	case pct >= 10:
		return t.CostHot
	case pct >= 1:
		return t.CostWarm
	}
	return t.CostCold
}
