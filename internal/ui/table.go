package ui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/korasi/korasi/internal/cloud"
)

// instanceColumns are the columns of the list command.
var instanceColumns = []table.Column{
	{Title: "NAME", Width: 18},
	{Title: "ID", Width: 21},
	{Title: "TYPE", Width: 11},
	{Title: "STATE", Width: 14},
	{Title: "ADDRESS", Width: 44},
}

// tableStyles renders a static table: muted rule under the header, no
// selection highlight.
func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(string(ColorMuted))).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color(string(ColorPrimary)))
	s.Cell = s.Cell.Foreground(lipgloss.Color(string(ColorPrimary)))
	s.Selected = s.Cell
	return s
}

// RenderInstanceTable renders instances for the list command.
func RenderInstanceTable(instances []cloud.Instance) string {
	if len(instances) == 0 {
		return MutedStyle().Render("No instances found")
	}

	rows := make([]table.Row, 0, len(instances))
	for _, inst := range instances {
		rows = append(rows, instanceRow(inst))
	}

	t := table.New(
		table.WithColumns(instanceColumns),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1),
		table.WithStyles(tableStyles()),
	)
	return t.View()
}

func instanceRow(inst cloud.Instance) table.Row {
	name := inst.Name
	if name == "" {
		name = "(unnamed)"
	}
	addr := inst.PublicAddress
	if addr == "" {
		addr = "-"
	}
	return table.Row{name, inst.ID, inst.Type, stateLabel(inst.State), addr}
}

// stateLabel prefixes the state with a status symbol.
func stateLabel(s cloud.State) string {
	sym := SymbolPending
	switch s {
	case cloud.StateRunning:
		sym = SymbolComplete
	case cloud.StatePending, cloud.StateStopping, cloud.StateShuttingDown:
		sym = SymbolProgress
	case cloud.StateTerminated:
		sym = SymbolFail
	}
	return sym + " " + string(s)
}
