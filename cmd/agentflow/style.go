package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/stn/agent-stream-app/internal/app/dto"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	statusEnabled  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))  // green
	statusDisabled = lipgloss.NewStyle().Foreground(lipgloss.Color("243")) // gray
	statusWarn     = lipgloss.NewStyle().Foreground(lipgloss.Color("220")) // yellow
	statusFailed   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
)

func endpoint(node string, handle *string) string {
	if handle == nil {
		return node
	}
	return node + ":" + *handle
}

// writeRepairs lists what loading removed or disabled.
func writeRepairs(out io.Writer, res *dto.LoadResult) {
	for _, d := range res.DroppedEdges {
		fmt.Fprintf(out, "  %s edge %s %s -> %s %s\n",
			statusFailed.Render("dropped"),
			d.Edge.ID,
			endpoint(d.Edge.Source, d.Edge.SourceHandle),
			endpoint(d.Edge.Target, d.Edge.TargetHandle),
			dimStyle.Render("("+string(d.Reason)+")"))
	}
	for _, id := range res.UnmatchedNodes {
		fmt.Fprintf(out, "  %s node %s %s\n",
			statusWarn.Render("disabled"), id, dimStyle.Render("(no agent definition)"))
	}
}
