package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hansrobothans/logfan/internal/config"
	"github.com/hansrobothans/logfan/internal/sink"
)

// printBanner shows what the daemon bound and where records will land.
func printBanner(settings *config.Settings, entries []sink.Entry) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")

	var lines []string
	lines = append(lines, "")
	lines = append(lines, "    "+bold.Render("logfand")+" "+dim.Render("v"+version))
	lines = append(lines, dim.Render("    ─────────────────────────────────"))
	lines = append(lines, fmt.Sprintf("    %s  Socket     %s", check, cyan.Render(settings.Socket)))
	lines = append(lines, fmt.Sprintf("    %s  Ring       %s", check, dim.Render(fmt.Sprintf("%d records", settings.Buffer))))
	for _, e := range entries {
		threshold := dim.Render(fmt.Sprintf(">= %s", e.Threshold))
		lines = append(lines, fmt.Sprintf("    %s  Sink       %s  %s", check, cyan.Render(e.Sink.Name()), threshold))
	}
	if settings.StatusAddr != "" {
		lines = append(lines, fmt.Sprintf("    %s  Status     %s", check, cyan.Render("http://"+settings.StatusAddr)))
	}
	lines = append(lines, "")
	fmt.Println(strings.Join(lines, "\n"))
}
