// Command cc-bridge-admin is a read-only terminal dashboard over the
// Docker Manager's list_containers/stats operations, for operators who
// want a live view of sandbox containers without going through the
// chat interface. It never mutates anything: no /block, /kill, or
// /destroy reachable from here, only inspection.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cc-bridge/internal/config"
	"cc-bridge/internal/dockerengine"
	"cc-bridge/internal/sandbox"
)

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cc-bridge-admin: %v\n", err)
		os.Exit(1)
	}

	engine, err := dockerengine.NewClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cc-bridge-admin: connecting to Docker: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	sb := sandbox.New(engine, cfg)

	p := tea.NewProgram(newModel(sb), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "cc-bridge-admin: %v\n", err)
		os.Exit(1)
	}
}

const refreshInterval = 3 * time.Second

type model struct {
	sb      *sandbox.Manager
	table   table.Model
	err     error
	lastRun time.Time
}

type refreshMsg struct {
	rows []table.Row
	err  error
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func newModel(sb *sandbox.Manager) model {
	columns := []table.Column{
		{Title: "Container", Width: 26},
		{Title: "Status", Width: 10},
		{Title: "Wxid", Width: 14},
		{Title: "Tier", Width: 10},
		{Title: "CPU%", Width: 8},
		{Title: "Mem", Width: 16},
	}
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(lipgloss.Color("86"))
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("86"))

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(20),
	)
	t.SetStyles(styles)
	return model{sb: sb, table: t}
}

func (m model) Init() tea.Cmd {
	return refreshCmd(m.sb)
}

func refreshCmd(sb *sandbox.Manager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		list, err := sb.ListContainers(ctx)
		if err != nil {
			return refreshMsg{err: err}
		}

		rows := make([]table.Row, 0, len(list))
		for _, c := range list {
			cpu, mem := "-", "-"
			if stats, err := sb.Stats(ctx, c.Wxid); err == nil && stats != nil {
				cpu = fmt.Sprintf("%.1f", stats.CPUPercent)
				mem = fmt.Sprintf("%s / %s", sandbox.FormatBytes(stats.MemUsage), sandbox.FormatBytes(stats.MemLimit))
			}
			rows = append(rows, table.Row{c.Name, c.Status, c.Wxid, c.Permission, cpu, mem})
		}
		return refreshMsg{rows: rows}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type tickMsg time.Time

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, refreshCmd(m.sb)
		}
	case refreshMsg:
		m.lastRun = time.Now()
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.table.SetRows(msg.rows)
		}
		return m, tickCmd()
	case tickMsg:
		return m, refreshCmd(m.sb)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m model) View() string {
	header := headerStyle.Render("cc-bridge containers") + " (q to quit, r to refresh)\n\n"
	if m.err != nil {
		return header + errorStyle.Render(fmt.Sprintf("error: %v", m.err)) + "\n"
	}
	return header + m.table.View() + "\n"
}
