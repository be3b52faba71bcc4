package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/script-heap/dynobj"
	"github.com/wippyai/script-heap/savegame"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// pageSize is the number of objects listed at once.
const pageSize = 20

func newInspectCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "inspect FILE",
		Short:                 "browse the objects of a save file",
		DisableFlagsInUseLine: true,
		Args:                  cobra.ExactArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return runDump(cmd.Context(), g, &dumpOptions{files: args, jobs: 1}, cmd.OutOrStdout())
		}
		p := tea.NewProgram(newInspectModel(args[0]), tea.WithAltScreen())
		_, err := p.Run()
		return err
	}
	return c
}

type modelState int

const (
	stateList modelState = iota
	stateFilter
	stateDetail
)

type inspectModel struct {
	err      error
	summary  *savegame.Summary
	filename string
	objects  []objectInfo
	visible  []int
	filter   textinput.Model
	selected int
	state    modelState
}

type loadedMsg struct {
	err     error
	summary *savegame.Summary
}

func newInspectModel(filename string) *inspectModel {
	ti := textinput.New()
	ti.Placeholder = "kind or type name"
	ti.Prompt = "filter: "
	ti.Width = 40
	return &inspectModel{filename: filename, filter: ti, state: stateList}
}

func (m *inspectModel) Init() tea.Cmd {
	return m.load
}

func (m *inspectModel) load() tea.Msg {
	f, err := os.Open(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}
	defer f.Close()
	s, err := savegame.Inspect(f)
	return loadedMsg{summary: s, err: err}
}

func (m *inspectModel) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = m.visible[:0]
	for i, o := range m.objects {
		if q == "" || strings.Contains(strings.ToLower(o.Kind), q) || strings.Contains(strings.ToLower(o.Type), q) {
			m.visible = append(m.visible, i)
		}
	}
	m.selected = min(m.selected, max(len(m.visible)-1, 0))
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateFilter {
			switch msg.String() {
			case "enter", "esc":
				m.filter.Blur()
				m.state = stateList
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.applyFilter()
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateList && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateList && m.selected < len(m.visible)-1 {
				m.selected++
			}

		case "/":
			if m.state == stateList {
				m.state = stateFilter
				return m, m.filter.Focus()
			}

		case "enter":
			switch m.state {
			case stateList:
				if len(m.visible) > 0 {
					m.state = stateDetail
				}
			case stateDetail:
				m.state = stateList
			}

		case "esc":
			if m.state == stateDetail {
				m.state = stateList
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.summary = msg.summary
		for _, o := range msg.summary.Objects {
			m.objects = append(m.objects, describe(msg.summary, o))
		}
		m.applyFilter()
	}
	return m, nil
}

func (m *inspectModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.summary == nil {
		return "Loading save..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Heap Inspector"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	fmt.Fprintf(&b, "  %d types, %d objects\n\n", len(m.summary.Types), len(m.objects))

	switch m.state {
	case stateList, stateFilter:
		if m.state == stateFilter || m.filter.Value() != "" {
			b.WriteString(m.filter.View())
			b.WriteString("\n\n")
		}
		start := max(0, min(m.selected-pageSize/2, len(m.visible)-pageSize))
		for i := start; i < len(m.visible) && i < start+pageSize; i++ {
			line := m.formatObject(m.objects[m.visible[i]])
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter details • / filter • q quit"))

	case stateDetail:
		idx := m.visible[m.selected]
		o := m.objects[idx]
		b.WriteString(m.formatObject(o))
		b.WriteString("\n\n")
		b.WriteString(m.fields(o))
		b.WriteString(hex.Dump(m.summary.Objects[idx].Payload))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter/esc back • q quit"))
	}
	return b.String()
}

func (m *inspectModel) formatObject(o objectInfo) string {
	line := fmt.Sprintf("%6d  %s", o.Handle, kindStyle.Render(o.Kind))
	if o.Type != "" {
		line += "<" + typeStyle.Render(o.Type) + ">"
	}
	return fmt.Sprintf("%s  refs=%d  %s", line, o.RefCount, o.Summary)
}

// fields lists the saved layout of a user struct.
func (m *inspectModel) fields(o objectInfo) string {
	if o.Kind != dynobj.UserObjectTypeName || o.Type == "" {
		return ""
	}
	for _, t := range m.summary.Types {
		if t.Name != o.Type {
			continue
		}
		var b strings.Builder
		for _, f := range t.Fields {
			kind := "value"
			if f.Managed() {
				kind = "handle"
			}
			fmt.Fprintf(&b, "  +%-4d %-16s %s x%d\n", f.Offset, f.Name, kind, f.Elems())
		}
		b.WriteString("\n")
		return b.String()
	}
	return ""
}
