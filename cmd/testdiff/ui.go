package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type model struct {
	list       list.Model
	root       string
	result     *RunResult
	scanID     string
	lastUpdate time.Time
}

type updateMsg struct {
	result *RunResult
	scanID string
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	case updateMsg:
		m.result = msg.result
		m.scanID = msg.scanID
		m.lastUpdate = time.Now()

		items := []list.Item{}
		for _, r := range msg.result.Results {
			items = append(items, item{
				title: r.Path,
				desc:  fmt.Sprintf("distance=%d, filename_match=%d", r.Distance, r.FilenameMatch),
			})
		}
		for _, d := range msg.result.Diags.Entries() {
			items = append(items, item{
				title: "Warning",
				desc:  d.String(),
			})
		}
		m.list.SetItems(items)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf("Root: %s | Last scan: %s",
		m.root, m.lastUpdate.Format("15:04:05")))

	var summary string
	switch {
	case m.result == nil:
		summary = statusStyle.Render("Waiting for changes...")
	case m.result.Diags.Len() == 0:
		summary = successStyle.Render(fmt.Sprintf("%d tests selected", len(m.result.Results)))
	default:
		summary = fmt.Sprintf("%s | %s",
			successStyle.Render(fmt.Sprintf("%d tests selected", len(m.result.Results))),
			warnStyle.Render(fmt.Sprintf("%d warnings", m.result.Diags.Len())))
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("Impacted Test Monitor"), status, summary)
	return docStyle.Render(header + "\n" + m.list.View())
}

func initialModel(root string) model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Selected Tests"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	return model{
		list:       l,
		root:       root,
		lastUpdate: time.Now(),
	}
}
