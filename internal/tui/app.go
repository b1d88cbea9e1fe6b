package tui

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/shotpost/internal/db"
)

const pageSize = 200

type model struct {
	store       *db.Store
	searchInput textinput.Model
	list        list.Model
	detail      viewport.Model
	records     []db.Record
	filter      db.Filter
	width       int
	height      int
	searching   bool
	showDetail  bool
	err         error
}

type recordItem struct {
	record db.Record
}

func (r recordItem) Title() string {
	return fmt.Sprintf("%s @%s  %s", statusIcon(r.record), r.record.Handle, firstLine(r.record.Content, 70))
}

func (r recordItem) Description() string {
	if a := r.record.Article; a != nil {
		return a.Title
	}
	parts := []string{}
	if r.record.Timestamp != "" {
		parts = append(parts, r.record.Timestamp)
	}
	parts = append(parts, "captured "+r.record.CapturedAt.Local().Format("2006-01-02 15:04"))
	return strings.Join(parts, " · ")
}

func (r recordItem) FilterValue() string {
	return r.record.Handle + " " + r.record.Author + " " + r.record.Content
}

func statusIcon(r db.Record) string {
	if r.Rewritten {
		return "[✓]"
	}
	return "[ ]"
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return s
}

func initialModel(store *db.Store) model {
	ti := textinput.New()
	ti.Placeholder = "Search posts..."
	ti.CharLimit = 256
	ti.Width = 50

	delegate := list.NewDefaultDelegate()
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "shotpost"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	return model{
		store:       store,
		searchInput: ti,
		list:        l,
		detail:      viewport.New(0, 0),
	}
}

type recordsMsg struct {
	records []db.Record
	err     error
}

func (m model) Init() tea.Cmd {
	return m.load()
}

// load fetches records for the current query and filter.
func (m model) load() tea.Cmd {
	store, query, filter := m.store, m.searchInput.Value(), m.filter
	return func() tea.Msg {
		if store == nil {
			return recordsMsg{err: fmt.Errorf("store not initialized")}
		}
		ctx := context.Background()
		if strings.TrimSpace(query) == "" {
			records, err := store.List(ctx, filter, pageSize)
			return recordsMsg{records: records, err: err}
		}
		records, err := store.Search(ctx, query, pageSize)
		return recordsMsg{records: filterRecords(records, filter), err: err}
	}
}

func filterRecords(records []db.Record, filter db.Filter) []db.Record {
	if filter == db.FilterAll {
		return records
	}
	out := make([]db.Record, 0, len(records))
	for _, r := range records {
		if r.Rewritten == (filter == db.FilterRewritten) {
			out = append(out, r)
		}
	}
	return out
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.showDetail {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "esc", "enter", "backspace":
				m.showDetail = false
				return m, nil
			}
			var cmd tea.Cmd
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if !m.searching {
				return m, tea.Quit
			}
		case "esc":
			if m.searching {
				m.searching = false
				m.searchInput.Blur()
				return m, nil
			}
		case "/":
			if !m.searching {
				m.searching = true
				m.searchInput.Focus()
				return m, textinput.Blink
			}
		case "enter":
			if m.searching {
				m.searching = false
				m.searchInput.Blur()
				return m, m.load()
			}
			if item, ok := m.list.SelectedItem().(recordItem); ok {
				m.showDetail = true
				m.detail.SetContent(renderDetail(item.record, m.detail.Width))
				m.detail.GotoTop()
				return m, nil
			}
		case "g":
			if !m.searching {
				m.list.Select(0)
				return m, nil
			}
		case "G":
			if !m.searching {
				if items := m.list.Items(); len(items) > 0 {
					m.list.Select(len(items) - 1)
				}
				return m, nil
			}
		case "o":
			if !m.searching {
				if item, ok := m.list.SelectedItem().(recordItem); ok && item.record.ScreenshotPath != "" {
					openFile(item.record.ScreenshotPath)
				}
				return m, nil
			}
		case "1", "2", "3":
			if !m.searching {
				m.filter = map[string]db.Filter{"1": db.FilterAll, "2": db.FilterRewritten, "3": db.FilterPending}[msg.String()]
				return m, m.load()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-6)
		m.searchInput.Width = msg.Width - 30
		m.detail.Width = msg.Width
		m.detail.Height = msg.Height - 3

	case recordsMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.records = msg.records
		m.list.SetItems(recordsToItems(msg.records))
		return m, nil
	}

	if m.searching {
		before := m.searchInput.Value()
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		cmds = append(cmds, cmd)

		// Live search on input change
		if m.searchInput.Value() != before {
			cmds = append(cmds, m.load())
		}
	} else {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func recordsToItems(records []db.Record) []list.Item {
	items := make([]list.Item, 0, len(records))
	for _, r := range records {
		items = append(items, recordItem{record: r})
	}
	return items
}

var (
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
)

func renderDetail(r db.Record, width int) string {
	var b strings.Builder
	wrap := lipgloss.NewStyle()
	if width > 4 {
		wrap = wrap.Width(width - 2)
	}

	fmt.Fprintf(&b, "%s (@%s)\n", headingStyle.Render(r.Author), r.Handle)
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s   %s %s\n\n",
		labelStyle.Render("time"), r.Timestamp,
		labelStyle.Render("likes"), r.Likes,
		labelStyle.Render("reposts"), r.Retweets,
		labelStyle.Render("replies"), r.Replies)
	b.WriteString(wrap.Render(r.Content))
	b.WriteString("\n")

	if r.HasMedia {
		fmt.Fprintf(&b, "\n%s %s\n", labelStyle.Render("media:"), r.MediaDescription)
	}
	fmt.Fprintf(&b, "\n%s %s\n%s %s\n",
		labelStyle.Render("key:"), r.Key,
		labelStyle.Render("screenshot:"), r.ScreenshotPath)

	if a := r.Article; a != nil {
		b.WriteString("\n")
		b.WriteString(headingStyle.Render(a.Title))
		b.WriteString("\n\n")
		b.WriteString(wrap.Render(a.Content))
		b.WriteString("\n")
		if len(a.Tags) > 0 {
			fmt.Fprintf(&b, "\n%s %s\n", labelStyle.Render("tags:"), strings.Join(a.Tags, ", "))
		}
	} else {
		b.WriteString("\n" + labelStyle.Render("not rewritten yet") + "\n")
	}
	return b.String()
}

func (m model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err)
	}

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		MarginTop(1)

	if m.showDetail {
		return m.detail.View() + "\n" + helpStyle.Render("[j/k]scroll [esc]back [q]uit")
	}

	var b strings.Builder

	searchStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1)

	activeFilter := lipgloss.NewStyle().
		Foreground(lipgloss.Color("86")).
		Bold(true)

	inactiveFilter := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	filters := []string{}
	for _, f := range []struct {
		filter db.Filter
		label  string
	}{
		{db.FilterAll, "[1]all"},
		{db.FilterRewritten, "[2]rewritten"},
		{db.FilterPending, "[3]pending"},
	} {
		if m.filter == f.filter {
			filters = append(filters, activeFilter.Render(f.label))
		} else {
			filters = append(filters, inactiveFilter.Render(f.label))
		}
	}

	searchBox := searchStyle.Render(m.searchInput.View())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, searchBox, "  ", strings.Join(filters, " ")))
	b.WriteString("\n\n")

	b.WriteString(m.list.View())

	help := "[j/k]nav [g/G]top/end [/]search [enter]details [o]pen screenshot [1-3]filter [q]uit"
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

func openFile(path string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "linux":
		cmd = exec.Command("xdg-open", path)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", path)
	}
	if cmd != nil {
		cmd.Start()
	}
}

// Run starts the record browser.
func Run(store *db.Store) error {
	p := tea.NewProgram(initialModel(store), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
