// Package tui implements a small terminal browser over the search history
// and cache statistics. It only consumes the exposed service interfaces;
// all policy lives in the packages beneath it.
package tui

import (
	"fmt"
	"strings"

	"github.com/biliview/biliview/internal/cache"
	"github.com/biliview/biliview/internal/domain"
	"github.com/biliview/biliview/internal/history"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// row is one renderable line: either a group header or a history item.
type row struct {
	header string
	item   domain.HistoryItem
}

func (r row) isHeader() bool { return r.header != "" }

// KeyMap defines the browser key bindings
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Pin    key.Binding
	Delete key.Binding
	Filter key.Binding
	Escape key.Binding
	Quit   key.Binding
}

func defaultKeyMap() KeyMap {
	return KeyMap{
		Up:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Pin:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pin/unpin")),
		Delete: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Filter: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Escape: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear filter")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// Model is the history browser.
type Model struct {
	history  *history.Service
	cacheSvc *cache.Service

	rows      []row
	cursor    int
	filter    textinput.Model
	filtering bool
	keys      KeyMap
	width     int
	height    int
}

// New creates the browser model. History must already be loaded.
func New(historySvc *history.Service, cacheSvc *cache.Service) Model {
	filter := textinput.New()
	filter.Placeholder = "filter history"
	filter.CharLimit = 64

	m := Model{
		history:  historySvc,
		cacheSvc: cacheSvc,
		filter:   filter,
		keys:     defaultKeyMap(),
	}
	m.reload()
	return m
}

func (m Model) Init() tea.Cmd { return nil }

// reload rebuilds the visible rows from the history service.
func (m *Model) reload() {
	var rows []row

	keyword := strings.TrimSpace(m.filter.Value())
	if keyword != "" {
		for _, item := range m.history.Search(keyword) {
			rows = append(rows, row{item: item})
		}
	} else {
		if pinned := m.history.PinnedItems(); len(pinned) > 0 {
			rows = append(rows, row{header: "置顶"})
			for _, item := range pinned {
				rows = append(rows, row{item: item})
			}
		}
		for _, group := range m.history.GroupedRecentItems() {
			rows = append(rows, row{header: group.Label})
			for _, item := range group.Items {
				rows = append(rows, row{item: item})
			}
		}
	}

	m.rows = rows
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	// Never park the cursor on a header.
	for m.cursor < len(m.rows) && m.rows[m.cursor].isHeader() {
		m.cursor++
	}
}

func (m *Model) move(delta int) {
	i := m.cursor
	for {
		i += delta
		if i < 0 || i >= len(m.rows) {
			return
		}
		if !m.rows[i].isHeader() {
			m.cursor = i
			return
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			switch {
			case msg.Type == tea.KeyEnter, msg.Type == tea.KeyEsc:
				if msg.Type == tea.KeyEsc {
					m.filter.SetValue("")
				}
				m.filtering = false
				m.filter.Blur()
				m.reload()
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.reload()
			return m, cmd
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			m.move(-1)
		case key.Matches(msg, m.keys.Down):
			m.move(1)
		case key.Matches(msg, m.keys.Filter):
			m.filtering = true
			m.filter.Focus()
			return m, textinput.Blink
		case key.Matches(msg, m.keys.Escape):
			m.filter.SetValue("")
			m.reload()
		case key.Matches(msg, m.keys.Pin):
			if item, ok := m.selected(); ok {
				m.history.TogglePin(item.ID)
				m.reload()
			}
		case key.Matches(msg, m.keys.Delete):
			if item, ok := m.selected(); ok {
				m.history.RemoveRecord(item.ID)
				m.reload()
			}
		}
	}
	return m, nil
}

func (m Model) selected() (domain.HistoryItem, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) || m.rows[m.cursor].isHeader() {
		return domain.HistoryItem{}, false
	}
	return m.rows[m.cursor].item, true
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("搜索历史"))
	b.WriteString("\n\n")

	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
	}

	if len(m.rows) == 0 {
		b.WriteString(dimStyle.Render("no history"))
		b.WriteString("\n")
	}

	for i, r := range m.rows {
		if r.isHeader() {
			b.WriteString(groupStyle.Render(r.header))
			b.WriteString("\n")
			continue
		}

		label := r.item.Query
		if r.item.DisplayName != "" {
			label = r.item.DisplayName
		}
		line := fmt.Sprintf("  %s  %s", history.FormatFullTime(r.item.Timestamp), label)
		if r.item.Pinned {
			line = pinStyle.Render("★") + line[1:]
		}

		if i == m.cursor {
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString(itemStyle.Render(line))
		}
		b.WriteString("\n")
	}

	stats := m.cacheSvc.Stats()
	footer := fmt.Sprintf("%d records · data %d · image %d · p pin · d delete · / filter · q quit",
		m.history.Count(),
		stats[domain.CollectionData].Count,
		stats[domain.CollectionImage].Count,
	)
	b.WriteString(footerStyle.Render(footer))

	return b.String()
}
