// Package picker holds the terminal prompts used when an operation needs a
// choice from the user: which ref to install, which entrypoint an addon
// uses, which packages to update.
package picker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCancelled is returned when the user quits a prompt.
var ErrCancelled = errors.New("selection cancelled")

const maxVisibleItems = 10

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	faintStyle    = lipgloss.NewStyle().Faint(true)
)

// Item represents a selectable item
type Item struct {
	ID       string
	Label    string
	Detail   string // dimmed text after the label
	Selected bool
}

func (it Item) render() string {
	if it.Detail == "" {
		return it.Label
	}
	return it.Label + " " + faintStyle.Render(it.Detail)
}

// Model is the Bubble Tea model for multi-select picker
type Model struct {
	title    string
	items    []Item
	cursor   int
	offset   int
	selected map[string]bool
	done     bool
	quitting bool
}

// New creates a new picker model
func New(title string, items []Item) Model {
	selected := make(map[string]bool)
	for _, item := range items {
		if item.Selected {
			selected[item.ID] = true
		}
	}
	return Model{title: title, items: items, selected: selected}
}

// Selected returns the IDs of selected items
func (m Model) Selected() []string {
	var result []string
	for _, item := range m.items {
		if m.selected[item.ID] {
			result = append(result, item.ID)
		}
	}
	return result
}

// IsQuitting returns true if the user quit without confirming
func (m Model) IsQuitting() bool {
	return m.quitting
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(kmsg, keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(kmsg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(kmsg, keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case key.Matches(kmsg, keys.Toggle):
		if len(m.items) > 0 {
			id := m.items[m.cursor].ID
			m.selected[id] = !m.selected[id]
		}
	case key.Matches(kmsg, keys.All):
		all := true
		for _, item := range m.items {
			if !m.selected[item.ID] {
				all = false
				break
			}
		}
		for _, item := range m.items {
			m.selected[item.ID] = !all
		}
	case key.Matches(kmsg, keys.Confirm):
		m.done = true
		return m, tea.Quit
	}
	m.offset = scroll(m.cursor, m.offset, len(m.items))
	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	if m.done || m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	end := min(m.offset+maxVisibleItems, len(m.items))
	if m.offset > 0 {
		b.WriteString(faintStyle.Render(fmt.Sprintf("  ↑ %d more above", m.offset)) + "\n")
	}
	for i := m.offset; i < end; i++ {
		item := m.items[i]
		cursor := "  "
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
		}
		checked := "[ ]"
		if m.selected[item.ID] {
			checked = selectedStyle.Render("[x]")
		}
		fmt.Fprintf(&b, "%s%s %s\n", cursor, checked, item.render())
	}
	if rest := len(m.items) - end; rest > 0 {
		b.WriteString(faintStyle.Render(fmt.Sprintf("  ↓ %d more below", rest)) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(faintStyle.Render("space: toggle • a: all/none • enter: confirm • q: quit"))
	return b.String()
}

// scroll returns the offset that keeps cursor inside the visible window.
func scroll(cursor, offset, count int) int {
	if cursor < offset {
		offset = cursor
	}
	if cursor >= offset+maxVisibleItems {
		offset = cursor - maxVisibleItems + 1
	}
	return max(0, min(offset, count-maxVisibleItems))
}

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	All     key.Binding
	Search  key.Binding
	Confirm key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k")),
	Down:    key.NewBinding(key.WithKeys("down", "j")),
	Toggle:  key.NewBinding(key.WithKeys(" ")),
	All:     key.NewBinding(key.WithKeys("a")),
	Search:  key.NewBinding(key.WithKeys("/")),
	Confirm: key.NewBinding(key.WithKeys("enter")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc")),
}

// Chooser asks the user to pick items. Commands take a Chooser so tests can
// answer without a terminal.
type Chooser interface {
	ChooseOne(title string, items []Item) (string, error)
	ChooseMany(title string, items []Item) ([]string, error)
}

// Terminal runs the Bubble Tea prompts.
type Terminal struct{}

// ChooseOne implements Chooser.
func (Terminal) ChooseOne(title string, items []Item) (string, error) {
	return RunSingle(title, items)
}

// ChooseMany implements Chooser.
func (Terminal) ChooseMany(title string, items []Item) ([]string, error) {
	return Run(title, items)
}

// Run runs the picker and returns selected item IDs
func Run(title string, items []Item) ([]string, error) {
	finalModel, err := tea.NewProgram(New(title, items)).Run()
	if err != nil {
		return nil, err
	}
	fm := finalModel.(Model)
	if fm.IsQuitting() {
		return nil, ErrCancelled
	}
	return fm.Selected(), nil
}
