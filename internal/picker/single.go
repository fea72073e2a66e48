package picker

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"
)

// SingleModel is the Bubble Tea model for single-select picker
type SingleModel struct {
	title       string
	items       []Item
	cursor      int
	offset      int
	done        bool
	quitting    bool
	searchInput textinput.Model
	searching   bool
}

// NewSingle creates a new single-select picker model. The cursor starts on
// the first item marked Selected.
func NewSingle(title string, items []Item) SingleModel {
	ti := textinput.New()
	ti.Placeholder = "Type to search..."
	ti.CharLimit = 50
	ti.Width = 40

	cursor := 0
	for i, item := range items {
		if item.Selected {
			cursor = i
			break
		}
	}
	return SingleModel{
		title:       title,
		items:       items,
		cursor:      cursor,
		offset:      scroll(cursor, 0, len(items)),
		searchInput: ti,
	}
}

// Selected returns the ID of the selected item
func (m SingleModel) Selected() string {
	filtered := m.filtered()
	if m.cursor < len(filtered) {
		return filtered[m.cursor].ID
	}
	return ""
}

// IsQuitting returns true if the user quit without confirming
func (m SingleModel) IsQuitting() bool {
	return m.quitting
}

// Init implements tea.Model
func (m SingleModel) Init() tea.Cmd {
	return nil
}

type itemSource []Item

func (s itemSource) String(i int) string { return s[i].Label + " " + s[i].ID }
func (s itemSource) Len() int            { return len(s) }

// filtered returns the items matching the search query, best match first.
func (m SingleModel) filtered() []Item {
	query := m.searchInput.Value()
	if query == "" {
		return m.items
	}
	matches := fuzzy.FindFrom(query, itemSource(m.items))
	out := make([]Item, len(matches))
	for i, match := range matches {
		out[i] = m.items[match.Index]
	}
	return out
}

// Update implements tea.Model
func (m SingleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.searching {
		switch kmsg.String() {
		case "esc":
			m.searching = false
			m.searchInput.SetValue("")
			m.searchInput.Blur()
		case "enter":
			m.searching = false
			m.searchInput.Blur()
			return m, nil
		default:
			var cmd tea.Cmd
			m.searchInput, cmd = m.searchInput.Update(kmsg)
			m.cursor, m.offset = 0, 0
			return m, cmd
		}
		m.cursor, m.offset = 0, 0
		return m, nil
	}

	count := len(m.filtered())
	switch {
	case key.Matches(kmsg, keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(kmsg, keys.Search):
		m.searching = true
		m.searchInput.Focus()
		return m, textinput.Blink
	case key.Matches(kmsg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		} else if count > 0 {
			m.cursor = count - 1
		}
	case key.Matches(kmsg, keys.Down):
		if m.cursor < count-1 {
			m.cursor++
		} else {
			m.cursor = 0
		}
	case key.Matches(kmsg, keys.Confirm):
		if count == 0 {
			return m, nil
		}
		m.done = true
		return m, tea.Quit
	}
	m.offset = scroll(m.cursor, m.offset, count)
	return m, nil
}

// View implements tea.Model
func (m SingleModel) View() string {
	if m.done || m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	if m.searching {
		b.WriteString("\n/ " + m.searchInput.View() + "\n")
	} else if m.searchInput.Value() != "" {
		b.WriteString("\n" + faintStyle.Render("Filter: "+m.searchInput.Value()+" (press / to edit, esc to clear)") + "\n")
	}
	b.WriteString("\n")

	filtered := m.filtered()
	if len(filtered) == 0 {
		b.WriteString(faintStyle.Render("  (no matching items)") + "\n")
	} else {
		if m.offset > 0 {
			b.WriteString(faintStyle.Render(fmt.Sprintf("  ↑ %d more above", m.offset)) + "\n")
		}
		end := min(m.offset+maxVisibleItems, len(filtered))
		for i := m.offset; i < end; i++ {
			if i == m.cursor {
				b.WriteString(cursorStyle.Render("> ") + selectedStyle.Render(filtered[i].Label))
				if filtered[i].Detail != "" {
					b.WriteString(" " + faintStyle.Render(filtered[i].Detail))
				}
			} else {
				b.WriteString("  " + filtered[i].render())
			}
			b.WriteString("\n")
		}
		if rest := len(filtered) - end; rest > 0 {
			b.WriteString(faintStyle.Render(fmt.Sprintf("  ↓ %d more below", rest)) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(faintStyle.Render("↑/↓: navigate • /: search • enter: select • q: quit"))
	return b.String()
}

// RunSingle runs the single-select picker and returns selected item ID
func RunSingle(title string, items []Item) (string, error) {
	finalModel, err := tea.NewProgram(NewSingle(title, items)).Run()
	if err != nil {
		return "", err
	}
	fm := finalModel.(SingleModel)
	if fm.IsQuitting() {
		return "", ErrCancelled
	}
	return fm.Selected(), nil
}
