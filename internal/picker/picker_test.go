package picker

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press[M tea.Model](m M, msgs ...tea.Msg) M {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(M)
	}
	return m
}

var refItems = []Item{
	{ID: "main", Label: "main", Detail: "(default)"},
	{ID: "dev", Label: "dev"},
	{ID: "v1.2#distance.zip", Label: "v1.2", Detail: "distance.zip"},
}

func TestSingleNavigate(t *testing.T) {
	m := NewSingle("ref", refItems)
	assert.Equal(t, "main", m.Selected())

	m = press(m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, "dev", m.Selected())

	// wraps both ways
	m = press(m, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, "main", m.Selected())
	m = press(m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "v1.2#distance.zip", m.Selected())

	m = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.IsQuitting())
	assert.Empty(t, m.View())
}

func TestSingleStartsOnSelected(t *testing.T) {
	items := append([]Item(nil), refItems...)
	items[1].Selected = true
	assert.Equal(t, "dev", NewSingle("ref", items).Selected())
}

func TestSingleSearch(t *testing.T) {
	m := NewSingle("ref", refItems)
	m = press(m, runes("/"), runes("z"), runes("i"), runes("p"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "v1.2#distance.zip", m.Selected())
	assert.Contains(t, m.View(), "Filter: zip")

	m = press(m, runes("/"), tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, "main", m.Selected())
}

func TestSingleNoMatchDoesNotConfirm(t *testing.T) {
	m := NewSingle("ref", refItems)
	m = press(m, runes("/"), runes("q"), runes("q"), runes("q"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, m.Selected())
	m = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, m.View(), "no matching items")
}

func TestSingleQuit(t *testing.T) {
	m := press(NewSingle("ref", refItems), runes("q"))
	assert.True(t, m.IsQuitting())
}

func TestMultiSelect(t *testing.T) {
	items := []Item{{ID: "addon/a", Label: "a"}, {ID: "addon/b", Label: "b", Selected: true}, {ID: "plugin/c", Label: "c"}}
	m := New("update", items)
	assert.Equal(t, []string{"addon/b"}, m.Selected())

	m = press(m, tea.KeyMsg{Type: tea.KeySpace})
	assert.Equal(t, []string{"addon/a", "addon/b"}, m.Selected())

	m = press(m, runes("a"))
	assert.Equal(t, []string{"addon/a", "addon/b", "plugin/c"}, m.Selected())
	m = press(m, runes("a"))
	assert.Empty(t, m.Selected())

	m = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, m.IsQuitting())
}

func TestScrollWindow(t *testing.T) {
	var items []Item
	for i := 0; i < 25; i++ {
		items = append(items, Item{ID: fmt.Sprint(i), Label: fmt.Sprint("item ", i)})
	}
	m := New("many", items)
	for i := 0; i < 12; i++ {
		m = press(m, tea.KeyMsg{Type: tea.KeyDown})
	}
	assert.Equal(t, 3, m.offset)
	view := m.View()
	assert.Contains(t, view, "3 more above")
	assert.Contains(t, view, "12 more below")

	assert.Equal(t, 0, scroll(0, 5, 25))
	assert.Equal(t, 0, scroll(2, 0, 3))
}
