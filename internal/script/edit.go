package script

import (
	"fmt"
	"strings"
)

// SetEnabled comments an entry out or back in. Only the '#' before the
// command changes; indentation and the command text are kept.
func (s *Script) SetEnabled(index int, enabled bool) error {
	idx := s.entryLines()
	if index < 0 || index >= len(idx) {
		return &ScriptError{Text: fmt.Sprint(index), Err: ErrIndexOutOfRange}
	}
	l := &s.lines[idx[index]]
	if l.stmt.enabled == enabled {
		return nil
	}

	indent := l.text[:len(l.text)-len(strings.TrimLeft(l.text, " \t"))]
	body := l.text[len(indent):]
	if enabled {
		body = strings.TrimLeft(strings.TrimPrefix(body, "#"), " \t")
	} else {
		body = "#" + body
	}
	l.text = indent + body
	l.stmt.enabled = enabled
	return nil
}

// Reorder moves the from-th entry of kind to position to among entries of
// that kind. The entries of kind rotate through the lines they already
// occupy, so no other line moves.
func (s *Script) Reorder(kind Kind, from, to int) error {
	var slots []int
	for i, l := range s.lines {
		if l.stmt != nil && l.stmt.kind == kind {
			slots = append(slots, i)
		}
	}
	if from < 0 || from >= len(slots) {
		return &ScriptError{Text: fmt.Sprintf("%s %d", kind, from), Err: ErrIndexOutOfRange}
	}
	if to < 0 || to >= len(slots) {
		return &ScriptError{Text: fmt.Sprintf("%s %d", kind, to), Err: ErrIndexOutOfRange}
	}
	if from == to {
		return nil
	}

	moved := make([]line, len(slots))
	for i, slot := range slots {
		moved[i] = s.lines[slot]
	}
	item := moved[from]
	moved = append(moved[:from], moved[from+1:]...)
	moved = append(moved[:to], append([]line{item}, moved[to:]...)...)

	for i, slot := range slots {
		eol := s.lines[slot].eol
		s.lines[slot] = moved[i]
		s.lines[slot].eol = eol
	}
	return nil
}

// FormatEntry renders a statement line.
func FormatEntry(kind Kind, target, args string, enabled bool) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", &ScriptError{Text: string(kind), Err: ErrUnparseableLine}
	}
	var text string
	switch kind {
	case PluginLoad:
		text = "/load " + target
	case AddonLoad:
		text = "/addon load " + target
	case Keybind:
		text = withCommand("/bind", target)
	case Alias:
		text = withCommand("/alias", target)
	case ConfigCommand:
		text = target
		if !strings.HasPrefix(text, "/") {
			text = "/" + text
		}
	default:
		return "", fmt.Errorf("unknown entry kind %q", kind)
	}
	if args = strings.TrimSpace(args); args != "" && (kind == PluginLoad || kind == AddonLoad) {
		text += " " + args
	}
	if !enabled {
		text = "#" + text
	}
	return text, nil
}

func withCommand(cmd, target string) string {
	if strings.HasPrefix(target, "/") {
		return target
	}
	return cmd + " " + target
}

// AddEntry inserts a new statement in its section: after the last entry of
// the same kind, else under the section banner, else next to the nearest
// section. It returns the new entry.
func (s *Script) AddEntry(kind Kind, target, args string, enabled bool) (Entry, error) {
	text, err := FormatEntry(kind, target, args, enabled)
	if err != nil {
		return Entry{}, err
	}
	stmt, perr := parseStatement(text)
	if perr != nil || stmt == nil || stmt.kind != kind {
		return Entry{}, &ScriptError{Text: text, Err: ErrUnparseableLine}
	}

	pos, underBanner := s.insertPosition(kind)
	nl := s.newline()
	insert := []line{{text: text, eol: nl, stmt: stmt}}
	if underBanner && pos < len(s.lines) && strings.TrimSpace(s.lines[pos].text) != "" {
		insert = append(insert, line{eol: nl})
	}
	if pos == len(s.lines) && pos > 0 && s.lines[pos-1].eol == "" {
		// keep the file's missing final newline at the end
		s.lines[pos-1].eol = nl
		insert[len(insert)-1].eol = ""
	}
	s.lines = append(s.lines[:pos], append(insert, s.lines[pos:]...)...)

	for _, e := range s.Entries() {
		if e.Line == pos+1 {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("inserted entry not found")
}

func (s *Script) insertPosition(kind Kind) (int, bool) {
	last := func(match func(Kind) bool) int {
		pos := -1
		for i, l := range s.lines {
			if l.stmt != nil && match(l.stmt.kind) {
				pos = i
			}
		}
		return pos
	}

	if i := last(func(k Kind) bool { return k == kind }); i >= 0 {
		return i + 1, false
	}
	if i := last(func(k Kind) bool { return k.rank() == kind.rank() }); i >= 0 {
		return i + 1, false
	}
	if i := s.bannerEnd(kind); i >= 0 {
		return i, true
	}
	for i, l := range s.lines {
		if l.stmt != nil && l.stmt.kind.rank() > kind.rank() {
			return i, false
		}
	}
	if i := last(func(k Kind) bool { return k.rank() < kind.rank() }); i >= 0 {
		return i + 1, false
	}
	return len(s.lines), false
}

// bannerEnd finds the section banner for kind and returns the line after it
// and its trailing blank line, or -1.
func (s *Script) bannerEnd(kind Kind) int {
	title := sectionTitles[kind]
	if title == "" {
		return -1
	}
	for i, l := range s.lines {
		if !strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l.text), "#")), title) {
			continue
		}
		j := i + 1
		for j < len(s.lines) && s.lines[j].stmt == nil && strings.HasPrefix(strings.TrimSpace(s.lines[j].text), "#") {
			j++
		}
		if j < len(s.lines) && s.lines[j].stmt == nil && strings.TrimSpace(s.lines[j].text) == "" {
			j++
		}
		return j
	}
	return -1
}

// RemoveEntry deletes an entry's line. A blank line left doubled by the
// removal is collapsed, so AddEntry followed by RemoveEntry restores the text.
func (s *Script) RemoveEntry(index int) error {
	idx := s.entryLines()
	if index < 0 || index >= len(idx) {
		return &ScriptError{Text: fmt.Sprint(index), Err: ErrIndexOutOfRange}
	}
	pos := idx[index]
	if pos == len(s.lines)-1 && s.lines[pos].eol == "" && pos > 0 {
		s.lines[pos-1].eol = ""
	}
	s.lines = append(s.lines[:pos], s.lines[pos+1:]...)
	// drop the separator AddEntry put under a banner once the section is empty
	if pos > 0 && pos < len(s.lines) && s.lines[pos].stmt == nil && s.lines[pos-1].stmt == nil &&
		strings.TrimSpace(s.lines[pos].text) == "" && strings.TrimSpace(s.lines[pos-1].text) == "" {
		s.lines = append(s.lines[:pos], s.lines[pos+1:]...)
	}
	return nil
}

// Find returns the first load entry for a plugin or addon name.
func (s *Script) Find(kind Kind, name string) (Entry, bool) {
	for _, e := range s.Entries() {
		if e.Kind == kind && strings.EqualFold(e.Target, name) {
			return e, true
		}
	}
	return Entry{}, false
}
