// Package script models the Ashita load-order script: the plain-text file of
// slash commands run at game start. Every line of the file is kept, so
// serializing a parsed script reproduces it byte for byte; edits only touch
// the lines of the entries they target.
package script

import (
	"strconv"
	"strings"
)

// Kind classifies a script statement.
type Kind string

const (
	PluginLoad    Kind = "plugin"
	AddonLoad     Kind = "addon"
	Keybind       Kind = "bind"
	Alias         Kind = "alias"
	ConfigCommand Kind = "config"
)

// Kinds returns all kinds in section order.
func Kinds() []Kind {
	return []Kind{PluginLoad, AddonLoad, Keybind, Alias, ConfigCommand}
}

// ParseKind parses a kind name.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds() {
		if string(k) == strings.ToLower(s) {
			return k, true
		}
	}
	return "", false
}

// rank orders sections: plugins load first, configuration comes after /wait.
func (k Kind) rank() int {
	switch k {
	case PluginLoad:
		return 0
	case AddonLoad:
		return 1
	case Keybind, Alias:
		return 2
	default:
		return 3
	}
}

// Entry is a recognized statement.
type Entry struct {
	Index    int    // position among all entries
	Kind     Kind   //
	Target   string // plugin or addon name for loads, the full command otherwise
	Args     string // arguments after an addon or plugin name
	Enabled  bool   // false when commented out with '#'
	Order    int    // position among entries of the same kind
	Line     int    // 1-based line number
	Orphaned bool   // load entry whose package is not in the registry
}

// PackageID returns the registry id a load entry refers to, or "".
func (e Entry) PackageID() string {
	switch e.Kind {
	case PluginLoad, AddonLoad:
		return string(e.Kind) + "/" + strings.ToLower(e.Target)
	}
	return ""
}

type statement struct {
	kind    Kind
	target  string
	args    string
	enabled bool
}

type line struct {
	text     string // without line ending
	eol      string // "\n", "\r\n" or "" on an unterminated last line
	stmt     *statement
	orphaned bool
}

// Script is a parsed script file.
type Script struct {
	bom      bool
	lines    []line
	warnings []error
}

const utf8BOM = "\ufeff"

// Parse splits text into lines and recognizes statements. Lines that are not
// statements are kept verbatim. Recognized commands missing their operand are
// kept verbatim too and reported through Warnings.
func Parse(text string) *Script {
	s := &Script{}
	if strings.HasPrefix(text, utf8BOM) {
		s.bom = true
		text = text[len(utf8BOM):]
	}
	for len(text) > 0 {
		var l line
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			l.text, l.eol, text = text[:i], "\n", text[i+1:]
			if strings.HasSuffix(l.text, "\r") {
				l.text, l.eol = l.text[:len(l.text)-1], "\r\n"
			}
		} else {
			l.text, text = text, ""
		}
		stmt, err := parseStatement(l.text)
		if err != nil {
			s.warnings = append(s.warnings, &ScriptError{Line: len(s.lines) + 1, Text: l.text, Err: err})
		}
		l.stmt = stmt
		s.lines = append(s.lines, l)
	}
	return s
}

// parseStatement recognizes one line. It returns nil for comments, blank
// lines and malformed commands.
func parseStatement(text string) (*statement, error) {
	body := strings.TrimSpace(text)
	enabled := true
	// only "#/" disables a command; "# /load ..." is prose
	if strings.HasPrefix(body, "#") {
		if !strings.HasPrefix(body, "#/") {
			return nil, nil
		}
		body, enabled = body[1:], false
	}
	if !strings.HasPrefix(body, "/") || len(body) == 1 {
		return nil, nil
	}

	cmd, rest := cutField(body)
	st := &statement{enabled: enabled}
	switch strings.ToLower(cmd) {
	case "/load":
		st.kind = PluginLoad
		st.target, st.args = cutField(rest)
	case "/addon":
		sub, after := cutField(rest)
		if !strings.EqualFold(sub, "load") {
			st.kind, st.target = ConfigCommand, body
			return st, nil
		}
		st.kind = AddonLoad
		st.target, st.args = cutField(after)
	case "/bind":
		st.kind, st.target = Keybind, body
		if rest == "" {
			st.target = ""
		}
	case "/alias":
		st.kind, st.target = Alias, body
		if rest == "" {
			st.target = ""
		}
	case "/exec":
		st.kind, st.target = execKind(rest), body
		if rest == "" {
			st.target = ""
		}
	case "/wait":
		if _, err := strconv.Atoi(rest); err != nil {
			return nil, ErrUnparseableLine
		}
		st.kind, st.target = ConfigCommand, body
	default:
		st.kind, st.target = ConfigCommand, body
	}
	if st.target == "" {
		return nil, ErrUnparseableLine
	}
	return st, nil
}

// execKind sorts /exec lines by the file they run, as the stock scripts keep
// keybinds and aliases in separate files.
func execKind(file string) Kind {
	lower := strings.ToLower(file)
	switch {
	case strings.Contains(lower, "bind"):
		return Keybind
	case strings.Contains(lower, "alias"):
		return Alias
	}
	return ConfigCommand
}

// cutField splits off the first whitespace separated field.
func cutField(s string) (field, rest string) {
	s = strings.TrimLeft(s, " \t")
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i:])
	}
	return s, ""
}

// String serializes the script.
func (s *Script) String() string {
	var b strings.Builder
	if s.bom {
		b.WriteString(utf8BOM)
	}
	for _, l := range s.lines {
		b.WriteString(l.text)
		b.WriteString(l.eol)
	}
	return b.String()
}

// Serialize returns the exact text of s.
func Serialize(s *Script) string {
	return s.String()
}

// Warnings returns the problems found while parsing.
func (s *Script) Warnings() []error {
	return s.warnings
}

// Entries returns the recognized statements in file order.
func (s *Script) Entries() []Entry {
	var entries []Entry
	orders := make(map[Kind]int)
	for i, l := range s.lines {
		if l.stmt == nil {
			continue
		}
		entries = append(entries, Entry{
			Index:    len(entries),
			Kind:     l.stmt.kind,
			Target:   l.stmt.target,
			Args:     l.stmt.args,
			Enabled:  l.stmt.enabled,
			Order:    orders[l.stmt.kind],
			Line:     i + 1,
			Orphaned: l.orphaned,
		})
		orders[l.stmt.kind]++
	}
	return entries
}

// EntriesOf returns the entries of one kind in load order.
func (s *Script) EntriesOf(kind Kind) []Entry {
	var out []Entry
	for _, e := range s.Entries() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// WaitSeconds returns the delay of the last active /wait, or 8 when there is
// none.
func (s *Script) WaitSeconds() int {
	wait := defaultWait
	for _, l := range s.lines {
		if l.stmt == nil || !l.stmt.enabled || l.stmt.kind != ConfigCommand {
			continue
		}
		cmd, rest := cutField(l.stmt.target)
		if strings.EqualFold(cmd, "/wait") {
			if n, err := strconv.Atoi(rest); err == nil {
				wait = n
			}
		}
	}
	return wait
}

// newline returns the line ending the file already uses.
func (s *Script) newline() string {
	for _, l := range s.lines {
		if l.eol != "" {
			return l.eol
		}
	}
	return "\n"
}

// entryLines maps entry indices to line indices.
func (s *Script) entryLines() []int {
	var idx []int
	for i, l := range s.lines {
		if l.stmt != nil {
			idx = append(idx, i)
		}
	}
	return idx
}
