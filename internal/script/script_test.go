package script

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `# my script
/load thirdparty
/load   screenshot   --quiet
#/load hideconsole

/addon load distance
  #/addon load timers
/addon load tparty
/bind F1 /ma "Cure" <t>
/alias /hi /echo hello
/exec keybinds.txt
/wait 3
/fps 1
`

type installed map[string]bool

func (m installed) Has(id string) bool { return m[id] }

func TestRoundTrip(t *testing.T) {
	inputs := map[string]string{
		"sample":          sample,
		"crlf":            strings.ReplaceAll(sample, "\n", "\r\n"),
		"bom":             utf8BOM + sample,
		"no final eol":    strings.TrimSuffix(sample, "\n"),
		"mixed endings":   "/load a\r\n/load b\n\n# c\r\n",
		"empty":           "",
		"only newlines":   "\n\n\n",
		"garbage":         "/\n/load\n/wait soon\n\t#\t/addon load x extra args\n",
		"trailing spaces": "/load a   \n   \n",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, in, Parse(in).String())
		})
	}
}

func TestDefaultIsStable(t *testing.T) {
	s := NewDefault()
	text := s.String()
	assert.Equal(t, text, Parse(text).String())
	assert.Empty(t, s.Warnings())
	assert.Equal(t, 8, s.WaitSeconds())
	assert.True(t, strings.HasSuffix(text, rule+"\n"))
}

func TestEntries(t *testing.T) {
	s := Parse(sample)
	require.Empty(t, s.Warnings())

	plugins := s.EntriesOf(PluginLoad)
	require.Len(t, plugins, 3)
	assert.Equal(t, "screenshot", plugins[1].Target)
	assert.Equal(t, "--quiet", plugins[1].Args)
	assert.False(t, plugins[2].Enabled)
	assert.Equal(t, 2, plugins[2].Order)
	assert.Equal(t, "plugin/hideconsole", plugins[2].PackageID())

	addons := s.EntriesOf(AddonLoad)
	require.Len(t, addons, 3)
	assert.Equal(t, "timers", addons[1].Target)
	assert.False(t, addons[1].Enabled)
	assert.Equal(t, 7, addons[1].Line)

	binds := s.EntriesOf(Keybind)
	require.Len(t, binds, 2)
	assert.Equal(t, `/bind F1 /ma "Cure" <t>`, binds[0].Target)
	assert.Equal(t, "/exec keybinds.txt", binds[1].Target)
	assert.Len(t, s.EntriesOf(Alias), 1)
	assert.Len(t, s.EntriesOf(ConfigCommand), 2)
	assert.Equal(t, 3, s.WaitSeconds())
	assert.Empty(t, Entry{Kind: Keybind}.PackageID())
}

func TestUnparseableLinesAreKept(t *testing.T) {
	in := "/load\n/wait soon\n/addon load\n/load ok\n"
	s := Parse(in)
	assert.Equal(t, in, s.String())
	require.Len(t, s.Warnings(), 3)
	var se *ScriptError
	require.ErrorAs(t, s.Warnings()[1], &se)
	assert.Equal(t, 2, se.Line)
	assert.ErrorIs(t, se, ErrUnparseableLine)
	assert.Len(t, s.Entries(), 1)
	assert.Equal(t, 8, s.WaitSeconds())
}

func TestSetEnabled(t *testing.T) {
	s := Parse(sample)
	timers, ok := s.Find(AddonLoad, "Timers")
	require.True(t, ok)

	require.NoError(t, s.SetEnabled(timers.Index, true))
	assert.Contains(t, s.String(), "\n  /addon load timers\n")
	require.NoError(t, s.SetEnabled(timers.Index, false))
	assert.Contains(t, s.String(), "\n  #/addon load timers\n")

	// no-op keeps the text as is
	before := s.String()
	require.NoError(t, s.SetEnabled(0, true))
	assert.Equal(t, before, s.String())

	assert.ErrorIs(t, s.SetEnabled(99, true), ErrIndexOutOfRange)
}

func TestReorderKeepsOtherKinds(t *testing.T) {
	s := Parse(sample)
	others := func() []Entry {
		var out []Entry
		for _, e := range s.Entries() {
			if e.Kind != PluginLoad {
				out = append(out, e)
			}
		}
		return out
	}
	before := others()

	require.NoError(t, s.Reorder(PluginLoad, 0, 2))
	var names []string
	for _, e := range s.EntriesOf(PluginLoad) {
		names = append(names, e.Target)
	}
	assert.Equal(t, []string{"screenshot", "hideconsole", "thirdparty"}, names)
	assert.Equal(t, before, others())

	require.NoError(t, s.Reorder(PluginLoad, 2, 0))
	assert.Equal(t, sample, s.String())

	assert.ErrorIs(t, s.Reorder(PluginLoad, 0, 3), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.Reorder(Alias, 1, 0), ErrIndexOutOfRange)
}

func TestReorderKeepsLineEndings(t *testing.T) {
	in := "/load a\r\n/load b"
	s := Parse(in)
	require.NoError(t, s.Reorder(PluginLoad, 0, 1))
	assert.Equal(t, "/load b\r\n/load a", s.String())
}

func TestAddEntryAfterSameKind(t *testing.T) {
	s := Parse(sample)
	e, err := s.AddEntry(AddonLoad, "recast", "", true)
	require.NoError(t, err)
	assert.Equal(t, 3, e.Order)
	assert.Equal(t, 9, e.Line)
	assert.Contains(t, s.String(), "/addon load tparty\n/addon load recast\n/bind F1")
}

func TestAddEntryIntoDefault(t *testing.T) {
	s := NewDefault()
	_, err := s.AddEntry(PluginLoad, "thirdparty", "", true)
	require.NoError(t, err)
	_, err = s.AddEntry(PluginLoad, "screenshot", "", true)
	require.NoError(t, err)
	_, err = s.AddEntry(AddonLoad, "distance", "", false)
	require.NoError(t, err)

	text := s.String()
	assert.Contains(t, text, "# Load Plugins\n#\n"+rule+"\n\n/load thirdparty\n/load screenshot\n\n"+rule)
	assert.Contains(t, text, "# Load Addons\n#\n"+rule+"\n\n#/addon load distance\n\n"+rule)
	assert.Equal(t, text, Parse(text).String())

	// configuration follows the /wait so addons see it
	_, err = s.AddEntry(ConfigCommand, "/fps 1", "", true)
	require.NoError(t, err)
	cfg := s.EntriesOf(ConfigCommand)
	require.Len(t, cfg, 2)
	assert.Equal(t, "/wait 8", cfg[0].Target)
	assert.Equal(t, "/fps 1", cfg[1].Target)
	assert.True(t, strings.HasSuffix(s.String(), "/wait 8\n/fps 1\n"+rule+"\n"))
}

func TestAddEntryWithoutSections(t *testing.T) {
	s := Parse("/addon load distance\n/wait 2")
	_, err := s.AddEntry(PluginLoad, "thirdparty", "", true)
	require.NoError(t, err)
	_, err = s.AddEntry(ConfigCommand, "fps 1", "", true)
	require.NoError(t, err)
	assert.Equal(t, "/load thirdparty\n/addon load distance\n/wait 2\n/fps 1", s.String())

	_, err = s.AddEntry(Keybind, "  ", "", true)
	assert.ErrorIs(t, err, ErrUnparseableLine)
}

func TestFormatEntry(t *testing.T) {
	tests := []struct {
		kind    Kind
		target  string
		args    string
		enabled bool
		want    string
	}{
		{PluginLoad, "thirdparty", "", true, "/load thirdparty"},
		{AddonLoad, "distance", "-x", false, "#/addon load distance -x"},
		{Keybind, "F1 /echo hi", "", true, "/bind F1 /echo hi"},
		{Alias, "/alias /hi /echo hi", "", true, "/alias /hi /echo hi"},
		{ConfigCommand, "fps 1", "ignored", true, "/fps 1"},
	}
	for _, tt := range tests {
		got, err := FormatEntry(tt.kind, tt.target, tt.args, tt.enabled)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := FormatEntry("bogus", "x", "", true)
	assert.Error(t, err)
}

func TestDisabledPrefixNeedsNoSpace(t *testing.T) {
	s := Parse("# /load is how plugins start\n#/load hideconsole\n#  /addon load x\n")
	require.Len(t, s.Entries(), 1)
	assert.Equal(t, "hideconsole", s.Entries()[0].Target)
	assert.False(t, s.Entries()[0].Enabled)
	assert.Empty(t, s.MarkOrphans(installed{"plugin/hideconsole": true}))
}

func TestAddThenRemoveRestoresDefault(t *testing.T) {
	want := NewDefault().String()
	s := NewDefault()
	for range 3 {
		e, err := s.AddEntry(AddonLoad, "distance", "", true)
		require.NoError(t, err)
		require.NoError(t, s.RemoveEntry(e.Index))
	}
	assert.Equal(t, want, s.String())

	s = Parse("/load a\n\n/load b\n\n# end\n")
	require.NoError(t, s.RemoveEntry(1))
	assert.Equal(t, "/load a\n\n# end\n", s.String())
}

func TestRemoveEntry(t *testing.T) {
	s := Parse("/load a\n/load b")
	require.NoError(t, s.RemoveEntry(1))
	assert.Equal(t, "/load a", s.String())
	require.NoError(t, s.RemoveEntry(0))
	assert.Equal(t, "", s.String())
	assert.ErrorIs(t, s.RemoveEntry(0), ErrIndexOutOfRange)
}

func TestExecClassification(t *testing.T) {
	assert.Equal(t, Keybind, execKind("keybinds.txt"))
	assert.Equal(t, Alias, execKind("Aliases.txt"))
	assert.Equal(t, ConfigCommand, execKind("settings.txt"))
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("Addon")
	assert.True(t, ok)
	assert.Equal(t, AddonLoad, k)
	_, ok = ParseKind("macro")
	assert.False(t, ok)
}

func TestMarkOrphans(t *testing.T) {
	s := Parse(sample)
	reg := installed{
		"plugin/thirdparty": true, "plugin/screenshot": true, "plugin/hideconsole": true,
		"addon/distance": true, "addon/timers": true, "addon/tparty": true,
	}
	assert.Empty(t, s.MarkOrphans(reg))

	delete(reg, "addon/timers")
	warnings := s.MarkOrphans(reg)
	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], ErrOrphanedReference)

	timers, _ := s.Find(AddonLoad, "timers")
	assert.True(t, timers.Orphaned)
	assert.Equal(t, sample, s.String())
}

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scripts", "default.txt")
	st := NewStore(path)

	s, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, NewDefault().String(), s.String())

	_, res, err := st.Update(installed{}, func(s *Script) error {
		_, err := s.AddEntry(AddonLoad, "distance", "", true)
		return err
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], ErrOrphanedReference)

	loaded, err := st.Load()
	require.NoError(t, err)
	_, ok := loaded.Find(AddonLoad, "distance")
	assert.True(t, ok)

	before, err := os.ReadFile(path)
	require.NoError(t, err)
	_, _, err = st.Update(nil, func(s *Script) error { return s.RemoveEntry(99) })
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	names, err := ListScripts(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, []string{"default.txt"}, names)
}

func TestListScriptsMissingDir(t *testing.T) {
	names, err := ListScripts(filepath.Join(t.TempDir(), "nope"))
	assert.NoError(t, err)
	assert.Empty(t, names)
}

func TestWatch(t *testing.T) {
	old := watchDebounce
	watchDebounce = 10 * time.Millisecond
	t.Cleanup(func() { watchDebounce = old })

	dir := t.TempDir()
	path := filepath.Join(dir, "default.txt")
	require.NoError(t, os.WriteFile(path, []byte("/load a\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan []error, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, installed{}, func(s *Script, warnings []error) { got <- warnings })
	}()

	// the watcher may not be registered yet, so keep writing until it reports
	deadline := time.After(5 * time.Second)
	var warnings []error
loop:
	for {
		require.NoError(t, os.WriteFile(path, []byte("/addon load distance\n"), 0o644))
		select {
		case warnings = <-got:
			break loop
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no change reported")
		}
	}
	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], ErrOrphanedReference)

	cancel()
	assert.NoError(t, <-done)
}
