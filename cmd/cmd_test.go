package cmd

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samhoang/ashpm/internal/engine"
	"github.com/samhoang/ashpm/internal/picker"
	"github.com/samhoang/ashpm/internal/registry"
	"github.com/samhoang/ashpm/internal/script"
	"github.com/samhoang/ashpm/internal/source"
)

type fakeSource struct {
	refs  map[string][]source.Ref
	trees map[string]map[string]string // by locator
}

func (f *fakeSource) Classify(raw string) (source.Location, error) {
	return source.Classify(raw)
}

func (f *fakeSource) ListRefs(ctx context.Context, loc source.Location) ([]source.Ref, error) {
	refs := f.refs[loc.URL]
	if len(refs) == 0 {
		return nil, &source.SourceError{Op: "list refs", URL: loc.URL, Kind: source.ErrNoRefsFound}
	}
	return refs, nil
}

func (f *fakeSource) Fetch(ctx context.Context, loc source.Location, ref source.Ref, destPath string) (*source.Fetched, error) {
	for name, content := range f.trees[ref.Locator] {
		path := filepath.Join(destPath, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, err
		}
	}
	return &source.Fetched{Dir: destPath, Ref: ref}, nil
}

type fakeChooser struct {
	one    string
	many   []string
	titles []string
}

func (c *fakeChooser) ChooseOne(title string, items []picker.Item) (string, error) {
	c.titles = append(c.titles, title)
	return c.one, nil
}

func (c *fakeChooser) ChooseMany(title string, items []picker.Item) ([]string, error) {
	c.titles = append(c.titles, title)
	return c.many, nil
}

const distanceURL = "https://github.com/acme/distance"

type env struct {
	root    string
	home    string
	src     *fakeSource
	chooser *fakeChooser
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		root: t.TempDir(),
		home: t.TempDir(),
		src: &fakeSource{
			refs: map[string][]source.Ref{
				distanceURL: {{Name: "main", Kind: source.RefBranch, Locator: "aaaaaaa1", Default: true}},
			},
			trees: map[string]map[string]string{
				"aaaaaaa1": {"distance.lua": "addon.name = 'distance'", "README.md": "# Distance\n"},
				"bbbbbbb2": {"distance.lua": "addon.version = '2'"},
			},
		},
		chooser: &fakeChooser{},
	}
	t.Setenv("ASHPM_HOME", e.home)
	t.Setenv("ASHPM_ROOT", "")
	t.Setenv("GITHUB_TOKEN", "")

	oldNoColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = oldNoColor })

	oldSource, oldChooser, oldInteractive, oldNow := newSource, chooser, interactive, now
	newSource = func(source.Options, *slog.Logger) engine.Source { return e.src }
	chooser = e.chooser
	interactive = func() bool { return false }
	now = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
	t.Cleanup(func() {
		newSource, chooser, interactive, now = oldSource, oldChooser, oldInteractive, oldNow
	})

	_, err := execute(t, "init", "--root", e.root)
	require.NoError(t, err)
	return e
}

func (e *env) scriptText(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.root, "scripts", "default.txt"))
	require.NoError(t, err)
	return string(data)
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInit(t *testing.T) {
	e := newEnv(t)
	assert.DirExists(t, filepath.Join(e.root, "addons"))
	assert.DirExists(t, filepath.Join(e.root, "plugins"))
	assert.FileExists(t, filepath.Join(e.home, "ashpm.toml"))
	assert.Contains(t, e.scriptText(t), "# Load Addons")
}

func TestNotInitialized(t *testing.T) {
	t.Setenv("ASHPM_HOME", t.TempDir())
	t.Setenv("ASHPM_ROOT", "")
	_, err := execute(t, "list")
	assert.ErrorIs(t, err, errNotInitialized)
}

func TestInstallListRemove(t *testing.T) {
	e := newEnv(t)

	out, err := execute(t, "install", distanceURL)
	require.NoError(t, err)
	assert.Contains(t, out, "Installed addon/distance")
	assert.FileExists(t, filepath.Join(e.root, "addons", "distance", "distance.lua"))
	assert.Contains(t, e.scriptText(t), "\n/addon load distance\n")

	out, err = execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "addon/distance")
	assert.Contains(t, out, distanceURL)

	out, err = execute(t, "info", "addon/distance")
	require.NoError(t, err)
	assert.Contains(t, out, "Script:")
	assert.Regexp(t, `Files:\s+2 \(34 B\)`, out)
	assert.Contains(t, out, "install")

	out, err = execute(t, "find", "dist")
	require.NoError(t, err)
	assert.Contains(t, out, "addon/distance")

	out, err = execute(t, "readme", "addon/distance")
	require.NoError(t, err)
	assert.Equal(t, "# Distance\n", out)

	out, err = execute(t, "remove", "addon/distance")
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(e.root, "addons", "distance"))
	assert.Contains(t, out, script.ErrOrphanedReference.Error())
	assert.Contains(t, e.scriptText(t), "\n/addon load distance\n")

	out, err = execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "remove")
}

func TestInstallNeedsRef(t *testing.T) {
	e := newEnv(t)
	e.src.refs[distanceURL] = append(e.src.refs[distanceURL], source.Ref{Name: "dev", Kind: source.RefBranch, Locator: "bbbbbbb2"})

	out, err := execute(t, "install", distanceURL)
	require.ErrorIs(t, err, engine.ErrRefChoiceRequired)
	assert.Contains(t, out, "Available refs:")
	assert.Contains(t, out, "dev")
	assert.Contains(t, errorHint(err), "--ref")

	_, err = execute(t, "install", distanceURL, "--ref", "dev", "--no-script")
	require.NoError(t, err)
	assert.NotContains(t, e.scriptText(t), "/addon load distance")
}

func TestInstallPicksRef(t *testing.T) {
	e := newEnv(t)
	e.src.refs[distanceURL] = append(e.src.refs[distanceURL], source.Ref{Name: "dev", Kind: source.RefBranch, Locator: "bbbbbbb2"})
	interactive = func() bool { return true }
	e.chooser.one = "dev"

	out, err := execute(t, "install", distanceURL)
	require.NoError(t, err)
	assert.Contains(t, out, "dev")
	require.Len(t, e.chooser.titles, 1)

	out, err = execute(t, "refs", "addon/distance")
	require.NoError(t, err)
	assert.Contains(t, out, "* dev")
}

func TestUpdate(t *testing.T) {
	e := newEnv(t)
	_, err := execute(t, "install", distanceURL)
	require.NoError(t, err)

	out, err := execute(t, "update", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	e.src.refs[distanceURL][0].Locator = "bbbbbbb2"
	out, err = execute(t, "update", "addon/distance")
	require.NoError(t, err)
	assert.Contains(t, out, "addon/distance main @aaaaaaa -> main @bbbbbbb")

	_, err = execute(t, "update", "addon/distance", "addon/other", "--ref", "x")
	assert.Error(t, err)
}

func TestScriptCommands(t *testing.T) {
	e := newEnv(t)
	_, err := execute(t, "install", distanceURL)
	require.NoError(t, err)

	_, err = execute(t, "script", "add", "addon", "timers")
	require.NoError(t, err)
	out, err := execute(t, "script", "list", "--kind", "addon")
	require.NoError(t, err)
	assert.Contains(t, out, "timers (not installed)")
	assert.Contains(t, out, "/wait 8")

	_, err = execute(t, "script", "disable", "distance")
	require.NoError(t, err)
	assert.Contains(t, e.scriptText(t), "#/addon load distance")

	_, err = execute(t, "script", "move", "timers", "1")
	require.NoError(t, err)
	assert.Contains(t, e.scriptText(t), "/addon load timers\n#/addon load distance\n")

	before := e.scriptText(t)
	out, err = execute(t, "script", "enable", "addon/distance", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "-#/addon load distance")
	assert.Contains(t, out, "+/addon load distance")
	assert.Equal(t, before, e.scriptText(t))

	_, err = execute(t, "script", "rm", "timers")
	require.NoError(t, err)
	assert.NotContains(t, e.scriptText(t), "timers")

	_, err = execute(t, "script", "rm", "99")
	assert.ErrorIs(t, err, script.ErrIndexOutOfRange)

	out, err = execute(t, "script", "diff", "--default")
	require.NoError(t, err)
	assert.Contains(t, out, "-#/addon load distance")
}

func TestExportImport(t *testing.T) {
	e := newEnv(t)
	_, err := execute(t, "install", distanceURL)
	require.NoError(t, err)

	manifest := filepath.Join(t.TempDir(), "packages.yaml")
	_, err = execute(t, "export", "-o", manifest)
	require.NoError(t, err)
	data, err := os.ReadFile(manifest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "source_url: "+distanceURL)

	_, err = execute(t, "remove", "addon/distance")
	require.NoError(t, err)

	out, err := execute(t, "import", manifest, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "addon/distance")
	assert.NoDirExists(t, filepath.Join(e.root, "addons", "distance"))

	out, err = execute(t, "import", manifest)
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 1 installed")
	assert.DirExists(t, filepath.Join(e.root, "addons", "distance"))

	out, err = execute(t, "import", manifest)
	require.NoError(t, err)
	assert.Contains(t, out, "already installed")
}

func TestScan(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Join(e.root, "addons", "timers"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.root, "addons", "timers", "timers.lua"), nil, 0o644))

	out, err := execute(t, "scan", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "addon/timers")

	out, err = execute(t, "scan")
	require.NoError(t, err)
	assert.Contains(t, out, "1 registered")

	out, err = execute(t, "list", "--type", "addons")
	require.NoError(t, err)
	assert.Contains(t, out, "addon/timers")
}

func TestErrorHint(t *testing.T) {
	assert.Empty(t, errorHint(errors.New("boom")))
	assert.Contains(t, errorHint(&source.SourceError{Kind: source.ErrForbidden}), "GITHUB_TOKEN")

	var buf bytes.Buffer
	printError(&buf, engine.ErrAmbiguousType)
	assert.Contains(t, buf.String(), "--type addon")
}

func TestLink(t *testing.T) {
	e := newEnv(t)
	dir := filepath.Join(t.TempDir(), "timers")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "timers.lua"), []byte("-- dev"), 0o644))

	out, err := execute(t, "link", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Linked addon/timers")
	assert.FileExists(t, filepath.Join(e.root, "addons", "timers", "timers.lua"))
	assert.Contains(t, e.scriptText(t), "\n/addon load timers\n")

	out, err = execute(t, "update", "addon/timers")
	require.NoError(t, err)
	assert.Contains(t, out, "linked, skipped")

	_, err = execute(t, "remove", "addon/timers")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(e.root, "addons", "timers", "timers.lua"))
	assert.FileExists(t, filepath.Join(dir, "timers.lua"))
}

func TestCompletion(t *testing.T) {
	out, err := execute(t, "completion", "powershell")
	require.NoError(t, err)
	assert.Contains(t, out, "ashpm")

	_, err = execute(t, "completion", "cmd.exe")
	assert.Error(t, err)
}

func TestRemoveLeavesOrphanedScriptEntry(t *testing.T) {
	e := newEnv(t)
	_, err := execute(t, "install", distanceURL)
	require.NoError(t, err)
	_, err = execute(t, "remove", "addon/distance")
	require.NoError(t, err)

	reg, err := registry.Open(filepath.Join(e.home, "packages.toml"), nil)
	require.NoError(t, err)
	assert.False(t, reg.Has("addon/distance"))

	store := script.NewStore(filepath.Join(e.root, "scripts", "default.txt"))
	s, res, err := store.Update(reg, func(*script.Script) error { return nil })
	require.NoError(t, err)
	entry, ok := s.Find(script.AddonLoad, "distance")
	require.True(t, ok)
	assert.True(t, entry.Orphaned)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], script.ErrOrphanedReference)

	// reinstalling adopts the existing line instead of adding a second one
	_, err = execute(t, "install", distanceURL)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(e.scriptText(t), "/addon load distance"))

	_, err = execute(t, "remove", "--drop-script", "addon/distance")
	require.NoError(t, err)
	assert.NotContains(t, e.scriptText(t), "distance")
	assert.NotContains(t, e.scriptText(t), "\n\n\n")
}
