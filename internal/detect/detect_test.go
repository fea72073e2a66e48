package detect

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func file(content string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(content)}
}

func TestInspect(t *testing.T) {
	tests := []struct {
		name      string
		fsys      fstest.MapFS
		hints     Hints
		wantType  Type
		wantName  string
		wantRoot  string
		wantCands []string
	}{
		{
			name:     "addon at root",
			fsys:     fstest.MapFS{"distance.lua": file(""), "README.md": file("")},
			wantType: Addon, wantName: "distance", wantRoot: ".",
		},
		{
			name:     "addon in wrapper directory",
			fsys:     fstest.MapFS{"Distance-main/Distance.lua": file(""), "Distance-main/lib/util.lua": file("")},
			wantType: Addon, wantName: "Distance", wantRoot: "Distance-main",
		},
		{
			name: "addons folder",
			fsys: fstest.MapFS{
				"addons/libs/common.lua":    file(""),
				"addons/timers/timers.lua":  file(""),
				"addons/timers/config.lua":  file(""),
				"docs/readme.md":            file(""),
				"addons/broken/nothing.lua": file(""),
			},
			wantType: Addon, wantName: "timers", wantRoot: "addons/timers",
		},
		{
			name: "several addons lists them",
			fsys: fstest.MapFS{
				"addons/libs/common.lua":   file(""),
				"addons/timers/timers.lua": file(""),
				"addons/points/points.lua": file(""),
			},
			hints:    Hints{RepoName: "ashita-addons"},
			wantType: Addon, wantRoot: "addons",
			wantCands: []string{"points", "timers"},
		},
		{
			name: "entrypoint picks one of several addons",
			fsys: fstest.MapFS{
				"addons/timers/timers.lua": file(""),
				"addons/points/points.lua": file(""),
			},
			hints:    Hints{RepoName: "ashita-addons", Entrypoint: "timers"},
			wantType: Addon, wantName: "timers", wantRoot: "addons/timers",
		},
		{
			name: "repo name picks one of several addons",
			fsys: fstest.MapFS{
				"addons/timers/timers.lua": file(""),
				"addons/points/points.lua": file(""),
			},
			hints:    Hints{RepoName: "Points.git"},
			wantType: Addon, wantName: "points", wantRoot: "addons/points",
		},
		{
			name:     "named folder",
			fsys:     fstest.MapFS{"hxui/hxui.lua": file(""), "screenshots/a.png": file("")},
			wantType: Addon, wantName: "hxui", wantRoot: "hxui",
		},
		{
			name:     "hidden directories ignored",
			fsys:     fstest.MapFS{".git/config": file(""), ".github/workflows/ci.yml": file(""), "tool/tool.lua": file("")},
			wantType: Addon, wantName: "tool", wantRoot: "tool",
		},
		{
			name:     "plugin in plugins folder",
			fsys:     fstest.MapFS{"plugins/Minimap.dll": file("MZ"), "resources/minimap/map.png": file("")},
			wantType: Plugin, wantName: "Minimap", wantRoot: "plugins",
		},
		{
			name:     "plugin at root",
			fsys:     fstest.MapFS{"thirdparty.dll": file("MZ"), "LICENSE": file("")},
			wantType: Plugin, wantName: "thirdparty", wantRoot: ".",
		},
		{
			name:     "plugin one level down",
			fsys:     fstest.MapFS{"release/deeps.dll": file("MZ"), "src/deeps.cpp": file("")},
			wantType: Plugin, wantName: "deeps", wantRoot: "release",
		},
		{
			name:     "plugin too deep",
			fsys:     fstest.MapFS{"a/b/c/deep.dll": file("MZ"), "x/readme.md": file("")},
			wantType: Ambiguous, wantRoot: ".",
		},
		{
			name:     "nothing recognizable",
			fsys:     fstest.MapFS{"README.md": file(""), "src/main.c": file(""), "docs/guide.md": file("")},
			wantType: Ambiguous, wantRoot: ".",
		},
		{
			name:     "both patterns",
			fsys:     fstest.MapFS{"helper.dll": file("MZ"), "helper.lua": file("")},
			wantType: Ambiguous, wantRoot: ".",
		},
		{
			name:     "repo name picks main file",
			fsys:     fstest.MapFS{"config.lua": file(""), "points.lua": file(""), "ui.lua": file("")},
			hints:    Hints{RepoName: "Points"},
			wantType: Addon, wantName: "points", wantRoot: ".",
		},
		{
			name:     "substring match",
			fsys:     fstest.MapFS{"config.lua": file(""), "mobdb.lua": file("")},
			hints:    Hints{RepoName: "mobdb-ashita"},
			wantType: Addon, wantName: "mobdb", wantRoot: ".",
		},
		{
			name:     "undecidable main file",
			fsys:     fstest.MapFS{"a.lua": file(""), "b.lua": file("")},
			hints:    Hints{RepoName: "something"},
			wantType: Addon, wantRoot: ".",
			wantCands: []string{"a", "b"},
		},
		{
			name:     "entrypoint resolves ambiguity",
			fsys:     fstest.MapFS{"a.lua": file(""), "b.lua": file("")},
			hints:    Hints{RepoName: "something", Entrypoint: "b.lua"},
			wantType: Addon, wantName: "b", wantRoot: ".",
		},
		{
			name:     "forced addon wins over plugin shape",
			fsys:     fstest.MapFS{"helper.dll": file("MZ"), "helper.lua": file("")},
			hints:    Hints{Forced: Addon},
			wantType: Addon, wantName: "helper", wantRoot: ".",
		},
		{
			name:     "forced type without matching layout",
			fsys:     fstest.MapFS{"README.md": file("")},
			hints:    Hints{Forced: Plugin, RepoName: "mystery"},
			wantType: Plugin, wantName: "mystery", wantRoot: ".",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Inspect(tt.fsys, tt.hints)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantName, got.Name)
			assert.Equal(t, tt.wantRoot, got.Root)
			assert.Equal(t, tt.wantCands, got.Candidates)
		})
	}
}

func TestNeedsEntrypoint(t *testing.T) {
	d := Inspect(fstest.MapFS{"a.lua": file(""), "b.lua": file("")}, Hints{})
	assert.True(t, d.NeedsEntrypoint())

	d = Inspect(fstest.MapFS{"a.lua": file("")}, Hints{})
	assert.False(t, d.NeedsEntrypoint())
}

func TestNeedsEntrypointForSeveralAddons(t *testing.T) {
	d := Inspect(fstest.MapFS{
		"addons/timers/timers.lua": file(""),
		"addons/points/points.lua": file(""),
	}, Hints{})
	assert.True(t, d.NeedsEntrypoint())
	assert.Equal(t, []string{"points", "timers"}, d.Candidates)
}

func TestExtras(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
		want []Extra
	}{
		{
			name: "multi-package repository",
			fsys: fstest.MapFS{
				"repo-main/addons/timers/timers.lua": file(""),
				"repo-main/addons/libs/common.lua":   file(""),
				"repo-main/docs/timers/usage.md":     file(""),
				"repo-main/docs/other/usage.md":      file(""),
				"repo-main/Resources/timers/bar.png": file(""),
			},
			want: []Extra{
				{Src: "repo-main/addons/libs", Dest: "addons/libs", Merge: true},
				{Src: "repo-main/docs/timers", Dest: "docs/timers"},
				{Src: "repo-main/Resources/timers", Dest: "resources/timers"},
			},
		},
		{
			name: "shared resources merge",
			fsys: fstest.MapFS{
				"addons/timers/timers.lua":     file(""),
				"Docs/guide.md":                file(""),
				"resources/textures/frame.png": file(""),
			},
			want: []Extra{
				{Src: "Docs", Dest: "docs/timers"},
				{Src: "resources", Dest: "resources", Merge: true},
			},
		},
		{
			name: "folders inside the package travel with it",
			fsys: fstest.MapFS{
				"timers.lua":         file(""),
				"docs/readme.md":     file(""),
				"resources/icon.png": file(""),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := tt.fsys
			d := Inspect(fsys, Hints{})
			require.Equal(t, Addon, d.Type)
			assert.Equal(t, tt.want, Extras(fsys, d, "timers"))
		})
	}
}

func TestDetect(t *testing.T) {
	assert.Equal(t, Addon, Detect(fstest.MapFS{"x.lua": file("")}))
	assert.Equal(t, Plugin, Detect(fstest.MapFS{"x.dll": file("")}))
	assert.Equal(t, Ambiguous, Detect(fstest.MapFS{}))
}

func TestParseType(t *testing.T) {
	for in, want := range map[string]Type{"": Ambiguous, "auto": Ambiguous, "Addon": Addon, "plugins": Plugin} {
		got, err := ParseType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseType("theme")
	assert.Error(t, err)
}

func TestInferAddonName(t *testing.T) {
	tests := []struct {
		folder string
		stems  []string
		repo   string
		want   string
		ok     bool
	}{
		{"crafty", []string{"crafty", "recipes"}, "", "crafty", true},
		{"x", []string{"one"}, "", "one", true},
		{"tracker-v2", []string{"tracker", "util"}, "", "tracker", true},
		{"ab", []string{"ab", "cd"}, "", "ab", true},
		{"zz", []string{"ab", "cd"}, "", "", false},
		{"", []string{"fo", "bar"}, "fo", "fo", true},
	}

	for _, tt := range tests {
		got, ok := inferAddonName(tt.folder, tt.stems, tt.repo)
		assert.Equal(t, tt.ok, ok, "%v", tt.stems)
		assert.Equal(t, tt.want, got)
	}
}
