package script

import "strings"

const defaultWait = 8

const rule = "##########################################################################"

var sectionTitles = map[Kind]string{
	PluginLoad:    "Load Plugins",
	AddonLoad:     "Load Addons",
	Keybind:       "Set Keybinds and Alias",
	Alias:         "Set Keybinds and Alias",
	ConfigCommand: "Plugin and Addon Configurations",
}

func banner(title string, body ...string) []string {
	lines := []string{rule, "#", "# " + title, "#"}
	lines = append(lines, body...)
	return append(lines, rule)
}

// NewDefault returns the stock Ashita v4 script layout with empty sections.
func NewDefault() *Script {
	var lines []string
	lines = append(lines, banner("Ashita v4 Script",
		"# This script is executed at the start of the game to allow for the user",
		"# to configure their game instance automatically. Use this script to load",
		"# plugins, addons or adjust different settings as you see fit.",
		"#",
		"# File Syntax:",
		"#",
		"#  - Comments start with '#'.",
		"#  - Commands start with '/'.",
		"#",
	)...)
	lines = append(lines, "")
	for _, k := range []Kind{PluginLoad, AddonLoad, Keybind} {
		lines = append(lines, banner(sectionTitles[k])...)
		lines = append(lines, "")
	}
	lines = append(lines, banner(sectionTitles[ConfigCommand],
		"# Use this section to configure loaded plugins, addons and Ashita.",
		"#",
		"# Important: The wait here is required! If you remove it, addons will not",
		"# see any commands inside of this file!",
		"#",
	)...)
	lines = append(lines, "/wait 8", rule, "")
	return Parse(strings.Join(lines, "\n"))
}
