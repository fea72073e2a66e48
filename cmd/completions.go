package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/registry"
	"github.com/samhoang/ashpm/internal/script"
)

// completePackageIDs lists installed package ids
func completePackageIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	paths, _, err := loadConfig()
	if err != nil || !paths.IsInitialized() {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	reg, err := registry.Open(paths.RegistryPath(), nil)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var ids []string
	for _, p := range reg.All() {
		if strings.HasPrefix(p.ID, toComplete) {
			ids = append(ids, p.ID)
		}
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}

// completeScriptNames lists the scripts in the scripts directory
func completeScriptNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	paths, _, err := loadConfig()
	if err != nil || !paths.IsInitialized() {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names, err := script.ListScripts(paths.ScriptsDir())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
