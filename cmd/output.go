package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/samhoang/ashpm/internal/engine"
	"github.com/samhoang/ashpm/internal/source"
)

var (
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed)
	faintColor = color.New(color.Faint)
	idColor    = color.New(color.Bold)
)

func printOK(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", okColor.Sprint("✓"), msg)
}

func printWarning(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", warnColor.Sprint("!"), msg)
}

func printWarnings(w io.Writer, warnings []error) {
	for _, warning := range warnings {
		printWarning(w, warning.Error())
	}
}

// printError prints err with a hint for the failures a user can act on.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", errColor.Sprint("error:"), err)
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(w, faintColor.Sprint("  "+hint))
	}
}

func errorHint(err error) string {
	switch {
	case errors.Is(err, engine.ErrRefChoiceRequired):
		return "pass --ref, or run in a terminal to pick one"
	case errors.Is(err, engine.ErrEntrypointRequired):
		return "pass --entrypoint with the addon's main .lua file"
	case errors.Is(err, engine.ErrAmbiguousType):
		return "pass --type addon or --type plugin"
	case errors.Is(err, engine.ErrDestinationExists):
		return "pass --force to replace it, or 'ashpm scan' to adopt it"
	case errors.Is(err, engine.ErrRemovalPending):
		return "close the game (files may be in use) and run remove again"
	case errors.Is(err, source.ErrForbidden):
		return "set github_token in ashpm.toml or GITHUB_TOKEN for private sources"
	case errors.Is(err, source.ErrUnreachable):
		return "check your connection and try again"
	}
	return ""
}
