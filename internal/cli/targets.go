package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mark3labs/apispecc/internal/emitter"
	"github.com/mark3labs/apispecc/internal/emitter/goemitter"
	"github.com/mark3labs/apispecc/internal/emitter/mdemitter"
	"github.com/mark3labs/apispecc/internal/emitter/oasemitter"
)

type target struct {
	name        string
	description string
	build       func(cfg *CompileConfig) emitter.Emitter
}

// targets lists every emitter variant, in the order `targets` prints them.
var targets = []target{
	{
		name:        "go",
		description: "Go client bindings: request types, typed methods and a Transport interface",
		build: func(cfg *CompileConfig) emitter.Emitter {
			return goemitter.New(goemitter.Options{PackageName: cfg.PackageName})
		},
	},
	{
		name:        "markdown",
		description: "Markdown reference pages per operation and type with a README index",
		build: func(cfg *CompileConfig) emitter.Emitter {
			return mdemitter.New(mdemitter.Options{Title: cfg.Title})
		},
	},
	{
		name:        "openapi",
		description: "OpenAPI 3 path fragments, component schemas and a merged openapi.json",
		build: func(cfg *CompileConfig) emitter.Emitter {
			return oasemitter.New(oasemitter.Options{Title: cfg.Title, Version: cfg.APIVersion})
		},
	},
	{
		name:        "swagger",
		description: "The openapi output downgraded to Swagger 2.0, merged into swagger.json",
		build: func(cfg *CompileConfig) emitter.Emitter {
			return oasemitter.NewSwagger(oasemitter.Options{Title: cfg.Title, Version: cfg.APIVersion})
		},
	},
}

func lookupTarget(name string) (target, bool) {
	for _, t := range targets {
		if t.name == name {
			return t, true
		}
	}
	return target{}, false
}

func targetNames() []string {
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.name)
	}
	return names
}

func newTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the available compile targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, t := range targets {
				fmt.Fprintf(tw, "%s\t%s\n", t.name, t.description)
			}
			return tw.Flush()
		},
	}
}

func allowedTargets() string {
	return strings.Join(targetNames(), ", ")
}
