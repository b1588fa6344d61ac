package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/apispecc/internal/sink"
)

const defaultConfigName = "apispecc.yaml"

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
	Verbose    bool
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample apispecc configuration file",
		Long:  "Scaffold a commented apispecc configuration file that documents available options.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			cfg := &InitConfig{
				OutputPath: out,
				Force:      force,
				Verbose:    verbose,
			}
			return runInit(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("out", defaultConfigName, "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig, stdout io.Writer) error {
	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = defaultConfigName
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force {
		if st.Mode().IsRegular() {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
		}
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot create parent directory: %v", err))
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"
	if err := sink.NewFilesystemSink(dir).WriteFile(ctx, filepath.Base(absPath), []byte(content)); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot place file at %s: %v\nHint: choose a different --out or check directory permissions.", absPath, err))
	}
	if cfg.Verbose {
		newLogger(os.Stderr, true).Debug("sample config written", "path", absPath, "bytes", len(content))
	}
	fmt.Fprintf(stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# apispecc configuration (YAML)
# All fields are optional. Command-line flags override config values.

# Root of the schema corpus (a directory of .yaml/.yml/.json files).
# corpus: ./specification

# Target to emit (go|markdown|openapi|swagger). Defaults to go when omitted.
# target: go

# Output directory. Required unless dryRun is set.
# out: ./generated

# Only compile operations in these namespaces (comma-separated or list).
# include: [cat, indices]

# Skip operations in these namespaces.
# exclude: [_internal]

# Only compile operations whose name matches one of these regular expressions.
# names: ['^indices\.get']

# Package name of the generated Go bindings (go target).
# packageName: esapi

# Title of the generated index (markdown, openapi and swagger targets).
# title: Elasticsearch API

# info.version of the merged document (openapi and swagger targets).
# apiVersion: 9.0.0

# Operations compiled concurrently (0 = number of CPUs).
# workers: 0

# Write run metrics in Prometheus text format to this file.
# metricsFile: ./apispecc.prom

# Preview planned outputs without writing files.
# dryRun: false

# Compare against the files in out and fail when they are stale.
# check: false

# Overwrite non-empty output directory.
# force: false

# Enable verbose logging and warnings about unknown doc tags.
# verbose: false
`
