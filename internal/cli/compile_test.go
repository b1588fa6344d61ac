package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func captureRoot(captured **CompileConfig) func(ctx context.Context, cfg *CompileConfig, stdout, stderr io.Writer) error {
	return func(ctx context.Context, cfg *CompileConfig, stdout, stderr io.Writer) error {
		*captured = cfg
		return nil
	}
}

func TestCompileConfigFromFlags(t *testing.T) {
	t.Parallel()

	var captured *CompileConfig
	root := newRootCmd(captureRoot(&captured))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{
		"--verbose",
		"compile",
		"--corpus", "specification",
		"--target", "MarkDown",
		"--out", "./build",
		"--include", "cat, indices,cat",
		"--exclude", "ml",
		"--names", "^cat\\.",
		"--package-name", "esapi",
		"--title", "Reference",
		"--workers", "4",
		"--metrics-file", "run.prom",
		"--force",
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if captured == nil {
		t.Fatalf("expected config to be captured")
	}

	want := CompileConfig{
		Corpus:      "specification",
		Target:      "markdown",
		Out:         "./build",
		Include:     []string{"cat", "indices"},
		Exclude:     []string{"ml"},
		Names:       []string{`^cat\.`},
		PackageName: "esapi",
		Title:       "Reference",
		Workers:     4,
		MetricsFile: "run.prom",
		Force:       true,
		Verbose:     true,
	}
	if diff := cmp.Diff(want, *captured); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestCompileConfigPrecedence(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := strings.TrimSpace(`corpus: config-corpus
target: openapi
out: from-config
include:
  - cfgFoo
exclude: cfgBar
package_name: cfgpkg
api-version: 8.19.0
workers: 2
dryRun: true
force: false
verbose: true
`) + "\n"
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var captured *CompileConfig
	root := newRootCmd(captureRoot(&captured))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{
		"--config", configPath,
		"compile",
		"--corpus", "flag-corpus",
		"--include", "flagNs",
		"--dry-run=false",
		"--force",
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if captured == nil {
		t.Fatalf("expected config to be captured")
	}

	want := CompileConfig{
		Corpus:      "flag-corpus",
		Target:      "openapi",
		Out:         "from-config",
		Include:     []string{"flagNs"},
		Exclude:     []string{"cfgBar"},
		PackageName: "cfgpkg",
		APIVersion:  "8.19.0",
		Workers:     2,
		Force:       true,
		Verbose:     true,
		ConfigPath:  configPath,
	}
	if diff := cmp.Diff(want, *captured); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestCompileConfigUnknownKey(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte("unknown: value\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", configPath, "compile", "--corpus", "c", "--out", "o"})

	err := root.Execute()
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestCompileConfigValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"missing corpus", []string{"--out", "o"}, "corpus is required"},
		{"missing out", []string{"--corpus", "c"}, "out is required unless --dry-run is set"},
		{"bad target", []string{"--corpus", "c", "--out", "o", "--target", "rust"}, `target "rust" is not supported (allowed: go, markdown, openapi, swagger)`},
		{"check with dry run", []string{"--corpus", "c", "--dry-run", "--check"}, "check cannot be combined with --dry-run"},
		{"negative workers", []string{"--corpus", "c", "--out", "o", "--workers", "-1"}, "workers must be at least 0"},
		{"bad package", []string{"--corpus", "c", "--out", "o", "--package-name", "Es-API"}, "packageName"},
		{"overlap", []string{"--corpus", "c", "--out", "o", "--include", "cat", "--exclude", "cat"}, "overlap: cat"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var captured *CompileConfig
			root := newRootCmd(captureRoot(&captured))
			root.SetOut(io.Discard)
			root.SetErr(io.Discard)
			root.SetArgs(append([]string{"compile"}, tc.args...))
			err := root.Execute()
			if !errors.Is(err, ErrUsage) {
				t.Fatalf("expected usage error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
			if captured != nil {
				t.Errorf("runner must not be called on invalid config")
			}
		})
	}
}

func corpusDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(filepath.Join("..", "..", "testdata", "corpus"))
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestCompile_DryRun(t *testing.T) {
	t.Parallel()
	outDir := filepath.Join(t.TempDir(), "out-go")

	stdout, _, err := execute(t, "compile", "--corpus", corpusDir(t), "--target", "go", "--out", outDir, "--dry-run")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(stdout, "Planned writes to") || !strings.Contains(stdout, "- api.cat.templates.go") {
		t.Fatalf("expected dry-run plan output, got: %s", stdout)
	}
	if !strings.Contains(stdout, "go: 3 operations emitted, 0 rejected, 0 filtered") {
		t.Errorf("summary missing: %s", stdout)
	}
	// Dry-run should not create the directory
	if _, err := os.Stat(outDir); err == nil {
		t.Fatalf("expected no writes on dry-run")
	}
}

func TestCompile_WriteThenCheck(t *testing.T) {
	t.Parallel()
	outDir := filepath.Join(t.TempDir(), "docs")
	metricsFile := filepath.Join(t.TempDir(), "run.prom")

	if _, _, err := execute(t, "compile", "--corpus", corpusDir(t), "--target", "markdown", "--out", outDir, "--metrics-file", metricsFile); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "operations", "cat.templates.md")); err != nil {
		t.Fatalf("expected written page: %v", err)
	}
	prom, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	if !strings.Contains(string(prom), `apispecc_operations_total{status="emitted"} 3`) {
		t.Errorf("metrics:\n%s", prom)
	}

	// a second plain run refuses the non-empty directory
	if _, _, err := execute(t, "compile", "--corpus", corpusDir(t), "--target", "markdown", "--out", outDir); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error for non-empty out, got %v", err)
	}

	if _, _, err := execute(t, "compile", "--corpus", corpusDir(t), "--target", "markdown", "--out", outDir, "--check"); err != nil {
		t.Fatalf("check on fresh output: %v", err)
	}

	stale := filepath.Join(outDir, "README.md")
	if err := os.WriteFile(stale, []byte("edited by hand\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, stderr, err := execute(t, "compile", "--corpus", corpusDir(t), "--target", "markdown", "--out", outDir, "--check")
	if err == nil || !strings.Contains(err.Error(), "1 generated files are out of date") {
		t.Fatalf("expected drift error, got %v", err)
	}
	if !strings.Contains(stderr, "stale: README.md: differs") {
		t.Errorf("stderr: %s", stderr)
	}

	// pages of operations that no longer exist are stale too
	if err := os.WriteFile(filepath.Join(outDir, "operations", "removed.op.md"), []byte("old page\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, stderr, err = execute(t, "compile", "--corpus", corpusDir(t), "--target", "markdown", "--out", outDir, "--check")
	if err == nil || !strings.Contains(err.Error(), "2 generated files are out of date") {
		t.Fatalf("expected drift error, got %v", err)
	}
	if !strings.Contains(stderr, "stale: operations/removed.op.md: unexpected") {
		t.Errorf("stderr: %s", stderr)
	}
}

func TestCompile_ViolationsExitNonZero(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	bad := `operation:
  doc: |
    Broken.
    @rest_spec_name demo.broken
  query_parameters:
    - name: flag
      type: boolean
      default: maybe
`
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}

	_, stderr, err := execute(t, "compile", "--corpus", dir, "--dry-run")
	if !errors.Is(err, ErrViolations) {
		t.Fatalf("expected violations error, got %v", err)
	}
	if ExitCode(err) != 1 {
		t.Errorf("exit code: %d", ExitCode(err))
	}
	for _, want := range []string{"MissingMetadataError", "missing required tag @availability", "InvalidDefaultValueError", `default "maybe"`} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
}

func TestCompile_MissingCorpus(t *testing.T) {
	t.Parallel()
	_, _, err := execute(t, "compile", "--corpus", filepath.Join(t.TempDir(), "nope"), "--dry-run")
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "corpus: ") || !strings.Contains(err.Error(), "Location: ") {
		t.Errorf("unexpected message: %v", err)
	}
	if ExitCode(err) != 2 {
		t.Errorf("exit code: %d", ExitCode(err))
	}
}

func TestTargets(t *testing.T) {
	t.Parallel()
	stdout, _, err := execute(t, "targets")
	if err != nil {
		t.Fatalf("targets: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	var names []string
	for _, l := range lines {
		names = append(names, strings.Fields(l)[0])
	}
	if diff := cmp.Diff(targetNames(), names); diff != "" {
		t.Errorf("targets (-want +got):\n%s", diff)
	}
}
