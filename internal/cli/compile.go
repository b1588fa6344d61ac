package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/apispecc/internal/compiler"
	"github.com/mark3labs/apispecc/internal/corpus"
	"github.com/mark3labs/apispecc/internal/diag"
	"github.com/mark3labs/apispecc/internal/emitter"
	"github.com/mark3labs/apispecc/internal/metrics"
	"github.com/mark3labs/apispecc/internal/normalize"
	"github.com/mark3labs/apispecc/internal/sink"
)

// CompileConfig captures all inputs that influence the compile command after
// merging defaults, config file values, and CLI overrides.
type CompileConfig struct {
	Corpus      string   `yaml:"corpus" validate:"required"`
	Target      string   `yaml:"target" validate:"required,target"`
	Out         string   `yaml:"out" validate:"required_without=DryRun"`
	Include     []string `yaml:"include" validate:"dive,required"`
	Exclude     []string `yaml:"exclude" validate:"dive,required"`
	Names       []string `yaml:"names" validate:"dive,required"`
	PackageName string   `yaml:"packageName" validate:"omitempty,lowercase,alphanum"`
	Title       string   `yaml:"title"`
	APIVersion  string   `yaml:"apiVersion"`
	Workers     int      `yaml:"workers" validate:"gte=0,lte=256"`
	MetricsFile string   `yaml:"metricsFile"`
	DryRun      bool     `yaml:"dryRun"`
	Check       bool     `yaml:"check" validate:"excluded_with=DryRun"`
	Force       bool     `yaml:"force"`
	Verbose     bool     `yaml:"verbose"`
	ConfigPath  string   `yaml:"-" validate:"-"`
}

func defaultCompileConfig() CompileConfig {
	return CompileConfig{Target: "go"}
}

type compileRunner func(ctx context.Context, cfg *CompileConfig, stdout, stderr io.Writer) error

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("target", func(fl validator.FieldLevel) bool {
		_, ok := lookupTarget(fl.Field().String())
		return ok
	}); err != nil {
		panic(err)
	}
	return v
}

func newCompileCmd(run compileRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a schema corpus for one target",
		Long: "Compile a schema corpus for one target. " +
			"Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  apispecc compile --corpus ./specification --target go --out ./client
  apispecc compile --corpus ./specification --target markdown --out ./docs --check
  apispecc --config apispecc.yaml compile --force --dry-run`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveCompileConfig(cmd)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.String("corpus", "", "Path to the corpus directory (or a single declaration file)")
	flags.String("target", "", "Target to emit ("+allowedTargets()+"); defaults to go")
	flags.String("out", "", "Output directory")
	flags.StringSlice("include", nil, "Only compile operations in these namespaces")
	flags.StringSlice("exclude", nil, "Skip operations in these namespaces")
	flags.StringSlice("names", nil, "Only compile operations whose name matches one of these regular expressions")
	flags.String("package-name", "", "Package name of the generated Go bindings")
	flags.String("title", "", "Title of the generated index")
	flags.String("api-version", "", "API version recorded in the OpenAPI document")
	flags.Int("workers", 0, "Operations compiled concurrently (0 = number of CPUs)")
	flags.String("metrics-file", "", "Write run metrics in Prometheus text format to this file")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("check", false, "Fail when the files in --out differ from what would be generated")
	flags.Bool("force", false, "Write into a non-empty output directory")

	return cmd
}

func resolveCompileConfig(cmd *cobra.Command) (*CompileConfig, error) {
	cfg := defaultCompileConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyCompileConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyCompileFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyCompileFlagOverrides(flags *pflag.FlagSet, cfg *CompileConfig) error {
	strs := map[string]*string{
		"corpus":       &cfg.Corpus,
		"target":       &cfg.Target,
		"out":          &cfg.Out,
		"package-name": &cfg.PackageName,
		"title":        &cfg.Title,
		"api-version":  &cfg.APIVersion,
		"metrics-file": &cfg.MetricsFile,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(value)
	}

	lists := map[string]*[]string{
		"include": &cfg.Include,
		"exclude": &cfg.Exclude,
		"names":   &cfg.Names,
	}
	for name, dst := range lists {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetStringSlice(name)
		if err != nil {
			return err
		}
		*dst = sanitizeList(value)
	}

	bools := map[string]*bool{
		"dry-run": &cfg.DryRun,
		"check":   &cfg.Check,
		"force":   &cfg.Force,
		"verbose": &cfg.Verbose,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	if flags.Changed("workers") {
		value, err := flags.GetInt("workers")
		if err != nil {
			return err
		}
		cfg.Workers = value
	}
	return nil
}

func (c *CompileConfig) normalize() {
	c.Corpus = strings.TrimSpace(c.Corpus)
	c.Target = strings.ToLower(strings.TrimSpace(c.Target))
	c.Out = strings.TrimSpace(c.Out)
	c.PackageName = strings.TrimSpace(c.PackageName)
	c.Title = strings.TrimSpace(c.Title)
	c.APIVersion = strings.TrimSpace(c.APIVersion)
	c.MetricsFile = strings.TrimSpace(c.MetricsFile)
	c.Include = sanitizeList(c.Include)
	c.Exclude = sanitizeList(c.Exclude)
	c.Names = sanitizeList(c.Names)
	if c.Target == "" {
		c.Target = "go"
	}
}

func (c *CompileConfig) validate() error {
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s %s", fe.Field(), formatValidationError(fe)))
		}
		return newUsageError("compile: " + strings.Join(msgs, "; "))
	}

	overlap := intersect(c.Include, c.Exclude)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("compile: include/exclude namespaces overlap: %s", strings.Join(overlap, ", ")))
	}
	return nil
}

// formatValidationError converts a validator.FieldError to a message that
// names the flag to fix.
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required (set via flag or config file)"
	case "required_without":
		return "is required unless --dry-run is set"
	case "excluded_with":
		return "cannot be combined with --dry-run"
	case "target":
		return fmt.Sprintf("%q is not supported (allowed: %s)", fe.Value(), allowedTargets())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "lowercase", "alphanum":
		return fmt.Sprintf("%q must be a lowercase alphanumeric Go package name", fe.Value())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func runCompile(ctx context.Context, cfg *CompileConfig, stdout, stderr io.Writer) error {
	logger := newLogger(stderr, cfg.Verbose)

	// 1) Load the corpus; per-file problems come back inside the corpus
	c, err := corpus.Load(ctx, cfg.Corpus)
	if err != nil {
		var ce *corpus.CorpusError
		if errors.As(err, &ce) {
			msg := fmt.Sprintf("corpus: %s", ce.Message)
			if ce.Location != "" {
				msg = fmt.Sprintf("%s\nLocation: %s", msg, ce.Location)
			}
			if ce.Pointer != "" {
				msg = fmt.Sprintf("%s\nPointer: %s", msg, ce.Pointer)
			}
			return newUsageError(msg)
		}
		return err
	}
	logger.Debug("corpus loaded", "root", c.Root, "files", len(c.Files), "errors", len(c.Errors))

	// 2) Pick the emitter and the sink
	t, ok := lookupTarget(cfg.Target)
	if !ok {
		return newUsageError(fmt.Sprintf("compile: unsupported --target %q (allowed: %s)", cfg.Target, allowedTargets()))
	}
	em := t.build(cfg)

	absOut := cfg.Out
	if ap, err := filepath.Abs(cfg.Out); err == nil && cfg.Out != "" {
		absOut = ap
	}
	var (
		dst   sink.OutputSink
		check *sink.CheckSink
	)
	switch {
	case cfg.DryRun:
		dst = sink.NewMemorySink()
	case cfg.Check:
		check = sink.NewCheckSink(cfg.Out)
		dst = check
	default:
		if err := sink.PrepareDir(cfg.Out, cfg.Force); err != nil {
			return wrapOutputError(err, absOut)
		}
		dst = sink.NewFilesystemSink(cfg.Out)
	}

	var m *metrics.Metrics
	if cfg.MetricsFile != "" {
		m = metrics.New()
	}

	// 3) Compile
	rep, err := compiler.Run(ctx, c, em, dst, compiler.Options{
		Workers: cfg.Workers,
		Select: normalize.NewSelector(
			normalize.WithIncludeNamespaces(cfg.Include),
			normalize.WithExcludeNamespaces(cfg.Exclude),
			normalize.WithNamePatterns(cfg.Names),
		),
		Logger:          logger,
		Metrics:         m,
		WarnUnknownTags: cfg.Verbose,
	})
	if err != nil {
		return wrapOutputError(err, absOut)
	}

	// 4) Report
	for _, w := range rep.Warnings {
		fmt.Fprintf(stderr, "warning: %s\n", w)
	}
	violations := rep.Violations()
	for _, v := range violations {
		if kind := diag.KindOf(v); kind != "" {
			fmt.Fprintf(stderr, "error: %s: %v\n", kind, v)
			continue
		}
		fmt.Fprintf(stderr, "error: %v\n", v)
	}
	if cfg.DryRun {
		printPlan(stdout, absOut, rep.Artifacts)
	}
	emitted, rejected := rep.Counts()
	fmt.Fprintf(stdout, "%s: %d operations emitted, %d rejected, %d filtered, %d files\n",
		rep.Target, emitted, rejected, len(rep.Filtered), len(rep.Artifacts))

	if m != nil {
		if err := m.WriteFile(cfg.MetricsFile); err != nil {
			return err
		}
	}
	if check != nil {
		if drift := check.Drift(); len(drift) > 0 {
			for _, d := range drift {
				fmt.Fprintf(stderr, "stale: %s\n", d)
			}
			return fmt.Errorf("check: %d generated files are out of date in %s", len(drift), absOut)
		}
	}
	if len(violations) > 0 {
		return violationsError{count: len(violations)}
	}
	return nil
}

func printPlan(w io.Writer, outDir string, files []emitter.PlannedFile) {
	fmt.Fprintf(w, "Planned writes to %s (%d files):\n", outDir, len(files))
	for _, f := range files {
		fmt.Fprintf(w, "- %s\n", f.RelPath)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "output directory") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}

func sanitizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

func applyCompileConfigFromFile(cfg *CompileConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		var err error
		switch normalizeKey(key) {
		case "corpus":
			cfg.Corpus, err = valueAsString(value)
		case "target":
			cfg.Target, err = valueAsString(value)
		case "out":
			cfg.Out, err = valueAsString(value)
		case "include":
			cfg.Include, err = valueAsStringSlice(value)
		case "exclude":
			cfg.Exclude, err = valueAsStringSlice(value)
		case "names":
			cfg.Names, err = valueAsStringSlice(value)
		case "packagename":
			cfg.PackageName, err = valueAsString(value)
		case "title":
			cfg.Title, err = valueAsString(value)
		case "apiversion":
			cfg.APIVersion, err = valueAsString(value)
		case "workers":
			cfg.Workers, err = valueAsInt(value)
		case "metricsfile":
			cfg.MetricsFile, err = valueAsString(value)
		case "dryrun":
			cfg.DryRun, err = valueAsBool(value)
		case "check":
			cfg.Check, err = valueAsBool(value)
		case "force":
			cfg.Force, err = valueAsBool(value)
		case "verbose":
			cfg.Verbose, err = valueAsBool(value)
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
		if err != nil {
			return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func valueAsInt(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
