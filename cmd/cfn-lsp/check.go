package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"fortio.org/safecast"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cfnlsp/internal/config"
	"cfnlsp/internal/diag"
	"cfnlsp/internal/diagfmt"
	"cfnlsp/internal/dialect"
	"cfnlsp/internal/lint"
	"cfnlsp/internal/validate"
)

var checkCmd = &cobra.Command{
	Use:          "check [flags] <file|directory>...",
	Short:        "Validate templates with cfn-lint and print the findings",
	Long:         `Validate CloudFormation templates the same way the language server does. Directories are searched for *.yaml, *.yml, *.json and *.template files; non-templates are skipped.`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runCheck,
}

var templateExts = []string{".yaml", ".yml", ".json", ".template"}

func init() {
	checkCmd.Flags().String("config", "", "settings file (default: .cfn-lsp.toml/.yaml in the current directory)")
	checkCmd.Flags().String("cfn-lint", "", "cfn-lint executable")
	checkCmd.Flags().StringSlice("ignore", nil, "rule ids to ignore (repeatable)")
	checkCmd.Flags().StringSlice("append-rules", nil, "additional rule directories or modules (repeatable)")
	checkCmd.Flags().String("override-spec", "", "resource specification override file")
	checkCmd.Flags().Uint("jobs", 0, "max parallel cfn-lint runs (0=auto)")
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	checkCmd.Flags().String("path-mode", "auto", "how paths are printed (auto|absolute|relative|basename)")
	checkCmd.Flags().Bool("no-excerpt", false, "do not print source excerpts")
	checkCmd.Flags().Bool("explain", false, "print why each file was or was not treated as a template")
}

type checkOptions struct {
	format   string
	pathMode diagfmt.PathMode
	excerpt  bool
	explain  bool
	jobs     int
}

// runCheck resolves settings, validates every template in args and renders
// the results. It returns errValidationFailed when any Error diagnostic was
// reported.
func runCheck(cmd *cobra.Command, args []string) error {
	logger, closer, err := newLogger(cmd, logrus.WarnLevel)
	if err != nil {
		return err
	}
	defer closer.Close()

	opts, err := readCheckOptions(cmd)
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	settings, err := checkSettings(cmd, cwd, logger)
	if err != nil {
		return err
	}
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no template files found in %s", strings.Join(args, ", "))
	}

	reports, err := checkFiles(cmd.Context(), files, checkEnv{
		runner:   lint.ExecRunner{},
		logger:   logger,
		settings: settings,
		workDir:  cwd,
		jobs:     opts.jobs,
	})
	if err != nil {
		return err
	}

	if opts.explain {
		explain(cmd.ErrOrStderr(), reports, opts.pathMode, cwd)
	}
	out := cmd.OutOrStdout()
	switch opts.format {
	case "json":
		if err := diagfmt.JSON(out, reports, diagfmt.JSONOpts{PathMode: opts.pathMode, BaseDir: cwd, Indent: true}); err != nil {
			return fmt.Errorf("failed to write JSON: %w", err)
		}
	default:
		colored, err := useColor(cmd, out)
		if err != nil {
			return err
		}
		diagfmt.Pretty(out, reports, diagfmt.PrettyOpts{
			Color:    colored,
			PathMode: opts.pathMode,
			BaseDir:  cwd,
			Excerpt:  opts.excerpt,
		})
		fmt.Fprintln(out, diagfmt.Summary(reports))
	}

	if hasErrors(reports) {
		return errValidationFailed
	}
	return nil
}

func readCheckOptions(cmd *cobra.Command) (checkOptions, error) {
	var opts checkOptions
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return opts, fmt.Errorf("failed to get format flag: %w", err)
	}
	opts.format = strings.ToLower(format)
	if opts.format != "pretty" && opts.format != "json" {
		return opts, fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	pathMode, err := cmd.Flags().GetString("path-mode")
	if err != nil {
		return opts, fmt.Errorf("failed to get path-mode flag: %w", err)
	}
	mode, ok := diagfmt.ParsePathMode(pathMode)
	if !ok {
		return opts, fmt.Errorf("unsupported path mode %q", pathMode)
	}
	opts.pathMode = mode
	noExcerpt, err := cmd.Flags().GetBool("no-excerpt")
	if err != nil {
		return opts, fmt.Errorf("failed to get no-excerpt flag: %w", err)
	}
	opts.excerpt = !noExcerpt
	if opts.explain, err = cmd.Flags().GetBool("explain"); err != nil {
		return opts, fmt.Errorf("failed to get explain flag: %w", err)
	}
	jobs, err := cmd.Flags().GetUint("jobs")
	if err != nil {
		return opts, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if opts.jobs, err = safecast.Conv[int](jobs); err != nil {
		return opts, fmt.Errorf("invalid --jobs value: %w", err)
	}
	if opts.jobs == 0 {
		opts.jobs = runtime.GOMAXPROCS(0)
	}
	return opts, nil
}

// checkSettings layers defaults, the settings file and command-line flags,
// in increasing precedence.
func checkSettings(cmd *cobra.Command, cwd string, logger logrus.FieldLogger) (lint.Settings, error) {
	settings := lint.DefaultSettings()
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return settings, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path == "" {
		found, ok, err := config.Find(cwd)
		if err != nil {
			return settings, err
		}
		if ok {
			path = found
		}
	}
	if path != "" {
		file, err := config.Load(path)
		if err != nil {
			return settings, err
		}
		logger.WithField("config", file.Path).Debug("loaded settings file")
		settings = file.Settings
	}

	flags := cmd.Flags()
	if flags.Changed("cfn-lint") {
		if settings.ExecutablePath, err = flags.GetString("cfn-lint"); err != nil {
			return settings, err
		}
	}
	if flags.Changed("ignore") {
		if settings.IgnoreRules, err = flags.GetStringSlice("ignore"); err != nil {
			return settings, err
		}
	}
	if flags.Changed("append-rules") {
		if settings.AppendRules, err = flags.GetStringSlice("append-rules"); err != nil {
			return settings, err
		}
	}
	if flags.Changed("override-spec") {
		if settings.OverrideSpecPath, err = flags.GetString("override-spec"); err != nil {
			return settings, err
		}
	}
	return settings.Normalized(), nil
}

// collectFiles expands directories into the template-like files below them.
// Explicit file arguments are taken as-is. The result is absolute, sorted and
// free of duplicates.
func collectFiles(args []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %q: %w", path, err)
		}
		if _, dup := seen[abs]; !dup {
			seen[abs] = struct{}{}
			files = append(files, abs)
		}
		return nil
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %q: %w", arg, err)
		}
		if !info.IsDir() {
			if err := add(arg); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if hasTemplateExt(path) {
				return add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %q: %w", arg, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func hasTemplateExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range templateExts {
		if ext == e {
			return true
		}
	}
	return false
}

type checkEnv struct {
	runner   lint.Runner
	logger   logrus.FieldLogger
	settings lint.Settings
	workDir  string
	jobs     int
}

// resultSink hands each published diagnostic list to the goroutine waiting
// for that file.
type resultSink struct {
	mu      sync.Mutex
	waiting map[string]chan []diag.Diagnostic
}

func (s *resultSink) expect(uri string) <-chan []diag.Diagnostic {
	ch := make(chan []diag.Diagnostic, 1)
	s.mu.Lock()
	s.waiting[uri] = ch
	s.mu.Unlock()
	return ch
}

func (s *resultSink) forget(uri string) {
	s.mu.Lock()
	delete(s.waiting, uri)
	s.mu.Unlock()
}

func (s *resultSink) PublishDiagnostics(uri string, diagnostics []diag.Diagnostic) error {
	s.mu.Lock()
	ch := s.waiting[uri]
	delete(s.waiting, uri)
	s.mu.Unlock()
	if ch != nil {
		ch <- diagnostics
	}
	return nil
}

// checkFiles validates files with at most env.jobs concurrent cfn-lint runs.
// Reports come back in the order of files.
func checkFiles(ctx context.Context, files []string, env checkEnv) ([]diagfmt.FileReport, error) {
	sink := &resultSink{waiting: make(map[string]chan []diag.Diagnostic)}
	orch := validate.New(validate.Options{
		Runner:    env.runner,
		Publisher: sink,
		Logger:    env.logger,
		Settings:  env.settings,
		WorkDir:   func(string) string { return env.workDir },
	})
	defer orch.Wait()

	reports := make([]diagfmt.FileReport, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(env.jobs, len(files))))
	for i, path := range files {
		g.Go(func() error {
			text, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			report := diagfmt.FileReport{Path: path, Text: string(text)}
			ch := sink.expect(path)
			switch result := orch.Trigger(gctx, validate.Document{URI: path, Path: path, Text: report.Text}); result {
			case validate.ResultStarted:
				select {
				case report.Diagnostics = <-ch:
				case <-gctx.Done():
					return gctx.Err()
				}
			case validate.ResultOutOfScope:
				sink.forget(path)
				report.Skipped = "not a CloudFormation template"
			default:
				sink.forget(path)
				report.Skipped = result.String()
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// explain prints the detector evidence behind each file's verdict.
func explain(w io.Writer, reports []diagfmt.FileReport, mode diagfmt.PathMode, base string) {
	for _, r := range reports {
		class := dialect.Classify(r.Text)
		name := r.Path
		if rel, err := filepath.Rel(base, r.Path); err == nil && mode != diagfmt.PathModeAbsolute && !strings.HasPrefix(rel, "..") {
			name = rel
		}
		fmt.Fprintf(w, "%s: %s (validated: %t)\n", name, class.Kind, class.InScope())
		signals := class.Evidence.Signals()
		if len(signals) == 0 {
			fmt.Fprintln(w, "  no template signals")
			continue
		}
		for _, s := range signals {
			fmt.Fprintf(w, "  matched %s at byte %d\n", s.Reason, s.Offset)
		}
	}
}

func hasErrors(reports []diagfmt.FileReport) bool {
	var bag diag.Bag
	for _, r := range reports {
		bag.AddAll(r.Diagnostics)
	}
	return bag.HasErrors()
}
