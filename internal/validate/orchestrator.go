package validate

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cfnlsp/internal/diag"
	"cfnlsp/internal/dialect"
	"cfnlsp/internal/lint"
	"cfnlsp/internal/metrics"
	"cfnlsp/internal/observ"
)

// Document is a snapshot of a tracked document.
type Document struct {
	URI string
	// Path is the local file path; empty when the URI has none.
	Path string
	Text string
}

// Publisher receives the diagnostics of a finished run. An empty list means
// the document has no issues.
type Publisher interface {
	PublishDiagnostics(uri string, diagnostics []diag.Diagnostic) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(uri string, diagnostics []diag.Diagnostic) error

func (f PublisherFunc) PublishDiagnostics(uri string, diagnostics []diag.Diagnostic) error {
	return f(uri, diagnostics)
}

// Result tells what a trigger did.
type Result uint8

const (
	ResultStarted Result = iota + 1
	ResultInFlight
	ResultOutOfScope
	ResultNoPath
)

func (r Result) String() string {
	switch r {
	case ResultStarted:
		return "started"
	case ResultInFlight:
		return "in-flight"
	case ResultOutOfScope:
		return "out-of-scope"
	case ResultNoPath:
		return "no-path"
	default:
		return "unknown"
	}
}

// Options configures an Orchestrator.
type Options struct {
	Runner    lint.Runner
	Publisher Publisher
	Logger    logrus.FieldLogger
	Metrics   *metrics.Metrics
	Settings  lint.Settings
	// WorkDir picks the working directory for a file; defaults to the
	// file's directory.
	WorkDir func(path string) string
}

// Orchestrator owns the in-flight set and the current settings.
type Orchestrator struct {
	runner    lint.Runner
	publisher Publisher
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
	workDir   func(string) string
	newRunID  func() string
	classify  func(string) dialect.Classification

	mu        sync.Mutex
	settings  lint.Settings
	inFlight  map[string]bool
	published map[string]struct{}
	discard   map[string]struct{}

	wg sync.WaitGroup
}

func New(opts Options) *Orchestrator {
	runner := opts.Runner
	if runner == nil {
		runner = lint.ExecRunner{}
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	workDir := opts.WorkDir
	if workDir == nil {
		workDir = filepath.Dir
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = PublisherFunc(func(string, []diag.Diagnostic) error { return nil })
	}
	return &Orchestrator{
		runner:    runner,
		publisher: publisher,
		log:       log,
		metrics:   opts.Metrics,
		workDir:   workDir,
		newRunID:  uuid.NewString,
		classify:  dialect.Classify,
		settings:  opts.Settings.Normalized(),
		inFlight:  make(map[string]bool),
		published: make(map[string]struct{}),
		discard:   make(map[string]struct{}),
	}
}

// Settings returns a copy of the current settings.
func (o *Orchestrator) Settings() lint.Settings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settings.Clone()
}

// Validating reports whether a run for uri is in progress.
func (o *Orchestrator) Validating(uri string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight[uri]
}

// Trigger starts a validation run for doc unless one is already running or
// the document is not a template. It never blocks on the run itself.
func (o *Orchestrator) Trigger(ctx context.Context, doc Document) Result {
	log := o.log.WithField("uri", doc.URI)
	timer := observ.NewTimer()

	// Detection is pure; keep it outside the lock.
	detect := timer.Begin("detect")
	class := o.classify(doc.Text)
	detect.End(class.Kind.String())

	o.mu.Lock()
	if o.inFlight[doc.URI] {
		// The running result is still wanted, even if the document was closed
		// and reopened meanwhile.
		delete(o.discard, doc.URI)
		o.mu.Unlock()
		log.Info("validation already in progress, ignoring trigger")
		o.metrics.Skipped(metrics.SkipInFlight)
		return ResultInFlight
	}
	if !class.InScope() {
		_, stale := o.published[doc.URI]
		delete(o.published, doc.URI)
		o.mu.Unlock()
		log.WithField("dialect", class.Kind.String()).Info("not a CloudFormation template, skipping validation")
		o.metrics.Skipped(metrics.SkipOutOfScope)
		if stale {
			o.publish(log, doc.URI, []diag.Diagnostic{})
		}
		return ResultOutOfScope
	}
	if doc.Path == "" {
		o.mu.Unlock()
		log.Info("document has no local file path, skipping validation")
		o.metrics.Skipped(metrics.SkipNoPath)
		return ResultNoPath
	}
	o.inFlight[doc.URI] = true
	settings := o.settings.Clone()
	o.mu.Unlock()

	inv := lint.Invocation{
		Executable: settings.ExecutablePath,
		Args:       lint.BuildArgs(settings, doc.Path),
		Dir:        o.workDir(doc.Path),
	}
	runID := o.newRunID()
	log = log.WithField("run", runID)
	log.WithField("command", lint.CommandLine(inv.Executable, inv.Args)).Debug("starting cfn-lint")

	o.metrics.RunStarted()
	o.wg.Add(1)
	go o.run(ctx, doc.URI, inv, timer, log)
	return ResultStarted
}

func (o *Orchestrator) run(ctx context.Context, uri string, inv lint.Invocation, timer *observ.Timer, log logrus.FieldLogger) {
	defer o.wg.Done()
	diagnostics, outcome := o.execute(ctx, inv, timer, log)
	o.metrics.RunFinished(outcome, timer.Total())
	o.finish(log, uri, diagnostics)
	log.WithFields(timer.Fields()).WithFields(logrus.Fields{
		"outcome":     outcome,
		"diagnostics": len(diagnostics),
	}).Debug("validation finished")
}

func (o *Orchestrator) execute(ctx context.Context, inv lint.Invocation, timer *observ.Timer, log logrus.FieldLogger) (diagnostics []diag.Diagnostic, outcome string) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("validation run panicked")
			diagnostics = []diag.Diagnostic{lint.ParseFailure(fmt.Errorf("internal error: %v", r))}
			outcome = metrics.OutcomePanic
		}
	}()
	spawn := timer.Begin("cfn-lint")
	out := o.runner.Run(ctx, inv, lint.Hooks{
		OnStderr: func(chunk string) {
			log.WithField("stderr", chunk).Warn("cfn-lint wrote to stderr")
		},
		OnExit: func(code int, signal string) {
			log.WithFields(logrus.Fields{"exit_code": code, "signal": signal}).Debug("cfn-lint exited")
		},
	})
	spawn.End(fmt.Sprintf("exit=%d", out.ExitCode))
	if !out.Spawned() {
		log.WithError(out.SpawnErr).Error("unable to start cfn-lint")
	}
	parse := timer.Begin("parse")
	diagnostics, outcome = Diagnose(out, inv.Executable)
	parse.End("")
	return diagnostics, outcome
}

func (o *Orchestrator) finish(log logrus.FieldLogger, uri string, diagnostics []diag.Diagnostic) {
	o.mu.Lock()
	_, drop := o.discard[uri]
	delete(o.discard, uri)
	if !drop {
		if len(diagnostics) > 0 {
			o.published[uri] = struct{}{}
		} else {
			delete(o.published, uri)
		}
	}
	o.mu.Unlock()

	if drop {
		log.Debug("document closed during validation, dropping results")
	} else {
		o.publish(log, uri, diagnostics)
	}

	o.mu.Lock()
	delete(o.inFlight, uri)
	o.mu.Unlock()
}

func (o *Orchestrator) publish(log logrus.FieldLogger, uri string, diagnostics []diag.Diagnostic) {
	if err := o.publisher.PublishDiagnostics(uri, diagnostics); err != nil {
		log.WithError(err).Error("failed to publish diagnostics")
		return
	}
	o.metrics.Published(diagnostics)
}

// UpdateSettings installs settings wholesale and re-triggers every document.
func (o *Orchestrator) UpdateSettings(ctx context.Context, settings lint.Settings, docs []Document) []Result {
	o.mu.Lock()
	o.settings = settings.Normalized()
	o.mu.Unlock()
	o.log.WithFields(logrus.Fields{
		"executable":    settings.Normalized().ExecutablePath,
		"ignore_rules":  len(settings.IgnoreRules),
		"append_rules":  len(settings.AppendRules),
		"override_spec": settings.OverrideSpecPath,
	}).Info("validation settings updated")
	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		results = append(results, o.Trigger(ctx, doc))
	}
	return results
}

// Clear withdraws the diagnostics of a document that is no longer tracked.
// A run still in progress for uri publishes nothing when it finishes.
func (o *Orchestrator) Clear(uri string) {
	o.mu.Lock()
	_, had := o.published[uri]
	delete(o.published, uri)
	if o.inFlight[uri] {
		o.discard[uri] = struct{}{}
	}
	o.mu.Unlock()
	if had {
		o.publish(o.log.WithField("uri", uri), uri, []diag.Diagnostic{})
	}
}

// ClearAll withdraws every published diagnostic.
func (o *Orchestrator) ClearAll() {
	o.mu.Lock()
	uris := make([]string, 0, len(o.published))
	for uri := range o.published {
		uris = append(uris, uri)
	}
	o.mu.Unlock()
	for _, uri := range uris {
		o.Clear(uri)
	}
}

// Wait blocks until every started run has published.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
