package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"cfnlsp/internal/config"
	"cfnlsp/internal/diag"
	"cfnlsp/internal/lint"
	"cfnlsp/internal/metrics"
	"cfnlsp/internal/validate"
	"cfnlsp/internal/version"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// ServerOptions configures LSP server behavior.
type ServerOptions struct {
	Runner  lint.Runner
	Logger  *logrus.Logger
	Metrics *metrics.Metrics
	// Settings are the built-in defaults, before any settings file or
	// client configuration.
	Settings lint.Settings
	// ConfigPath names a settings file explicitly; otherwise one is looked
	// up in the workspace root.
	ConfigPath string
	// WatchConfig reloads the settings file when it changes.
	WatchConfig bool
}

// Server handles stdio JSON-RPC for cfn-lint validation.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex

	logger    *logrus.Logger
	log       logrus.FieldLogger
	opts      ServerOptions
	validator *validate.Orchestrator

	mu                sync.Mutex
	docs              map[string]string
	workspaceRoot     string
	shutdownRequested bool
	baseCtx           context.Context
	stopWatch         context.CancelFunc

	initialized atomic.Bool
}

// NewServer constructs a new LSP server.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	s := &Server{
		in:      bufio.NewReader(in),
		out:     bufio.NewWriter(out),
		logger:  logger,
		log:     logger.WithField("component", "lsp"),
		opts:    opts,
		docs:    make(map[string]string),
		baseCtx: context.Background(),
	}
	s.validator = validate.New(validate.Options{
		Runner:    opts.Runner,
		Publisher: s,
		Logger:    logger.WithField("component", "validate"),
		Metrics:   opts.Metrics,
		Settings:  opts.Settings,
		WorkDir:   s.workDir,
	})
	return s
}

// Run serves LSP requests until exit or end of input.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
	defer s.stopWatching()
	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.validator.Wait()
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.log.WithError(err).Warn("failed to parse message")
			continue
		}
		if msg.Method == "" {
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		s.initialized.Store(true)
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		s.mu.Lock()
		requested := s.shutdownRequested
		s.mu.Unlock()
		if requested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeMethodNotFound, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
		}
	}
	root := ""
	if params.RootURI != "" {
		root = uriToPath(params.RootURI)
	}
	if root == "" && params.RootPath != "" {
		root = params.RootPath
	}
	if root == "" && len(params.WorkspaceFolders) > 0 {
		root = uriToPath(params.WorkspaceFolders[0].URI)
	}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	s.mu.Lock()
	s.workspaceRoot = root
	s.mu.Unlock()

	settings := s.baseSettings()
	if file, ok := s.loadSettingsFile(root); ok {
		settings = s.fileSettings(file)
		s.applyLogLevel(file.LogLevel)
		if s.opts.WatchConfig {
			s.watch(file.Path)
		}
	}
	if merged, ok, err := decodeSettings(params.InitializationOptions, settings); err != nil {
		s.log.WithError(err).Warn("ignoring malformed initializationOptions")
	} else if ok {
		settings = merged
	}
	s.validator.UpdateSettings(s.ctx(), settings, nil)
	s.log.WithField("root", root).Info("initialized")

	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    syncIncremental,
				Save: saveOptions{
					IncludeText: true,
				},
			},
		},
		ServerInfo: serverInfo{Name: "cfn-lsp", Version: version.Version},
	}
	return s.sendResponse(msg.ID, result)
}

func (s *Server) loadSettingsFile(root string) (config.File, bool) {
	path := s.opts.ConfigPath
	if path == "" {
		found, ok, err := config.Find(root)
		if err != nil {
			s.log.WithError(err).Warn("failed to look up settings file")
			return config.File{}, false
		}
		if !ok {
			return config.File{}, false
		}
		path = found
	}
	file, err := config.Load(path)
	if err != nil {
		s.log.WithError(err).Warn("ignoring invalid settings file")
		return config.File{}, false
	}
	s.log.WithField("config", file.Path).Info("loaded settings file")
	return file, true
}

func (s *Server) watch(path string) {
	w, err := config.NewWatcher(path, s.log)
	if err != nil {
		s.log.WithError(err).Warn("settings file will not be reloaded")
		return
	}
	ctx, cancel := context.WithCancel(s.ctx())
	s.mu.Lock()
	if s.stopWatch != nil {
		s.stopWatch()
	}
	s.stopWatch = cancel
	s.mu.Unlock()
	go func() {
		if err := w.Run(ctx, s.reloadSettings); err != nil {
			s.log.WithError(err).Warn("settings watcher stopped")
		}
	}()
}

func (s *Server) reloadSettings(file config.File) {
	s.applyLogLevel(file.LogLevel)
	s.replaceSettings(s.fileSettings(file))
}

// baseSettings are the built-in defaults with the command line applied.
func (s *Server) baseSettings() lint.Settings {
	return s.opts.Settings.Normalized()
}

// fileSettings keeps the command-line executable when the file names none.
func (s *Server) fileSettings(file config.File) lint.Settings {
	return file.Settings.WithFallbackExecutable(s.baseSettings().ExecutablePath)
}

func (s *Server) stopWatching() {
	s.mu.Lock()
	stop := s.stopWatch
	s.stopWatch = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (s *Server) applyLogLevel(level string) {
	if level == "" {
		return
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		s.log.WithError(err).Warn("ignoring log level from settings file")
		return
	}
	s.logger.SetLevel(parsed)
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
	s.stopWatching()
	s.validator.Wait()
	s.validator.ClearAll()
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := params.TextDocument.URI
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	s.docs[uri] = params.TextDocument.Text
	s.mu.Unlock()
	s.trigger(uri, params.TextDocument.Text)
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := params.TextDocument.URI
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	s.docs[uri] = applyChanges(s.docs[uri], params.ContentChanges)
	s.mu.Unlock()
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := params.TextDocument.URI
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	if params.Text != nil {
		s.docs[uri] = *params.Text
	}
	text := s.docs[uri]
	s.mu.Unlock()
	s.trigger(uri, text)
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := params.TextDocument.URI
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()
	s.validator.Clear(uri)
	return nil
}

func (s *Server) trigger(uri, text string) {
	result := s.validator.Trigger(s.ctx(), validate.Document{
		URI:  uri,
		Path: uriToPath(uri),
		Text: text,
	})
	s.log.WithFields(logrus.Fields{"uri": uri, "result": result.String()}).Debug("validation trigger")
}

// workDir runs cfn-lint from the workspace root when the file lives inside
// it, so project-level .cfnlintrc files are picked up.
func (s *Server) workDir(path string) string {
	s.mu.Lock()
	root := s.workspaceRoot
	s.mu.Unlock()
	if pathWithinRoot(root, path) {
		return root
	}
	return filepath.Dir(path)
}

func (s *Server) ctx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// PublishDiagnostics sends the full diagnostic list for uri.
func (s *Server) PublishDiagnostics(uri string, diagnostics []diag.Diagnostic) error {
	list := make([]lspDiagnostic, 0, len(diagnostics))
	for _, d := range diagnostics {
		list = append(list, toLSPDiagnostic(d))
	}
	return s.notify("textDocument/publishDiagnostics", publishDiagnosticsParams{
		URI:         uri,
		Diagnostics: list,
	})
}

func toLSPDiagnostic(d diag.Diagnostic) lspDiagnostic {
	return lspDiagnostic{
		Range: lspRange{
			Start: position{Line: d.Range.Start.Line, Character: d.Range.Start.Character},
			End:   position{Line: d.Range.End.Line, Character: d.Range.End.Character},
		},
		Severity: int(d.Severity),
		Code:     d.Code,
		Source:   d.Source,
		Message:  d.Message,
	}
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
	return s.send(msg)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": rpcError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) notify(method string, params any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	}
	return s.send(msg)
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}
