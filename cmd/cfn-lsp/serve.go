package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cfnlsp/internal/lint"
	"cfnlsp/internal/lsp"
	"cfnlsp/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:          "serve",
	Aliases:      []string{"lsp"},
	Short:        "Run the language server over stdio",
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "settings file (default: .cfn-lsp.toml/.yaml in the workspace root)")
	serveCmd.Flags().String("cfn-lint", lint.DefaultExecutable, "cfn-lint executable used until the client configures one")
	serveCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	serveCmd.Flags().Bool("no-watch", false, "do not reload the settings file when it changes")
	serveCmd.Flags().String("client-log-level", "info", "lowest log level mirrored to the editor via window/logMessage")
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, closer, err := newLogger(cmd, logrus.InfoLevel)
	if err != nil {
		return err
	}
	defer closer.Close()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	exe, err := cmd.Flags().GetString("cfn-lint")
	if err != nil {
		return fmt.Errorf("failed to get cfn-lint flag: %w", err)
	}
	metricsAddr, err := cmd.Flags().GetString("metrics-addr")
	if err != nil {
		return fmt.Errorf("failed to get metrics-addr flag: %w", err)
	}
	noWatch, err := cmd.Flags().GetBool("no-watch")
	if err != nil {
		return fmt.Errorf("failed to get no-watch flag: %w", err)
	}
	clientLevelFlag, err := cmd.Flags().GetString("client-log-level")
	if err != nil {
		return fmt.Errorf("failed to get client-log-level flag: %w", err)
	}
	clientLevel, err := logrus.ParseLevel(clientLevelFlag)
	if err != nil {
		return fmt.Errorf("invalid client log level %q: %w", clientLevelFlag, err)
	}

	var m *metrics.Metrics
	if metricsAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(registry)
		go func() {
			if err := m.Serve(cmd.Context(), metricsAddr); err != nil {
				logger.WithError(err).Error("metrics endpoint stopped")
			}
		}()
		logger.WithField("addr", metricsAddr).Info("serving metrics")
	}

	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{
		Runner:      lint.ExecRunner{},
		Logger:      logger,
		Metrics:     m,
		Settings:    lint.Settings{ExecutablePath: exe},
		ConfigPath:  configPath,
		WatchConfig: !noWatch,
	})
	logger.AddHook(server.LogHook(clientLevel))

	if err := server.Run(cmd.Context()); err != nil {
		if errors.Is(err, lsp.ErrExit) {
			return nil
		}
		if errors.Is(err, lsp.ErrExitWithoutShutdown) {
			return fmt.Errorf("lsp exit without shutdown")
		}
		return err
	}
	return nil
}
