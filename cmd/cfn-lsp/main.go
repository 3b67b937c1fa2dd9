package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cfnlsp/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "cfn-lsp",
	Short:         "CloudFormation validation over LSP, backed by cfn-lint",
	Long:          `cfn-lsp runs cfn-lint on CloudFormation templates and reports the findings to editors over the Language Server Protocol, or on the command line with "check".`,
	SilenceErrors: true,
}

// errValidationFailed makes the process exit non-zero without printing an
// extra error line; the findings have already been reported.
var errValidationFailed = errors.New("validation reported errors")

// main registers subcommands and persistent flags, then executes the root
// command. Interrupts cancel the command context.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-file", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to this file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to this file on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a runtime trace to this file")
	rootCmd.PersistentPreRunE = startProfiling

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if stopErr := profileSession.Stop(); stopErr != nil {
		fmt.Fprintln(os.Stderr, "warning: profiling:", stopErr)
	}
	if err != nil {
		if !errors.Is(err, errValidationFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// useColor resolves --color for output written to w; "auto" enables color
// only when w is a terminal.
func useColor(cmd *cobra.Command, w io.Writer) (bool, error) {
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, fmt.Errorf("failed to get color flag: %w", err)
	}
	switch colorFlag {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto":
		f, ok := w.(*os.File)
		return ok && isTerminal(f), nil
	default:
		return false, fmt.Errorf("unsupported color mode %q (must be auto, on or off)", colorFlag)
	}
}
