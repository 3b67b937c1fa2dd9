package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cfnlsp/internal/prof"
)

var profileSession *prof.Session

// startProfiling runs before every command and enables the profiles named
// by the persistent flags. main stops the session once the command returns.
func startProfiling(cmd *cobra.Command, _ []string) error {
	flags := cmd.Root().PersistentFlags()
	var opts prof.Options
	var err error
	if opts.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if opts.Mem, err = flags.GetString("mem-profile"); err != nil {
		return fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if opts.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if !opts.Enabled() {
		return nil
	}
	profileSession, err = prof.Start(opts)
	return err
}
