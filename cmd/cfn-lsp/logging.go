package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// newLogger builds the process logger from the persistent flags. fallback
// is used when --log-level was not given. The returned closer releases the
// log file, if any.
func newLogger(cmd *cobra.Command, fallback logrus.Level) (*logrus.Logger, io.Closer, error) {
	flags := cmd.Root().PersistentFlags()
	levelFlag, err := flags.GetString("log-level")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	path, err := flags.GetString("log-file")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get log-file flag: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level := fallback
	if flags.Changed("log-level") {
		parsed, err := logrus.ParseLevel(levelFlag)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", levelFlag, err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	var closer io.Closer = nopCloser{}
	if path == "" {
		logger.SetOutput(os.Stderr)
	} else {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.SetOutput(f)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
		closer = f
	}
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
