package lint

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultChunkSize = 32 * 1024

// Invocation describes one external process run.
type Invocation struct {
	Executable string
	Args       []string
	Dir        string
	// Env is appended to the current process environment.
	Env []string
}

// Hooks observe a run while it is in progress. Stdout and stderr hooks are
// called from separate reader goroutines and may run concurrently with each
// other; chunks of one stream are delivered in emission order.
type Hooks struct {
	OnStdout func(chunk []byte)
	OnStderr func(chunk string)
	OnExit   func(code int, signal string)
}

// Outcome is the terminal result of a run. Exactly one Outcome is produced
// per Run call.
type Outcome struct {
	// SpawnErr is set when the process could not be started; no other field
	// is meaningful then.
	SpawnErr error
	ExitCode int
	// Signal names the signal that terminated the process, if any.
	Signal string
	// Stdout is the concatenation of every stdout chunk.
	Stdout []byte
	// Stderr holds stderr chunks in arrival order.
	Stderr []string
	// Err reports a stream or wait failure after a successful start.
	Err      error
	Duration time.Duration
}

// Spawned reports whether the process was started.
func (o Outcome) Spawned() bool {
	return o.SpawnErr == nil
}

// Runner starts an external validator and reports its outcome.
type Runner interface {
	Run(ctx context.Context, inv Invocation, hooks Hooks) Outcome
}

// ExecRunner runs processes with os/exec.
type ExecRunner struct {
	// ChunkSize bounds a single stream read; zero means 32 KiB.
	ChunkSize int
}

// Run starts the process and returns once it has exited and both output
// streams are fully drained.
func (r ExecRunner) Run(ctx context.Context, inv Invocation, hooks Hooks) Outcome {
	start := time.Now()
	cmd := exec.CommandContext(ctx, inv.Executable, inv.Args...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Outcome{SpawnErr: err, Duration: time.Since(start)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Outcome{SpawnErr: err, Duration: time.Since(start)}
	}
	if err := cmd.Start(); err != nil {
		return Outcome{SpawnErr: err, Duration: time.Since(start)}
	}

	size := r.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	var (
		out     bytes.Buffer
		errText []string
		g       errgroup.Group
	)
	g.Go(func() error {
		return drain(stdout, size, func(chunk []byte) {
			out.Write(chunk)
			if hooks.OnStdout != nil {
				hooks.OnStdout(chunk)
			}
		})
	})
	g.Go(func() error {
		return drain(stderr, size, func(chunk []byte) {
			text := string(chunk)
			errText = append(errText, text)
			if hooks.OnStderr != nil {
				hooks.OnStderr(text)
			}
		})
	})
	streamErr := g.Wait()
	// Wait must follow the drains: it closes the pipes.
	waitErr := cmd.Wait()

	code, signal := exitStatus(cmd.ProcessState)
	if hooks.OnExit != nil {
		hooks.OnExit(code, signal)
	}
	outcome := Outcome{
		ExitCode: code,
		Signal:   signal,
		Stdout:   out.Bytes(),
		Stderr:   errText,
		Duration: time.Since(start),
	}
	var exitErr *exec.ExitError
	switch {
	case streamErr != nil:
		outcome.Err = streamErr
	case waitErr != nil && !errors.As(waitErr, &exitErr):
		outcome.Err = waitErr
	}
	return outcome
}

func drain(r io.Reader, size int, emit func([]byte)) error {
	buf := make([]byte, size)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			emit(chunk)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, fs.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func exitStatus(ps *os.ProcessState) (int, string) {
	if ps == nil {
		return -1, ""
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ps.ExitCode(), ws.Signal().String()
	}
	return ps.ExitCode(), ""
}
