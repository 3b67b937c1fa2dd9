package lint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "CFNLSP_HELPER_PROCESS=1"

// TestHelperProcess is not a real test; it stands in for cfn-lint when the
// test binary re-executes itself.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("CFNLSP_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}
	if len(args) == 0 {
		os.Exit(3)
	}
	switch args[0] {
	case "findings":
		fmt.Fprint(os.Stdout, `[{"Location":{"Start":{"LineNumber":2,"ColumnNumber":3},"End":{"LineNumber":2,"ColumnNumber":8}},"Level":"Error","Rule":{"Id":"E3012"},"Message":"bad type"}]`)
		os.Exit(2)
	case "stderr":
		fmt.Fprint(os.Stderr, "warning: something odd")
		fmt.Fprint(os.Stdout, "[]")
	case "chunked":
		parts := []string{`[{"Level":"Hint",`, `"Rule":{"Id":"I1"},`, `"Message":"late"}]`}
		for _, p := range parts {
			fmt.Fprint(os.Stdout, p)
			os.Stdout.Sync()
			time.Sleep(20 * time.Millisecond)
		}
	case "args":
		_ = json.NewEncoder(os.Stdout).Encode(args[1:])
	case "pwd":
		wd, _ := os.Getwd()
		fmt.Fprint(os.Stdout, wd)
	}
	os.Exit(0)
}

func helperInvocation(mode string, extra ...string) Invocation {
	exe, err := filepath.Abs(os.Args[0])
	if err != nil {
		exe = os.Args[0]
	}
	args := append([]string{"-test.run=TestHelperProcess", "--", mode}, extra...)
	return Invocation{Executable: exe, Args: args, Env: []string{helperEnv}}
}

func TestExecRunnerCollectsStdoutAndExitCode(t *testing.T) {
	var exitCode int
	exited := false
	out := ExecRunner{}.Run(context.Background(), helperInvocation("findings"), Hooks{
		OnExit: func(code int, _ string) {
			exited = true
			exitCode = code
		},
	})
	require.NoError(t, out.SpawnErr)
	require.NoError(t, out.Err)
	assert.True(t, out.Spawned())
	assert.True(t, exited)
	assert.Equal(t, 2, exitCode)
	assert.Equal(t, 2, out.ExitCode)
	assert.Empty(t, out.Signal)

	diags := Parse(out.Stdout)
	require.Len(t, diags, 1)
	assert.Equal(t, "[cfn-lint] E3012:bad type", diags[0].Message)
}

func TestExecRunnerStderrChunks(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	out := ExecRunner{}.Run(context.Background(), helperInvocation("stderr"), Hooks{
		OnStderr: func(chunk string) {
			mu.Lock()
			seen = append(seen, chunk)
			mu.Unlock()
		},
	})
	require.NoError(t, out.SpawnErr)
	assert.Equal(t, "warning: something odd", strings.Join(out.Stderr, ""))
	assert.Equal(t, out.Stderr, seen)
	assert.Equal(t, "[]", string(out.Stdout))
	assert.Equal(t, 0, out.ExitCode)
}

func TestExecRunnerConcatenatesChunksInOrder(t *testing.T) {
	var chunks int
	out := ExecRunner{ChunkSize: 8}.Run(context.Background(), helperInvocation("chunked"), Hooks{
		OnStdout: func([]byte) { chunks++ },
	})
	require.NoError(t, out.SpawnErr)
	assert.Greater(t, chunks, 1)
	diags := Parse(out.Stdout)
	require.Len(t, diags, 1)
	assert.Equal(t, "[cfn-lint] I1:late", diags[0].Message)
}

func TestExecRunnerPassesArgsVerbatim(t *testing.T) {
	path := "/tmp/dir with space/template.yaml"
	built := BuildArgs(Settings{IgnoreRules: []string{"E0001", "E0002"}}, path)
	out := ExecRunner{}.Run(context.Background(), helperInvocation("args", built...), Hooks{})
	require.NoError(t, out.SpawnErr)
	var got []string
	require.NoError(t, json.Unmarshal(out.Stdout, &got))
	assert.Equal(t, built, got)
}

func TestExecRunnerWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	inv := helperInvocation("pwd")
	inv.Dir = dir
	out := ExecRunner{}.Run(context.Background(), inv, Hooks{})
	require.NoError(t, out.SpawnErr)
	want, err := os.Stat(dir)
	require.NoError(t, err)
	got, err := os.Stat(string(out.Stdout))
	require.NoError(t, err)
	assert.True(t, os.SameFile(want, got))
}

func TestExecRunnerSpawnFailure(t *testing.T) {
	hooked := false
	hooks := Hooks{
		OnStdout: func([]byte) { hooked = true },
		OnStderr: func(string) { hooked = true },
		OnExit:   func(int, string) { hooked = true },
	}
	for _, exe := range []string{"/nonexistent/cfn-lint", "cfn-lint-not-installed-anywhere"} {
		out := ExecRunner{}.Run(context.Background(), Invocation{Executable: exe}, hooks)
		require.Error(t, out.SpawnErr, exe)
		assert.False(t, out.Spawned())
		assert.Nil(t, out.Stdout)
	}
	assert.False(t, hooked, "no channel may fire after a spawn failure")
}
