package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfnlsp/internal/lint"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".cfn-lsp.toml", `
[cfn_lint]
executable_path = "bin/cfn-lint"
ignore_rules = ["E0001", "W2001"]
append_rules = ["rules"]
override_spec_path = "/abs/spec.json"

[server]
log_level = "debug"
`)
	file, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, file.Path)
	assert.Equal(t, "debug", file.LogLevel)
	assert.Equal(t, lint.Settings{
		ExecutablePath:   filepath.Join(dir, "bin", "cfn-lint"),
		IgnoreRules:      []string{"E0001", "W2001"},
		AppendRules:      []string{filepath.Join(dir, "rules")},
		OverrideSpecPath: "/abs/spec.json",
	}, file.Settings)
}

func TestLoadTOMLDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), ".cfn-lsp.toml", "[cfn_lint]\n")
	file, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, file.Settings.ExecutablePath, "no executable_path leaves the fallback to the caller")
	assert.Empty(t, file.Settings.IgnoreRules)
}

func TestLoadTOMLErrors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"missing.toml": "[server]\nlog_level = \"info\"\n",
		"unknown.toml": "[cfn_lint]\nignore = [\"E1\"]\n",
		"broken.toml":  "[cfn_lint\n",
	}
	for name, content := range cases {
		path := writeFile(t, dir, name, content)
		_, err := Load(path)
		require.Error(t, err, name)
		assert.Contains(t, err.Error(), path)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".cfn-lsp.yaml", `
cfn_lint:
  executable_path: cfn-lint-3
  ignore_rules: [E3012]
  override_spec_path: specs/override.json
`)
	file, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cfn-lint-3", file.Settings.ExecutablePath)
	assert.Equal(t, []string{"E3012"}, file.Settings.IgnoreRules)
	assert.Equal(t, filepath.Join(dir, "specs", "override.json"), file.Settings.OverrideSpecPath)
}

func TestLoadYAMLRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, t.TempDir(), ".cfn-lsp.yml", "cfn_lint:\n  ignore: [E1]\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadYAMLEmpty(t *testing.T) {
	path := writeFile(t, t.TempDir(), ".cfn-lsp.yml", "")
	file, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, file.Settings.ExecutablePath)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	_, err := Load(writeFile(t, t.TempDir(), "settings.json", "{}"))
	require.Error(t, err)
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := Find(dir)
	require.NoError(t, err)
	assert.False(t, ok)

	writeFile(t, dir, ".cfn-lsp.yaml", "cfn_lint: {}\n")
	want := writeFile(t, dir, ".cfn-lsp.toml", "[cfn_lint]\n")
	got, ok, err := Find(dir)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got, "TOML is preferred")

	_, ok, err = Find("")
	require.NoError(t, err)
	assert.False(t, ok)
}
