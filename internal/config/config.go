// Package config loads validation defaults from a settings file in the
// workspace root and reloads them when the file changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"cfnlsp/internal/lint"
)

// Names searched by Find, in order.
var Names = []string{".cfn-lsp.toml", ".cfn-lsp.yaml", ".cfn-lsp.yml"}

// File is a loaded settings file. Settings.ExecutablePath is empty when the
// file does not name one, so the caller can apply its own fallback.
type File struct {
	Path     string
	Settings lint.Settings
	LogLevel string
}

type fileConfig struct {
	CfnLint cfnLintConfig `toml:"cfn_lint" yaml:"cfn_lint"`
	Server  serverConfig  `toml:"server" yaml:"server"`
}

type cfnLintConfig struct {
	ExecutablePath   string   `toml:"executable_path" yaml:"executable_path"`
	IgnoreRules      []string `toml:"ignore_rules" yaml:"ignore_rules"`
	AppendRules      []string `toml:"append_rules" yaml:"append_rules"`
	OverrideSpecPath string   `toml:"override_spec_path" yaml:"override_spec_path"`
}

type serverConfig struct {
	LogLevel string `toml:"log_level" yaml:"log_level"`
}

// Find looks for a settings file directly inside root.
func Find(root string) (string, bool, error) {
	if root == "" {
		return "", false, nil
	}
	for _, name := range Names {
		candidate := filepath.Join(root, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// Load reads a TOML or YAML settings file, chosen by extension. Relative
// paths inside the file are resolved against the file's directory.
func Load(path string) (File, error) {
	var (
		cfg fileConfig
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		cfg, err = loadTOML(path)
	case ".yaml", ".yml":
		cfg, err = loadYAML(path)
	default:
		return File{}, fmt.Errorf("%s: unsupported settings file type", path)
	}
	if err != nil {
		return File{}, err
	}
	dir := filepath.Dir(path)
	settings := lint.Settings{
		IgnoreRules:      cfg.CfnLint.IgnoreRules,
		AppendRules:      resolveAll(dir, cfg.CfnLint.AppendRules),
		OverrideSpecPath: resolve(dir, strings.TrimSpace(cfg.CfnLint.OverrideSpecPath)),
	}.Normalized()
	settings.ExecutablePath = resolveExecutable(dir, strings.TrimSpace(cfg.CfnLint.ExecutablePath))
	return File{
		Path:     path,
		Settings: settings,
		LogLevel: strings.TrimSpace(cfg.Server.LogLevel),
	}, nil
}

func loadTOML(path string) (fileConfig, error) {
	var cfg fileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return fileConfig{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("cfn_lint") {
		return fileConfig{}, fmt.Errorf("%s: missing [cfn_lint]", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fileConfig{}, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}

func loadYAML(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	var cfg fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return fileConfig{}, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
	}
	return cfg, nil
}

// resolveExecutable keeps bare command names for PATH lookup.
func resolveExecutable(dir, exe string) string {
	if exe == "" || (!strings.ContainsRune(exe, '/') && !strings.ContainsRune(exe, filepath.Separator)) {
		return exe
	}
	return resolve(dir, exe)
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return filepath.Join(dir, filepath.FromSlash(p))
}

func resolveAll(dir string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, resolve(dir, strings.TrimSpace(p)))
	}
	return out
}
