package lsp

import (
	"encoding/json"
	"fmt"
	"sort"

	"cfnlsp/internal/lint"
	"cfnlsp/internal/validate"
)

// decodeSettings reads a {"cfnLint": {...}} payload on top of base. Fields
// absent from the payload keep the base value. ok is false when the payload
// carries no cfnLint section.
func decodeSettings(raw json.RawMessage, base lint.Settings) (lint.Settings, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return base, false, nil
	}
	var payload lspSettings
	if err := json.Unmarshal(raw, &payload); err != nil {
		return base, false, fmt.Errorf("failed to decode settings: %w", err)
	}
	if payload.CfnLint == nil {
		return base, false, nil
	}
	in := payload.CfnLint
	out := base.Clone()
	switch {
	case in.ExecutablePath != "":
		out.ExecutablePath = in.ExecutablePath
	case in.Path != "":
		out.ExecutablePath = in.Path
	}
	if in.IgnoreRules != nil {
		out.IgnoreRules = append([]string(nil), in.IgnoreRules...)
	}
	if in.AppendRules != nil {
		out.AppendRules = append([]string(nil), in.AppendRules...)
	}
	if in.OverrideSpecPath != "" {
		out.OverrideSpecPath = in.OverrideSpecPath
	}
	return out.Normalized(), true, nil
}

func (s *Server) handleDidChangeConfiguration(msg *rpcMessage) error {
	if len(msg.Params) == 0 {
		return nil
	}
	var params didChangeConfigurationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.log.WithError(err).Warn("ignoring malformed didChangeConfiguration")
		return nil
	}
	settings, ok, err := decodeSettings(params.Settings, s.baseSettings())
	if err != nil {
		s.log.WithError(err).Warn("ignoring malformed didChangeConfiguration")
		return nil
	}
	if !ok {
		s.log.Debug("didChangeConfiguration without cfnLint section")
		return nil
	}
	s.replaceSettings(settings)
	return nil
}

// replaceSettings installs settings and re-validates every tracked document.
func (s *Server) replaceSettings(settings lint.Settings) {
	results := s.validator.UpdateSettings(s.ctx(), settings, s.trackedDocuments())
	s.log.WithField("documents", len(results)).Debug("revalidating tracked documents")
}

func (s *Server) trackedDocuments() []validate.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]validate.Document, 0, len(s.docs))
	for uri, text := range s.docs {
		docs = append(docs, validate.Document{URI: uri, Path: uriToPath(uri), Text: text})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	return docs
}
