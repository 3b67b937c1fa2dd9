package lsp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// LSP MessageType values.
const (
	messageError   = 1
	messageWarning = 2
	messageInfo    = 3
	messageLog     = 4
)

// LogHook forwards log entries to the client as window/logMessage once the
// session is initialized. Entries below Level are not forwarded.
type LogHook struct {
	server *Server
	level  logrus.Level
}

// LogHook returns a hook that mirrors entries at or above level to the client.
func (s *Server) LogHook(level logrus.Level) *LogHook {
	return &LogHook{server: s, level: level}
}

func (h *LogHook) Levels() []logrus.Level {
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, l := range logrus.AllLevels {
		if l <= h.level {
			levels = append(levels, l)
		}
	}
	return levels
}

func (h *LogHook) Fire(entry *logrus.Entry) error {
	if !h.server.initialized.Load() {
		return nil
	}
	// send never logs, so this cannot re-enter; sendMu orders concurrent entries.
	return h.server.notify("window/logMessage", logMessageParams{
		Type:    messageType(entry.Level),
		Message: formatEntry(entry),
	})
}

func messageType(level logrus.Level) int {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return messageError
	case logrus.WarnLevel:
		return messageWarning
	case logrus.InfoLevel:
		return messageInfo
	default:
		return messageLog
	}
}

func formatEntry(entry *logrus.Entry) string {
	if len(entry.Data) == 0 {
		return entry.Message
	}
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(entry.Message)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	return b.String()
}
