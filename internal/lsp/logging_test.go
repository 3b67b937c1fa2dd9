package lsp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestFormatEntrySortsFields(t *testing.T) {
	entry := &logrus.Entry{
		Message: "validation finished",
		Data:    logrus.Fields{"uri": "file:///a.yaml", "diagnostics": 2},
	}
	got := formatEntry(entry)
	want := "validation finished diagnostics=2 uri=file:///a.yaml"
	if got != want {
		t.Fatalf("formatEntry() = %q, want %q", got, want)
	}
}

func TestMessageType(t *testing.T) {
	tests := map[logrus.Level]int{
		logrus.ErrorLevel: messageError,
		logrus.WarnLevel:  messageWarning,
		logrus.InfoLevel:  messageInfo,
		logrus.DebugLevel: messageLog,
		logrus.TraceLevel: messageLog,
	}
	for level, want := range tests {
		if got := messageType(level); got != want {
			t.Errorf("messageType(%s) = %d, want %d", level, got, want)
		}
	}
}

func TestLogHookForwardsAfterInitialized(t *testing.T) {
	var out bytes.Buffer
	srv := NewServer(strings.NewReader(""), &out, ServerOptions{})
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	logger.AddHook(srv.LogHook(logrus.InfoLevel))

	logger.Warn("before initialized")
	if out.Len() != 0 {
		t.Fatalf("unexpected output before initialized: %q", out.String())
	}

	srv.initialized.Store(true)
	logger.Debug("below threshold")
	logger.WithError(errors.New("boom")).Warn("cfn-lint wrote to stderr")

	payload, err := readMessage(bufio.NewReader(&out))
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var msg struct {
		Method string           `json:"method"`
		Params logMessageParams `json:"params"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Method != "window/logMessage" {
		t.Fatalf("method = %q", msg.Method)
	}
	if msg.Params.Type != messageWarning {
		t.Fatalf("type = %d, want %d", msg.Params.Type, messageWarning)
	}
	if msg.Params.Message != "cfn-lint wrote to stderr error=boom" {
		t.Fatalf("message = %q", msg.Params.Message)
	}
	if out.Len() != 0 {
		t.Fatalf("debug entry was forwarded: %q", out.String())
	}
}

// gatedWriter blocks every Write until gate is closed and reports the first one.
type gatedWriter struct {
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once

	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *gatedWriter) Write(p []byte) (int, error) {
	w.once.Do(func() { close(w.entered) })
	<-w.gate
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func TestLogHookConcurrentEntriesAreAllSent(t *testing.T) {
	w := &gatedWriter{gate: make(chan struct{}), entered: make(chan struct{})}
	srv := NewServer(strings.NewReader(""), w, ServerOptions{})
	srv.initialized.Store(true)
	hook := srv.LogHook(logrus.InfoLevel)

	first := make(chan error, 1)
	go func() {
		first <- hook.Fire(&logrus.Entry{Level: logrus.InfoLevel, Message: "first"})
	}()
	select {
	case <-w.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first entry never reached the writer")
	}

	second := make(chan error, 1)
	go func() {
		second <- hook.Fire(&logrus.Entry{Level: logrus.WarnLevel, Message: "second"})
	}()
	select {
	case err := <-second:
		t.Fatalf("second entry returned (%v) while the first was still being written", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(w.gate)
	for name, ch := range map[string]chan error{"first": first, "second": second} {
		select {
		case err := <-ch:
			if err != nil {
				t.Fatalf("%s Fire: %v", name, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("%s Fire did not return", name)
		}
	}

	r := bufio.NewReader(&w.buf)
	var got []string
	for range 2 {
		payload, err := readMessage(r)
		if err != nil {
			t.Fatalf("read message: %v", err)
		}
		var msg struct {
			Params logMessageParams `json:"params"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = append(got, msg.Params.Message)
	}
	if got[0] != "first" || got[1] != "second" {
		t.Fatalf("messages = %v, want [first second]", got)
	}
}
