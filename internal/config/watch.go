package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const defaultReloadDelay = 100 * time.Millisecond

// Watcher reloads a settings file when it is written, created or replaced.
type Watcher struct {
	path  string
	fs    *fsnotify.Watcher
	log   logrus.FieldLogger
	delay time.Duration
}

// NewWatcher watches the directory holding path, so editors that save by
// rename are seen too.
func NewWatcher(path string, log logrus.FieldLogger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(abs), err)
	}
	return &Watcher{path: abs, fs: fw, log: log.WithField("config", abs), delay: defaultReloadDelay}, nil
}

// Run delivers every successful reload to onChange until ctx is done.
// Bursts of events are coalesced; invalid files are logged and skipped.
func (w *Watcher) Run(ctx context.Context, onChange func(File)) error {
	defer w.fs.Close()
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		file, err := Load(w.path)
		if err != nil {
			w.log.WithError(err).Warn("ignoring invalid settings file")
			return
		}
		w.log.Info("settings file reloaded")
		onChange(file)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.delay, reload)
			mu.Unlock()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("settings watcher error")
		}
	}
}
