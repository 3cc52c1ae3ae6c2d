package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"notifcollector/internal/notification"
	logx "notifcollector/pkg/logx"
)

const (
	spoolExt       = ".json"
	failedDir      = "failed"
	settleDelay    = 100 * time.Millisecond
	restartBackoff = 250 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Spool watches a directory for *.json files, each holding one RawEvent or
// a JSON array of them. A file is delivered and then removed; unreadable
// files are moved to <dir>/failed. Writers should create files under a
// different extension and rename them into place.
type Spool struct {
	dir string
	h   notification.Handler
	log logx.Logger

	procMu sync.Mutex

	timerMu sync.Mutex
	timers  map[string]*time.Timer

	delivered atomic.Uint64
	failed    atomic.Uint64
}

func NewSpool(dir string, h notification.Handler, log logx.Logger) *Spool {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Spool{dir: dir, h: h, log: log, timers: map[string]*time.Timer{}}
}

// Run drains files already present, then watches until ctx is done.
// A broken watcher is recreated with backoff.
func (s *Spool) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(s.dir, failedDir), 0o755); err != nil {
		return fmt.Errorf("spool dir: %w", err)
	}
	defer s.stopTimers()

	backoff := restartBackoff
	for {
		if ctx.Err() != nil {
			return nil
		}
		err := s.watch(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		s.log.Warn("spool watcher stopped; restarting", logx.Err(err), logx.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *Spool) watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(s.dir); err != nil {
		return err
	}

	// Drain after the watch is in place so nothing slips between the two.
	s.drain(ctx)
	s.log.Info("notification listener connected", logx.String("input", "spool"), logx.String("dir", s.dir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("watcher events closed")
			}
			if !isSpoolFile(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				s.schedule(ctx, ev.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("watcher errors closed")
			}
			if err == nil {
				continue
			}
			if strings.Contains(strings.ToLower(err.Error()), "overflow") {
				s.log.Warn("spool watch overflow; rescanning", logx.Err(err))
				s.drain(ctx)
				continue
			}
			return err
		}
	}
}

func isSpoolFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(strings.ToLower(base), spoolExt) && !strings.HasPrefix(base, ".")
}

// schedule debounces per file so partially written files settle first.
func (s *Spool) schedule(ctx context.Context, path string) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if t, ok := s.timers[path]; ok {
		t.Stop()
	}
	s.timers[path] = time.AfterFunc(settleDelay, func() {
		s.timerMu.Lock()
		delete(s.timers, path)
		s.timerMu.Unlock()
		if ctx.Err() == nil {
			s.process(ctx, path)
		}
	})
}

func (s *Spool) stopTimers() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	for k, t := range s.timers {
		t.Stop()
		delete(s.timers, k)
	}
}

func (s *Spool) drain(ctx context.Context) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn("spool scan failed", logx.Err(err))
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && isSpoolFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		if ctx.Err() != nil {
			return
		}
		s.process(ctx, filepath.Join(s.dir, n))
	}
}

func (s *Spool) process(ctx context.Context, path string) {
	s.procMu.Lock()
	defer s.procMu.Unlock()

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return // already handled
	}
	if err != nil {
		s.reject(path, err)
		return
	}
	events, err := decodeEvents(b)
	if err != nil {
		s.reject(path, err)
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("spool file not removed", logx.String("file", filepath.Base(path)), logx.Err(err))
	}
	for _, ev := range events {
		s.h.Handle(ctx, ev)
		s.delivered.Add(1)
	}
}

func (s *Spool) reject(path string, cause error) {
	s.failed.Add(1)
	dst := filepath.Join(s.dir, failedDir, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		s.log.Warn("spool file not moved to failed", logx.String("file", filepath.Base(path)), logx.Err(err))
	}
	s.log.Warn("spool file rejected", logx.String("file", filepath.Base(path)), logx.Err(cause))
}

func decodeEvents(b []byte) ([]notification.RawEvent, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, errors.New("empty file")
	}
	if b[0] == '[' {
		var evs []notification.RawEvent
		if err := json.Unmarshal(b, &evs); err != nil {
			return nil, err
		}
		return evs, nil
	}
	var ev notification.RawEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return nil, err
	}
	return []notification.RawEvent{ev}, nil
}

func (s *Spool) Delivered() uint64 { return s.delivered.Load() }
func (s *Spool) Failed() uint64    { return s.failed.Load() }
