package messagestore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "notifcollector/pkg/logx"
)

// fileStore is a dependency-free backend over a JSON Lines inbox dump:
//
//	{"address":"555-1234","body":"See you at 5","date":1700000000000}
//
// The whole file is indexed in memory at open; only the newest message per
// address is kept. Insert appends to the file and updates the index.
type fileStore struct {
	log logx.Logger

	mu     sync.RWMutex
	f      *os.File
	latest map[string]Message
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	latest := map[string]Message{}
	skipped, err := loadInbox(path, latest)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if skipped > 0 {
		log.Warn("inbox dump has unreadable lines", logx.String("path", path), logx.Int("skipped", skipped))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	log.Debug("inbox dump indexed", logx.String("path", path), logx.Int("addresses", len(latest)))
	return &fileStore{log: log, f: f, latest: latest}, nil
}

func loadInbox(path string, out map[string]Message) (skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var m Message
		if err := json.Unmarshal(line, &m); err != nil || m.Address == "" {
			skipped++
			continue
		}
		index(out, m)
	}
	return skipped, sc.Err()
}

// index keeps the newest message per address; on equal dates the later one wins.
func index(m map[string]Message, msg Message) {
	if cur, ok := m[msg.Address]; ok && cur.Date.After(msg.Date) {
		return
	}
	m[msg.Address] = msg
}

func (s *fileStore) LatestBody(ctx context.Context, address string) (string, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return "", false, ErrClosed
	}
	m, ok := s.latest[address]
	if !ok || m.Body == "" {
		return "", false, nil
	}
	return m.Body, true, nil
}

func (s *fileStore) Insert(ctx context.Context, m Message) error {
	_ = ctx
	if strings.TrimSpace(m.Address) == "" {
		return errors.New("message address is required")
	}
	if m.Date.IsZero() {
		m.Date = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrClosed
	}
	if err := json.NewEncoder(s.f).Encode(m); err != nil {
		return err
	}
	index(s.latest, m)
	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = nil
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
