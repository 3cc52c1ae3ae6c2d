// Package ingest delivers raw notification events from the host platform to
// a notification.Handler. Adapters here own no extraction logic.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync/atomic"

	"notifcollector/internal/notification"
	logx "notifcollector/pkg/logx"
)

const maxLineBytes = 1 << 20

// Stream reads JSON Lines RawEvents from r and hands each to the handler
// on the goroutine calling Run. Malformed lines are logged and skipped.
type Stream struct {
	r   io.Reader
	h   notification.Handler
	log logx.Logger

	delivered atomic.Uint64
	rejected  atomic.Uint64
}

func NewStream(r io.Reader, h notification.Handler, log logx.Logger) *Stream {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Stream{r: r, h: h, log: log}
}

// Run reads until EOF, a read error, or ctx cancellation.
//
// Cancellation returns immediately even while a read is blocked; no event is
// handed to the handler after Run returns. If r is an io.Closer it is closed
// on cancellation to release the pending read.
func (s *Stream) Run(ctx context.Context) error {
	if c, ok := s.r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stop()
	}

	lines := make(chan []byte)
	errc := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go s.scan(lines, errc, done)

	s.log.Info("notification listener connected", logx.String("input", "stream"))
	line := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-lines:
			if !ok {
				err := <-errc
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err != nil {
					return err
				}
				s.log.Info("input stream closed", logx.Uint64("delivered", s.delivered.Load()), logx.Uint64("rejected", s.rejected.Load()))
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			line++
			s.handleLine(ctx, line, raw)
		}
	}
}

// scan feeds lines to Run until EOF or until done is closed.
func (s *Stream) scan(lines chan<- []byte, errc chan<- error, done <-chan struct{}) {
	defer close(lines)
	sc := bufio.NewScanner(s.r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		b := append([]byte(nil), sc.Bytes()...)
		select {
		case lines <- b:
		case <-done:
			errc <- nil
			return
		}
	}
	errc <- sc.Err()
}

func (s *Stream) handleLine(ctx context.Context, line int, raw []byte) {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 {
		return
	}
	var ev notification.RawEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		s.rejected.Add(1)
		s.log.Warn("malformed event line", logx.Int("line", line), logx.Err(err))
		return
	}
	s.h.Handle(ctx, ev)
	s.delivered.Add(1)
}

func (s *Stream) Delivered() uint64 { return s.delivered.Load() }
func (s *Stream) Rejected() uint64  { return s.rejected.Load() }
