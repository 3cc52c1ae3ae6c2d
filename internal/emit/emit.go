// Package emit holds the record sinks the collector can hand records to.
// All of them are fire-and-forget: no retries, no unbounded buffering.
package emit

import (
	"encoding/json"
	"io"
	"sync"

	"notifcollector/internal/bridge"
	"notifcollector/internal/notification"
	logx "notifcollector/pkg/logx"
)

// Channel forwards records over a bridge.Channel as onNotificationReceived calls.
// While nothing is attached the record is dropped.
type Channel struct {
	ch *bridge.Channel
}

func NewChannel(ch *bridge.Channel) *Channel { return &Channel{ch: ch} }

func (c *Channel) Emit(r notification.Record) {
	if c == nil || c.ch == nil {
		return
	}
	c.ch.Invoke(bridge.MethodNotificationIn, r.Fields())
}

// Log writes one structured line per record.
type Log struct {
	log logx.Logger
}

func NewLog(log logx.Logger) *Log {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Log{log: log}
}

func (l *Log) Emit(r notification.Record) {
	l.log.Info("notification",
		logx.String(notification.FieldPackageName, r.SourceID),
		logx.String(notification.FieldSenderName, r.SenderName),
		logx.String(notification.FieldTruncatedMessage, r.TruncatedMessage),
		logx.String(notification.FieldFullMessage, r.FullMessage),
		logx.String(notification.FieldMessageType, r.MessageType.String()),
		logx.Int64(notification.FieldTimestamp, r.Timestamp),
	)
}

// JSONL writes each record as one JSON object per line.
// Write errors are counted and otherwise ignored.
type JSONL struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder

	failed int
}

func NewJSONL(w io.Writer) *JSONL {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONL{w: w, enc: enc}
}

func (j *JSONL) Emit(r notification.Record) {
	if j == nil || j.w == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(r); err != nil {
		j.failed++
	}
}

// Failed returns the number of records that could not be written.
func (j *JSONL) Failed() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.failed
}

// Fanout emits to every sink in order. Nil sinks are skipped.
type Fanout []notification.Emitter

func (f Fanout) Emit(r notification.Record) {
	for _, e := range f {
		if e != nil {
			e.Emit(r)
		}
	}
}
