package messagestore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("message store disabled")
	ErrClosed   = errors.New("message store closed")
)

// Config selects and configures a store driver.
//
// If Driver is empty or "none", the store is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Message is one inbox entry.
//
// On the wire (inbox dumps) Date is unix milliseconds, like the platform's
// own SMS provider; 0 or absent means unknown.
type Message struct {
	Address string
	Body    string
	Date    time.Time
}

type messageJSON struct {
	Address string `json:"address"`
	Body    string `json:"body,omitempty"`
	Date    int64  `json:"date,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	w := messageJSON{Address: m.Address, Body: m.Body}
	if !m.Date.IsZero() {
		w.Date = m.Date.UnixMilli()
	}
	return json.Marshal(w)
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var w messageJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*m = Message{Address: w.Address, Body: w.Body}
	// A missing date stays zero so Insert stamps it.
	if w.Date != 0 {
		m.Date = time.UnixMilli(w.Date)
	}
	return nil
}

// Store is the message store API. The notification core only reads from it;
// Insert exists for importing inbox dumps.
type Store interface {
	LatestBody(ctx context.Context, address string) (body string, ok bool, err error)
	Insert(ctx context.Context, m Message) error
	Close() error
}
