package notification

import (
	"context"
	"encoding/json"
	"errors"
)

// NotAvailable stands in for any message field the notification did not carry.
const NotAvailable = "NOT_AVAILABLE"

// Wire field names. Downstream consumers depend on these exact keys.
const (
	FieldPackageName      = "packageName"
	FieldSenderName       = "senderName"
	FieldTruncatedMessage = "truncatedMessage"
	FieldFullMessage      = "fullMessage"
	FieldMessageType      = "messageType"
	FieldTimestamp        = "timestamp"
)

// MessageType classifies the application a notification came from.
type MessageType string

const (
	TypeSMS       MessageType = "SMS"
	TypeWhatsApp  MessageType = "WhatsApp"
	TypeTelegram  MessageType = "Telegram"
	TypeMessenger MessageType = "Messenger"
	TypeOther     MessageType = "Other"
)

func (t MessageType) String() string { return string(t) }

// RawEvent is a notification as delivered by the host platform.
//
// Only SourceID is required. Empty and whitespace-only fields are treated
// as absent. Arrival time is assigned during extraction, not here.
type RawEvent struct {
	SourceID string `json:"packageName"`
	Title    string `json:"title,omitempty"`
	Text     string `json:"text,omitempty"`
	SubText  string `json:"subText,omitempty"`
	BigText  string `json:"bigText,omitempty"`
}

// UnmarshalJSON accepts "sourceId" as an alias for "packageName".
// A field holding anything other than a JSON string is treated as absent;
// only a payload that is not a JSON object is an error.
func (e *RawEvent) UnmarshalJSON(b []byte) error {
	var tmp map[string]json.RawMessage
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	if tmp == nil {
		return errors.New("raw event: not a JSON object")
	}
	src := stringField(tmp, "packageName")
	if src == "" {
		src = stringField(tmp, "sourceId")
	}
	*e = RawEvent{
		SourceID: src,
		Title:    stringField(tmp, "title"),
		Text:     stringField(tmp, "text"),
		SubText:  stringField(tmp, "subText"),
		BigText:  stringField(tmp, "bigText"),
	}
	return nil
}

func stringField(m map[string]json.RawMessage, key string) string {
	raw, ok := m[key]
	if !ok {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v
}

// Record is the normalized, fully populated form of a RawEvent.
// Every field is non-empty; NotAvailable fills the gaps.
type Record struct {
	SourceID         string
	SenderName       string
	TruncatedMessage string
	FullMessage      string
	MessageType      MessageType
	Timestamp        int64 // unix milli
}

// Fields returns the flat wire mapping handed to downstream consumers.
func (r Record) Fields() map[string]any {
	return map[string]any{
		FieldPackageName:      r.SourceID,
		FieldSenderName:       r.SenderName,
		FieldTruncatedMessage: r.TruncatedMessage,
		FieldFullMessage:      r.FullMessage,
		FieldMessageType:      string(r.MessageType),
		FieldTimestamp:        r.Timestamp,
	}
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		PackageName      string `json:"packageName"`
		SenderName       string `json:"senderName"`
		TruncatedMessage string `json:"truncatedMessage"`
		FullMessage      string `json:"fullMessage"`
		MessageType      string `json:"messageType"`
		Timestamp        int64  `json:"timestamp"`
	}{
		PackageName:      r.SourceID,
		SenderName:       r.SenderName,
		TruncatedMessage: r.TruncatedMessage,
		FullMessage:      r.FullMessage,
		MessageType:      string(r.MessageType),
		Timestamp:        r.Timestamp,
	})
}

// Emitter is a one-way, fire-and-forget sink for records.
//
// Contract:
//   - Emit MUST NOT block the caller on slow consumers.
//   - If the sink is not connected, Emit is a no-op and the record is dropped.
//   - Implementations must be safe to call from concurrent delivery contexts.
type Emitter interface {
	Emit(r Record)
}

// EmitterFunc adapts a plain function to Emitter.
type EmitterFunc func(r Record)

func (f EmitterFunc) Emit(r Record) {
	if f != nil {
		f(r)
	}
}

// Handler consumes raw notification events, one call per event.
// Platform integrations (stream readers, spool watchers, listeners) deliver to it.
type Handler interface {
	Handle(ctx context.Context, ev RawEvent)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, ev RawEvent)

func (f HandlerFunc) Handle(ctx context.Context, ev RawEvent) {
	if f != nil {
		f(ctx, ev)
	}
}
