package notification

import (
	"context"
	"strings"
	"sync/atomic"
	"time"
)

// SenderName returns the trimmed title, or sourceID when the title is blank.
func SenderName(title, sourceID string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return sourceID
}

// TruncatedMessage returns the trimmed short text, then the trimmed sub text,
// then NotAvailable. Text always wins over sub text.
func TruncatedMessage(text, subText string) string {
	if t := strings.TrimSpace(text); t != "" {
		return t
	}
	if t := strings.TrimSpace(subText); t != "" {
		return t
	}
	return NotAvailable
}

// typeRules is evaluated top to bottom; the first matching rule wins.
var typeRules = []struct {
	needles []string
	typ     MessageType
}{
	{needles: []string{"sms", "mms", "messaging"}, typ: TypeSMS},
	{needles: []string{"whatsapp"}, typ: TypeWhatsApp},
	{needles: []string{"telegram"}, typ: TypeTelegram},
	{needles: []string{"messenger"}, typ: TypeMessenger},
}

// ClassifyMessageType maps a source identifier to a MessageType using
// case-insensitive substring rules in fixed precedence order.
func ClassifyMessageType(sourceID string) MessageType {
	s := strings.ToLower(sourceID)
	for _, r := range typeRules {
		if containsAny(s, r.needles) {
			return r.typ
		}
	}
	return TypeOther
}

// storeBackedSource reports whether full bodies for sourceID should be read
// from the device message store. "mms" is intentionally not included.
func storeBackedSource(sourceID string) bool {
	return containsAny(strings.ToLower(sourceID), []string{"sms", "messaging"})
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// Extractor turns RawEvents into Records.
//
// It holds no per-event state and is safe for concurrent use.
type Extractor struct {
	correlator Correlator
	now        func() time.Time

	hits   atomic.Uint64
	misses atomic.Uint64
}

type ExtractorOption func(*Extractor)

// WithClock overrides the time source used for Record.Timestamp.
func WithClock(now func() time.Time) ExtractorOption {
	return func(x *Extractor) {
		if now != nil {
			x.now = now
		}
	}
}

// NewExtractor builds an Extractor. A nil correlator disables store lookups.
func NewExtractor(c Correlator, opts ...ExtractorOption) *Extractor {
	if c == nil {
		c = NopCorrelator{}
	}
	x := &Extractor{correlator: c, now: time.Now}
	for _, o := range opts {
		o(x)
	}
	return x
}

// FullMessage resolves the expanded body of a notification.
//
// For store-backed sources the newest stored body from senderName wins,
// even over bigText, and is returned exactly as stored. Otherwise (or when the store has nothing) a bigText
// that differs from the truncated message is used. NotAvailable otherwise.
func (x *Extractor) FullMessage(ctx context.Context, sourceID, senderName, truncated, bigText string) string {
	if storeBackedSource(sourceID) {
		if body, ok := x.correlator.LookupLatestBody(ctx, senderName); ok && strings.TrimSpace(body) != "" {
			x.hits.Add(1)
			return body
		}
		x.misses.Add(1)
	}

	if big := strings.TrimSpace(bigText); big != "" && big != truncated {
		return big
	}
	return NotAvailable
}

// Extract builds the Record for ev, stamping it with the current time.
func (x *Extractor) Extract(ctx context.Context, ev RawEvent) Record {
	src := ev.SourceID
	if strings.TrimSpace(src) == "" {
		src = NotAvailable
	}
	sender := SenderName(ev.Title, src)
	truncated := TruncatedMessage(ev.Text, ev.SubText)
	return Record{
		SourceID:         src,
		SenderName:       sender,
		TruncatedMessage: truncated,
		FullMessage:      x.FullMessage(ctx, src, sender, truncated, ev.BigText),
		MessageType:      ClassifyMessageType(src),
		Timestamp:        x.now().UnixMilli(),
	}
}

// CorrelatorHits returns how many full messages came from the message store.
func (x *Extractor) CorrelatorHits() uint64 { return x.hits.Load() }

// CorrelatorMisses returns how many store lookups produced nothing usable.
func (x *Extractor) CorrelatorMisses() uint64 { return x.misses.Load() }
