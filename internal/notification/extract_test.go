package notification

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubStore struct {
	body  string
	ok    bool
	err   error
	panic bool
	calls int
	last  string
}

func (s *stubStore) LatestBody(_ context.Context, address string) (string, bool, error) {
	s.calls++
	s.last = address
	if s.panic {
		panic("store exploded")
	}
	return s.body, s.ok, s.err
}

func fixedClock() time.Time { return time.UnixMilli(1_700_000_000_000) }

func TestSenderName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, title, src, want string
	}{
		{name: "title", title: "Alice", src: "com.whatsapp", want: "Alice"},
		{name: "trimmed", title: "  Bob \n", src: "com.whatsapp", want: "Bob"},
		{name: "empty", title: "", src: "com.whatsapp", want: "com.whatsapp"},
		{name: "blank", title: "   ", src: "org.telegram.messenger", want: "org.telegram.messenger"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := SenderName(tt.title, tt.src); got != tt.want {
				t.Fatalf("SenderName(%q, %q) = %q, want %q", tt.title, tt.src, got, tt.want)
			}
		})
	}
}

func TestTruncatedMessage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, text, sub, want string
	}{
		{name: "text wins", text: " Hi! ", sub: "2 new messages", want: "Hi!"},
		{name: "sub text fallback", text: "", sub: " 2 new messages ", want: "2 new messages"},
		{name: "blank text falls through", text: "  ", sub: "sub", want: "sub"},
		{name: "nothing", want: NotAvailable},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncatedMessage(tt.text, tt.sub); got != tt.want {
				t.Fatalf("TruncatedMessage(%q, %q) = %q, want %q", tt.text, tt.sub, got, tt.want)
			}
		})
	}
}

func TestClassifyMessageType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		src  string
		want MessageType
	}{
		{src: "com.android.messaging", want: TypeSMS},
		{src: "com.google.android.apps.messaging", want: TypeSMS},
		{src: "com.samsung.android.MMS", want: TypeSMS},
		{src: "com.example.SmsApp", want: TypeSMS},
		{src: "com.whatsapp", want: TypeWhatsApp},
		{src: "com.WhatsApp.w4b", want: TypeWhatsApp},
		{src: "org.telegram.messenger", want: TypeTelegram},
		{src: "com.facebook.orca.messenger", want: TypeMessenger},
		{src: "com.example.sms.whatsapp", want: TypeSMS},
		{src: "com.google.android.gm", want: TypeOther},
		{src: "", want: TypeOther},
	}
	for _, tt := range tests {
		if got := ClassifyMessageType(tt.src); got != tt.want {
			t.Fatalf("ClassifyMessageType(%q) = %s, want %s", tt.src, got, tt.want)
		}
	}
}

func TestFullMessageNonStoreSource(t *testing.T) {
	t.Parallel()
	st := &stubStore{body: "from store", ok: true}
	x := NewExtractor(NewStoreCorrelator(st, nil))
	ctx := context.Background()

	if got := x.FullMessage(ctx, "com.whatsapp", "Alice", "Hello", "Hello there"); got != "Hello there" {
		t.Fatalf("got %q, want %q", got, "Hello there")
	}
	if got := x.FullMessage(ctx, "com.whatsapp", "Alice", "Hello", "Hello"); got != NotAvailable {
		t.Fatalf("equal bigText: got %q, want %q", got, NotAvailable)
	}
	if got := x.FullMessage(ctx, "com.whatsapp", "Alice", "Hello", " Hello \n"); got != NotAvailable {
		t.Fatalf("bigText equal after trim: got %q, want %q", got, NotAvailable)
	}
	if got := x.FullMessage(ctx, "com.whatsapp", "Alice", "Hello", ""); got != NotAvailable {
		t.Fatalf("empty bigText: got %q, want %q", got, NotAvailable)
	}
	if st.calls != 0 {
		t.Fatalf("store consulted for non-sms source (%d calls)", st.calls)
	}
}

func TestFullMessageStoreWins(t *testing.T) {
	t.Parallel()
	st := &stubStore{body: "See you at 5", ok: true}
	x := NewExtractor(NewStoreCorrelator(st, nil))

	got := x.FullMessage(context.Background(), "com.android.messaging", "555-1234", "See you", "See you at 5 pm tomorrow")
	if got != "See you at 5" {
		t.Fatalf("got %q, want store body", got)
	}
	if st.last != "555-1234" {
		t.Fatalf("store queried with %q, want sender name", st.last)
	}
	if x.CorrelatorHits() != 1 {
		t.Fatalf("hits = %d, want 1", x.CorrelatorHits())
	}
}

func TestFullMessageMMSSkipsStore(t *testing.T) {
	t.Parallel()
	st := &stubStore{body: "stored", ok: true}
	x := NewExtractor(NewStoreCorrelator(st, nil))

	got := x.FullMessage(context.Background(), "com.vendor.mms", "Bob", "short", "short and long")
	if got != "short and long" {
		t.Fatalf("got %q", got)
	}
	if st.calls != 0 {
		t.Fatalf("mms source consulted the store")
	}
}

func TestFullMessageStoreFailureFallsThrough(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		store *stubStore
	}{
		{name: "error", store: &stubStore{err: errors.New("permission denied")}},
		{name: "panic", store: &stubStore{panic: true}},
		{name: "no match", store: &stubStore{}},
		{name: "blank body", store: &stubStore{body: "   ", ok: true}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := NewStoreCorrelator(tt.store, nil)
			x := NewExtractor(c)
			got := x.FullMessage(context.Background(), "com.android.messaging", "555-1234", "Are you...", "Are you coming tonight?")
			if got != "Are you coming tonight?" {
				t.Fatalf("got %q, want bigText fallback", got)
			}
			got = x.FullMessage(context.Background(), "com.android.messaging", "555-1234", "Are you...", "")
			if got != NotAvailable {
				t.Fatalf("got %q, want sentinel", got)
			}
			if x.CorrelatorMisses() != 2 {
				t.Fatalf("misses = %d, want 2", x.CorrelatorMisses())
			}
		})
	}
}

func TestStoreCorrelatorCountsErrors(t *testing.T) {
	t.Parallel()
	c := NewStoreCorrelator(&stubStore{err: errors.New("boom")}, nil)
	if _, ok := c.LookupLatestBody(context.Background(), "555"); ok {
		t.Fatal("expected no match on store error")
	}
	if _, ok := c.LookupLatestBody(context.Background(), ""); ok {
		t.Fatal("expected no match for empty sender")
	}
	if c.Errors() != 1 {
		t.Fatalf("errors = %d, want 1", c.Errors())
	}
}

func TestExtractScenarios(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		store *stubStore
		ev    RawEvent
		want  Record
	}{
		{
			name: "whatsapp without big text",
			ev:   RawEvent{SourceID: "com.whatsapp", Title: "Alice", Text: "Hi!"},
			want: Record{
				SourceID:         "com.whatsapp",
				SenderName:       "Alice",
				TruncatedMessage: "Hi!",
				FullMessage:      NotAvailable,
				MessageType:      TypeWhatsApp,
			},
		},
		{
			name:  "sms store miss falls back to big text",
			store: &stubStore{},
			ev: RawEvent{
				SourceID: "com.android.messaging",
				Title:    "555-1234",
				Text:     "Are you...",
				BigText:  "Are you coming tonight?",
			},
			want: Record{
				SourceID:         "com.android.messaging",
				SenderName:       "555-1234",
				TruncatedMessage: "Are you...",
				FullMessage:      "Are you coming tonight?",
				MessageType:      TypeSMS,
			},
		},
		{
			name:  "store body kept verbatim",
			store: &stubStore{body: "  See you at 5\n", ok: true},
			ev:    RawEvent{SourceID: "com.android.messaging", Title: "555-1234", Text: "See you"},
			want: Record{
				SourceID:         "com.android.messaging",
				SenderName:       "555-1234",
				TruncatedMessage: "See you",
				FullMessage:      "  See you at 5\n",
				MessageType:      TypeSMS,
			},
		},
		{
			name: "source id passed through untrimmed",
			ev:   RawEvent{SourceID: " com.whatsapp ", Text: "Hi!"},
			want: Record{
				SourceID:         " com.whatsapp ",
				SenderName:       " com.whatsapp ",
				TruncatedMessage: "Hi!",
				FullMessage:      NotAvailable,
				MessageType:      TypeWhatsApp,
			},
		},
		{
			name: "empty event",
			ev:   RawEvent{SourceID: "com.example.app"},
			want: Record{
				SourceID:         "com.example.app",
				SenderName:       "com.example.app",
				TruncatedMessage: NotAvailable,
				FullMessage:      NotAvailable,
				MessageType:      TypeOther,
			},
		},
		{
			name: "missing source",
			ev:   RawEvent{Title: "Carol"},
			want: Record{
				SourceID:         NotAvailable,
				SenderName:       "Carol",
				TruncatedMessage: NotAvailable,
				FullMessage:      NotAvailable,
				MessageType:      TypeOther,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var c Correlator
			if tt.store != nil {
				c = NewStoreCorrelator(tt.store, nil)
			}
			x := NewExtractor(c, WithClock(fixedClock))
			got := x.Extract(context.Background(), tt.ev)
			tt.want.Timestamp = fixedClock().UnixMilli()
			if got != tt.want {
				t.Fatalf("Extract() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtractNeverEmpty(t *testing.T) {
	t.Parallel()
	x := NewExtractor(NewStoreCorrelator(&stubStore{body: "", ok: true}, nil))
	events := []RawEvent{
		{},
		{SourceID: " "},
		{SourceID: "sms", Title: " ", Text: "\t", SubText: " ", BigText: " "},
		{SourceID: "com.whatsapp", BigText: "x"},
	}
	for _, ev := range events {
		r := x.Extract(context.Background(), ev)
		for k, v := range r.Fields() {
			if s, ok := v.(string); ok && s == "" {
				t.Fatalf("event %+v: field %s is empty", ev, k)
			}
		}
		if r.Timestamp <= 0 {
			t.Fatalf("event %+v: timestamp not set", ev)
		}
	}
}
