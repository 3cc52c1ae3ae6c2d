package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	logx "notifcollector/pkg/logx"
)

type recordSink struct {
	mu   sync.Mutex
	recs []Record
}

func (s *recordSink) Emit(r Record) {
	s.mu.Lock()
	s.recs = append(s.recs, r)
	s.mu.Unlock()
}

func (s *recordSink) all() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.recs...)
}

type panicCorrelator struct{}

func (panicCorrelator) LookupLatestBody(context.Context, string) (string, bool) {
	panic("unexpected")
}

func TestPipelineEmitsRecords(t *testing.T) {
	t.Parallel()
	sink := &recordSink{}
	p := NewPipeline(NewExtractor(nil, WithClock(fixedClock)), sink, logx.Nop(), nil)

	p.Handle(context.Background(), RawEvent{SourceID: "com.whatsapp", Title: "Alice", Text: "Hi!"})
	p.Handle(context.Background(), RawEvent{SourceID: "org.telegram.messenger", Text: "yo"})

	recs := sink.all()
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[1].MessageType != TypeTelegram || recs[1].SenderName != "org.telegram.messenger" {
		t.Fatalf("unexpected record: %+v", recs[1])
	}
	st := p.Stats()
	if st.Received != 2 || st.Emitted != 2 || st.Dropped != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestPipelineIsolatesFailures(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := logx.NewWriter(&buf, "debug")
	sink := &recordSink{}
	p := NewPipeline(NewExtractor(panicCorrelator{}), sink, log, NewDiagnostics(log, 0))

	// The sms source reaches the correlator and panics; the whatsapp one must still go through.
	p.Handle(context.Background(), RawEvent{SourceID: "com.android.messaging", Title: "555"})
	p.Handle(context.Background(), RawEvent{SourceID: "com.whatsapp", Title: "Alice", Text: "Hi!"})

	recs := sink.all()
	if len(recs) != 1 || recs[0].SenderName != "Alice" {
		t.Fatalf("unexpected records: %+v", recs)
	}
	st := p.Stats()
	if st.Dropped != 1 || st.Emitted != 1 || st.Received != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if !strings.Contains(buf.String(), "notification dropped") {
		t.Fatalf("expected drop diagnostic, got %q", buf.String())
	}
}

func TestPipelineNilEmitterDrops(t *testing.T) {
	t.Parallel()
	p := NewPipeline(nil, nil, logx.Logger{}, nil)
	p.Handle(context.Background(), RawEvent{SourceID: "com.whatsapp"})
	if st := p.Stats(); st.Dropped != 1 || st.Emitted != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestPipelineConcurrentHandle(t *testing.T) {
	t.Parallel()
	sink := &recordSink{}
	st := &stubStore{body: "stored", ok: true}
	c := NewStoreCorrelator(&lockedStore{s: st}, nil)
	p := NewPipeline(NewExtractor(c), sink, logx.Nop(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := "com.whatsapp"
			if i%2 == 0 {
				src = "com.android.messaging"
			}
			p.Handle(context.Background(), RawEvent{SourceID: src, Title: "x", Text: "y"})
		}(i)
	}
	wg.Wait()

	if n := len(sink.all()); n != 50 {
		t.Fatalf("expected 50 records, got %d", n)
	}
	if got := p.Stats().CorrelatorHits; got != 25 {
		t.Fatalf("correlator hits = %d, want 25", got)
	}
}

type lockedStore struct {
	mu sync.Mutex
	s  *stubStore
}

func (l *lockedStore) LatestBody(ctx context.Context, address string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.LatestBody(ctx, address)
}

func TestDiagnosticsRateLimit(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	d := NewDiagnostics(logx.NewWriter(&buf, "debug"), 1)
	for i := 0; i < 5; i++ {
		d.Warn("bad payload")
	}
	if got := strings.Count(buf.String(), "bad payload"); got != 1 {
		t.Fatalf("expected 1 logged warning, got %d", got)
	}
	if d.Suppressed() != 4 {
		t.Fatalf("suppressed = %d, want 4", d.Suppressed())
	}
}

func TestRecordWireShape(t *testing.T) {
	t.Parallel()
	r := Record{
		SourceID:         "com.whatsapp",
		SenderName:       "Alice",
		TruncatedMessage: "Hi!",
		FullMessage:      NotAvailable,
		MessageType:      TypeWhatsApp,
		Timestamp:        42,
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	fields := r.Fields()
	if len(m) != 6 || len(fields) != 6 {
		t.Fatalf("expected 6 wire fields, got json=%d map=%d", len(m), len(fields))
	}
	for _, k := range []string{"packageName", "senderName", "truncatedMessage", "fullMessage", "messageType", "timestamp"} {
		if _, ok := m[k]; !ok {
			t.Fatalf("json missing %s", k)
		}
		if _, ok := fields[k]; !ok {
			t.Fatalf("fields missing %s", k)
		}
	}
	if m["messageType"] != "WhatsApp" || fields["timestamp"] != int64(42) {
		t.Fatalf("unexpected values: %v / %v", m["messageType"], fields["timestamp"])
	}
}

func TestRawEventAcceptsSourceIDAlias(t *testing.T) {
	t.Parallel()
	var ev RawEvent
	if err := json.Unmarshal([]byte(`{"sourceId":"com.whatsapp","title":"Alice","bigText":null}`), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.SourceID != "com.whatsapp" || ev.Title != "Alice" || ev.BigText != "" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestRawEventIgnoresWrongTypedFields(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want RawEvent
	}{
		{
			name: "numeric title",
			in:   `{"packageName":"com.whatsapp","title":123,"text":"Hi!"}`,
			want: RawEvent{SourceID: "com.whatsapp", Text: "Hi!"},
		},
		{
			name: "object and bool",
			in:   `{"packageName":"com.android.messaging","title":"555","subText":{"a":1},"bigText":true}`,
			want: RawEvent{SourceID: "com.android.messaging", Title: "555"},
		},
		{
			name: "numeric source falls back to alias",
			in:   `{"packageName":7,"sourceId":"org.telegram.messenger","text":["x"]}`,
			want: RawEvent{SourceID: "org.telegram.messenger"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var ev RawEvent
			if err := json.Unmarshal([]byte(tt.in), &ev); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if ev != tt.want {
				t.Fatalf("got %+v, want %+v", ev, tt.want)
			}
		})
	}

	var ev RawEvent
	for _, bad := range []string{`[1,2]`, `"x"`, `42`} {
		if err := json.Unmarshal([]byte(bad), &ev); err == nil {
			t.Fatalf("expected error for %s", bad)
		}
	}
}
