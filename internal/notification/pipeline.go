package notification

import (
	"context"
	"runtime/debug"
	"sync/atomic"

	"github.com/google/uuid"

	logx "notifcollector/pkg/logx"
)

// Stats is a best-effort view of pipeline activity.
type Stats struct {
	Received         uint64 `json:"received"`
	Emitted          uint64 `json:"emitted"`
	Dropped          uint64 `json:"dropped"`
	CorrelatorHits   uint64 `json:"correlator_hits"`
	CorrelatorMisses uint64 `json:"correlator_misses"`
	CorrelatorErrors uint64 `json:"correlator_errors"`
	DiagSuppressed   uint64 `json:"diag_suppressed"`
}

// Pipeline is the event consumer: RawEvent -> Extractor -> Emitter.
//
// Each event is handled synchronously on the caller's goroutine and is
// isolated from every other event: a failure drops that event's record
// and nothing else. Pipeline keeps no per-event state.
type Pipeline struct {
	x    *Extractor
	out  Emitter
	log  logx.Logger
	diag *Diagnostics

	received atomic.Uint64
	emitted  atomic.Uint64
	dropped  atomic.Uint64
}

// NewPipeline wires an extractor to an emitter. A nil emitter drops every record.
func NewPipeline(x *Extractor, out Emitter, log logx.Logger, diag *Diagnostics) *Pipeline {
	if x == nil {
		x = NewExtractor(nil)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if diag == nil {
		diag = NewDiagnostics(log, 0)
	}
	return &Pipeline{x: x, out: out, log: log, diag: diag}
}

// Handle processes one event. It never panics and never returns an error.
func (p *Pipeline) Handle(ctx context.Context, ev RawEvent) {
	p.received.Add(1)
	id := uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			p.dropped.Add(1)
			p.diag.Warn("notification dropped",
				logx.String("event_id", id),
				logx.String("source", ev.SourceID),
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	rec := p.x.Extract(ctx, ev)
	if p.out == nil {
		p.dropped.Add(1)
		return
	}
	p.out.Emit(rec)
	p.emitted.Add(1)

	if p.log.Enabled(logx.LevelTrace) {
		p.log.Trace("notification handled",
			logx.String("event_id", id),
			logx.String("source", rec.SourceID),
			logx.String("type", rec.MessageType.String()),
		)
	}
}

func (p *Pipeline) Stats() Stats {
	st := Stats{
		Received:         p.received.Load(),
		Emitted:          p.emitted.Load(),
		Dropped:          p.dropped.Load(),
		CorrelatorHits:   p.x.CorrelatorHits(),
		CorrelatorMisses: p.x.CorrelatorMisses(),
		DiagSuppressed:   p.diag.Suppressed(),
	}
	if ec, ok := p.x.correlator.(interface{ Errors() uint64 }); ok {
		st.CorrelatorErrors = ec.Errors()
	}
	return st
}
