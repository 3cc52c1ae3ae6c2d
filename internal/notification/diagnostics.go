package notification

import (
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	logx "notifcollector/pkg/logx"
)

// Diagnostics is a rate-limited warning sink shared by the pipeline and
// correlator. A stream of bad payloads must not flood the log.
type Diagnostics struct {
	log logx.Logger

	mu      sync.Mutex
	limiter *rate.Limiter

	suppressed atomic.Uint64
}

// NewDiagnostics allows perSec warnings per second (burst perSec).
// perSec <= 0 disables limiting.
func NewDiagnostics(log logx.Logger, perSec int) *Diagnostics {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Diagnostics{log: log}
	if perSec > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(perSec), perSec)
	}
	return d
}

func (d *Diagnostics) Warn(msg string, fields ...logx.Field) {
	if d == nil {
		return
	}
	d.mu.Lock()
	lim := d.limiter
	d.mu.Unlock()
	if lim != nil && !lim.Allow() {
		d.suppressed.Add(1)
		return
	}
	if n := d.suppressed.Swap(0); n > 0 {
		fields = append(fields, logx.Uint64("suppressed", n))
	}
	d.log.Warn(msg, fields...)
}

// SetRate changes the allowed warnings per second; perSec <= 0 disables limiting.
func (d *Diagnostics) SetRate(perSec int) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if perSec <= 0 {
		d.limiter = nil
		return
	}
	if d.limiter == nil {
		d.limiter = rate.NewLimiter(rate.Limit(perSec), perSec)
		return
	}
	d.limiter.SetLimit(rate.Limit(perSec))
	d.limiter.SetBurst(perSec)
}

// Suppressed returns the number of warnings currently held back by the limiter.
func (d *Diagnostics) Suppressed() uint64 {
	if d == nil {
		return 0
	}
	return d.suppressed.Load()
}
