package notification

import (
	"context"
	"fmt"
	"sync/atomic"

	logx "notifcollector/pkg/logx"
)

// Correlator recovers the newest stored message body for a sender.
//
// Lookups are best-effort: any failure is reported as ok=false.
type Correlator interface {
	LookupLatestBody(ctx context.Context, sender string) (body string, ok bool)
}

// MessageStore is the read side of the device message store.
//
// LatestBody returns the body of the newest message whose address equals
// address exactly. ok is false when there is no match.
type MessageStore interface {
	LatestBody(ctx context.Context, address string) (body string, ok bool, err error)
}

// NopCorrelator never finds anything.
type NopCorrelator struct{}

func (NopCorrelator) LookupLatestBody(context.Context, string) (string, bool) { return "", false }

// StoreCorrelator adapts a MessageStore to the Correlator contract.
// Store errors and panics are converted to "no match" and logged.
type StoreCorrelator struct {
	store MessageStore
	diag  *Diagnostics

	errs atomic.Uint64
}

func NewStoreCorrelator(store MessageStore, diag *Diagnostics) *StoreCorrelator {
	if diag == nil {
		diag = NewDiagnostics(logx.Nop(), 0)
	}
	return &StoreCorrelator{store: store, diag: diag}
}

func (c *StoreCorrelator) LookupLatestBody(ctx context.Context, sender string) (body string, ok bool) {
	if c == nil || c.store == nil || sender == "" {
		return "", false
	}
	defer func() {
		if r := recover(); r != nil {
			c.errs.Add(1)
			c.diag.Warn("message store lookup panicked", logx.Any("panic", r), logx.String("sender", sender))
			body, ok = "", false
		}
	}()

	body, ok, err := c.store.LatestBody(ctx, sender)
	if err != nil {
		c.errs.Add(1)
		c.diag.Warn("message store lookup failed", logx.Err(fmt.Errorf("latest body: %w", err)), logx.String("sender", sender))
		return "", false
	}
	if !ok {
		return "", false
	}
	return body, true
}

// Errors returns the number of failed lookups since creation.
func (c *StoreCorrelator) Errors() uint64 {
	if c == nil {
		return 0
	}
	return c.errs.Load()
}
