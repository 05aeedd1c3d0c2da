// Package telemetry records engine lifecycle events next to the roll data
// they describe.
//
// Events are operational breadcrumbs for dashboards and debugging. Nothing
// in the engine reads them back.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/mist-engine/internal/storage"
)

// Severity levels stored with each event.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Event names recorded by the engine.
const (
	EventSessionStarted   = "session.started"
	EventSessionCancelled = "session.cancelled"
	EventRollSubmitted    = "roll.submitted"
	EventRollConfirmed    = "roll.confirmed"
	EventRollAmended      = "roll.amended"
	EventRollExecuted     = "roll.executed"
	EventTagsPurged       = "roll.tags_purged"
)

// Emitter appends telemetry events to a store. A nil Emitter or a nil store
// silently drops events, so callers never guard their Emit calls.
type Emitter struct {
	store storage.TelemetryStore
	clock func() time.Time
}

// NewEmitter wraps store in an Emitter stamping events with wall-clock time.
func NewEmitter(store storage.TelemetryStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit appends one event, filling gaps first: a zero timestamp takes the
// clock, an empty severity becomes INFO, and missing trace ids are pulled
// from the span on ctx.
func (e *Emitter) Emit(ctx context.Context, evt storage.TelemetryEvent) error {
	if e == nil || e.store == nil {
		return nil
	}

	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.now()
	}
	if evt.Severity == "" {
		evt.Severity = string(SeverityInfo)
	}
	if evt.TraceID == "" {
		evt.TraceID, evt.SpanID = spanIDs(ctx)
	}

	return e.store.AppendTelemetryEvent(ctx, evt)
}

func (e *Emitter) now() time.Time {
	if e.clock == nil {
		return time.Now().UTC()
	}
	return e.clock().UTC()
}

// spanIDs reads trace correlation from the active span, if any.
func spanIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
