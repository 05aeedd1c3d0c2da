package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/mist-engine/internal/storage"
)

// AppendTelemetryEvent records one engine lifecycle event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, event storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(event.EventName) == "" {
		return fmt.Errorf("event name is required")
	}
	if strings.TrimSpace(event.Severity) == "" {
		return fmt.Errorf("severity is required")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if len(event.AttributesJSON) == 0 && len(event.Attributes) > 0 {
		payload, err := json.Marshal(event.Attributes)
		if err != nil {
			return fmt.Errorf("marshal telemetry attributes: %w", err)
		}
		event.AttributesJSON = payload
	}
	attributes := "{}"
	if len(event.AttributesJSON) > 0 {
		attributes = string(event.AttributesJSON)
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO telemetry_events (timestamp, event_name, severity, guild_id, roll_id, actor_id, trace_id, span_id, attributes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		toMillis(event.Timestamp),
		event.EventName,
		event.Severity,
		event.GuildID,
		event.RollID,
		event.ActorID,
		event.TraceID,
		event.SpanID,
		attributes,
	)
	if err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}
