package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, enabling zero-touch logging where pipeline
// context (integration_id, inbound_event_id, etc.) is automatically included in all
// log statements.
type LogFields struct {
	IntegrationID  *int64  // Integration that owns the inbound payload
	ProjectID      *int64  // Project the event is attributed to
	InboundEventID *int64  // Durable inbound event record ID
	JobID          *string // Queue job ID
	JobType        *string // Queue job type (e.g., "outbound-action")
	SourceType     *string // Event source type (e.g., "analytics", "ticketing")
	Component      string  // Component name (OTel semantic convention style, e.g., "pipeline.queue.poller")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'next'.
func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.IntegrationID != nil {
		result.IntegrationID = next.IntegrationID
	}
	if next.ProjectID != nil {
		result.ProjectID = next.ProjectID
	}
	if next.InboundEventID != nil {
		result.InboundEventID = next.InboundEventID
	}
	if next.JobID != nil {
		result.JobID = next.JobID
	}
	if next.JobType != nil {
		result.JobType = next.JobType
	}
	if next.SourceType != nil {
		result.SourceType = next.SourceType
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{IntegrationID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like raw payloads or error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
