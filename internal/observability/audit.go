package observability

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuditEvent is one index mutation or tool call written to the audit log
type AuditEvent struct {
	Type      string
	Timestamp time.Time
	Action    string // e.g. "rebuild", "upsert", "tool:memory_search"
	Status    string // "success" or "failure"
	Metadata  map[string]interface{}
	TraceID   string // set from the active span
}

// AuditLogger writes audit events as JSON lines
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

var (
	auditMu   sync.Mutex
	auditInst = &AuditLogger{logger: zerolog.Nop()}
)

// GetAuditLogger returns the global audit logger. It discards events until
// InitAuditLogger is called.
func GetAuditLogger() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()
	return auditInst
}

// InitAuditLogger directs audit events to the file at path.
func InitAuditLogger(path string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	auditInst = &AuditLogger{
		logger: zerolog.New(file),
		file:   file,
	}
	return nil
}

// Record emits an audit event to the log and as a span event when tracing
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		event.TraceID = span.SpanContext().TraceID().String()

		span.AddEvent(event.Action, trace.WithAttributes(
			attribute.String("audit.type", event.Type),
			attribute.String("audit.status", event.Status),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Time(zerolog.TimestampFieldName, event.Timestamp).
		Str("type", event.Type).
		Str("action", event.Action).
		Str("status", event.Status)

	if event.TraceID != "" {
		entry.Str("trace_id", event.TraceID)
	}
	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Close closes the audit logger's file handle
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

func RecordIndexAudit(ctx context.Context, action string, success bool, metadata map[string]interface{}) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     "index",
		Action:   action,
		Status:   auditStatus(success),
		Metadata: metadata,
	})
}

func RecordToolAudit(ctx context.Context, toolName string, success bool, metadata map[string]interface{}) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     "tool",
		Action:   "tool:" + toolName,
		Status:   auditStatus(success),
		Metadata: metadata,
	})
}

func auditStatus(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
