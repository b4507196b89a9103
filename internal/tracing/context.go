package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RunIDKey identifies one rebuild run
	RunIDKey ContextKey = "run_id"
	// CommandKey is the CLI command being executed
	CommandKey ContextKey = "command"
	// ToolCallIDKey identifies one MCP tool call
	ToolCallIDKey ContextKey = "tool_call_id"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID    string
	RunID      string
	Command    string
	ToolCallID string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRunID generates a new run ID
func NewRunID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithCommand adds the CLI command name to the context
func WithCommand(ctx context.Context, command string) context.Context {
	return context.WithValue(ctx, CommandKey, command)
}

// WithToolCallID adds an MCP tool call ID to the context
func WithToolCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ToolCallIDKey, id)
}

func stringValue(ctx context.Context, key ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

// GetRunID retrieves the run ID from the context
func GetRunID(ctx context.Context) string {
	return stringValue(ctx, RunIDKey)
}

// GetCommand retrieves the CLI command name from the context
func GetCommand(ctx context.Context) string {
	return stringValue(ctx, CommandKey)
}

// GetToolCallID retrieves the MCP tool call ID from the context
func GetToolCallID(ctx context.Context) string {
	return stringValue(ctx, ToolCallIDKey)
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:    GetTraceID(ctx),
		RunID:      GetRunID(ctx),
		Command:    GetCommand(ctx),
		ToolCallID: GetToolCallID(ctx),
	}
}

// NewCommandContext starts a trace for one CLI command invocation
func NewCommandContext(ctx context.Context, command string) context.Context {
	ctx = WithTraceID(ctx, NewTraceID())
	return WithCommand(ctx, command)
}
