package logging

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey int

const (
	runIDKey ctxKey = iota
	conversationIDKey
)

// ContextWithRunID tags ctx with the id of one ingestion run.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// ContextWithConversationID tags ctx with the conversation being processed.
func ContextWithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, conversationIDKey, conversationID)
}

// RunID returns the run id stored in ctx, or "".
func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(runIDKey).(string)
	return v
}

// ContextFields extracts the logging fields carried by ctx.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		fields = append(fields, zap.String("run_id", v))
	}
	if v, ok := ctx.Value(conversationIDKey).(string); ok && v != "" {
		fields = append(fields, zap.String("conversation_id", v))
	}
	return fields
}
