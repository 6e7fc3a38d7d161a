package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type traceIDKey struct{}

var traceKey = traceIDKey{}

const (
	// TraceIDHeader carries the request trace id back to the client.
	TraceIDHeader = "X-Trace-ID"
	// TraceIDLocal is the fiber local holding the trace id.
	TraceIDLocal = "trace_id"
	// SubmissionIDLocal lets handlers name the submission a request touched.
	SubmissionIDLocal = "submission_id"
)

// TraceIDFromContext extracts the trace identifier from context, if present.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value := ctx.Value(traceKey); value != nil {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}

// GetTraceID returns the trace identifier bound to the active request.
func GetTraceID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if value := c.Locals(TraceIDLocal); value != nil {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return TraceIDFromContext(c.UserContext())
}

// ContextWithTraceID attaches the trace identifier to the provided context.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(traceID) == "" {
		return ctx
	}
	return context.WithValue(ctx, traceKey, strings.TrimSpace(traceID))
}

// SetSubmissionID records the submission a handler worked on for request logging.
func SetSubmissionID(c *fiber.Ctx, id uint) {
	if id != 0 {
		c.Locals(SubmissionIDLocal, id)
	}
}
