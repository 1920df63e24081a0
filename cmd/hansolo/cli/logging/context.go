package logging

import (
	"context"
)

// Context keys for logging values.
// Using private types to avoid key collisions.
type contextKey int

const (
	branchKey contextKey = iota
	sessionIDKey
	toolKey
	componentKey
)

// WithBranch adds a branch name to the context.
func WithBranch(ctx context.Context, branch string) context.Context {
	return context.WithValue(ctx, branchKey, branch)
}

// WithSession adds a session ID to the context.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithTool adds a workflow tool name to the context (e.g. "launch", "ship").
func WithTool(ctx context.Context, tool string) context.Context {
	return context.WithValue(ctx, toolKey, tool)
}

// WithComponent adds a component name to the context.
// Component names identify the subsystem generating logs (e.g. "gitx", "forge", "session").
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// BranchFromContext extracts the branch name from the context.
// Returns empty string if not set.
func BranchFromContext(ctx context.Context) string {
	if v := ctx.Value(branchKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SessionIDFromContext extracts the session ID from the context.
// Returns empty string if not set.
func SessionIDFromContext(ctx context.Context) string {
	if v := ctx.Value(sessionIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ToolFromContext extracts the tool name from the context.
// Returns empty string if not set.
func ToolFromContext(ctx context.Context) string {
	if v := ctx.Value(toolKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
