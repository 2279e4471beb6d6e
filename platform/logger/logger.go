// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// UserIDKey is the context key for user ID
	UserIDKey contextKey = "user_id"
	// ChatIDKey is the context key for the bot chat ID
	ChatIDKey contextKey = "chat_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id, user_id, and chat_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if userID, ok := ctx.Value(UserIDKey).(string); ok && userID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("user_id", userID))}
	}

	if chatID, ok := ctx.Value(ChatIDKey).(int64); ok && chatID != 0 {
		newLogger = &Logger{Logger: newLogger.With(slog.Int64("chat_id", chatID))}
	}

	return newLogger
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// ProviderError logs a failed extraction attempt against an LLM provider.
func (l *Logger) ProviderError(provider string, err error) {
	l.Warn("provider_error",
		slog.String("provider", provider),
		slog.String("error", err.Error()),
	)
}

// ResolveResult logs the outcome of an order resolution.
func (l *Logger) ResolveResult(source string, resolved, unresolved int, latencyMs float64) {
	l.Info("order_resolved",
		slog.String("source", source),
		slog.Int("resolved", resolved),
		slog.Int("unresolved", unresolved),
		slog.Float64("latency_ms", latencyMs),
	)
}

// AuthEvent logs authentication events
func (l *Logger) AuthEvent(event, phone string, success bool, reason string) {
	if success {
		l.Info("auth_event",
			slog.String("event", event),
			slog.String("phone", phone),
			slog.Bool("success", success),
		)
	} else {
		l.Warn("auth_event",
			slog.String("event", event),
			slog.String("phone", phone),
			slog.Bool("success", success),
			slog.String("reason", reason),
		)
	}
}

// SyncResult logs the outcome of an ERP catalog synchronization run.
func (l *Logger) SyncResult(direction string, upserted, skipped int, err error) {
	if err != nil {
		l.Error("erp_sync",
			slog.String("direction", direction),
			slog.String("error", err.Error()),
		)
		return
	}
	l.Info("erp_sync",
		slog.String("direction", direction),
		slog.Int("upserted", upserted),
		slog.Int("skipped", skipped),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
