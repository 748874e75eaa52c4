// Package trace provides logging setup and lightweight span tracking.
// Every account attempt runs under its own trace; flow stages open child
// spans so that a single account's log lines can be correlated across the
// parent driver and its child processes.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// TraceIDEnv propagates the trace ID to child processes.
const TraceIDEnv = "TANKI_TRACE_ID"

type ctxKey struct{}

var traceCtxKey = ctxKey{}

// Context holds trace identifiers for a single span.
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// New creates a trace context with fresh IDs.
func New() Context {
	return Context{
		TraceID: generateTraceID(),
		SpanID:  generateSpanID(),
	}
}

// NewChild creates a child context from parent.
func NewChild(parent Context) Context {
	return Context{
		TraceID:      parent.TraceID,
		SpanID:       generateSpanID(),
		ParentSpanID: parent.SpanID,
	}
}

// FromContext extracts trace context from context.Context.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(traceCtxKey).(Context)
	return tc, ok
}

// WithContext injects trace context into context.Context.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, traceCtxKey, tc)
}

// EnsureContext returns existing trace context or creates one, inheriting
// the trace ID from the environment when a parent process set it.
func EnsureContext(ctx context.Context) (context.Context, Context) {
	if tc, ok := FromContext(ctx); ok {
		return ctx, tc
	}
	tc := New()
	if id := os.Getenv(TraceIDEnv); id != "" {
		tc.TraceID = id
	}
	return WithContext(ctx, tc), tc
}

// ChildEnv returns the process environment extended with the trace ID of
// ctx, for exec.Cmd.Env on spawned workers. Without a trace ID it returns
// the environment unchanged.
func ChildEnv(ctx context.Context) []string {
	env := os.Environ()
	tc, ok := FromContext(ctx)
	if !ok || tc.TraceID == "" {
		return env
	}
	return append(env, TraceIDEnv+"="+tc.TraceID)
}

func generateTraceID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func generateSpanID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Span represents a timed operation within a trace.
type Span struct {
	Name      string
	Ctx       Context
	StartTime time.Time
	EndTime   time.Time
	Attrs     map[string]any
}

// StartSpan begins a new span under the context's trace.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent, ok := FromContext(ctx)
	tc := NewChild(parent)
	if !ok || parent.TraceID == "" {
		tc = New()
	}

	s := &Span{
		Name:      name,
		Ctx:       tc,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
	return WithContext(ctx, tc), s
}

// End marks the span as complete and logs its duration at debug level.
func (s *Span) End() {
	s.EndTime = time.Now()
	slog.Debug("span finished", "span", s.Name, "trace_id", s.Ctx.TraceID, "duration", s.Duration())
}

// SetAttr sets a span attribute.
func (s *Span) SetAttr(key string, val any) {
	s.Attrs[key] = val
}

// Duration returns span duration, zero while the span is open.
func (s *Span) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Logger returns a slog.Logger carrying the context's trace IDs.
func Logger(ctx context.Context) *slog.Logger {
	tc, ok := FromContext(ctx)
	if !ok {
		return slog.Default()
	}
	args := make([]any, 0, 6)
	args = append(args, "trace_id", tc.TraceID, "span_id", tc.SpanID)
	if tc.ParentSpanID != "" {
		args = append(args, "parent_span_id", tc.ParentSpanID)
	}
	return slog.Default().With(args...)
}

// Middleware attaches a trace context to every request so handler
// logs can be correlated.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := EnsureContext(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Setup installs the default slog logger: text handler on stderr, and a
// duplicate stream into logFile when non-empty. Returns a close function.
func Setup(level slog.Level, logFile string) (func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		w = io.MultiWriter(os.Stderr, f)
		closeFn = func() { _ = f.Close() }
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return closeFn, nil
}
