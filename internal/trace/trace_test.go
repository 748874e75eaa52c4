package trace

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestGenerateIDs(t *testing.T) {
	if id := generateTraceID(); len(id) != 32 {
		t.Errorf("trace ID should be 32 chars, got %d", len(id))
	}
	if id := generateSpanID(); len(id) != 16 {
		t.Errorf("span ID should be 16 chars, got %d", len(id))
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateTraceID()
		if seen[id] {
			t.Error("generated duplicate trace ID")
		}
		seen[id] = true
	}
}

func TestNewChild(t *testing.T) {
	parent := New()
	child := NewChild(parent)

	if child.TraceID != parent.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.SpanID == parent.SpanID {
		t.Error("child should have new span ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child's parent should be parent's span ID")
	}
}

func TestContextRoundTrip(t *testing.T) {
	tc := New()
	ctx := WithContext(context.Background(), tc)
	got, ok := FromContext(ctx)
	if !ok || got != tc {
		t.Errorf("FromContext = %+v, %v; want %+v", got, ok, tc)
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Error("empty context should not carry trace")
	}
}

func TestEnsureContextInheritsEnv(t *testing.T) {
	t.Setenv(TraceIDEnv, "abc123")
	_, tc := EnsureContext(context.Background())
	if tc.TraceID != "abc123" {
		t.Errorf("trace ID = %q, want inherited abc123", tc.TraceID)
	}
}

func TestChildEnvCarriesTraceID(t *testing.T) {
	tc := New()
	ctx := WithContext(context.Background(), tc)
	want := TraceIDEnv + "=" + tc.TraceID

	found := false
	for _, kv := range ChildEnv(ctx) {
		if kv == want {
			found = true
		}
	}
	if !found {
		t.Errorf("child env should carry %s", want)
	}

	for _, kv := range ChildEnv(context.Background()) {
		if strings.HasPrefix(kv, TraceIDEnv+"=") && os.Getenv(TraceIDEnv) == "" {
			t.Errorf("untraced context set %s", kv)
		}
	}
}

func TestStartSpan(t *testing.T) {
	ctx, tc := EnsureContext(context.Background())
	ctx2, span := StartSpan(ctx, "login")
	if span.Ctx.TraceID != tc.TraceID {
		t.Error("span should stay on the attempt's trace")
	}
	if span.Ctx.ParentSpanID != tc.SpanID {
		t.Error("span parent should be the attempt span")
	}
	inner, _ := FromContext(ctx2)
	if inner.SpanID != span.Ctx.SpanID {
		t.Error("returned context should carry the span")
	}

	span.SetAttr("scene", "main_menu")
	if span.Duration() != 0 {
		t.Error("open span has zero duration")
	}
	span.End()
	if span.Duration() <= 0 {
		t.Error("ended span should have positive duration")
	}
}
