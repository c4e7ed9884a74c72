package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestWithAttrsOverridesByKey(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "json"))
	ctx = WithAttrs(ctx, slog.String("component", "a"), slog.String("disaster_id", "d1"))
	ctx = WithAttrs(ctx, slog.String("component", "b"))

	Info(ctx, "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v (%q)", err, buf.String())
	}
	if entry["component"] != "b" {
		t.Fatalf("component = %v, want b", entry["component"])
	}
	if entry["disaster_id"] != "d1" {
		t.Fatalf("disaster_id = %v", entry["disaster_id"])
	}
}

func TestSetLevelFiltersDebug(t *testing.T) {
	defer SetLevel("info")

	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "text"))

	SetLevel("info")
	Debug(ctx, "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line emitted at info level: %q", buf.String())
	}

	if got := SetLevel("debug"); got != slog.LevelDebug {
		t.Fatalf("SetLevel() = %v", got)
	}
	Debug(ctx, "visible")
	if buf.Len() == 0 {
		t.Fatalf("expected debug line at debug level")
	}
}

func TestWithRequestAttrs(t *testing.T) {
	ctx := WithRequest(context.Background(), "01J0", "GET", "/api/disasters")
	attrs := Attrs(ctx)
	if len(attrs) != 3 {
		t.Fatalf("attrs = %v", attrs)
	}
	if attrs[0].Key != "request_id" || attrs[0].Value.String() != "01J0" {
		t.Fatalf("request_id attr = %v", attrs[0])
	}
}
