package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentFX, Handler: NewHandler(&buf, "info", "json")})
	logger.Info("rate refreshed", FieldRate, 1350.0)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log line %q: %v", buf.String(), err)
	}
	if entry[FieldComponent] != ComponentFX {
		t.Errorf("component = %v, want %v", entry[FieldComponent], ComponentFX)
	}
	if entry[FieldRate] != 1350.0 {
		t.Errorf("rate = %v, want 1350", entry[FieldRate])
	}
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	root := New(Config{Component: ComponentApp, Handler: NewHandler(&buf, "info", "json")})
	root.With(FieldUserID, "u1").WithComponent(ComponentJobs).Info("job done")

	line := buf.String()
	if n := strings.Count(line, `"component"`); n != 1 {
		t.Fatalf("component key appears %d times in %s", n, line)
	}
	if !strings.Contains(line, `"component":"jobs"`) || !strings.Contains(line, `"user_id":"u1"`) {
		t.Errorf("log line = %s", line)
	}
}

func TestMiddlewareInjectsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentHTTP, Handler: NewHandler(&buf, "debug", "text")})

	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req_test" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside handler")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=req_test") {
		t.Errorf("log output %q missing request id", buf.String())
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Error("FromContext without logger should fall back to unknown component")
	}
}

func TestLogJobResultLevel(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Component: ComponentJobs, Handler: NewHandler(&buf, "info", "text")}))

	sl.LogJobResult(context.Background(), "billing_reminder", 3, 2, 1)
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "failed=1") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
