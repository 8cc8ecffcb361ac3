package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	kit "captchahub/internal/platform/testkit"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		"INFO":     zerolog.InfoLevel,
		" warn ":   zerolog.WarnLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"":         zerolog.DebugLevel,
		"nonsense": zerolog.DebugLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// the root logger is built once per process, so everything touching it lives here
func TestRootLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{
		Level:        "info",
		Format:       "json",
		Service:      "captchad",
		Writer:       &buf,
		StaticFields: map[string]string{"build": "test"},
	})
	Init(Options{Level: "error"}) // ignored

	Get().Debug().Msg("hidden")
	Named("registry").Info().Str("task_id", "7").Msg("registered")
	C(WithRequest(context.Background(), "req-123", "dl-1")).Info().Msg("polled")
	C(context.Background()).Info().Msg("bare")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("want 3 lines, got %d:\n%s", len(lines), buf.String())
	}
	decode := func(s string) map[string]any {
		m := map[string]any{}
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			t.Fatalf("decode %q: %v", s, err)
		}
		return m
	}

	named := decode(lines[0])
	if named["component"] != "registry" || named["task_id"] != "7" || named["service"] != "captchad" || named["build"] != "test" {
		t.Fatalf("named = %v", named)
	}
	req := decode(lines[1])
	if req["request_id"] != "req-123" || req["client_id"] != "dl-1" {
		t.Fatalf("request = %v", req)
	}
	bare := decode(lines[2])
	if _, ok := bare["request_id"]; ok {
		t.Fatalf("bare = %v", bare)
	}
	kit.MustContain(t, lines[0], `"go_version"`)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("LOG_SERVICE", "captchactl")
	t.Setenv("LOG_CALLER", "true")
	t.Setenv("LOG_SAMPLE_EVERY", "5")

	opt := FromEnv()
	if opt.Level != "warn" || opt.Format != "json" || opt.Service != "captchactl" || !opt.WithCaller || opt.SampleEvery != 5 {
		t.Fatalf("options = %+v", opt)
	}
}

func TestWithRequest_SkipsEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if WithRequest(ctx, "", "") != ctx {
		t.Fatal("empty values should not wrap ctx")
	}
	if v, _ := WithRequest(ctx, "", "dl-2").Value(ctxKey("client_id")).(string); v != "dl-2" {
		t.Fatalf("client id = %q", v)
	}
}
