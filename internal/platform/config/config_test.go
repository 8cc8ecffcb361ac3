package config

import (
	"slices"
	"testing"
	"time"

	kit "captchahub/internal/platform/testkit"
)

func TestMustString(t *testing.T) {
	c := New().Prefix("SERVICE_").Prefix("PGSQL_")
	t.Setenv("SERVICE_PGSQL_DBURL", "  postgres://localhost/captchahub ")
	t.Setenv("SERVICE_PGSQL_BLANK", "   ")

	if got := c.MustString("DBURL"); got != "postgres://localhost/captchahub" {
		t.Fatalf("MustString = %q", got)
	}
	kit.MustPanic(t, func() { _ = c.MustString("MISSING") })
	kit.MustPanic(t, func() { _ = c.MustString("BLANK") })
}

func TestMayTyped(t *testing.T) {
	c := New().Prefix("LEDGER_")
	for k, v := range map[string]string{
		"CH_TABLE":           " events ",
		"BUFFER":             " 64 ",
		"BATCH_SIZE":         "lots",
		"ENABLED":            "false",
		"AUTO_MIGRATE":       "nope",
		"FLUSH_INTERVAL":     "150ms",
		"RETENTION_INTERVAL": "soon",
		"RATIO":              "0.25",
	} {
		t.Setenv("LEDGER_"+k, v)
	}

	cases := []struct {
		name      string
		got, want any
	}{
		{"string", c.MayString("CH_TABLE", "captcha_events"), "events"},
		{"string default", c.MayString("MISSING", "def"), "def"},
		{"int", c.MayInt("BUFFER", 1), 64},
		{"int invalid", c.MayInt("BATCH_SIZE", 256), 256},
		{"bool", c.MayBool("ENABLED", true), false},
		{"bool invalid", c.MayBool("AUTO_MIGRATE", true), true},
		{"duration", c.MayDuration("FLUSH_INTERVAL", time.Second), 150 * time.Millisecond},
		{"duration invalid", c.MayDuration("RETENTION_INTERVAL", time.Hour), time.Hour},
		{"float", c.MayFloat64("RATIO", 1), 0.25},
		{"float default", c.MayFloat64("MISSING", 1.5), 1.5},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestMayCSV(t *testing.T) {
	c := New().Prefix("CAPTCHA_API_")
	def := []string{"fallback"}
	cases := []struct {
		env  string
		want []string
	}{
		{"", def},
		{" alice:t1, t2 , ,bob:t3:admin ,, ", []string{"alice:t1", "t2", "bob:t3:admin"}},
		{" , ,  ,", def},
	}
	for _, tc := range cases {
		t.Setenv("CAPTCHA_API_TOKENS", tc.env)
		if got := c.MayCSV("TOKENS", def); !slices.Equal(got, tc.want) {
			t.Errorf("MayCSV(%q) = %q, want %q", tc.env, got, tc.want)
		}
	}
}

func TestMayEnum(t *testing.T) {
	c := New().Prefix("CAPTCHA_")
	backends := []string{"selenium-firefox", "selenium-chrome", "cdp"}
	pick := func() string { return c.MayEnum("BROWSER_BACKEND", "selenium-firefox", backends...) }

	if got := pick(); got != "selenium-firefox" {
		t.Fatalf("default = %q", got)
	}
	if got := c.MayEnum("MISSING", "", backends...); got != "" {
		t.Fatalf("empty default = %q", got)
	}

	t.Setenv("CAPTCHA_BROWSER_BACKEND", "CDP")
	if got := pick(); got != "CDP" {
		t.Fatalf("case should be kept, got %q", got)
	}

	t.Setenv("CAPTCHA_BROWSER_BACKEND", "phantomjs")
	kit.MustPanic(t, func() { _ = pick() })
}
