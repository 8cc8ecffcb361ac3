package strings

import (
	"testing"

	kit "captchahub/internal/platform/testkit"
)

func TestMustPrefix(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"captcha":      "/captcha",
		"/captcha/":    "/captcha",
		"  /ledger  ":  "/ledger",
		"//meta//":     "/meta",
		"api/v1/stats": "/api/v1/stats",
	}
	for in, want := range cases {
		if got := MustPrefix(in); got != want {
			t.Errorf("MustPrefix(%q) = %q, want %q", in, got, want)
		}
	}
	for _, in := range []string{"", "/", "  / "} {
		kit.MustPanic(t, func() { MustPrefix(in) }, "root path")
	}
}

func TestMustString(t *testing.T) {
	t.Parallel()
	if MustString("captcha", "module name") != "captcha" {
		t.Fatal("passthrough")
	}
	kit.MustPanic(t, func() { MustString(" \t", "module name") }, "module name is required")
}
