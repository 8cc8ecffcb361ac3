package net_test

import (
	"context"
	"testing"

	pnet "captchahub/internal/platform/net"
)

func TestRequestContext(t *testing.T) {
	t.Parallel()
	base := context.Background()
	cases := []struct {
		name, reqID, role, client string
	}{
		{"all", "req-123", "operator", "alice"},
		{"request only", "r-only", "", ""},
		{"role only", "", "worker", ""},
		{"client only", "", "", "dl-7"},
		{"none", "", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctx := pnet.WithUser(pnet.WithRequest(base, tc.reqID, tc.role), tc.client)
			got := [3]string{pnet.RequestID(ctx), pnet.Role(ctx), pnet.UserID(ctx)}
			if want := [3]string{tc.reqID, tc.role, tc.client}; got != want {
				t.Fatalf("got %q, want %q", got, want)
			}
			if tc.reqID+tc.role+tc.client == "" && ctx != base {
				t.Fatal("empty values must leave ctx untouched")
			}
		})
	}
}
