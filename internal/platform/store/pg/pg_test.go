package pg

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	kit "captchahub/internal/platform/testkit"
)

func TestOpen(t *testing.T) {
	kit.Serial(t)
	var seen *pgxpool.Config
	kit.Swap(t, &newPool, func(_ context.Context, c *pgxpool.Config) (*pgxpool.Pool, error) {
		seen = c
		return &pgxpool.Pool{}, nil
	})

	cases := []struct {
		name, url, app, wantApp string
		maxConns                int32
	}{
		{"app name applied", "postgres://u:p@db:5432/captcha", "captchad", "captchad", 7},
		{"url wins", "postgres://u:p@db:5432/captcha?application_name=psql", "captchad", "psql", 0},
		{"unset", "postgres://u:p@db:5432/captcha", "", "", 0},
	}
	for _, tc := range cases {
		p, err := Open(context.Background(), Config{URL: tc.url, MaxConns: tc.maxConns, SlowMs: 250, AppName: tc.app}, nil)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got := seen.ConnConfig.RuntimeParams["application_name"]; got != tc.wantApp {
			t.Fatalf("%s: application_name = %q", tc.name, got)
		}
		if tc.maxConns > 0 && seen.MaxConns != tc.maxConns {
			t.Fatalf("%s: max conns = %d", tc.name, seen.MaxConns)
		}
		if p.SlowMs != 250 || p.Pool == nil {
			t.Fatalf("%s: pg = %+v", tc.name, p)
		}
	}
}

func TestOpen_Errors(t *testing.T) {
	kit.Serial(t)
	if _, err := Open(context.Background(), Config{URL: "://bad"}, nil); err == nil {
		t.Fatal("bad url should fail")
	}
	boom := errors.New("too many clients")
	kit.Swap(t, &newPool, func(context.Context, *pgxpool.Config) (*pgxpool.Pool, error) { return nil, boom })
	if _, err := Open(context.Background(), Config{URL: "postgres://db/captcha"}, nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	var p *PG
	p.Close()
	(&PG{}).Close()
}
