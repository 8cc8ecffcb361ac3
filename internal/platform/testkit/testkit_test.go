package testkit

import (
	"errors"
	"testing"
)

var backend = "selenium-firefox"

func TestSwap(t *testing.T) {
	t.Run("swapped", func(t *testing.T) {
		Serial(t)
		Swap(t, &backend, "chromedp")
		if backend != "chromedp" {
			t.Fatalf("backend = %q", backend)
		}
	})
	if backend != "selenium-firefox" {
		t.Fatalf("cleanup should restore, got %q", backend)
	}
}

func TestMustPanic(t *testing.T) {
	t.Parallel()
	MustPanic(t, func() { panic("captcha api: unknown role \"admin\"") }, "unknown role", "admin")
	MustPanic(t, func() { panic(errors.New("nil TxRunner")) }, "TxRunner")
}

func TestMustContain(t *testing.T) {
	t.Parallel()
	MustContain(t, "level=info task_id=7 msg=registered", "task_id=7")
}
