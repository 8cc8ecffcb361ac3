package presence

import (
	"sync"
	"testing"
	"time"
)

func TestTracker_Window(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := New(10 * time.Second).WithClock(func() time.Time { return now })

	if tr.ClientConnected() {
		t.Fatal("fresh tracker has no clients")
	}
	tr.Touch("op-1")
	if !tr.ClientConnected() {
		t.Fatal("touched client should count")
	}

	now = now.Add(10 * time.Second)
	if !tr.ClientConnected() {
		t.Fatal("window boundary is inclusive")
	}
	now = now.Add(time.Nanosecond)
	if tr.ClientConnected() {
		t.Fatal("expired client should not count")
	}
	if got := len(tr.Connected()); got != 0 {
		t.Fatalf("expired entries kept: %d", got)
	}
}

func TestTracker_ConnectedSorted(t *testing.T) {
	t.Parallel()

	tr := New(0)
	tr.Touch("b")
	tr.Touch("")
	tr.Touch("a")

	got := tr.Connected()
	want := []string{"a", "anonymous", "b"}
	if len(got) != len(want) {
		t.Fatalf("clients = %+v", got)
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("clients[%d] = %q, want %q", i, got[i].ID, want[i])
		}
	}
}

func TestTracker_Concurrent(t *testing.T) {
	t.Parallel()

	tr := New(time.Minute)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				tr.Touch(string(rune('a' + i)))
				_ = tr.ClientConnected()
			}
		}()
	}
	wg.Wait()
	if got := len(tr.Connected()); got != 8 {
		t.Fatalf("clients = %d", got)
	}
}
