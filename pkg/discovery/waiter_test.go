package discovery

import (
	"testing"
	"time"
)

func TestWaiterResolveUnblocksWait(t *testing.T) {
	w := newWaiter("q1")

	done := make(chan struct{})
	go func() {
		w.wait(0)
		close(done)
	}()

	w.resolve("device1")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait did not return after resolve")
	}
}

func TestWaiterResolveIsIdempotent(t *testing.T) {
	w := newWaiter("q1")
	w.resolve("device1")
	w.resolve("device1") // must not panic on double-close
}

func TestWaiterWaitTimesOut(t *testing.T) {
	w := newWaiter("q1")

	start := time.Now()
	w.wait(20 * time.Millisecond)
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("wait returned before the timeout elapsed")
	}
}

func TestWaiterStopDoesNotInvokeOnMatch(t *testing.T) {
	w := newWaiter("q1")
	called := false
	w.resolveOnUpdatedRecords = true
	w.onMatch = func(string) { called = true }

	w.stop()
	if called {
		t.Fatal("stop must not invoke onMatch")
	}
}

func TestWaiterResolveOnUpdatedRecordsFiresRepeatedly(t *testing.T) {
	w := newWaiter("q1")
	w.resolveOnUpdatedRecords = true

	var calls []string
	w.onMatch = func(id string) { calls = append(calls, id) }

	w.resolve("device1")
	w.resolve("device2")

	if len(calls) != 2 {
		t.Fatalf("expected 2 onMatch calls, got %d", len(calls))
	}
}

func TestWaiterTableRegisterGetRemove(t *testing.T) {
	table := newWaiterTable()
	w := newWaiter("q1")
	table.register(w)

	got, ok := table.get("q1")
	if !ok || got != w {
		t.Fatal("expected to get back the registered waiter")
	}

	table.remove("q1")
	if _, ok := table.get("q1"); ok {
		t.Fatal("expected miss after remove")
	}
}

func TestWaiterTableResolveAndRemoveAll(t *testing.T) {
	table := newWaiterTable()
	w1 := newWaiter("q1")
	w2 := newWaiter("q2")
	table.register(w1)
	table.register(w2)

	table.resolveAndRemoveAll()

	select {
	case <-w1.done:
	default:
		t.Fatal("expected w1 to be stopped")
	}
	select {
	case <-w2.done:
	default:
		t.Fatal("expected w2 to be stopped")
	}
	if len(table.all) != 0 {
		t.Fatal("expected table to be emptied")
	}
}
