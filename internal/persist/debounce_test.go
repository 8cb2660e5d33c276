package persist

import (
	"testing"
	"time"
)

// TestDebounceCoalesces verifies rapid writes within the window produce
// one stored write of the latest value.
func TestDebounceCoalesces(t *testing.T) {
	st := openTestStore(t)
	d := NewDebouncer(st, "k", 100*time.Millisecond, testLogger())

	d.Write(doc{Count: 1})
	d.Write(doc{Count: 2})
	d.Write(doc{Count: 3})

	// Nothing should be stored before the window elapses.
	var got doc
	if ok, _ := st.Get("k", &got); ok {
		t.Fatal("document stored before the debounce window elapsed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if ok, _ := st.Get("k", &got); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("debounced write never landed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got.Count != 3 {
		t.Errorf("stored count = %d, want 3 (latest value wins)", got.Count)
	}
}

// TestDebounceFlush verifies Flush forces the pending value through
// immediately.
func TestDebounceFlush(t *testing.T) {
	st := openTestStore(t)
	d := NewDebouncer(st, "k", time.Hour, testLogger())

	d.Write(doc{Count: 7})
	d.Flush()

	var got doc
	if ok, _ := st.Get("k", &got); !ok || got.Count != 7 {
		t.Errorf("after flush got %+v (present=%t), want count 7", got, ok)
	}
}

// TestDebounceFlushIdle verifies flushing with nothing pending is a
// no-op.
func TestDebounceFlushIdle(t *testing.T) {
	st := openTestStore(t)
	d := NewDebouncer(st, "k", time.Hour, testLogger())

	d.Flush()

	var got doc
	if ok, _ := st.Get("k", &got); ok {
		t.Error("flush with nothing pending stored a document")
	}
}

// TestDebounceCloseFlushes verifies Close writes the pending value.
func TestDebounceCloseFlushes(t *testing.T) {
	st := openTestStore(t)
	d := NewDebouncer(st, "k", time.Hour, testLogger())

	d.Write(doc{Count: 9})
	d.Close()

	var got doc
	if ok, _ := st.Get("k", &got); !ok || got.Count != 9 {
		t.Errorf("after close got %+v (present=%t), want count 9", got, ok)
	}
}

// TestDebounceWriteAfterFlush verifies the state machine returns to
// idle and accepts another cycle.
func TestDebounceWriteAfterFlush(t *testing.T) {
	st := openTestStore(t)
	d := NewDebouncer(st, "k", 10*time.Millisecond, testLogger())

	d.Write(doc{Count: 1})
	d.Flush()
	d.Write(doc{Count: 2})
	d.Flush()

	var got doc
	if ok, _ := st.Get("k", &got); !ok || got.Count != 2 {
		t.Errorf("got %+v (present=%t), want count 2", got, ok)
	}
}
