package persist

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TestPutGetRoundTrip verifies a stored document reads back intact.
func TestPutGetRoundTrip(t *testing.T) {
	st := openTestStore(t)

	if err := st.Put("k", doc{Name: "squat", Count: 5}); err != nil {
		t.Fatal(err)
	}

	var got doc
	ok, err := st.Get("k", &got)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("Get = missing, want present")
	}
	if got.Name != "squat" || got.Count != 5 {
		t.Errorf("got %+v, want {squat 5}", got)
	}
}

// TestGetMissingKey verifies an absent key returns (false, nil), not an
// error, so callers fall back to their defaults.
func TestGetMissingKey(t *testing.T) {
	st := openTestStore(t)

	var got doc
	ok, err := st.Get("nope", &got)
	if err != nil {
		t.Fatalf("Get on missing key returned error: %v", err)
	}
	if ok {
		t.Error("Get = present for missing key, want missing")
	}
}

// TestPutReplaces verifies successive writes keep only the latest value.
func TestPutReplaces(t *testing.T) {
	st := openTestStore(t)

	if err := st.Put("k", doc{Count: 1}); err != nil {
		t.Fatal(err)
	}
	if err := st.Put("k", doc{Count: 2}); err != nil {
		t.Fatal(err)
	}

	var got doc
	if ok, _ := st.Get("k", &got); !ok || got.Count != 2 {
		t.Errorf("got %+v (present=%t), want count 2", got, ok)
	}
}

// TestCorruptDocumentTreatedAsMissing verifies a payload that no longer
// parses reads as missing rather than failing.
func TestCorruptDocumentTreatedAsMissing(t *testing.T) {
	st := openTestStore(t)

	_, err := st.db.Exec(
		`INSERT OR REPLACE INTO documents (key, version, updated_at, payload) VALUES (?, ?, ?, ?)`,
		"k", schemaVersion, time.Now().UTC(), "{not json",
	)
	if err != nil {
		t.Fatal(err)
	}

	var got doc
	ok, err := st.Get("k", &got)
	if err != nil {
		t.Fatalf("Get on corrupt document returned error: %v", err)
	}
	if ok {
		t.Error("Get = present for corrupt document, want missing")
	}
}

// TestVersionMismatchTreatedAsMissing verifies a document written with
// a different envelope version reads as missing.
func TestVersionMismatchTreatedAsMissing(t *testing.T) {
	st := openTestStore(t)

	_, err := st.db.Exec(
		`INSERT OR REPLACE INTO documents (key, version, updated_at, payload) VALUES (?, ?, ?, ?)`,
		"k", 99, time.Now().UTC(), `{"version":99,"payload":{"name":"old"}}`,
	)
	if err != nil {
		t.Fatal(err)
	}

	var got doc
	ok, err := st.Get("k", &got)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Get = present for version-mismatched document, want missing")
	}
}

// TestDelete verifies deleted keys read as missing.
func TestDelete(t *testing.T) {
	st := openTestStore(t)

	if err := st.Put("k", doc{Count: 1}); err != nil {
		t.Fatal(err)
	}
	if err := st.Delete("k"); err != nil {
		t.Fatal(err)
	}

	var got doc
	if ok, _ := st.Get("k", &got); ok {
		t.Error("Get = present after Delete, want missing")
	}
}

// TestReopenKeepsData verifies documents survive a store restart.
func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()

	st, err := Open(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Put("k", doc{Name: "deadlift"}); err != nil {
		t.Fatal(err)
	}
	st.Close()

	st2, err := Open(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer st2.Close()

	var got doc
	if ok, _ := st2.Get("k", &got); !ok || got.Name != "deadlift" {
		t.Errorf("after reopen got %+v (present=%t), want deadlift", got, ok)
	}
}
