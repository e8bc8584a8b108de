package history

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/joeording3/evdq/internal/evd"
)

type fakeMirror struct {
	mu     sync.Mutex
	bodies []any
	result evd.Result
	seen   chan struct{}
}

func (f *fakeMirror) PostHistory(ctx context.Context, body any) evd.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies = append(f.bodies, body)
	if f.seen != nil {
		f.seen <- struct{}{}
	}
	return f.result
}

func openTestStore(t *testing.T, mirror Mirror) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), mirror, nil)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_CreatesMissingParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".local", "share", "evdq", "history.db")

	store, err := Open(path, nil, nil)
	if err != nil {
		t.Fatalf("Open in fresh directory returned error: %v", err)
	}
	defer store.Close()

	if _, err := store.Add(Entry{ID: "a", Status: "completed"}); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
}

func TestStore_AddFillsIDAndTimestamp(t *testing.T) {
	store := openTestStore(t, nil)

	before := time.Now().UnixMilli()
	entry, err := store.Add(Entry{URL: "https://example.com/v.mp4", Status: "completed"})
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if entry.ID == "" {
		t.Fatalf("Add did not generate an id")
	}
	if entry.Timestamp < before {
		t.Fatalf("Timestamp = %d, want >= %d", entry.Timestamp, before)
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != entry.ID || entries[0].URL != entry.URL {
		t.Fatalf("List = %#v, want the stored entry", entries)
	}
}

func TestStore_AddKeepsExplicitIDAndTimestamp(t *testing.T) {
	store := openTestStore(t, nil)

	entry, err := store.Add(Entry{ID: "dl1", Status: "error", Error: "disk full", Timestamp: 1234})
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if entry.ID != "dl1" || entry.Timestamp != 1234 {
		t.Fatalf("Add rewrote explicit fields: %#v", entry)
	}
}

func TestStore_RemoveAndClear(t *testing.T) {
	store := openTestStore(t, nil)

	a, _ := store.Add(Entry{ID: "a", Status: "completed"})
	store.Add(Entry{ID: "b", Status: "canceled"})

	if err := store.Remove(a.ID); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	entries, _ := store.List()
	if len(entries) != 1 || entries[0].ID != "b" {
		t.Fatalf("List after Remove = %#v, want only b", entries)
	}

	if err := store.Remove("missing"); err != nil {
		t.Fatalf("Remove of absent id returned error: %v", err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	entries, _ = store.List()
	if len(entries) != 0 {
		t.Fatalf("List after Clear = %#v, want empty", entries)
	}
}

func TestStore_MirrorsWritesBestEffort(t *testing.T) {
	mirror := &fakeMirror{result: evd.Result{Success: true}, seen: make(chan struct{}, 2)}
	store := openTestStore(t, mirror)

	store.Add(Entry{ID: "a", Status: "completed"})
	store.Clear()

	for range 2 {
		select {
		case <-mirror.seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("mirror call not observed")
		}
	}

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	if len(mirror.bodies) != 2 {
		t.Fatalf("mirror bodies = %#v, want entry then clear", mirror.bodies)
	}
	if entry, ok := mirror.bodies[0].(Entry); !ok || entry.ID != "a" {
		t.Fatalf("first mirror body = %#v, want the entry", mirror.bodies[0])
	}
	if action, ok := mirror.bodies[1].(map[string]any); !ok || action["action"] != "clear" {
		t.Fatalf("second mirror body = %#v, want clear action", mirror.bodies[1])
	}
	if store.Dropped() != 0 {
		t.Fatalf("Dropped = %d, want 0", store.Dropped())
	}
}

func TestStore_MirrorFailureIsCountedNotSurfaced(t *testing.T) {
	mirror := &fakeMirror{result: evd.Result{Message: "Server not available"}, seen: make(chan struct{}, 1)}
	store := openTestStore(t, mirror)

	if _, err := store.Add(Entry{ID: "a", Status: "completed"}); err != nil {
		t.Fatalf("Add surfaced mirror failure: %v", err)
	}
	select {
	case <-mirror.seen:
	case <-time.After(2 * time.Second):
		t.Fatalf("mirror call not observed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for store.Dropped() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.Dropped() != 1 {
		t.Fatalf("Dropped = %d, want 1", store.Dropped())
	}
}
