package unified

import (
	"reflect"
	"testing"
	"time"

	"github.com/joeording3/evdq/internal/evd"
	"github.com/joeording3/evdq/internal/history"
)

var renderTime = time.UnixMilli(1700000000000)

func TestMerge_TerminalStatusWinsOverLive(t *testing.T) {
	live := evd.QueueStatus{
		Active: map[string]evd.QueueItem{
			"x": {DownloadID: "x", Status: "downloading", URL: "https://example.com/v", Progress: 40},
		},
		TotalCount: 1,
	}
	hist := []history.Entry{
		{ID: "x", Status: "completed", URL: "https://example.com/v", Timestamp: 1600000000000},
	}

	out := Merge(live, hist, renderTime)
	if len(out) != 1 {
		t.Fatalf("merged = %#v, want 1 entry", out)
	}
	if out[0].Status != "completed" {
		t.Fatalf("status = %q, want completed to shadow downloading", out[0].Status)
	}
}

func TestMerge_EqualPriorityNewerTimestampWins(t *testing.T) {
	hist := []history.Entry{
		{ID: "x", Status: "completed", Filename: "old.mp4", Timestamp: 100},
		{ID: "x", Status: "finished", Filename: "new.mp4", Timestamp: 200},
	}

	out := Merge(evd.QueueStatus{Active: map[string]evd.QueueItem{}}, hist, renderTime)
	if len(out) != 1 {
		t.Fatalf("merged = %#v, want 1 entry", out)
	}
	if out[0].Label != "new.mp4" || out[0].Timestamp != 200 {
		t.Fatalf("winner = %#v, want the newer record", out[0])
	}
}

func TestMerge_IdentityFallsBackToCanonicalURL(t *testing.T) {
	hist := []history.Entry{
		{Status: "error", URL: "https://www.example.com/v/1/", Timestamp: 100},
		{Status: "completed", URL: "https://example.com/v/1", Timestamp: 50},
	}

	out := Merge(evd.QueueStatus{Active: map[string]evd.QueueItem{}}, hist, renderTime)
	if len(out) != 1 {
		t.Fatalf("merged = %#v, want www/trailing-slash variants collapsed", out)
	}
	if out[0].Status != "completed" {
		t.Fatalf("status = %q, want completed (higher priority)", out[0].Status)
	}
}

func TestMerge_DistinctIDsDoNotCollapse(t *testing.T) {
	hist := []history.Entry{
		{ID: "a", Status: "completed", URL: "https://example.com/v", Timestamp: 100},
		{ID: "b", Status: "error", URL: "https://example.com/other", Timestamp: 200},
	}

	out := Merge(evd.QueueStatus{Active: map[string]evd.QueueItem{}}, hist, renderTime)
	if len(out) != 2 {
		t.Fatalf("merged = %#v, want 2 entries", out)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	live := evd.QueueStatus{
		Active: map[string]evd.QueueItem{
			"a": {DownloadID: "a", Status: "downloading", URL: "https://example.com/a"},
			"b": {DownloadID: "b", Status: "paused", URL: "https://example.com/b"},
		},
		Queued: []evd.QueueItem{
			{DownloadID: "c", Status: "queued", URL: "https://example.com/c"},
		},
		TotalCount: 3,
	}
	hist := []history.Entry{
		{ID: "a", Status: "completed", Timestamp: 1600000000000},
		{Status: "error", URL: "https://example.com/d", Timestamp: 1500000000000},
	}

	first := Merge(live, hist, renderTime)
	second := Merge(live, hist, renderTime)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("merge not idempotent:\n%#v\nvs\n%#v", first, second)
	}
}

func TestMerge_SortsByTimestampWithQueuedPlaceholders(t *testing.T) {
	live := evd.QueueStatus{
		Active: map[string]evd.QueueItem{
			"active": {DownloadID: "active", Status: "downloading"},
		},
		Queued: []evd.QueueItem{
			{DownloadID: "waiting", Status: "queued"},
		},
		TotalCount: 2,
	}
	hist := []history.Entry{
		{ID: "old", Status: "completed", Timestamp: 1600000000000},
	}

	out := Merge(live, hist, renderTime)
	if len(out) != 3 {
		t.Fatalf("merged = %#v, want 3 entries", out)
	}
	if out[0].ID != "active" || out[1].ID != "waiting" || out[2].ID != "old" {
		t.Fatalf("order = [%s %s %s], want active, waiting, old", out[0].ID, out[1].ID, out[2].ID)
	}
	if out[1].Timestamp != renderTime.UnixMilli()-1 {
		t.Fatalf("queued placeholder timestamp = %d, want render time minus 1ms", out[1].Timestamp)
	}
}

func TestMerge_BackfillsDisplayFieldsFromLoser(t *testing.T) {
	live := evd.QueueStatus{
		Active: map[string]evd.QueueItem{
			"x": {DownloadID: "x", Status: "downloading", URL: "https://example.com/v", PageTitle: "A Video"},
		},
		TotalCount: 1,
	}
	hist := []history.Entry{
		{ID: "x", Status: "completed", Timestamp: renderTime.UnixMilli() + 1000},
	}

	out := Merge(live, hist, renderTime)
	if len(out) != 1 {
		t.Fatalf("merged = %#v, want 1 entry", out)
	}
	if out[0].Status != "completed" || out[0].URL != "https://example.com/v" || out[0].Label != "A Video" {
		t.Fatalf("winner = %#v, want history status with live display fields", out[0])
	}
}

func TestNormalizeStatus_Synonyms(t *testing.T) {
	tests := map[string]string{
		"success":   "completed",
		"Complete":  "completed",
		"completed": "completed",
		"done":      "completed",
		"FINISHED":  "completed",
		"fail":      "error",
		"failed":    "error",
		"error":     "error",
		"cancelled": "canceled",
		"canceled":  "canceled",
		"waiting":   "queued",
		"queued":    "queued",
		"":          "queued",
		"Paused":    "paused",
		"weird":     "weird",
	}
	for in, want := range tests {
		if got := NormalizeStatus(in); got != want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeriveLabel_FallbackOrder(t *testing.T) {
	tests := []struct {
		name                        string
		title, filename, rawURL, id string
		want                        string
	}{
		{"title wins", "My Video", "f.mp4", "https://example.com/v", "id1", "My Video"},
		{"filename next", "", "f.mp4", "https://example.com/v", "id1", "f.mp4"},
		{"whitespace title skipped", "   ", "f.mp4", "", "", "f.mp4"},
		{"youtube watch id", "", "", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "", "dQw4w9WgXcQ"},
		{"youtube short id", "", "", "https://youtube.com/shorts/abc123xyz", "", "abc123xyz"},
		{"youtu.be id", "", "", "https://youtu.be/abc123xyz", "", "abc123xyz"},
		{"host and last segment", "", "", "https://cdn.example.com/media/clip.mp4", "", "cdn.example.com/clip.mp4"},
		{"bare hostname", "", "", "https://example.com/", "", "example.com"},
		{"id fallback", "", "", "", "0123456789abcdef", "0123456789ab…"},
		{"short id kept whole", "", "", "", "dl7", "dl7"},
		{"nothing", "", "", "", "", "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveLabel(tt.title, tt.filename, tt.rawURL, tt.id); got != tt.want {
				t.Fatalf("DeriveLabel = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.example.com/v/1/", "example.com/v/1"},
		{"https://example.com/v/1", "example.com/v/1"},
		{"HTTPS://WWW.Example.COM/Path/", "example.com/path"},
		{"https://example.com", "example.com"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		if got := CanonicalURL(tt.in); got != tt.want {
			t.Errorf("CanonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
