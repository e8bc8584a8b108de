package unified

import (
	"slices"
	"strings"
	"time"

	"github.com/joeording3/evdq/internal/evd"
	"github.com/joeording3/evdq/internal/history"
)

// Entry is one row of the rendered download list: a live queue item merged
// with whatever history records share its identity. Ephemeral: rebuilt
// from scratch on every render pass and never persisted.
type Entry struct {
	ID        string
	Status    string
	Label     string
	Progress  float64
	Timestamp int64
	URL       string
	PageTitle string
}

// statusPriority decides which of two colliding records wins a merge.
// Terminal states outrank in-flight ones so a completed download is never
// shadowed by a stale queued or downloading record racing in from a slower
// source.
var statusPriority = map[string]int{
	"completed":   5,
	"error":       4,
	"canceled":    3,
	"downloading": 2,
	"queued":      1,
	"paused":      1,
}

// Merge combines the live queue snapshot with the history log into one
// ordered, de-duplicated list. Identity is the stable id when present,
// else the canonical URL. Collisions resolve by status priority, then by
// the larger timestamp. The result is sorted by timestamp descending; live
// items lacking a timestamp take the render-pass time now, queued
// placeholders sit one millisecond behind so genuinely active items
// surface first.
//
// Merge is a pure function: identical inputs produce identical output.
func Merge(live evd.QueueStatus, entries []history.Entry, now time.Time) []Entry {
	renderMilli := now.UnixMilli()
	merged := make(map[string]Entry)
	var order []string

	upsert := func(e Entry) {
		key := identityKey(e)
		existing, ok := merged[key]
		if !ok {
			merged[key] = e
			order = append(order, key)
			return
		}
		merged[key] = resolve(existing, e)
	}

	for _, item := range live.Active {
		upsert(fromQueueItem(item, renderMilli))
	}
	for _, item := range live.Queued {
		e := fromQueueItem(item, renderMilli)
		if item.Timestamp == 0 {
			e.Timestamp = renderMilli - 1
		}
		upsert(e)
	}
	for _, h := range entries {
		upsert(fromHistoryEntry(h))
	}

	out := make([]Entry, 0, len(merged))
	for _, key := range order {
		out = append(out, merged[key])
	}
	slices.SortStableFunc(out, func(a, b Entry) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})
	return out
}

func fromQueueItem(item evd.QueueItem, renderMilli int64) Entry {
	ts := item.Timestamp
	if ts == 0 {
		ts = renderMilli
	}
	return Entry{
		ID:        item.DownloadID,
		Status:    NormalizeStatus(item.Status),
		Label:     DeriveLabel(item.PageTitle, item.Filename, item.URL, item.DownloadID),
		Progress:  evd.ClampProgress(item.Progress),
		Timestamp: ts,
		URL:       item.URL,
		PageTitle: item.PageTitle,
	}
}

func fromHistoryEntry(h history.Entry) Entry {
	return Entry{
		ID:        h.ID,
		Status:    NormalizeStatus(h.Status),
		Label:     DeriveLabel(h.PageTitle, h.Filename, h.URL, h.ID),
		Timestamp: h.Timestamp,
		URL:       h.URL,
		PageTitle: h.PageTitle,
	}
}

// identityKey prefers the stable id; history entries recorded before an id
// existed must still collapse with their live counterpart, so the fallback
// is the canonical URL.
func identityKey(e Entry) string {
	if e.ID != "" {
		return "id:" + e.ID
	}
	if e.URL != "" {
		return "url:" + CanonicalURL(e.URL)
	}
	return "label:" + e.Label
}

// resolve picks the winner of a key collision and backfills display fields
// the winner is missing.
func resolve(a, b Entry) Entry {
	winner, loser := a, b
	pa, pb := statusPriority[a.Status], statusPriority[b.Status]
	if pb > pa || (pb == pa && b.Timestamp > a.Timestamp) {
		winner, loser = b, a
	}
	if fallbackLabel(winner) && !fallbackLabel(loser) {
		winner.Label = loser.Label
	}
	if winner.URL == "" {
		winner.URL = loser.URL
	}
	if winner.PageTitle == "" {
		winner.PageTitle = loser.PageTitle
	}
	if winner.Progress == 0 && winner.Status == "downloading" {
		winner.Progress = loser.Progress
	}
	return winner
}

// fallbackLabel reports whether an entry's label carries no display
// information beyond its id.
func fallbackLabel(e Entry) bool {
	return e.Label == unknownLabel || e.Label == truncateID(e.ID)
}

// NormalizeStatus folds status synonyms to canonical values, passing
// unknown values through lower-cased and defaulting empty to queued.
func NormalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "":
		return "queued"
	case "success", "complete", "completed", "done", "finished":
		return "completed"
	case "fail", "failed", "error":
		return "error"
	case "cancelled", "canceled":
		return "canceled"
	case "waiting", "queued":
		return "queued"
	default:
		return s
	}
}
