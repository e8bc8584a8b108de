package evd

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// QueueItem is a single download as reported by the server.
type QueueItem struct {
	DownloadID string
	URL        string
	PageTitle  string
	Filename   string
	Status     string
	Progress   float64
	// Timestamp is the last-observed-at time in Unix milliseconds.
	// Advisory only; zero when the server omitted it.
	Timestamp int64
}

// QueueStatus is a normalized snapshot of the server's queue. Active maps
// download id to item for anything downloading, paused, or starting; Queued
// preserves the server's queue order.
type QueueStatus struct {
	Active     map[string]QueueItem
	Queued     []QueueItem
	TotalCount int
}

// EmptyStatus returns a snapshot with no downloads.
func EmptyStatus() QueueStatus {
	return QueueStatus{Active: map[string]QueueItem{}}
}

// rawRecord mirrors one id→record entry of the /api/status payload. Numeric
// fields arrive in several shapes (numbers, "42.5%" strings), so they are
// held raw and parsed tolerantly.
type rawRecord struct {
	Status    string          `json:"status"`
	URL       string          `json:"url"`
	Title     string          `json:"title"`
	PageTitle string          `json:"page_title"`
	Filename  string          `json:"filename"`
	Progress  json.RawMessage `json:"progress"`
	Percent   json.RawMessage `json:"percent"`
	Timestamp json.RawMessage `json:"timestamp"`
	History   []progressPoint `json:"history"`
}

type progressPoint struct {
	Percent json.RawMessage `json:"percent"`
}

// ParseStatus decodes the status payload, an object mapping download id to
// record. The server encodes queue order as the object's key order, so the
// payload is walked token by token instead of through a Go map.
//
// Classification: "queued" records join the queued sequence, records that
// are downloading, paused, or starting join the active map, and anything
// else is dropped. A malformed progress value degrades that one record to
// 0%; only a structurally invalid payload fails the whole parse.
func ParseStatus(r io.Reader) (QueueStatus, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return EmptyStatus(), fmt.Errorf("read payload: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return EmptyStatus(), fmt.Errorf("status payload is not an object")
	}

	status := EmptyStatus()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return EmptyStatus(), fmt.Errorf("read record id: %w", err)
		}
		id, ok := keyTok.(string)
		if !ok {
			return EmptyStatus(), fmt.Errorf("record id is not a string")
		}
		var rec rawRecord
		if err := dec.Decode(&rec); err != nil {
			return EmptyStatus(), fmt.Errorf("decode record %q: %w", id, err)
		}

		item := rec.toItem(id)
		switch strings.ToLower(strings.TrimSpace(rec.Status)) {
		case "queued":
			status.Queued = append(status.Queued, item)
		case "downloading", "paused", "starting":
			status.Active[id] = item
		default:
			// Terminal or unrecognized states live in history, not here.
		}
	}
	if _, err := dec.Token(); err != nil {
		return EmptyStatus(), fmt.Errorf("read payload end: %w", err)
	}

	status.TotalCount = len(status.Active) + len(status.Queued)
	return status, nil
}

func (r rawRecord) toItem(id string) QueueItem {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = strings.TrimSpace(r.PageTitle)
	}
	return QueueItem{
		DownloadID: id,
		URL:        r.URL,
		PageTitle:  title,
		Filename:   r.Filename,
		Status:     strings.ToLower(strings.TrimSpace(r.Status)),
		Progress:   r.progressValue(),
		Timestamp:  parseTimestamp(r.Timestamp),
	}
}

// progressValue extracts a percentage with the fallback order the server's
// payloads require: numeric progress field, then the percent string, then
// the last history sample, then zero.
func (r rawRecord) progressValue() float64 {
	if v, ok := parsePercent(r.Progress); ok {
		return ClampProgress(v)
	}
	if v, ok := parsePercent(r.Percent); ok {
		return ClampProgress(v)
	}
	if n := len(r.History); n > 0 {
		if v, ok := parsePercent(r.History[n-1].Percent); ok {
			return ClampProgress(v)
		}
	}
	return 0
}

// parsePercent accepts a JSON number or a string such as "42.5%".
func parsePercent(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseTimestamp accepts Unix milliseconds, Unix seconds, or an RFC 3339
// string, and reports zero for anything else.
func parseTimestamp(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		if num <= 0 || math.IsNaN(num) || math.IsInf(num, 0) {
			return 0
		}
		// Values below ~2001-09-09 in milliseconds are assumed seconds.
		if num < 1e12 {
			return int64(num * 1000)
		}
		return int64(num)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

// ClampProgress bounds a percentage to [0,100], mapping NaN to 0.
func ClampProgress(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
