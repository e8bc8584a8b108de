package unified

import (
	"net/url"
	"strings"
)

const unknownLabel = "Unknown"

// DeriveLabel computes a display label with the fallback order: explicit
// title, non-empty filename, URL-derived label, truncated id, "Unknown".
func DeriveLabel(title, filename, rawURL, id string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	if f := strings.TrimSpace(filename); f != "" {
		return f
	}
	if label := labelFromURL(rawURL); label != "" {
		return label
	}
	if id = strings.TrimSpace(id); id != "" {
		return truncateID(id)
	}
	return unknownLabel
}

// labelFromURL extracts the YouTube video or short id when the URL is a
// YouTube one, and otherwise falls back to hostname/last-path-segment or
// the bare hostname.
func labelFromURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return ""
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	if id := youtubeID(host, u); id != "" {
		return id
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	if last == "" {
		return host
	}
	return host + "/" + last
}

func youtubeID(host string, u *url.URL) string {
	switch {
	case host == "youtu.be":
		if seg := strings.Trim(u.Path, "/"); seg != "" {
			return firstSegment(seg)
		}
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		if rest, ok := strings.CutPrefix(strings.Trim(u.Path, "/"), "shorts/"); ok && rest != "" {
			return firstSegment(rest)
		}
		if rest, ok := strings.CutPrefix(strings.Trim(u.Path, "/"), "embed/"); ok && rest != "" {
			return firstSegment(rest)
		}
	}
	return ""
}

func firstSegment(path string) string {
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}

func truncateID(id string) string {
	const max = 12
	if len(id) <= max {
		return id
	}
	return id[:max] + "…"
}

// CanonicalURL reduces a URL to its identity form: lower-cased hostname
// stripped of a leading "www.", concatenated with the lower-cased path
// minus any trailing slash. Unparseable input degrades to the trimmed,
// lower-cased original.
func CanonicalURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(trimmed)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.TrimSuffix(strings.ToLower(u.EscapedPath()), "/")
	return host + path
}
