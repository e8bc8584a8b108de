// Package evd provides the HTTP client for the Enhanced Video Downloader
// server API.
//
// # Overview
//
// The package translates queue intents into HTTP calls against the local
// download server and normalizes its status payload into a typed snapshot.
// It is split into two files:
//
//   - client.go: request/response handling and the mutation surface
//   - status.go: status payload decoding and normalization
//
// # Result Values
//
// Mutations (Add, Remove, Reorder, Pause, Resume, SetPriority, ForceStart,
// PostHistory) never return Go errors. Every failure mode is folded into a
// Result value: the server port not being configured, transport failures,
// non-2xx responses, and 2xx bodies whose status field is neither "success"
// nor "queued". Callers branch on Success and show Message as-is:
//
//	res := client.Add(ctx, evd.AddRequest{URL: src, Quality: "best"})
//	if !res.Success {
//		showNotice(res.Message)
//	}
//
// UI code can always render the message rather than crash. FetchStatus is
// the exception: it returns an error so the caching layer can decide to
// keep its last-known-good snapshot.
//
// # Endpoints
//
//	POST /api/download                   enqueue a download
//	GET  /api/status?include_queue=1     full status snapshot
//	POST /api/queue/{id}/remove          remove a queued item
//	POST /api/download/{id}/cancel       removal fallback for active items
//	POST /api/queue/reorder              replace the queued order
//	POST /api/download/{id}/pause        pause an active download
//	POST /api/download/{id}/resume       resume a paused download
//	POST /api/download/{id}/priority     adjust priority
//	POST /api/queue/{id}/force-start     promote a queued item
//	POST /api/history                    best-effort history mirror
//
// Remove tries the queue-specific endpoint first and falls back to cancel;
// a 404 from either counts as success because the item is already gone.
//
// # Status Normalization
//
// The /api/status payload is an object mapping download id to record whose
// key order carries queue order, so ParseStatus walks the payload with a
// json.Decoder token stream rather than a Go map. Records whose status is
// "queued" join the queued sequence; "downloading", "paused", and
// "starting" records join the active map; everything else is dropped.
// Progress is extracted from the numeric progress field, then the percent
// string, then the last history sample, and is always clamped to [0,100].
//
// # Network Assumptions
//
// The server is on localhost, unauthenticated, and reachable over plain
// HTTP. Every request carries a 5-second timeout on top of the caller's
// context.
package evd
