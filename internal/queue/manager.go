package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joeording3/evdq/internal/evd"
)

const (
	// cacheTTL bounds how long a status snapshot may be served without a
	// network round-trip.
	cacheTTL = 2 * time.Second

	defaultPollInterval = 2 * time.Second
)

// Listener receives the latest queue snapshot after each cache refresh.
// Delivery is best-effort: a panicking listener is logged and skipped
// without blocking the others, and intermediate snapshots may be coalesced.
type Listener func(evd.QueueStatus)

// Manager is the single source of truth for queue state. It composes the
// server client with a TTL'd status cache, a listener registry, and an
// optional polling loop. Every mutating operation that succeeds invalidates
// the cache, forces a refresh, and notifies listeners before returning, so
// callers always observe post-mutation state.
type Manager struct {
	client evd.API
	log    *slog.Logger

	mu           sync.Mutex
	cache        *evd.QueueStatus
	cachedAt     time.Time
	refreshing   bool
	listeners    map[int]Listener
	nextListener int
	pollCancel   context.CancelFunc
	destroyed    bool
}

// NewManager builds a Manager over the given server API. A nil logger
// discards log output.
func NewManager(client evd.API, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		client:    client,
		log:       log,
		listeners: map[int]Listener{},
	}
}

// Status returns the current queue snapshot. A fresh cache is served
// without touching the network unless force is set. The refresh itself is
// non-reentrant: a caller arriving while another refresh is in flight gets
// the current cache (or the empty status) instead of issuing a second
// request. A failed refresh never poisons the cache; the previous snapshot,
// when one exists, keeps being served.
func (m *Manager) Status(ctx context.Context, force bool) evd.QueueStatus {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return evd.EmptyStatus()
	}
	if !force && m.cache != nil && time.Since(m.cachedAt) < cacheTTL {
		snap := cloneStatus(*m.cache)
		m.mu.Unlock()
		return snap
	}
	if m.refreshing {
		snap := m.cachedLocked()
		m.mu.Unlock()
		return snap
	}
	m.refreshing = true
	m.mu.Unlock()

	status, err := m.client.FetchStatus(ctx)

	m.mu.Lock()
	m.refreshing = false
	// Destroy may have run while the fetch was in flight; never
	// repopulate the cache of a destroyed manager.
	if m.destroyed {
		m.mu.Unlock()
		return evd.EmptyStatus()
	}
	if err != nil {
		m.log.Warn("status refresh failed", "error", err)
		snap := m.cachedLocked()
		m.mu.Unlock()
		return snap
	}
	m.cache = &status
	m.cachedAt = time.Now()
	snap := cloneStatus(status)
	m.mu.Unlock()

	m.notify(snap)
	return cloneStatus(snap)
}

// cachedLocked returns a copy of the cache, or the empty status. Callers
// must hold mu.
func (m *Manager) cachedLocked() evd.QueueStatus {
	if m.cache != nil {
		return cloneStatus(*m.cache)
	}
	return evd.EmptyStatus()
}

// Invalidate drops the cached snapshot so the next read refreshes.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.cache = nil
	m.cachedAt = time.Time{}
	m.mu.Unlock()
}

// BadgeCount reports the cached total of active plus queued downloads. It
// never issues a network call; with no cache present it reports zero.
func (m *Manager) BadgeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cache == nil {
		return 0
	}
	return m.cache.TotalCount
}

// Subscribe registers a listener and returns its unsubscribe function. When
// a cached snapshot exists the listener is invoked with it immediately.
func (m *Manager) Subscribe(fn Listener) func() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return func() {}
	}
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	var current *evd.QueueStatus
	if m.cache != nil {
		snap := cloneStatus(*m.cache)
		current = &snap
	}
	m.mu.Unlock()

	if current != nil {
		m.deliver(fn, *current)
	}
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) notify(status evd.QueueStatus) {
	m.mu.Lock()
	fns := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		m.deliver(fn, cloneStatus(status))
	}
}

func (m *Manager) deliver(fn Listener, status evd.QueueStatus) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn("queue listener panicked", "panic", r)
		}
	}()
	fn(status)
}

// Add enqueues a download and, on success, refreshes the cache before
// returning.
func (m *Manager) Add(ctx context.Context, req evd.AddRequest) evd.Result {
	return m.mutate(ctx, func() evd.Result { return m.client.Add(ctx, req) })
}

// Remove takes an item out of the queue, falling back to cancellation for
// active downloads.
func (m *Manager) Remove(ctx context.Context, id string) evd.Result {
	return m.mutate(ctx, func() evd.Result { return m.client.Remove(ctx, id) })
}

// Reorder replaces the queued sequence with the given id order.
func (m *Manager) Reorder(ctx context.Context, order []string) evd.Result {
	return m.mutate(ctx, func() evd.Result { return m.client.Reorder(ctx, order) })
}

// Pause suspends an active download.
func (m *Manager) Pause(ctx context.Context, id string) evd.Result {
	return m.mutate(ctx, func() evd.Result { return m.client.Pause(ctx, id) })
}

// Resume restarts a paused download.
func (m *Manager) Resume(ctx context.Context, id string) evd.Result {
	return m.mutate(ctx, func() evd.Result { return m.client.Resume(ctx, id) })
}

// SetPriority adjusts a download's scheduling priority.
func (m *Manager) SetPriority(ctx context.Context, id string, priority int) evd.Result {
	return m.mutate(ctx, func() evd.Result { return m.client.SetPriority(ctx, id, priority) })
}

// ForceStart promotes a queued item to start immediately.
func (m *Manager) ForceStart(ctx context.Context, id string) evd.Result {
	return m.mutate(ctx, func() evd.Result { return m.client.ForceStart(ctx, id) })
}

// mutate runs op and, when it succeeds, performs the invalidate, forced
// refresh, notify sequence in that order before the result is returned.
func (m *Manager) mutate(ctx context.Context, op func() evd.Result) evd.Result {
	if m.isDestroyed() {
		return evd.Result{Message: "queue manager destroyed"}
	}
	res := op()
	if res.Success {
		m.Invalidate()
		m.Status(ctx, true)
	}
	return res
}

// StartPeriodicUpdates begins a forced-refresh loop at the given cadence,
// cancelling any previous loop first so restarts never leak a ticker.
func (m *Manager) StartPeriodicUpdates(interval time.Duration) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	if m.pollCancel != nil {
		m.pollCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.pollCancel = cancel
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			m.Status(ctx, true)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// StopPeriodicUpdates halts the polling loop if one is running.
func (m *Manager) StopPeriodicUpdates() {
	m.mu.Lock()
	if m.pollCancel != nil {
		m.pollCancel()
		m.pollCancel = nil
	}
	m.mu.Unlock()
}

// Destroy stops polling, clears the listener registry, and drops the cache.
// The manager is terminal afterwards: reads return the empty status and
// mutations report failure.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.pollCancel != nil {
		m.pollCancel()
		m.pollCancel = nil
	}
	m.listeners = map[int]Listener{}
	m.cache = nil
	m.cachedAt = time.Time{}
	m.destroyed = true
	m.mu.Unlock()
}

func (m *Manager) isDestroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}

func cloneStatus(status evd.QueueStatus) evd.QueueStatus {
	dup := evd.QueueStatus{
		Active:     make(map[string]evd.QueueItem, len(status.Active)),
		TotalCount: status.TotalCount,
	}
	for id, item := range status.Active {
		dup.Active[id] = item
	}
	if len(status.Queued) > 0 {
		dup.Queued = make([]evd.QueueItem, len(status.Queued))
		copy(dup.Queued, status.Queued)
	}
	return dup
}
