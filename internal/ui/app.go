// Package ui provides the Bubble Tea terminal UI for evdq.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joeording3/evdq/internal/evd"
	"github.com/joeording3/evdq/internal/history"
	"github.com/joeording3/evdq/internal/queue"
	"github.com/joeording3/evdq/internal/unified"
)

// Options configures the UI.
type Options struct {
	Context  context.Context
	Manager  *queue.Manager
	History  *history.Store
	PollTick time.Duration
}

const (
	defaultPollTick = time.Second
	noticeLifetime  = 4 * time.Second
)

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx      context.Context
	manager  *queue.Manager
	history  *history.Store
	pollTick time.Duration

	// UI state
	styles   Styles
	keys     keyMap
	width    int
	height   int
	ready    bool
	showHelp bool

	// Data state
	entries     []unified.Entry
	status      evd.QueueStatus
	badge       int
	lastUpdated time.Time

	// Selection
	selectedRow int

	// Add-download input
	adding bool
	input  textinput.Model

	// Inline notice (auto-expiring)
	notice    string
	noticeErr bool
	noticeSeq int
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = defaultPollTick
	}

	input := textinput.New()
	input.Placeholder = "https://…"
	input.Prompt = "add url> "
	input.CharLimit = 2048

	return Model{
		ctx:      ctx,
		manager:  opts.Manager,
		history:  opts.History,
		pollTick: pollTick,
		styles:   DefaultStyles(),
		keys:     DefaultKeyMap(),
		input:    input,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tickCmd(m.pollTick),
		m.refreshCmd(false),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refreshCmd(false), tickCmd(m.pollTick))

	case refreshMsg:
		m.entries = msg.entries
		m.status = msg.status
		m.badge = msg.badge
		m.lastUpdated = time.Now()
		m.clampSelection()
		return m, nil

	case pushMsg:
		// The queue manager refreshed behind our back (mutation or poll);
		// re-merge without another network call.
		return m, m.mergeCmd(evd.QueueStatus(msg))

	case actionResultMsg:
		return m.handleActionResult(msg)

	case clearNoticeMsg:
		if int(msg) == m.noticeSeq {
			m.notice = ""
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.adding {
		return m.handleAddKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.selectedRow < len(m.entries)-1 {
			m.selectedRow++
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.selectedRow > 0 {
			m.selectedRow--
		}
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.selectedRow = 0
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		if n := len(m.entries); n > 0 {
			m.selectedRow = n - 1
		}
		return m, nil

	case key.Matches(msg, m.keys.Add):
		m.adding = true
		m.input.SetValue("")
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd(true)

	case key.Matches(msg, m.keys.Pause):
		return m.selectedAction("pause", func(id string) evd.Result {
			return m.manager.Pause(m.ctx, id)
		})

	case key.Matches(msg, m.keys.Resume):
		return m.selectedAction("resume", func(id string) evd.Result {
			return m.manager.Resume(m.ctx, id)
		})

	case key.Matches(msg, m.keys.Cancel):
		return m.selectedAction("remove", func(id string) evd.Result {
			return m.manager.Remove(m.ctx, id)
		})

	case key.Matches(msg, m.keys.ForceStart):
		return m.selectedAction("force-start", func(id string) evd.Result {
			return m.manager.ForceStart(m.ctx, id)
		})

	case key.Matches(msg, m.keys.RaisePriority):
		return m.selectedAction("priority", func(id string) evd.Result {
			return m.manager.SetPriority(m.ctx, id, 1)
		})

	case key.Matches(msg, m.keys.LowerPriority):
		return m.selectedAction("priority", func(id string) evd.Result {
			return m.manager.SetPriority(m.ctx, id, -1)
		})

	case key.Matches(msg, m.keys.MoveDown):
		return m.reorderSelected(1)

	case key.Matches(msg, m.keys.MoveUp):
		return m.reorderSelected(-1)

	case key.Matches(msg, m.keys.DeleteEntry):
		return m.deleteSelectedHistory()

	case key.Matches(msg, m.keys.ClearHistory):
		hist := m.history
		return m, func() tea.Msg {
			if hist == nil {
				return actionResultMsg{verb: "clear history", res: evd.Result{Message: "history disabled"}}
			}
			if err := hist.Clear(); err != nil {
				return actionResultMsg{verb: "clear history", res: evd.Result{Message: err.Error()}}
			}
			return actionResultMsg{verb: "clear history", res: evd.Result{Success: true}}
		}
	}

	return m, nil
}

func (m Model) handleAddKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		url := m.input.Value()
		m.adding = false
		m.input.Blur()
		if url == "" {
			return m, nil
		}
		mgr := m.manager
		ctx := m.ctx
		return m, func() tea.Msg {
			res := mgr.Add(ctx, evd.AddRequest{URL: url, Quality: "best"})
			return actionResultMsg{verb: "add", res: res}
		}

	case key.Matches(msg, m.keys.Escape):
		m.adding = false
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// selectedAction runs a queue mutation against the selected entry.
func (m Model) selectedAction(verb string, op func(id string) evd.Result) (tea.Model, tea.Cmd) {
	entry, ok := m.selectedEntry()
	if !ok || entry.ID == "" {
		return m, nil
	}
	id := entry.ID
	return m, func() tea.Msg {
		return actionResultMsg{verb: verb, res: op(id)}
	}
}

// reorderSelected moves the selected queued item within the queue order and
// submits the whole order, since the server replaces it wholesale.
func (m Model) reorderSelected(delta int) (tea.Model, tea.Cmd) {
	entry, ok := m.selectedEntry()
	if !ok {
		return m, nil
	}
	pos := -1
	order := make([]string, len(m.status.Queued))
	for i, item := range m.status.Queued {
		order[i] = item.DownloadID
		if item.DownloadID == entry.ID {
			pos = i
		}
	}
	target := pos + delta
	if pos < 0 || target < 0 || target >= len(order) {
		return m, nil
	}
	order[pos], order[target] = order[target], order[pos]
	mgr := m.manager
	ctx := m.ctx
	return m, func() tea.Msg {
		return actionResultMsg{verb: "reorder", res: mgr.Reorder(ctx, order)}
	}
}

func (m Model) deleteSelectedHistory() (tea.Model, tea.Cmd) {
	entry, ok := m.selectedEntry()
	if !ok || entry.ID == "" || m.history == nil {
		return m, nil
	}
	hist := m.history
	id := entry.ID
	return m, func() tea.Msg {
		if err := hist.Remove(id); err != nil {
			return actionResultMsg{verb: "delete entry", res: evd.Result{Message: err.Error()}}
		}
		return actionResultMsg{verb: "delete entry", res: evd.Result{Success: true}}
	}
}

func (m Model) handleActionResult(msg actionResultMsg) (tea.Model, tea.Cmd) {
	m.noticeSeq++
	if msg.res.Success {
		m.notice = msg.verb + " ok"
		m.noticeErr = false
	} else {
		m.notice = fmt.Sprintf("%s failed: %s", msg.verb, msg.res.Message)
		m.noticeErr = true
	}
	seq := m.noticeSeq
	expire := tea.Tick(noticeLifetime, func(time.Time) tea.Msg {
		return clearNoticeMsg(seq)
	})
	// Mutations refreshed the manager's cache already; re-merge for display.
	return m, tea.Batch(expire, m.refreshCmd(false))
}

func (m Model) selectedEntry() (unified.Entry, bool) {
	if m.selectedRow < 0 || m.selectedRow >= len(m.entries) {
		return unified.Entry{}, false
	}
	return m.entries[m.selectedRow], true
}

func (m *Model) clampSelection() {
	if n := len(m.entries); m.selectedRow >= n {
		m.selectedRow = n - 1
	}
	if m.selectedRow < 0 {
		m.selectedRow = 0
	}
}

// Messages

type tickMsg time.Time

type refreshMsg struct {
	entries []unified.Entry
	status  evd.QueueStatus
	badge   int
}

// pushMsg carries a snapshot delivered by the queue manager's broadcaster.
type pushMsg evd.QueueStatus

type actionResultMsg struct {
	verb string
	res  evd.Result
}

type clearNoticeMsg int

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refreshCmd reads queue status (from cache when fresh) and re-merges it
// with the history log.
func (m Model) refreshCmd(force bool) tea.Cmd {
	mgr := m.manager
	hist := m.history
	ctx := m.ctx
	return func() tea.Msg {
		status := mgr.Status(ctx, force)
		var entries []history.Entry
		if hist != nil {
			entries, _ = hist.List()
		}
		return refreshMsg{
			entries: unified.Merge(status, entries, time.Now()),
			status:  status,
			badge:   mgr.BadgeCount(),
		}
	}
}

// mergeCmd re-merges an already-fetched snapshot with the history log.
func (m Model) mergeCmd(status evd.QueueStatus) tea.Cmd {
	mgr := m.manager
	hist := m.history
	return func() tea.Msg {
		var entries []history.Entry
		if hist != nil {
			entries, _ = hist.List()
		}
		return refreshMsg{
			entries: unified.Merge(status, entries, time.Now()),
			status:  status,
			badge:   mgr.BadgeCount(),
		}
	}
}

// Run starts the Bubble Tea program and subscribes it to queue refreshes.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen())

	unsubscribe := opts.Manager.Subscribe(func(status evd.QueueStatus) {
		p.Send(pushMsg(status))
	})
	defer unsubscribe()

	if ctx := opts.Context; ctx != nil {
		go func() {
			<-ctx.Done()
			p.Quit()
		}()
	}

	_, err := p.Run()
	return err
}
