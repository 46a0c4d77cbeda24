package sync

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"tenantsync/internal/api"
	"tenantsync/internal/attachment"
	"tenantsync/internal/chat"
	"tenantsync/internal/config"
	"tenantsync/internal/notify"
	"tenantsync/internal/store"
)

// Engine keeps the local chat read model consistent with the platform
// backend under periodic polling, and owns the commands views issue against
// it (select, send, upload, open). Views observe it through the bus and the
// read accessors; they never mutate state themselves.
type Engine struct {
	backend     api.Backend
	attachments *attachment.Cache
	session     *store.Cache
	bus         *notify.Bus
	cfg         config.SyncConfig
	now         func() time.Time

	// pollInFlight guards the primary cycle: a tick that fires while the
	// previous cycle is still running is skipped, never queued.
	pollInFlight atomic.Bool

	// refreshGuard spaces out view-triggered refreshes so rapid triggers
	// collapse into one fetch.
	refreshGuard *notify.Coordinator

	// cadence wakes the run loop after ApplySync so the poll ticker picks
	// up a hot-reloaded interval.
	cadence chan struct{}

	mu       sync.Mutex
	chats    []chat.Chat
	selected int64
	loaded   bool // first successful backend fetch committed

	attachmentMeta map[int64][]api.RawAttachment
	lastAttPoll    map[int64]time.Time     // per chat: last successful metadata poll
	backoffUntil   map[int64]time.Time     // per chat: suppress polls before this
	backoffWindow  map[int64]time.Duration // per chat: current 429 window

	// Initial-chat resolver state.
	handledKey  string
	pendingOpen *openRequest
	creating    bool
	draft       string
}

func NewEngine(backend api.Backend, attachments *attachment.Cache, session *store.Cache, bus *notify.Bus, cfg config.SyncConfig) *Engine {
	return &Engine{
		backend:        backend,
		attachments:    attachments,
		session:        session,
		bus:            bus,
		cfg:            cfg,
		now:            time.Now,
		refreshGuard:   notify.NewCoordinator(cfg.PollInterval()),
		cadence:        make(chan struct{}, 1),
		attachmentMeta: make(map[int64][]api.RawAttachment),
		lastAttPoll:    make(map[int64]time.Time),
		backoffUntil:   make(map[int64]time.Time),
		backoffWindow:  make(map[int64]time.Duration),
	}
}

// Start warms the read model from the session cache and runs the poll loop
// until ctx is cancelled. The first polled cycle is delayed briefly so a
// caller-issued immediate fetch isn't duplicated.
func (e *Engine) Start(ctx context.Context) {
	if e.session != nil {
		if snap := e.session.Load(); snap != nil {
			e.mu.Lock()
			e.chats = snap.Chats
			e.selected = snap.SelectedChat
			e.mu.Unlock()
			slog.Info("session cache warmed", "chats", len(snap.Chats))
		}
	}

	go e.run(ctx)
}

func (e *Engine) run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(e.syncConfig().InitialDelay()):
	}

	e.pollOnce(ctx)

	ticker := time.NewTicker(e.syncConfig().PollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.cadence:
			ticker.Reset(e.syncConfig().PollInterval())
		case <-ticker.C:
			e.pollOnce(ctx)
		}
	}
}

// ApplySync swaps the polling cadences at runtime. Registered as a config
// hot-reload consumer; the next tick uses the new interval.
func (e *Engine) ApplySync(cfg config.SyncConfig) {
	e.mu.Lock()
	changed := e.cfg != cfg
	e.cfg = cfg
	e.mu.Unlock()

	if changed {
		select {
		case e.cadence <- struct{}{}:
		default:
		}
		slog.Info("sync cadences updated",
			"poll", cfg.PollInterval(), "attachments", cfg.AttachmentInterval())
	}
}

func (e *Engine) syncConfig() config.SyncConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// pollOnce runs one synchronization cycle: chat-list fetch, change
// detection, state commit, deferred open resolution, then the slower
// attachment-metadata poll for the selected chat. Cycles never overlap.
func (e *Engine) pollOnce(ctx context.Context) {
	if !e.pollInFlight.CompareAndSwap(false, true) {
		return
	}
	defer e.pollInFlight.Store(false)

	raw, err := e.backend.TenantInquiries(ctx)
	if err != nil {
		e.reportPollError(err)
		return
	}
	if ctx.Err() != nil {
		// The view is gone; discard the result instead of applying it.
		return
	}

	fresh := chat.FromRaw(raw)

	e.mu.Lock()
	diff := detectChanges(e.chats, fresh, e.selected)
	if diff.changed {
		e.commitLocked(fresh)
	}
	e.loaded = true
	pending := e.pendingOpen
	e.pendingOpen = nil
	selected := e.selected
	e.mu.Unlock()

	if diff.changed {
		e.bus.Publish(notify.Event{Type: notify.EventChatsUpdated})
		if diff.scrollChatID != 0 {
			e.bus.Publish(notify.Event{Type: notify.EventScrollHint, ChatID: diff.scrollChatID})
		}
	}

	if pending != nil {
		if _, err := e.resolveOpen(ctx, pending); err != nil {
			slog.Warn("deferred chat open failed", "key", pending.key, "error", err)
		}
	}

	if selected != 0 {
		e.pollAttachments(ctx, selected)
	}
}

// commitLocked replaces the read model. Optimistic pending messages that the
// authoritative response has not confirmed yet are carried over; confirmed
// ones are simply gone, replaced by the server copy.
func (e *Engine) commitLocked(fresh []chat.Chat) {
	pendingByChat := make(map[int64][]chat.Message)
	for i := range e.chats {
		for _, m := range e.chats[i].Messages {
			if m.Pending {
				pendingByChat[e.chats[i].ID] = append(pendingByChat[e.chats[i].ID], m)
			}
		}
	}

	for i := range fresh {
		carry := pendingByChat[fresh[i].ID]
		if len(carry) == 0 {
			continue
		}
		confirmed := make(map[string]struct{}, len(fresh[i].Messages))
		for _, m := range fresh[i].Messages {
			if m.Sender == chat.SenderTenant {
				confirmed[normalizedKey(m.Text)] = struct{}{}
			}
		}
		carried := false
		for _, m := range carry {
			if _, ok := confirmed[normalizedKey(m.Text)]; !ok {
				fresh[i].Messages = append(fresh[i].Messages, m)
				carried = true
			}
		}
		if carried {
			// Keep Messages ascending; the server may have produced entries
			// newer than the carried optimistic ones.
			msgs := fresh[i].Messages
			sort.SliceStable(msgs, func(a, b int) bool {
				return msgs[a].CreatedAt.Before(msgs[b].CreatedAt)
			})
		}
	}

	e.chats = fresh
}

func (e *Engine) reportPollError(err error) {
	// A single cycle's failure never stops future cycles.
	switch {
	case api.IsAuthRequired(err):
		slog.Warn("poll rejected, credential invalid", "error", err)
		e.bus.Publish(notify.Event{Type: notify.EventAuthRequired, Error: err.Error()})
	default:
		slog.Debug("poll cycle failed", "error", err)
	}
}

// pollAttachments refreshes attachment metadata for one chat on its own,
// slower cadence, with exponential backoff after rate-limit responses.
func (e *Engine) pollAttachments(ctx context.Context, chatID int64) {
	now := e.now()

	e.mu.Lock()
	if until, ok := e.backoffUntil[chatID]; ok && now.Before(until) {
		e.mu.Unlock()
		return
	}
	if last, ok := e.lastAttPoll[chatID]; ok && now.Sub(last) < e.cfg.AttachmentInterval() {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	meta, err := e.backend.InquiryAttachments(ctx, chatID)
	if err != nil {
		if api.IsRateLimited(err) {
			e.applyBackoff(chatID)
		} else {
			slog.Debug("attachment poll failed", "chat", chatID, "error", err)
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	e.mu.Lock()
	e.lastAttPoll[chatID] = e.now()
	delete(e.backoffUntil, chatID)
	delete(e.backoffWindow, chatID)
	changed := !attachmentsEqual(attachmentIDs(e.attachmentMeta[chatID]), attachmentIDs(meta))
	if changed {
		e.attachmentMeta[chatID] = meta
	}
	e.mu.Unlock()

	if changed {
		e.bus.Publish(notify.Event{Type: notify.EventAttachmentsUpdated, ChatID: chatID})
	}
}

// applyBackoff doubles the chat's rate-limit window, starting at the
// configured floor. The window resets on the next successful response.
func (e *Engine) applyBackoff(chatID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	window := e.backoffWindow[chatID] * 2
	if window < e.cfg.BackoffFloor() {
		window = e.cfg.BackoffFloor()
	}
	e.backoffWindow[chatID] = window
	e.backoffUntil[chatID] = e.now().Add(window)
	slog.Debug("attachment poll backoff", "chat", chatID, "window", window)
}

// Refresh runs one poll cycle outside the ticker. It reports false when a
// refresh ran too recently or is still in flight; the caller should treat
// that as success, the regular cadence will cover it.
func (e *Engine) Refresh(ctx context.Context) bool {
	if !e.refreshGuard.TryAcquire() {
		return false
	}
	defer e.refreshGuard.Release()
	e.pollOnce(ctx)
	return true
}

// Close releases attachment blobs and flushes the session cache. Call after
// the poll context is cancelled.
func (e *Engine) Close() {
	e.FlushSession()
	if e.attachments != nil {
		e.attachments.ReleaseAll()
	}
}

// FlushSession writes the current read model to the session cache.
func (e *Engine) FlushSession() {
	if e.session == nil {
		return
	}
	e.mu.Lock()
	snap := &store.Snapshot{SelectedChat: e.selected, Chats: append([]chat.Chat(nil), e.chats...)}
	e.mu.Unlock()
	if err := e.session.Save(snap); err != nil {
		slog.Warn("session cache flush failed", "error", err)
	}
}

// --- read accessors ---

// Chats returns a copy of the read model.
func (e *Engine) Chats() []chat.Chat {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]chat.Chat(nil), e.chats...)
}

// ChatByID returns one chat and whether it exists.
func (e *Engine) ChatByID(id int64) (chat.Chat, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.chats {
		if e.chats[i].ID == id {
			return e.chats[i], true
		}
	}
	return chat.Chat{}, false
}

// Selected returns the currently selected chat id (0 when none).
func (e *Engine) Selected() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// Select makes chatID the current chat; its attachments join the secondary
// poll from the next cycle on.
func (e *Engine) Select(chatID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.chats {
		if e.chats[i].ID == chatID {
			e.selected = chatID
			return true
		}
	}
	return false
}

// Draft returns the composer prefill produced by the last chat open.
func (e *Engine) Draft() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft
}

// AttachmentList returns the last polled attachment metadata for a chat.
func (e *Engine) AttachmentList(chatID int64) []api.RawAttachment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]api.RawAttachment(nil), e.attachmentMeta[chatID]...)
}

// LastAttachmentPoll returns when a chat's metadata was last successfully
// polled. Unchanged across a skipped (backed-off) cycle.
func (e *Engine) LastAttachmentPoll(chatID int64) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastAttPoll[chatID]
}

// ResolveAttachment lazily fetches one attachment's binary content through
// the cache.
func (e *Engine) ResolveAttachment(ctx context.Context, id int64) (string, error) {
	return e.attachments.Resolve(ctx, id)
}

func attachmentIDs(meta []api.RawAttachment) []int64 {
	ids := make([]int64, len(meta))
	for i, a := range meta {
		ids[i] = a.ID
	}
	return ids
}
