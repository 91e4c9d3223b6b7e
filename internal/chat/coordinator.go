// Package chat keeps a local view of channels, messages, threads, reactions,
// typing state and search results consistent with a remote chat backend.
package chat

import (
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/adamavenir/pairchat/internal/cache"
	"github.com/adamavenir/pairchat/internal/core"
	"github.com/adamavenir/pairchat/internal/metrics"
	"github.com/adamavenir/pairchat/internal/remote"
	"github.com/adamavenir/pairchat/internal/types"
)

const (
	defaultChangeBuffer = 64
	maxChannelPages     = 20
)

// ChangeKind names the slice of state a Change refers to.
type ChangeKind string

const (
	ChangeMessages   ChangeKind = "messages"
	ChangeChannels   ChangeKind = "channels"
	ChangeTyping     ChangeKind = "typing"
	ChangeThread     ChangeKind = "thread"
	ChangeSearch     ChangeKind = "search"
	ChangeConnection ChangeKind = "connection"
)

// Change tells readers that some state was mutated and should be re-read.
type Change struct {
	Kind      ChangeKind
	ChannelID string
}

// Options configures a Coordinator.
type Options struct {
	// SelfID is the acting user; it never shows up as a typing peer or unread sender.
	SelfID  string
	Config  core.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Cache   cache.Cache
	// ChangeBuffer sizes the Changes channel. Changes are dropped when it is full.
	ChangeBuffer int
}

// Coordinator is the single mutator of all chat state.
//
// State is guarded by one mutex that is never held across a call into the
// remote client, so intents and push events keep flowing while a request is outstanding.
type Coordinator struct {
	client  remote.Client
	self    string
	logger  *slog.Logger
	metrics *metrics.Metrics
	cache   cache.Cache
	now     func() time.Time

	mu        sync.Mutex
	cfg       core.Config
	connected bool
	directory *ChannelDirectory
	channels  map[string]*channelState
	active    string
	thread    *ThreadContext
	threadGen uint64
	search    SearchSession
	outbound  map[string]outbound
	version   uint64
	versions  map[string]uint64

	typing *TypingTracker

	changesMu sync.RWMutex
	changes   chan Change
	closed    bool
}

type channelState struct {
	window
	cursor PaginationCursor
	gen    uint64
}

// outbound is what is needed to re-issue a send with the same correlation id.
type outbound struct {
	channelID string
	parentID  int64
	text      string
	file      *types.FileUpload
}

func (o outbound) intent() string {
	switch {
	case o.parentID != 0:
		return "thread_reply"
	case o.file != nil:
		return "send_file"
	default:
		return "send_text"
	}
}

// NewCoordinator wires a coordinator to a remote client.
func NewCoordinator(client remote.Client, opts Options) *Coordinator {
	cfg := opts.Config
	if cfg.MessagePageSize == 0 {
		cfg = core.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	buffer := opts.ChangeBuffer
	if buffer <= 0 {
		buffer = defaultChangeBuffer
	}
	c := &Coordinator{
		client:    client,
		self:      opts.SelfID,
		logger:    logger.With("component", "sync"),
		metrics:   opts.Metrics,
		cache:     opts.Cache,
		now:       time.Now,
		cfg:       cfg,
		connected: true,
		directory: NewChannelDirectory(),
		channels:  make(map[string]*channelState),
		outbound:  make(map[string]outbound),
		versions:  make(map[string]uint64),
		changes:   make(chan Change, buffer),
	}
	c.typing = NewTypingTracker(opts.SelfID, cfg.TypingIdle, func(channelID string) {
		c.emit(ChangeTyping, channelID)
	})
	return c
}

// Changes delivers change notifications until Close.
func (c *Coordinator) Changes() <-chan Change {
	return c.changes
}

// Close stops typing timers and closes the Changes channel.
func (c *Coordinator) Close() {
	c.typing.Reset()
	c.changesMu.Lock()
	defer c.changesMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.changes)
	}
}

// SetConfig swaps the configuration used by subsequent intents.
func (c *Coordinator) SetConfig(cfg core.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	c.typing.SetIdle(cfg.TypingIdle)
	return nil
}

func (c *Coordinator) Config() core.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Connected reports whether intents can currently reach the remote.
func (c *Coordinator) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyLocked()
}

func (c *Coordinator) ActiveChannel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Messages returns the window of a channel, confirmed entries first.
func (c *Coordinator) Messages(channelID string) []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.channels[channelID]
	if !ok {
		return nil
	}
	return st.messages()
}

// Reactions returns the reaction groups of a message in a channel window or the open thread.
func (c *Coordinator) Reactions(channelID string, messageID int64) []ReactionGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ledger, ok := c.lookupLocked(channelID, messageID)
	if !ok {
		return nil
	}
	return ledger.Groups(messageID)
}

// Channels returns the directory, most recent first.
func (c *Coordinator) Channels() []types.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.directory.List()
}

// MatchChannels filters the directory with a glob pattern.
func (c *Coordinator) MatchChannels(pattern string) ([]types.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.directory.Match(pattern)
}

// Cursor returns the pagination state of a channel.
func (c *Coordinator) Cursor(channelID string) (older, newer CursorState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.channels[channelID]
	if !ok {
		return CursorIdle, CursorIdle
	}
	return st.cursor.State(Older), st.cursor.State(Newer)
}

// Typing lists peers typing in a channel.
func (c *Coordinator) Typing(channelID string) []string {
	return c.typing.Typing(channelID)
}

// Thread returns the open thread, if any.
func (c *Coordinator) Thread() (ThreadView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.thread == nil {
		return ThreadView{}, false
	}
	return c.thread.view(), true
}

// SearchState returns the current search session.
func (c *Coordinator) SearchState() SearchView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.search.view()
}

// MarkRead clears the unread counter of a channel.
func (c *Coordinator) MarkRead(channelID string) bool {
	c.mu.Lock()
	changed := c.directory.MarkRead(channelID)
	c.mu.Unlock()
	if changed {
		c.emit(ChangeChannels, channelID)
	}
	return changed
}

func (c *Coordinator) emit(kind ChangeKind, channelID string) {
	c.changesMu.RLock()
	defer c.changesMu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.changes <- Change{Kind: kind, ChannelID: channelID}:
	default:
	}
}

// observe records the outcome of an intent and passes err through.
func (c *Coordinator) observe(intent string, err error) error {
	result := metrics.ResultOK
	switch {
	case err == nil:
	case errors.Is(err, core.ErrValidation):
		result = metrics.ResultValidation
	case errors.Is(err, core.ErrNotConnected):
		result = metrics.ResultNotConnected
	case errors.Is(err, core.ErrStale):
		result = metrics.ResultStale
	default:
		result = metrics.ResultRemote
	}
	c.metrics.Intent(intent, result)
	if err != nil && result == metrics.ResultRemote {
		c.logger.Warn("intent failed", "intent", intent, "error", err)
	}
	return err
}

func (c *Coordinator) readyLocked() bool {
	return c.connected && c.client.Ready()
}

func (c *Coordinator) stateLocked(channelID string) *channelState {
	st, ok := c.channels[channelID]
	if !ok {
		st = &channelState{window: newWindow()}
		c.channels[channelID] = st
	}
	return st
}

// activateLocked makes channelID the displayed channel. Typing peers,
// search and thread scoped to another channel are dropped.
func (c *Coordinator) activateLocked(channelID string) {
	if c.active == channelID {
		return
	}
	c.active = channelID
	c.typing.SetActive(channelID)
	if c.search.searching && c.search.channelID != channelID {
		c.search.Clear()
	}
	if c.thread != nil && c.thread.channelID != channelID {
		c.thread = nil
		c.threadGen++
	}
}

// lookupLocked finds a message in the channel window, then in the open thread.
func (c *Coordinator) lookupLocked(channelID string, messageID int64) (types.Message, *ReactionLedger, bool) {
	if st, ok := c.channels[channelID]; ok {
		if msg, ok := st.get(messageID); ok {
			return msg, st.reactions, true
		}
	}
	if c.thread != nil && c.thread.channelID == channelID {
		if msg, ok := c.thread.get(messageID); ok {
			return msg, c.thread.replies.reactions, true
		}
	}
	return types.Message{}, nil, false
}

// applyLocked writes an authoritative copy over every local entry with the same id.
// Messages outside the windows are ignored. It reports which views changed.
func (c *Coordinator) applyLocked(msg types.Message) (inWindow, inThread bool) {
	if st, ok := c.channels[msg.ChannelID]; ok && !msg.IsReply() {
		inWindow = st.update(msg)
	}
	if c.thread != nil && c.thread.channelID == msg.ChannelID {
		inThread = c.thread.update(msg)
	}
	return inWindow, inThread
}

// beginRefetchLocked supersedes older re-fetches of a message and returns
// the version the new one must still hold to be applied. Keys exist only
// while a re-fetch is in flight.
func (c *Coordinator) beginRefetchLocked(channelID string, messageID int64) uint64 {
	c.version++
	c.versions[versionKey(channelID, messageID)] = c.version
	return c.version
}

// endRefetchLocked reports whether version is still the latest re-fetch of
// the message and, if so, releases its key.
func (c *Coordinator) endRefetchLocked(channelID string, messageID int64, version uint64) bool {
	key := versionKey(channelID, messageID)
	if c.versions[key] != version {
		return false
	}
	delete(c.versions, key)
	return true
}

// supersedeLocked drops any in-flight re-fetch of a message; called when an
// intent response or pushed copy is applied.
func (c *Coordinator) supersedeLocked(channelID string, messageID int64) {
	delete(c.versions, versionKey(channelID, messageID))
}

func (c *Coordinator) updateUnconfirmedLocked() {
	n := 0
	for _, st := range c.channels {
		n += st.store.UnconfirmedLen()
	}
	if c.thread != nil {
		n += c.thread.replies.store.UnconfirmedLen()
	}
	c.metrics.SetUnconfirmed(n)
}

func (c *Coordinator) emitApplied(channelID string, inWindow, inThread bool) {
	if inWindow {
		c.emit(ChangeMessages, channelID)
	}
	if inThread {
		c.emit(ChangeThread, channelID)
	}
}

// authoritative normalizes a server copy for local storage.
func authoritative(msg types.Message, channelID string) types.Message {
	if msg.ChannelID == "" {
		msg.ChannelID = channelID
	}
	msg.State = types.SendStateSent
	msg.LastError = ""
	return msg
}

func versionKey(channelID string, messageID int64) string {
	return channelID + ":" + strconv.FormatInt(messageID, 10)
}

func requireChannel(channelID string) error {
	if channelID == "" {
		return &core.ValidationError{Field: "channel", Reason: "is required"}
	}
	return nil
}
