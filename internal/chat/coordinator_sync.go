package chat

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/adamavenir/pairchat/internal/core"
	"github.com/adamavenir/pairchat/internal/types"
)

const profileLookupConcurrency = 8

// RefreshChannels replaces the directory with a remote snapshot.
func (c *Coordinator) RefreshChannels(ctx context.Context) error {
	c.mu.Lock()
	ready := c.readyLocked()
	pageSize := c.cfg.ChannelPageSize
	c.mu.Unlock()
	if !ready {
		return c.observe("refresh_channels", core.ErrNotConnected)
	}

	var (
		all    []types.Channel
		cursor string
	)
	for page := 0; page < maxChannelPages; page++ {
		res, err := c.client.ListChannels(ctx, pageSize, cursor)
		if err != nil {
			return c.observe("refresh_channels", core.Remote("list channels", err))
		}
		all = append(all, res.Channels...)
		if res.NextCursor == "" || res.NextCursor == cursor {
			break
		}
		cursor = res.NextCursor
	}

	c.mu.Lock()
	c.directory.Replace(all)
	snapshot := c.directory.List()
	c.mu.Unlock()
	c.emit(ChangeChannels, "")

	if c.cache != nil {
		if err := c.cache.SaveChannels(ctx, snapshot); err != nil {
			c.logger.Warn("cache channels failed", "error", err)
		}
	}
	return c.observe("refresh_channels", nil)
}

// FetchMessages makes channelID the displayed channel and replaces its window
// with the latest page. A cached window is shown first when the channel has none.
func (c *Coordinator) FetchMessages(ctx context.Context, channelID string) error {
	if err := requireChannel(channelID); err != nil {
		return c.observe("fetch_messages", err)
	}
	c.mu.Lock()
	if !c.readyLocked() {
		c.mu.Unlock()
		return c.observe("fetch_messages", core.ErrNotConnected)
	}
	switched := c.active != channelID
	c.activateLocked(channelID)
	st := c.stateLocked(channelID)
	empty := st.store.Len() == 0
	query := c.messageQueryLocked(channelID, 0)
	c.mu.Unlock()
	if switched {
		c.emit(ChangeTyping, channelID)
	}

	if empty && c.cache != nil {
		c.showCached(ctx, channelID)
	}

	msgs, err := c.client.FetchMessages(ctx, query)
	if err != nil {
		return c.observe("fetch_messages", core.Remote("fetch messages", err))
	}
	returned := len(msgs)
	msgs = normalizeAll(topLevel(msgs), channelID)

	c.mu.Lock()
	st.reset(msgs)
	st.gen++
	st.cursor.Reset()
	st.cursor.Finish(Older, returned, query.PageSize)
	confirmed := st.confirmed()
	c.updateUnconfirmedLocked()
	c.mu.Unlock()
	c.emit(ChangeMessages, channelID)

	c.logger.Debug("window replaced", "channel_id", channelID, "count", len(msgs))
	if c.cache != nil {
		if err := c.cache.SaveMessages(ctx, channelID, confirmed); err != nil {
			c.logger.Warn("cache messages failed", "channel_id", channelID, "error", err)
		}
	}
	return c.observe("fetch_messages", nil)
}

// LoadOlder extends the displayed channel's window toward history and returns
// how many messages were added. It does nothing while a request is in flight
// or once history is exhausted.
func (c *Coordinator) LoadOlder(ctx context.Context) (int, error) {
	c.mu.Lock()
	st, ok := c.channels[c.active]
	if c.active == "" || !ok {
		c.mu.Unlock()
		return 0, nil
	}
	channelID := c.active
	if !st.cursor.Begin(Older) {
		c.mu.Unlock()
		return 0, nil
	}
	if !c.readyLocked() {
		st.cursor.Fail(Older)
		c.mu.Unlock()
		return 0, c.observe("load_older", core.ErrNotConnected)
	}
	var before int64
	if oldest, ok := st.store.Oldest(); ok {
		before = oldest.TS
	}
	query := c.messageQueryLocked(channelID, before)
	gen := st.gen
	c.mu.Unlock()
	c.emit(ChangeMessages, channelID)

	msgs, err := c.client.FetchMessages(ctx, query)

	c.mu.Lock()
	if st.gen != gen {
		// The window was replaced meanwhile and its cursor already reset.
		c.mu.Unlock()
		return 0, c.observe("load_older", core.ErrStale)
	}
	if err != nil {
		st.cursor.Fail(Older)
		c.mu.Unlock()
		c.emit(ChangeMessages, channelID)
		return 0, c.observe("load_older", core.Remote("load older", err))
	}
	// Exhaustion follows the server page, replies included.
	returned := len(msgs)
	msgs = normalizeAll(topLevel(msgs), channelID)
	added := 0
	if st.prepend(msgs) {
		added = len(msgs)
	}
	st.cursor.Finish(Older, returned, query.PageSize)
	c.mu.Unlock()
	c.emit(ChangeMessages, channelID)
	return added, c.observe("load_older", nil)
}

// Refresh re-reads the latest page of the displayed channel and replaces the window.
// Once a refresh comes back short, further refreshes wait for a new message to arrive.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	st, ok := c.channels[c.active]
	if c.active == "" || !ok {
		c.mu.Unlock()
		return nil
	}
	channelID := c.active
	if !st.cursor.Begin(Newer) {
		c.mu.Unlock()
		return nil
	}
	if !c.readyLocked() {
		st.cursor.Fail(Newer)
		c.mu.Unlock()
		return c.observe("refresh", core.ErrNotConnected)
	}
	query := c.messageQueryLocked(channelID, 0)
	c.mu.Unlock()

	msgs, err := c.client.FetchMessages(ctx, query)

	c.mu.Lock()
	if err != nil {
		st.cursor.Fail(Newer)
		c.mu.Unlock()
		return c.observe("refresh", core.Remote("refresh", err))
	}
	returned := len(msgs)
	msgs = normalizeAll(topLevel(msgs), channelID)
	st.reset(msgs)
	st.gen++
	st.cursor.Finish(Older, returned, query.PageSize)
	st.cursor.Finish(Newer, returned, query.PageSize)
	c.updateUnconfirmedLocked()
	c.mu.Unlock()
	c.emit(ChangeMessages, channelID)
	return c.observe("refresh", nil)
}

// Warm fills an empty directory from the cache.
func (c *Coordinator) Warm(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	channels, err := c.cache.LoadChannels(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	warmed := c.directory.Len() == 0 && len(channels) > 0
	if warmed {
		c.directory.Replace(channels)
	}
	c.mu.Unlock()
	if warmed {
		c.emit(ChangeChannels, "")
	}
	return nil
}

// ProfileLookup resolves the display data of a user.
type ProfileLookup interface {
	Lookup(ctx context.Context, userID string) (types.Profile, error)
}

// ChannelRow pairs a channel with the peer shown on its row.
type ChannelRow struct {
	Channel types.Channel
	Peer    types.Profile
}

// ChannelRows resolves the first other member of every channel.
// Lookup failures fall back to a bare profile carrying the user id.
func (c *Coordinator) ChannelRows(ctx context.Context, lookup ProfileLookup) ([]ChannelRow, error) {
	channels := c.Channels()
	rows := make([]ChannelRow, len(channels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(profileLookupConcurrency)
	for i, ch := range channels {
		rows[i].Channel = ch
		peer := c.peerOf(ch)
		if peer == "" {
			continue
		}
		rows[i].Peer = types.Profile{ID: peer}
		g.Go(func() error {
			profile, err := lookup.Lookup(gctx, peer)
			if err != nil {
				c.logger.Debug("profile lookup failed", "user_id", peer, "error", err)
				return nil
			}
			rows[i].Peer = profile
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, ctx.Err()
}

func (c *Coordinator) peerOf(ch types.Channel) string {
	for _, member := range ch.Members {
		if member != c.self {
			return member
		}
	}
	return ""
}

func (c *Coordinator) showCached(ctx context.Context, channelID string) {
	cached, err := c.cache.LoadMessages(ctx, channelID)
	if err != nil {
		c.logger.Warn("cache read failed", "channel_id", channelID, "error", err)
		return
	}
	if len(cached) == 0 {
		return
	}
	c.mu.Lock()
	st := c.stateLocked(channelID)
	shown := len(st.store.Confirmed()) == 0
	if shown {
		st.reset(cached)
	}
	c.mu.Unlock()
	if shown {
		c.emit(ChangeMessages, channelID)
	}
}

func (c *Coordinator) messageQueryLocked(channelID string, before int64) types.MessageQuery {
	return types.MessageQuery{
		ChannelID:        channelID,
		Before:           before,
		PageSize:         c.cfg.MessagePageSize,
		IncludeReactions: true,
		IncludeThread:    true,
	}
}

func normalizeAll(msgs []types.Message, channelID string) []types.Message {
	for i := range msgs {
		msgs[i] = authoritative(msgs[i], channelID)
	}
	return msgs
}
