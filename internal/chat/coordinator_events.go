package chat

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/adamavenir/pairchat/internal/types"
)

// Run folds push events from the remote client until ctx ends or the stream closes.
// Events that need a remote round trip run on their own goroutine so the loop keeps draining.
func (c *Coordinator) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	events := c.client.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !needsRoundTrip(ev) {
				c.handleLogged(ctx, ev)
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.handleLogged(ctx, ev)
			}()
		}
	}
}

func (c *Coordinator) handleLogged(ctx context.Context, ev types.Event) {
	if err := c.HandleEvent(ctx, ev); err != nil {
		c.logger.Warn("event handling failed", "kind", ev.Kind, "channel_id", ev.ChannelID, "error", err)
	}
}

func needsRoundTrip(ev types.Event) bool {
	switch ev.Kind {
	case types.EventReactionUpdated, types.EventThreadInfoUpdated, types.EventConnectionRestored:
		return true
	case types.EventMessageUpdated:
		return ev.Message == nil
	default:
		return false
	}
}

// HandleEvent folds one push event into local state.
func (c *Coordinator) HandleEvent(ctx context.Context, ev types.Event) error {
	c.metrics.Event(string(ev.Kind))
	switch ev.Kind {
	case types.EventMessageReceived:
		c.onMessageReceived(ev)
	case types.EventMessageUpdated:
		if ev.Message == nil {
			return c.refetchMessage(ctx, ev.ChannelID, ev.MessageID)
		}
		c.onMessageUpdated(ev)
	case types.EventMessageDeleted:
		c.onMessageDeleted(ev)
	case types.EventReactionUpdated, types.EventThreadInfoUpdated:
		return c.refetchMessage(ctx, ev.ChannelID, ev.MessageID)
	case types.EventTypingStarted:
		if c.typing.Started(ev.ChannelID, ev.UserID) {
			c.emit(ChangeTyping, ev.ChannelID)
		}
	case types.EventTypingStopped:
		if c.typing.Stopped(ev.ChannelID, ev.UserID) {
			c.emit(ChangeTyping, ev.ChannelID)
		}
	case types.EventChannelUpdated:
		c.onChannelUpdated(ev)
	case types.EventConnectionLost:
		c.onConnectionLost()
	case types.EventConnectionRestored:
		return c.resync(ctx)
	default:
		c.logger.Debug("unknown event ignored", "kind", ev.Kind)
	}
	return nil
}

func (c *Coordinator) onMessageReceived(ev types.Event) {
	if ev.Message == nil {
		return
	}
	channelID := ev.ChannelID
	if channelID == "" {
		channelID = ev.Message.ChannelID
	}
	msg := authoritative(*ev.Message, channelID)

	c.mu.Lock()
	if msg.IsReply() {
		inThread := false
		if c.thread.matches(channelID, msg.ParentID) {
			c.thread.replies.put(msg)
			inThread = true
		}
		c.updateUnconfirmedLocked()
		c.mu.Unlock()
		c.emitApplied(channelID, false, inThread)
		return
	}

	if st, ok := c.channels[channelID]; ok {
		st.put(msg)
		st.cursor.Reopen(Newer)
	}
	channelsChanged := false
	if ch, ok := c.directory.Get(channelID); ok {
		// Redelivered or out-of-order messages leave the row alone.
		if ch.LastMessage == nil || ch.LastMessage.MessageID < msg.ID {
			unread := channelID != c.active && msg.SenderID != c.self
			channelsChanged = c.directory.Touch(channelID, types.SummaryOf(msg), unread)
		}
	} else if ev.Channel != nil {
		ch := *ev.Channel
		ch.LastMessage = types.SummaryOf(msg)
		c.directory.InsertFront(ch)
		channelsChanged = true
	}
	c.updateUnconfirmedLocked()
	c.mu.Unlock()

	c.emit(ChangeMessages, channelID)
	if channelsChanged {
		c.emit(ChangeChannels, channelID)
	}
	if c.typing.Stopped(channelID, msg.SenderID) {
		c.emit(ChangeTyping, channelID)
	}
}

func (c *Coordinator) onMessageUpdated(ev types.Event) {
	channelID := ev.ChannelID
	if channelID == "" {
		channelID = ev.Message.ChannelID
	}
	msg := authoritative(*ev.Message, channelID)

	c.mu.Lock()
	c.supersedeLocked(channelID, msg.ID)
	inWindow, inThread := c.applyLocked(msg)
	c.mu.Unlock()
	c.emitApplied(channelID, inWindow, inThread)
}

func (c *Coordinator) onMessageDeleted(ev types.Event) {
	messageID := ev.MessageID
	if messageID == 0 && ev.Message != nil {
		messageID = ev.Message.ID
	}
	if messageID == 0 {
		return
	}
	channelID := ev.ChannelID
	if channelID == "" && ev.Message != nil {
		channelID = ev.Message.ChannelID
	}

	c.mu.Lock()
	c.supersedeLocked(channelID, messageID)
	inWindow, inThread := false, false
	if st, ok := c.channels[channelID]; ok {
		_, inWindow = st.remove(messageID)
		st.reactions.Forget(messageID)
	}
	if c.thread != nil && c.thread.channelID == channelID {
		if c.thread.parent.ID == messageID {
			c.thread = nil
			c.threadGen++
			inThread = true
		} else {
			_, inThread = c.thread.replies.remove(messageID)
			c.thread.replies.reactions.Forget(messageID)
		}
	}
	c.mu.Unlock()
	c.emitApplied(channelID, inWindow, inThread)
}

func (c *Coordinator) onChannelUpdated(ev types.Event) {
	if ev.Channel == nil || ev.Channel.ID == "" {
		return
	}
	c.mu.Lock()
	c.directory.Upsert(*ev.Channel)
	c.mu.Unlock()
	c.emit(ChangeChannels, ev.Channel.ID)
}

func (c *Coordinator) onConnectionLost() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.typing.Reset()
	c.emit(ChangeConnection, "")
	c.logger.Info("connection lost")
}

// resync replaces the directory and the displayed channel's window with fresh
// snapshots. Both requests run concurrently and each runs to completion.
func (c *Coordinator) resync(ctx context.Context) error {
	c.mu.Lock()
	c.connected = true
	active := c.active
	for _, st := range c.channels {
		st.cursor.Reopen(Newer)
	}
	c.mu.Unlock()
	c.emit(ChangeConnection, "")
	c.metrics.Resync()
	c.logger.Info("connection restored, resyncing", "active_channel", active)

	var g errgroup.Group
	g.Go(func() error {
		return c.RefreshChannels(ctx)
	})
	if active != "" {
		g.Go(func() error {
			return c.FetchMessages(ctx, active)
		})
	}
	return g.Wait()
}
