package chat

import (
	"context"

	"github.com/adamavenir/pairchat/internal/core"
	"github.com/adamavenir/pairchat/internal/types"
)

// EditText changes the text of a message optimistically and rolls back if the server rejects it.
// Editing a message outside the local window is a no-op.
func (c *Coordinator) EditText(ctx context.Context, channelID string, messageID int64, text string) (types.Message, error) {
	if err := requireChannel(channelID); err != nil {
		return types.Message{}, c.observe("edit_text", err)
	}
	if err := core.ValidateText(text); err != nil {
		return types.Message{}, c.observe("edit_text", err)
	}

	c.mu.Lock()
	if !c.readyLocked() {
		c.mu.Unlock()
		return types.Message{}, c.observe("edit_text", core.ErrNotConnected)
	}
	prev, _, ok := c.lookupLocked(channelID, messageID)
	if !ok {
		c.mu.Unlock()
		return types.Message{}, nil
	}
	editedAt := c.now().UnixMilli()
	inWindow, inThread := c.patchLocked(channelID, messageID, func(m *types.Message) {
		m.Text = text
		m.EditedAt = &editedAt
	})
	c.supersedeLocked(channelID, messageID)
	c.mu.Unlock()
	c.emitApplied(channelID, inWindow, inThread)

	updated, err := c.client.EditText(ctx, prev, text)
	if err != nil {
		c.mu.Lock()
		inWindow, inThread = c.patchLocked(channelID, messageID, func(m *types.Message) {
			m.Text = prev.Text
			m.EditedAt = prev.EditedAt
		})
		c.mu.Unlock()
		c.emitApplied(channelID, inWindow, inThread)
		return types.Message{}, c.observe("edit_text", core.Remote("edit text", err))
	}

	updated = authoritative(updated, channelID)
	c.mu.Lock()
	c.supersedeLocked(channelID, messageID)
	inWindow, inThread = c.applyLocked(updated)
	c.mu.Unlock()
	c.emitApplied(channelID, inWindow, inThread)
	return updated, c.observe("edit_text", nil)
}

// DeleteMessage removes a message optimistically and restores it if the server rejects the delete.
func (c *Coordinator) DeleteMessage(ctx context.Context, channelID string, messageID int64) error {
	if err := requireChannel(channelID); err != nil {
		return c.observe("delete", err)
	}

	c.mu.Lock()
	if !c.readyLocked() {
		c.mu.Unlock()
		return c.observe("delete", core.ErrNotConnected)
	}
	target, _, ok := c.lookupLocked(channelID, messageID)
	if !ok {
		c.mu.Unlock()
		return nil
	}
	var (
		fromWindow, fromThread       types.Message
		removedWindow, removedThread bool
	)
	if st, ok := c.channels[channelID]; ok {
		fromWindow, removedWindow = st.remove(messageID)
	}
	if c.thread != nil && c.thread.channelID == channelID && c.thread.parent.ID != messageID {
		fromThread, removedThread = c.thread.replies.remove(messageID)
	}
	c.mu.Unlock()
	c.emitApplied(channelID, removedWindow, removedThread)

	if err := c.client.DeleteMessage(ctx, target); err != nil {
		c.mu.Lock()
		if st, ok := c.channels[channelID]; ok && removedWindow {
			st.store.Append(fromWindow)
		}
		if removedThread && c.thread.matches(channelID, target.ParentID) {
			c.thread.replies.store.Append(fromThread)
		}
		c.mu.Unlock()
		c.emitApplied(channelID, removedWindow, removedThread)
		return c.observe("delete", core.Remote("delete message", err))
	}

	c.mu.Lock()
	c.supersedeLocked(channelID, messageID)
	if st, ok := c.channels[channelID]; ok {
		st.reactions.Forget(messageID)
	}
	threadClosed := false
	if c.thread != nil && c.thread.channelID == channelID {
		if c.thread.parent.ID == messageID {
			c.thread = nil
			c.threadGen++
			threadClosed = true
		} else {
			c.thread.replies.reactions.Forget(messageID)
		}
	}
	c.mu.Unlock()
	if threadClosed {
		c.emit(ChangeThread, channelID)
	}
	return c.observe("delete", nil)
}

// CreateChannel starts a channel with the given members; self is always included.
// The channel is listed at once under a provisional id. If the server rejects it,
// the provisional entry stays listed and the error is returned.
func (c *Coordinator) CreateChannel(ctx context.Context, memberIDs []string) (types.Channel, error) {
	members, err := core.NormalizeMembers(c.self, memberIDs)
	if err != nil {
		return types.Channel{}, c.observe("create_channel", err)
	}

	c.mu.Lock()
	if !c.readyLocked() {
		c.mu.Unlock()
		return types.Channel{}, c.observe("create_channel", core.ErrNotConnected)
	}
	provisional := types.Channel{
		ID:          core.ProvisionalChannelID(core.NewCorrelationID()),
		Members:     members,
		UpdatedAt:   c.now().UnixMilli(),
		Provisional: true,
	}
	c.directory.InsertFront(provisional)
	c.mu.Unlock()
	c.emit(ChangeChannels, provisional.ID)

	ch, err := c.client.CreateChannel(ctx, members)
	if err != nil {
		return provisional, c.observe("create_channel", core.Remote("create channel", err))
	}

	c.mu.Lock()
	c.directory.Rekey(provisional.ID, ch)
	created, _ := c.directory.Get(ch.ID)
	c.mu.Unlock()
	c.emit(ChangeChannels, ch.ID)
	return created, c.observe("create_channel", nil)
}

// NotifyTyping tells peers that self started typing. Repeated calls send once.
func (c *Coordinator) NotifyTyping(ctx context.Context, channelID string) error {
	return c.notifyTyping(ctx, channelID, true)
}

// NotifyStoppedTyping tells peers that self stopped typing. Repeated calls send once.
func (c *Coordinator) NotifyStoppedTyping(ctx context.Context, channelID string) error {
	return c.notifyTyping(ctx, channelID, false)
}

func (c *Coordinator) notifyTyping(ctx context.Context, channelID string, typing bool) error {
	if err := requireChannel(channelID); err != nil {
		return err
	}
	c.mu.Lock()
	ready := c.readyLocked()
	c.mu.Unlock()
	if !ready {
		return c.observe("typing", core.ErrNotConnected)
	}

	transition, revert := c.typing.BeginOutbound, c.typing.EndOutbound
	if !typing {
		transition, revert = c.typing.EndOutbound, c.typing.BeginOutbound
	}
	if !transition(channelID) {
		return nil
	}
	if err := c.client.SendTyping(ctx, channelID, typing); err != nil {
		revert(channelID)
		return c.observe("typing", core.Remote("send typing", err))
	}
	return c.observe("typing", nil)
}

// patchLocked mutates every local copy of a confirmed message.
func (c *Coordinator) patchLocked(channelID string, messageID int64, fn func(*types.Message)) (inWindow, inThread bool) {
	if st, ok := c.channels[channelID]; ok {
		inWindow = st.store.Update(messageID, fn)
	}
	if c.thread != nil && c.thread.channelID == channelID {
		if c.thread.parent.ID == messageID {
			parent := c.thread.parent.Clone()
			fn(&parent)
			parent.ID = messageID
			c.thread.parent = parent
			inThread = true
		} else {
			inThread = c.thread.replies.store.Update(messageID, fn)
		}
	}
	return inWindow, inThread
}
