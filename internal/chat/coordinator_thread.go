package chat

import (
	"context"

	"github.com/adamavenir/pairchat/internal/core"
	"github.com/adamavenir/pairchat/internal/types"
)

// EnterThread opens the thread of a parent message, replacing any open thread.
// The parent is taken from the local window when present and fetched otherwise.
func (c *Coordinator) EnterThread(ctx context.Context, channelID string, parentID int64) (ThreadView, error) {
	if err := requireChannel(channelID); err != nil {
		return ThreadView{}, c.observe("enter_thread", err)
	}
	c.mu.Lock()
	if !c.readyLocked() {
		c.mu.Unlock()
		return ThreadView{}, c.observe("enter_thread", core.ErrNotConnected)
	}
	parent, _, ok := c.lookupLocked(channelID, parentID)
	pageSize := c.cfg.ThreadPageSize
	c.mu.Unlock()

	if !ok || parent.IsReply() {
		fetched, err := c.client.GetMessage(ctx, channelID, parentID)
		if err != nil {
			return ThreadView{}, c.observe("enter_thread", core.Remote("get message", err))
		}
		parent = authoritative(fetched, channelID)
	}

	c.mu.Lock()
	c.threadGen++
	gen := c.threadGen
	c.thread = newThreadContext(parent, gen)
	c.mu.Unlock()
	c.emit(ChangeThread, channelID)

	replies, err := c.client.FetchThreadReplies(ctx, channelID, parentID, pageSize)

	c.mu.Lock()
	if c.thread == nil || c.thread.gen != gen {
		c.mu.Unlock()
		return ThreadView{}, c.observe("enter_thread", core.ErrStale)
	}
	c.thread.loading = false
	if err != nil {
		c.mu.Unlock()
		c.emit(ChangeThread, channelID)
		return ThreadView{}, c.observe("enter_thread", core.Remote("fetch thread replies", err))
	}
	c.thread.setReplies(repliesTo(parentID, normalizeAll(replies, channelID)))
	view := c.thread.view()
	c.mu.Unlock()
	c.emit(ChangeThread, channelID)
	return view, c.observe("enter_thread", nil)
}

// ExitThread closes the open thread. Late responses for it are discarded.
func (c *Coordinator) ExitThread() {
	c.mu.Lock()
	if c.thread == nil {
		c.mu.Unlock()
		return
	}
	channelID := c.thread.channelID
	c.thread = nil
	c.threadGen++
	c.updateUnconfirmedLocked()
	c.mu.Unlock()
	c.emit(ChangeThread, channelID)
}

// SendThreadReply posts a text or file reply in the open thread. The parent's
// reply count is re-fetched after the server confirms the reply.
func (c *Coordinator) SendThreadReply(ctx context.Context, reply types.ReplyContent) (types.Message, error) {
	out := outbound{}
	if reply.File != nil {
		file, err := core.ValidateFile(*reply.File, c.Config().MaxFileSize)
		if err != nil {
			return types.Message{}, c.observe("thread_reply", err)
		}
		out.file = &file
	} else {
		if err := core.ValidateText(reply.Text); err != nil {
			return types.Message{}, c.observe("thread_reply", err)
		}
		out.text = reply.Text
	}

	c.mu.Lock()
	if c.thread == nil {
		c.mu.Unlock()
		return types.Message{}, c.observe("thread_reply", &core.ValidationError{Field: "thread", Reason: "is not open"})
	}
	out.channelID = c.thread.channelID
	out.parentID = c.thread.parent.ID
	c.mu.Unlock()

	return c.send(ctx, out, core.NewCorrelationID())
}

// repliesTo keeps only direct replies to parentID.
func repliesTo(parentID int64, msgs []types.Message) []types.Message {
	out := msgs[:0]
	for _, msg := range msgs {
		if msg.ParentID == parentID && msg.ID != parentID {
			out = append(out, msg)
		}
	}
	return out
}
